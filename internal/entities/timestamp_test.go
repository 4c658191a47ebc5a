package entities

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 6, 30, 8, 15, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339", "2024-06-30T08:15:00Z", want},
		{"no zone", "2024-06-30T08:15:00", want},
		{"fractional seconds", "2024-06-30T08:15:00.000000", want},
		{"space separated", "2024-06-30 08:15:00", want},
		{"date only", "2024-06-30", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2024-06-30  ", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got.Time, tt.want)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("Expected an error for an unparseable timestamp")
	}
}

func TestTimestampJSON(t *testing.T) {
	var point struct {
		Date Timestamp `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-06-30 08:15:00"}`), &point); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if point.Date.Hour() != 8 || point.Date.Location() != time.UTC {
		t.Errorf("Unexpected timestamp %v", point.Date.Time)
	}

	if err := json.Unmarshal([]byte(`{"date":null}`), &point); err != nil {
		t.Fatalf("Unmarshal of null failed: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"date":20240630}`), &point); err == nil {
		t.Error("Expected an error for a numeric timestamp")
	}

	data, err := json.Marshal(Timestamp{})
	if err != nil || string(data) != "null" {
		t.Errorf("Zero timestamp marshalled to %s (%v)", data, err)
	}
}

func TestFactorString(t *testing.T) {
	tests := map[Factor]string{
		1:    "1.0",
		0.5:  "0.5",
		1.25: "1.25",
		2:    "2.0",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("Factor(%v).String() = %q, want %q", float64(f), got, want)
		}
	}

	req := ScenarioRequest{StationID: "S1", RainfallFactor: 0.8, DemandFactor: 1}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"station_id":"S1","rainfall_factor":0.8,"demand_factor":1.0}` {
		t.Errorf("Unexpected request body %s", data)
	}
}
