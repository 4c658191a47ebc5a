package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. The backend serialises pandas
// timestamps without a zone, so the zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02",
}

// Timestamp is a time.Time that tolerates the formats the backend emits
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s with every known layout
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return Timestamp{Time: t}, nil
		}
		lastErr = err
	}
	return Timestamp{}, fmt.Errorf("failed to parse timestamp '%s': %w", s, lastErr)
}

// UnmarshalJSON accepts a string in any known layout or null
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero value
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Factor is a scenario multiplier. It always serialises with a decimal point
// so that 1 is written as 1.0.
type Factor float64

// MarshalJSON implements json.Marshaler
func (f Factor) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return nil, fmt.Errorf("unsupported factor value: %v", float64(f))
	}
	return []byte(f.String()), nil
}

// String formats the factor with at least one decimal digit
func (f Factor) String() string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
