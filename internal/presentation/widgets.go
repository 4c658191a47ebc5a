// Package presentation turns dashboard state into display models: KPI cards,
// chart series, map markers, badges and the text the bot sends.
package presentation

import (
	"strconv"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
)

// Map defaults: centre of India
const (
	MapCenterLat = 22.5937
	MapCenterLon = 78.9629
	MapZoom      = 5
)

// MaxAlertsShown is how many alerts the panel lists
const MaxAlertsShown = 4

// Chart colours
const (
	historyColor  = "#2563eb"
	forecastColor = "#f97316"
)

// ZoneColor maps a zone to its marker colour
func ZoneColor(zone entities.Zone) string {
	switch zone {
	case entities.ZoneSafe:
		return "green"
	case entities.ZoneSemiCritical:
		return "orange"
	case entities.ZoneCritical:
		return "red"
	default:
		return "gray"
	}
}

// ZoneBadge is the short label used next to a station name
func ZoneBadge(zone entities.Zone) string {
	switch zone {
	case entities.ZoneSafe:
		return "🟢 Safe"
	case entities.ZoneSemiCritical:
		return "🟠 Semi-Critical"
	case entities.ZoneCritical:
		return "🔴 Critical"
	default:
		return "⚪ Unknown"
	}
}

// MapMarker is one circle on the zone map
type MapMarker struct {
	StationID string  `json:"station_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Color     string  `json:"color"`
	Zone      string  `json:"zone"`
	Popup     string  `json:"popup"`
}

// ZoneMarkers builds one marker per classification
func ZoneMarkers(zones []entities.ZoneClassification) []MapMarker {
	markers := make([]MapMarker, 0, len(zones))
	for _, z := range zones {
		markers = append(markers, MapMarker{
			StationID: z.StationID,
			Lat:       z.Latitude,
			Lon:       z.Longitude,
			Color:     ZoneColor(z.Zone),
			Zone:      string(z.Zone),
			Popup:     z.StationID + "\nZone: " + string(z.Zone),
		})
	}
	return markers
}

// KPICard is one headline number
type KPICard struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Subtitle string `json:"subtitle"`
}

// KPICards renders the four summary cards
func KPICards(s entities.Summary) []KPICard {
	return []KPICard{
		{Title: "Average Water Level", Value: Number(s.AvgWaterLevel) + " m", Subtitle: "Across all stations"},
		{Title: "Total Recharge", Value: Number(s.TotalRecharge) + " MCM", Subtitle: "Annual estimate"},
		{Title: "Critical Alerts", Value: strconv.Itoa(s.CriticalAlerts), Subtitle: "Require attention"},
		{Title: "Active Stations", Value: strconv.Itoa(s.ActiveStations), Subtitle: "Real-time monitoring"},
	}
}

// Badge is a coloured status pill
type Badge struct {
	Label string `json:"label"`
	Level string `json:"level"` // neutral, warning or danger
}

// RiskBadge styles a scenario risk level
func RiskBadge(risk string) Badge {
	switch risk {
	case "Low":
		return Badge{Label: risk, Level: "neutral"}
	case "Medium":
		return Badge{Label: risk, Level: "warning"}
	default:
		return Badge{Label: risk, Level: "danger"}
	}
}

// AvailabilityBadge styles the availability status
func AvailabilityBadge(a entities.Availability) Badge {
	if a.Sustainable() {
		return Badge{Label: a.Status, Level: "neutral"}
	}
	return Badge{Label: a.Status, Level: "danger"}
}

// Series is one line of a chart. Nil points are gaps.
type Series struct {
	Label  string     `json:"label"`
	Color  string     `json:"color"`
	Dashed bool       `json:"dashed,omitempty"`
	Points []*float64 `json:"points"`
}

// Chart is a line chart over date labels
type Chart struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

const chartDateLayout = "2006-01-02"

// HistoryChart plots the recent readings of a station
func HistoryChart(points []entities.HistoryPoint) Chart {
	labels := make([]string, 0, len(points))
	values := make([]*float64, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Timestamp.Format(chartDateLayout))
		values = append(values, ptr(p.WaterLevelMBGL))
	}
	return Chart{
		Title:  "30-Day Groundwater Trend",
		Labels: labels,
		Series: []Series{{Label: "30-Day Groundwater Trend", Color: historyColor, Points: values}},
	}
}

// TrendForecastChart plots history and forecast on one axis. The forecast
// series starts with one gap per history point so it continues where the
// history ends.
func TrendForecastChart(history []entities.HistoryPoint, forecast []entities.ForecastPoint) Chart {
	labels := make([]string, 0, len(history)+len(forecast))
	observed := make([]*float64, 0, len(history))
	projected := make([]*float64, len(history), len(history)+len(forecast))

	for _, p := range history {
		labels = append(labels, p.Timestamp.Format(chartDateLayout))
		observed = append(observed, ptr(p.WaterLevelMBGL))
	}
	for _, p := range forecast {
		labels = append(labels, p.Date.Format(chartDateLayout))
		projected = append(projected, ptr(p.WaterLevelMBGL))
	}

	return Chart{
		Title:  "Groundwater Trend & Forecast",
		Labels: labels,
		Series: []Series{
			{Label: "Historical Water Level (Last 30 Days)", Color: historyColor, Points: observed},
			{Label: "Forecast (Next 7 Days)", Color: forecastColor, Dashed: true, Points: projected},
		},
	}
}

// AlertsPanel is the display model of the alerts widget
type AlertsPanel struct {
	Loading   bool             `json:"loading"`
	HasAlerts bool             `json:"has_alerts"`
	Count     int              `json:"count"`
	Shown     []entities.Alert `json:"shown"`
	Truncated bool             `json:"truncated"`
}

// NewAlertsPanel keeps the first MaxAlertsShown alerts. loading is true
// until the first poll completed.
func NewAlertsPanel(alerts []entities.Alert, loading bool) AlertsPanel {
	shown := alerts
	if len(shown) > MaxAlertsShown {
		shown = shown[:MaxAlertsShown]
	}
	return AlertsPanel{
		Loading:   loading,
		HasAlerts: len(alerts) > 0,
		Count:     len(alerts),
		Shown:     shown,
		Truncated: len(alerts) > MaxAlertsShown,
	}
}

// Number formats a reading the shortest way that round-trips
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ptr(v float64) *float64 {
	return &v
}
