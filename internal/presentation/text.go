package presentation

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
)

// Placeholders shown when a widget has nothing to display
const (
	PlaceholderLoading     = "Loading…"
	PlaceholderUnavailable = "Data unavailable right now. Please try again later."
	PlaceholderNoStation   = "No station selected. Use /stations to pick one."
)

// FormatStations lists stations with their zone, marking the active one
func FormatStations(stations []entities.Station, active string) string {
	if len(stations) == 0 {
		return "No stations available."
	}

	var result strings.Builder
	result.WriteString("Available stations:\n\n")
	for _, s := range stations {
		marker := "•"
		if s.StationID == active {
			marker = "▶"
		}
		result.WriteString(fmt.Sprintf("%s %s (%s)", marker, s.StationID, s.District))
		if s.Zone != "" {
			result.WriteString(" " + ZoneBadge(s.Zone))
		}
		result.WriteString("\n")
	}
	result.WriteString("\nUse /station [id] to select a station.")
	return result.String()
}

// FormatStation describes one station's latest reading
func FormatStation(s entities.Station) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📍 Station: %s\n", s.StationID))
	if s.District != "" {
		result.WriteString(fmt.Sprintf("🏙 District: %s\n", s.District))
	}
	result.WriteString(fmt.Sprintf("🌐 Location: %s, %s\n", Number(s.Latitude), Number(s.Longitude)))
	if !s.Timestamp.IsZero() {
		result.WriteString(fmt.Sprintf("💧 Water Level: %s m bgl\n", Number(s.WaterLevelMBGL)))
	}
	if s.Zone != "" {
		result.WriteString(fmt.Sprintf("🗺 Zone: %s\n", ZoneBadge(s.Zone)))
	}
	if s.Trend != "" {
		result.WriteString(fmt.Sprintf("📈 Trend: %s\n", s.Trend))
	}
	if !s.Timestamp.IsZero() {
		result.WriteString(fmt.Sprintf("🕒 Last reading: %s", s.Timestamp.Format("2006-01-02 15:04:05 MST")))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatSummary renders the KPI cards as text
func FormatSummary(s entities.Summary) string {
	var result strings.Builder
	result.WriteString("Groundwater summary:\n\n")
	for _, card := range KPICards(s) {
		result.WriteString(fmt.Sprintf("%s: %s (%s)\n", card.Title, card.Value, card.Subtitle))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatHistory renders the recent readings of a station
func FormatHistory(stationID string, points []entities.HistoryPoint) string {
	if len(points) == 0 {
		return fmt.Sprintf("No history available for station %s.", stationID)
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("30-Day Groundwater Trend for %s:\n\n", stationID))
	for _, p := range points {
		result.WriteString(fmt.Sprintf("%s  %s m\n", p.Timestamp.Format(chartDateLayout), Number(p.WaterLevelMBGL)))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatForecast renders the trend and projection of a station
func FormatForecast(stationID string, history []entities.HistoryPoint, forecast []entities.ForecastPoint) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📊 Groundwater Trend & Forecast for %s\n\n", stationID))

	if n := len(history); n > 0 {
		first, last := history[0], history[n-1]
		result.WriteString(fmt.Sprintf("Observed: %s m (%s) → %s m (%s)\n",
			Number(first.WaterLevelMBGL), first.Timestamp.Format(chartDateLayout),
			Number(last.WaterLevelMBGL), last.Timestamp.Format(chartDateLayout)))
	} else {
		result.WriteString("Observed: no readings\n")
	}

	if len(forecast) == 0 {
		result.WriteString("Forecast: not available")
		return result.String()
	}
	result.WriteString("\nForecast:\n")
	for _, p := range forecast {
		result.WriteString(fmt.Sprintf("%s  %s m\n", p.Date.Format(chartDateLayout), Number(p.WaterLevelMBGL)))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatAvailability renders the recharge/demand balance of a station
func FormatAvailability(stationID string, a entities.Availability) string {
	status := "✅ " + a.Status
	if !a.Sustainable() {
		status = "⚠️ " + a.Status
	}
	return fmt.Sprintf("Water availability for %s:\n\n"+
		"Rainfall (mm): %s\n"+
		"Season: %s\n"+
		"Estimated Recharge (mm): %s\n"+
		"Estimated Demand (mm): %s\n"+
		"Available Groundwater (mm): %s\n"+
		"Status: %s",
		stationID, Number(a.RainfallMM), a.Season,
		Number(a.EstimatedRechargeMM), Number(a.EstimatedDemandMM),
		Number(a.AvailableGroundwaterMM), status)
}

// FormatScenario renders a scenario projection with its inputs
func FormatScenario(stationID string, rainfall, demand entities.Factor, r entities.ScenarioResult) string {
	return fmt.Sprintf("Scenario for %s (rainfall ×%s, demand ×%s):\n\n"+
		"Adjusted Recharge: %s\n"+
		"Adjusted Demand: %s\n"+
		"Net Availability: %s\n"+
		"Risk Level: %s",
		stationID, rainfall, demand,
		Number(r.AdjustedRecharge), Number(r.AdjustedDemand), Number(r.NetAvailability),
		riskMarker(RiskBadge(r.RiskLevel)))
}

func riskMarker(b Badge) string {
	switch b.Level {
	case "neutral":
		return "🟢 " + b.Label
	case "warning":
		return "🟠 " + b.Label
	default:
		return "🔴 " + b.Label
	}
}

// FormatAlerts renders the alerts panel
func FormatAlerts(panel AlertsPanel, updated time.Time) string {
	if panel.Loading {
		return "🚨 Alerts\n\nChecking alerts…"
	}
	if !panel.HasAlerts {
		return "🚨 Alerts (0)\n\nAll stations operating normally"
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("🚨 Alerts (%d)\n\n", panel.Count))
	for _, a := range panel.Shown {
		result.WriteString(fmt.Sprintf("%s\nWL: %s m bgl\n%s\n\n", a.StationID, Number(a.WaterLevelMBGL), a.AlertReason))
	}
	if panel.Truncated {
		result.WriteString(fmt.Sprintf("…and %d more\n\n", panel.Count-len(panel.Shown)))
	}
	if !updated.IsZero() {
		result.WriteString(fmt.Sprintf("🕒 Last update: %s", updated.Format("2006-01-02 15:04:05")))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatZones counts stations per zone
func FormatZones(zones []entities.ZoneClassification) string {
	if len(zones) == 0 {
		return "No zone data available."
	}

	counts := make(map[string]int)
	for _, z := range zones {
		counts[ZoneBadge(z.Zone)]++
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Zone classification of %d stations:\n\n", len(zones)))
	for _, zone := range []entities.Zone{entities.ZoneSafe, entities.ZoneSemiCritical, entities.ZoneCritical, ""} {
		badge := ZoneBadge(zone)
		if n := counts[badge]; n > 0 {
			result.WriteString(fmt.Sprintf("%s: %d\n", badge, n))
		}
	}
	return strings.TrimRight(result.String(), "\n")
}
