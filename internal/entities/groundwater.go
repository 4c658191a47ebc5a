// Package entities contains the core domain objects for the groundwater dashboard.
//
// Every entity is a read-only snapshot decoded from the analytics backend. The
// validate tags are checked at the data-access boundary before a value reaches
// any widget.
package entities

// Zone is the sustainability tier the backend assigns to a station.
type Zone string

const (
	ZoneSafe         Zone = "Safe"
	ZoneSemiCritical Zone = "Semi-Critical"
	ZoneCritical     Zone = "Critical"
)

// Known reports whether z is one of the three tiers.
func (z Zone) Known() bool {
	switch z {
	case ZoneSafe, ZoneSemiCritical, ZoneCritical:
		return true
	}
	return false
}

// Station identifies a DWLR monitoring point
type Station struct {
	StationID string  `json:"station_id" validate:"required"`
	District  string  `json:"district"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`

	// Latest reading as reported by /api/groundwater
	Timestamp      Timestamp `json:"timestamp"`
	WaterLevelMBGL float64   `json:"water_level_m_bgl"`
	Zone           Zone      `json:"zone,omitempty"`
	Trend          string    `json:"trend,omitempty"`
}

// Summary holds the aggregate KPIs shown at the top of the dashboard
type Summary struct {
	AvgWaterLevel  float64 `json:"avg_water_level"`
	TotalRecharge  float64 `json:"total_recharge"`
	CriticalAlerts int     `json:"critical_alerts" validate:"gte=0"`
	ActiveStations int     `json:"active_stations" validate:"gte=0"`
}

// HistoryPoint is one observed reading (metres below ground level)
type HistoryPoint struct {
	Timestamp      Timestamp `json:"timestamp"`
	WaterLevelMBGL float64   `json:"water_level_m_bgl"`
}

// ForecastPoint is one projected reading
type ForecastPoint struct {
	Date           Timestamp `json:"date"`
	WaterLevelMBGL float64   `json:"water_level_m_bgl"`
}

// Availability is the recharge/demand balance of a station
type Availability struct {
	RainfallMM             float64 `json:"rainfall_mm" validate:"gte=0"`
	Season                 string  `json:"season" validate:"required"`
	EstimatedRechargeMM    float64 `json:"estimated_recharge_mm"`
	EstimatedDemandMM      float64 `json:"estimated_demand_mm"`
	AvailableGroundwaterMM float64 `json:"available_groundwater_mm"`
	Status                 string  `json:"status" validate:"required"`
}

// Sustainable reports whether recharge covers demand.
func (a Availability) Sustainable() bool {
	return a.AvailableGroundwaterMM > 0
}

// ScenarioRequest is the body of a what-if projection
type ScenarioRequest struct {
	StationID      string `json:"station_id" validate:"required"`
	RainfallFactor Factor `json:"rainfall_factor" validate:"gt=0"`
	DemandFactor   Factor `json:"demand_factor" validate:"gt=0"`
}

// ScenarioResult is the backend's answer to a ScenarioRequest
type ScenarioResult struct {
	AdjustedRecharge float64 `json:"adjusted_recharge"`
	AdjustedDemand   float64 `json:"adjusted_demand"`
	NetAvailability  float64 `json:"net_availability"`
	RiskLevel        string  `json:"risk_level" validate:"required"`
}

// Alert flags a station whose latest reading crossed a threshold
type Alert struct {
	StationID      string  `json:"station_id" validate:"required"`
	District       string  `json:"district"`
	WaterLevelMBGL float64 `json:"water_level_m_bgl"`
	AlertReason    string  `json:"alert_reason"`
}

// ZoneClassification is one marker of the zone map
type ZoneClassification struct {
	StationID string  `json:"station_id" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Zone      Zone    `json:"zone"`
}
