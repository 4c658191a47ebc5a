// Package usecases implements the dashboard: the selection root and the
// widgets that hang off it
package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/abelzeko/dwlr-dashboard/internal/scheduler"
	"go.uber.org/zap"
)

var (
	// ErrUnknownStation is returned when selecting an id missing from the station list
	ErrUnknownStation = errors.New("unknown station")
	// ErrNoStation is returned when an operation needs an active station and none is selected
	ErrNoStation = errors.New("no station selected")
)

// StationsFetcher fetches the station list
type StationsFetcher interface {
	Stations(ctx context.Context) ([]entities.Station, error)
}

// SummaryFetcher fetches the aggregate KPIs
type SummaryFetcher interface {
	Summary(ctx context.Context) (*entities.Summary, error)
}

// GroundwaterAPI is everything the dashboard reads from the backend
type GroundwaterAPI interface {
	StationsFetcher
	SummaryFetcher
	ForecastFetcher
	AvailabilityFetcher
	ScenarioRunner
	AlertsFetcher
	ZonesFetcher
}

// Options tune a Dashboard
type Options struct {
	AlertsInterval time.Duration
	Logger         *zap.SugaredLogger
}

// Dashboard is the selection root. It owns the station list, the active
// station and the summary, and pushes the active station to every widget
// that depends on it.
type Dashboard struct {
	logger *zap.SugaredLogger

	stations *loader[[]entities.Station]
	summary  *loader[*entities.Summary]

	History      *HistoryWidget
	Forecast     *ForecastWidget
	Availability *AvailabilityWidget
	Scenario     *ScenarioWidget
	Alerts       *AlertsWidget
	Zones        *ZoneMapWidget

	api       GroundwaterAPI
	mountOnce sync.Once
	closeOnce sync.Once

	mu     sync.Mutex
	active string
}

// DashboardView is a consistent-enough snapshot of every widget
type DashboardView struct {
	ActiveStation  string                              `json:"active_station"`
	Stations       View[[]entities.Station]            `json:"stations"`
	Summary        View[*entities.Summary]             `json:"summary"`
	History        View[[]entities.HistoryPoint]       `json:"history"`
	Forecast       View[TrendForecast]                 `json:"forecast"`
	Availability   View[*entities.Availability]        `json:"availability"`
	ScenarioParams ScenarioParams                      `json:"scenario_params"`
	Scenario       View[ScenarioOutcome]               `json:"scenario"`
	Alerts         View[[]entities.Alert]              `json:"alerts"`
	Zones          View[[]entities.ZoneClassification] `json:"zones"`
}

// NewDashboard wires a dashboard to api. Alerts polling runs on sched.
func NewDashboard(api GroundwaterAPI, sched scheduler.Scheduler, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	d := &Dashboard{
		logger:       logger,
		api:          api,
		stations:     newLoader[[]entities.Station]("stations", logger),
		summary:      newLoader[*entities.Summary]("summary", logger),
		History:      NewHistoryWidget(api, logger),
		Forecast:     NewForecastWidget(api, logger),
		Availability: NewAvailabilityWidget(api, logger),
		Scenario:     NewScenarioWidget(api, logger),
		Alerts:       NewAlertsWidget(api, sched, opts.AlertsInterval, logger),
		Zones:        NewZoneMapWidget(api, logger),
	}
	d.stations.onApply = d.stationsLoaded
	return d
}

// Mount issues the initial station list and summary fetches, starts the
// alerts poll and loads the zone map. Only the first call has any effect.
func (d *Dashboard) Mount() {
	d.mountOnce.Do(func() {
		d.stations.issue("", d.api.Stations)
		d.summary.issue("", d.api.Summary)
		d.Alerts.Start()
		d.Zones.Mount()
	})
}

// stationsLoaded keeps the active station if it is still listed, otherwise
// falls back to the first station
func (d *Dashboard) stationsLoaded(_ string, stations []entities.Station) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if listed(stations, d.active) {
		return
	}
	next := ""
	if len(stations) > 0 {
		next = stations[0].StationID
	}
	d.logger.Debugw("Activating station", "from", d.active, "to", next)
	d.active = next
	d.propagate(next)
}

// Select makes id the active station. The id must be in the latest station list.
func (d *Dashboard) Select(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !listed(d.stations.snapshot().Data, id) {
		return fmt.Errorf("select %q: %w", id, ErrUnknownStation)
	}
	d.active = id
	d.propagate(id)
	return nil
}

// propagate pushes id to every identifier-dependent widget. Widgets ignore an
// unchanged id. Callers hold d.mu.
func (d *Dashboard) propagate(id string) {
	d.History.SetStation(id)
	d.Forecast.SetStation(id)
	d.Availability.SetStation(id)
	d.Scenario.SetStation(id)
}

// RunScenario sets both scenario factors for the active station
func (d *Dashboard) RunScenario(rainfall, demand float64) error {
	if d.ActiveStation() == "" {
		return ErrNoStation
	}
	return d.Scenario.SetFactors(rainfall, demand)
}

// ActiveStation returns the selected station id, empty before the first load
func (d *Dashboard) ActiveStation() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Stations returns the latest station list
func (d *Dashboard) Stations() []entities.Station {
	return d.stations.snapshot().Data
}

// Station looks a station up in the latest list
func (d *Dashboard) Station(id string) (entities.Station, bool) {
	for _, s := range d.Stations() {
		if s.StationID == id {
			return s, true
		}
	}
	return entities.Station{}, false
}

// Snapshot returns the view of every widget
func (d *Dashboard) Snapshot() DashboardView {
	return DashboardView{
		ActiveStation:  d.ActiveStation(),
		Stations:       d.stations.snapshot(),
		Summary:        d.summary.snapshot(),
		History:        d.History.View(),
		Forecast:       d.Forecast.View(),
		Availability:   d.Availability.View(),
		ScenarioParams: d.Scenario.Params(),
		Scenario:       d.Scenario.View(),
		Alerts:         d.Alerts.View(),
		Zones:          d.Zones.View(),
	}
}

// Wait blocks until every fetch issued so far, and every fetch those
// completions issued, has finished
func (d *Dashboard) Wait() {
	d.stations.wait()
	d.summary.wait()
	d.History.Wait()
	d.Forecast.Wait()
	d.Availability.Wait()
	d.Scenario.Wait()
	d.Alerts.Wait()
	d.Zones.Wait()
}

// Close stops the alerts poll and cancels everything in flight
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.Alerts.Close()
		d.stations.close()
		d.summary.close()
		d.History.Close()
		d.Forecast.Close()
		d.Availability.Close()
		d.Scenario.Close()
		d.Zones.Close()
	})
}

func listed(stations []entities.Station, id string) bool {
	if id == "" {
		return false
	}
	for _, s := range stations {
		if s.StationID == id {
			return true
		}
	}
	return false
}
