package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"go.uber.org/zap"
)

// Scenario factor bounds, matching the sliders of the dashboard
const (
	MinRainfallFactor = 0.5
	MaxRainfallFactor = 1.2
	MinDemandFactor   = 0.8
	MaxDemandFactor   = 1.5
	DefaultFactor     = 1.0
)

// ErrFactorOutOfRange is returned when a scenario factor is outside its slider range
var ErrFactorOutOfRange = errors.New("scenario factor out of range")

// HistoryFetcher fetches the reading history of a station
type HistoryFetcher interface {
	History(ctx context.Context, stationID string) ([]entities.HistoryPoint, error)
}

// ForecastFetcher fetches history and projection of a station
type ForecastFetcher interface {
	HistoryFetcher
	Forecast(ctx context.Context, stationID string) ([]entities.ForecastPoint, error)
}

// AvailabilityFetcher fetches the recharge/demand balance of a station
type AvailabilityFetcher interface {
	Availability(ctx context.Context, stationID string) (*entities.Availability, error)
}

// ScenarioRunner posts what-if projections
type ScenarioRunner interface {
	Scenario(ctx context.Context, req entities.ScenarioRequest) (*entities.ScenarioResult, error)
}

// stationWidget is the common lifecycle of widgets keyed by a station id:
// an empty id suppresses fetching, every change of id issues one fetch.
type stationWidget[T any] struct {
	loader *loader[T]
	fetch  func(ctx context.Context, stationID string) (T, error)

	mu        sync.Mutex
	stationID string
}

func newStationWidget[T any](name string, logger *zap.SugaredLogger, fetch func(context.Context, string) (T, error)) *stationWidget[T] {
	return &stationWidget[T]{
		loader: newLoader[T](name, logger),
		fetch:  fetch,
	}
}

// SetStation switches the widget to stationID. Setting the current id again
// is a no-op.
func (w *stationWidget[T]) SetStation(stationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if stationID == w.stationID {
		return
	}
	w.stationID = stationID
	w.start(stationID)
}

// Refresh re-fetches the current station
func (w *stationWidget[T]) Refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.start(w.stationID)
}

func (w *stationWidget[T]) start(stationID string) {
	if stationID == "" {
		w.loader.reset()
		return
	}
	w.loader.issue(stationID, func(ctx context.Context) (T, error) {
		return w.fetch(ctx, stationID)
	})
}

// Station returns the id the widget currently follows
func (w *stationWidget[T]) Station() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stationID
}

// View returns the current display state
func (w *stationWidget[T]) View() View[T] {
	return w.loader.snapshot()
}

// Wait blocks until no fetch is in flight
func (w *stationWidget[T]) Wait() {
	w.loader.wait()
}

// Close cancels in-flight fetches; later responses are dropped
func (w *stationWidget[T]) Close() {
	w.loader.close()
}

// HistoryWidget shows the recent readings of the active station
type HistoryWidget struct {
	*stationWidget[[]entities.HistoryPoint]
}

// NewHistoryWidget creates a history widget
func NewHistoryWidget(api HistoryFetcher, logger *zap.SugaredLogger) *HistoryWidget {
	return &HistoryWidget{newStationWidget("history", logger, api.History)}
}

// TrendForecast is the merged input of the trend & forecast chart
type TrendForecast struct {
	History  []entities.HistoryPoint  `json:"history"`
	Forecast []entities.ForecastPoint `json:"forecast"`
}

// ForecastWidget shows history and projection of the active station on one chart
type ForecastWidget struct {
	*stationWidget[TrendForecast]
}

// NewForecastWidget creates a forecast widget. Each station change issues two
// sequential fetches: history, then forecast.
func NewForecastWidget(api ForecastFetcher, logger *zap.SugaredLogger) *ForecastWidget {
	fetch := func(ctx context.Context, stationID string) (TrendForecast, error) {
		history, err := api.History(ctx, stationID)
		if err != nil {
			return TrendForecast{}, err
		}
		forecast, err := api.Forecast(ctx, stationID)
		if err != nil {
			return TrendForecast{}, err
		}
		return TrendForecast{History: history, Forecast: forecast}, nil
	}
	return &ForecastWidget{newStationWidget("forecast", logger, fetch)}
}

// AvailabilityWidget shows the recharge/demand balance of the active station
type AvailabilityWidget struct {
	*stationWidget[*entities.Availability]
}

// NewAvailabilityWidget creates an availability widget
func NewAvailabilityWidget(api AvailabilityFetcher, logger *zap.SugaredLogger) *AvailabilityWidget {
	return &AvailabilityWidget{newStationWidget("availability", logger, api.Availability)}
}

// ScenarioParams is the triple a scenario projection depends on
type ScenarioParams struct {
	StationID      string          `json:"station_id"`
	RainfallFactor entities.Factor `json:"rainfall_factor"`
	DemandFactor   entities.Factor `json:"demand_factor"`
}

// ScenarioOutcome pairs a projection with the parameters it was computed for
type ScenarioOutcome struct {
	Params ScenarioParams          `json:"params"`
	Result entities.ScenarioResult `json:"result"`
}

// ScenarioWidget re-runs the projection whenever the station or a factor changes
type ScenarioWidget struct {
	api    ScenarioRunner
	loader *loader[ScenarioOutcome]

	mu     sync.Mutex
	params ScenarioParams
}

// NewScenarioWidget creates a scenario widget with both factors at 1.0
func NewScenarioWidget(api ScenarioRunner, logger *zap.SugaredLogger) *ScenarioWidget {
	return &ScenarioWidget{
		api:    api,
		loader: newLoader[ScenarioOutcome]("scenario", logger),
		params: ScenarioParams{
			RainfallFactor: DefaultFactor,
			DemandFactor:   DefaultFactor,
		},
	}
}

// SetStation switches the projection to stationID
func (w *ScenarioWidget) SetStation(stationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.params
	next.StationID = stationID
	w.apply(next)
}

// SetRainfallFactor changes the rainfall multiplier
func (w *ScenarioWidget) SetRainfallFactor(f float64) error {
	if err := checkFactor("rainfall", f, MinRainfallFactor, MaxRainfallFactor); err != nil {
		return err
	}
	w.update(func(p *ScenarioParams) { p.RainfallFactor = entities.Factor(f) })
	return nil
}

// SetDemandFactor changes the demand multiplier
func (w *ScenarioWidget) SetDemandFactor(f float64) error {
	if err := checkFactor("demand", f, MinDemandFactor, MaxDemandFactor); err != nil {
		return err
	}
	w.update(func(p *ScenarioParams) { p.DemandFactor = entities.Factor(f) })
	return nil
}

// SetFactors changes both multipliers with a single request
func (w *ScenarioWidget) SetFactors(rainfall, demand float64) error {
	if err := checkFactor("rainfall", rainfall, MinRainfallFactor, MaxRainfallFactor); err != nil {
		return err
	}
	if err := checkFactor("demand", demand, MinDemandFactor, MaxDemandFactor); err != nil {
		return err
	}
	w.update(func(p *ScenarioParams) {
		p.RainfallFactor = entities.Factor(rainfall)
		p.DemandFactor = entities.Factor(demand)
	})
	return nil
}

// update edits a copy of the current triple and applies it, all under w.mu
func (w *ScenarioWidget) update(edit func(*ScenarioParams)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.params
	edit(&next)
	w.apply(next)
}

// apply issues a request for next if it differs from the current triple
func (w *ScenarioWidget) apply(next ScenarioParams) {
	if next == w.params {
		return
	}
	w.params = next

	if next.StationID == "" {
		w.loader.reset()
		return
	}
	w.loader.issue(next.StationID, func(ctx context.Context) (ScenarioOutcome, error) {
		result, err := w.api.Scenario(ctx, entities.ScenarioRequest{
			StationID:      next.StationID,
			RainfallFactor: next.RainfallFactor,
			DemandFactor:   next.DemandFactor,
		})
		if err != nil {
			return ScenarioOutcome{}, err
		}
		return ScenarioOutcome{Params: next, Result: *result}, nil
	})
}

// Params returns the current triple
func (w *ScenarioWidget) Params() ScenarioParams {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.params
}

// View returns the current display state
func (w *ScenarioWidget) View() View[ScenarioOutcome] {
	return w.loader.snapshot()
}

// Wait blocks until no request is in flight
func (w *ScenarioWidget) Wait() {
	w.loader.wait()
}

// Close cancels in-flight requests; later responses are dropped
func (w *ScenarioWidget) Close() {
	w.loader.close()
}

func checkFactor(name string, f, min, max float64) error {
	const epsilon = 1e-9
	if math.IsNaN(f) || f < min-epsilon || f > max+epsilon {
		return fmt.Errorf("%s factor %v not in [%v, %v]: %w", name, f, min, max, ErrFactorOutOfRange)
	}
	return nil
}
