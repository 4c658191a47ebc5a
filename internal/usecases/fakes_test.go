package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
)

var errBackendDown = errors.New("backend down")

// fakeAPI is an in-memory backend. Every call is recorded; a gate registered
// for a call key blocks that call until the gate is closed.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}

	stations  []entities.Station
	summary   *entities.Summary
	alerts    []entities.Alert
	alertsErr error
	zones     []entities.ZoneClassification
	failFor   map[string]error

	// ignoreCancel makes gated calls answer late even when their context is
	// cancelled, like a server that already sent its response
	ignoreCancel bool
}

func newFakeAPI(ids ...string) *fakeAPI {
	api := &fakeAPI{
		gates:   make(map[string]chan struct{}),
		failFor: make(map[string]error),
		summary: &entities.Summary{AvgWaterLevel: 10, ActiveStations: len(ids)},
	}
	for _, id := range ids {
		api.stations = append(api.stations, entities.Station{StationID: id, District: "District " + id})
	}
	return api
}

func (f *fakeAPI) gate(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func (f *fakeAPI) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[key] = err
}

func (f *fakeAPI) setAlerts(alerts []entities.Alert, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts, f.alertsErr = alerts, err
}

// record registers a call, waits on its gate and returns the configured failure
func (f *fakeAPI) record(ctx context.Context, key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	gate := f.gates[key]
	err := f.failFor[key]
	ignoreCancel := f.ignoreCancel
	f.mu.Unlock()

	if gate != nil && ignoreCancel {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Stations(ctx context.Context) ([]entities.Station, error) {
	if err := f.record(ctx, "stations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Station(nil), f.stations...), nil
}

func (f *fakeAPI) Summary(ctx context.Context) (*entities.Summary, error) {
	if err := f.record(ctx, "summary"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.summary
	return &s, nil
}

func (f *fakeAPI) History(ctx context.Context, id string) ([]entities.HistoryPoint, error) {
	if err := f.record(ctx, "history/"+id); err != nil {
		return nil, err
	}
	return []entities.HistoryPoint{
		{Timestamp: entities.Timestamp{Time: day(1)}, WaterLevelMBGL: level(id)},
	}, nil
}

func (f *fakeAPI) Forecast(ctx context.Context, id string) ([]entities.ForecastPoint, error) {
	if err := f.record(ctx, "forecast/"+id); err != nil {
		return nil, err
	}
	return []entities.ForecastPoint{
		{Date: entities.Timestamp{Time: day(2)}, WaterLevelMBGL: level(id) + 1},
	}, nil
}

func (f *fakeAPI) Availability(ctx context.Context, id string) (*entities.Availability, error) {
	if err := f.record(ctx, "availability/"+id); err != nil {
		return nil, err
	}
	return &entities.Availability{Season: "Monsoon", Status: "Sustainable", AvailableGroundwaterMM: level(id)}, nil
}

func (f *fakeAPI) Scenario(ctx context.Context, req entities.ScenarioRequest) (*entities.ScenarioResult, error) {
	key := "scenario/" + req.StationID + "/" + req.RainfallFactor.String() + "/" + req.DemandFactor.String()
	if err := f.record(ctx, key); err != nil {
		return nil, err
	}
	return &entities.ScenarioResult{RiskLevel: "Low", NetAvailability: float64(req.RainfallFactor - req.DemandFactor)}, nil
}

func (f *fakeAPI) Alerts(ctx context.Context) ([]entities.Alert, error) {
	if err := f.record(ctx, "alerts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return append([]entities.Alert(nil), f.alerts...), nil
}

func (f *fakeAPI) Zones(ctx context.Context) ([]entities.ZoneClassification, error) {
	if err := f.record(ctx, "zones"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.ZoneClassification(nil), f.zones...), nil
}

// level derives a distinct reading per station id
func level(id string) float64 {
	var sum float64
	for _, r := range id {
		sum += float64(r)
	}
	return sum / 10
}

func day(d int) time.Time {
	return time.Date(2024, time.June, d, 0, 0, 0, 0, time.UTC)
}

// manualScheduler fires registered jobs only when Tick is called
type manualScheduler struct {
	mu   sync.Mutex
	jobs map[int]func()
	next int
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{jobs: make(map[int]func())}
}

func (s *manualScheduler) Every(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.jobs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	}
}

// Tick runs every registered job once, synchronously
func (s *manualScheduler) Tick() {
	s.mu.Lock()
	jobs := make([]func(), 0, len(s.jobs))
	for _, fn := range s.jobs {
		jobs = append(jobs, fn)
	}
	s.mu.Unlock()

	for _, fn := range jobs {
		fn()
	}
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
