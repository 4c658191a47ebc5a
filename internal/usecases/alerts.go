package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/abelzeko/dwlr-dashboard/internal/scheduler"
	"go.uber.org/zap"
)

// DefaultAlertsInterval is how often the alerts panel polls the backend
const DefaultAlertsInterval = 60 * time.Second

// AlertsFetcher fetches the current alert list
type AlertsFetcher interface {
	Alerts(ctx context.Context) ([]entities.Alert, error)
}

// AlertsWidget keeps the alert list fresh by polling on a fixed interval.
// A failed poll keeps the previous list. The timer belongs to the widget and
// is stopped by Close.
type AlertsWidget struct {
	api      AlertsFetcher
	sched    scheduler.Scheduler
	interval time.Duration
	loader   *loader[[]entities.Alert]

	mu      sync.Mutex
	started bool
	stop    func()
}

// NewAlertsWidget creates an alerts widget. A non-positive interval falls back
// to DefaultAlertsInterval.
func NewAlertsWidget(api AlertsFetcher, sched scheduler.Scheduler, interval time.Duration, logger *zap.SugaredLogger) *AlertsWidget {
	if interval <= 0 {
		interval = DefaultAlertsInterval
	}
	return &AlertsWidget{
		api:      api,
		sched:    sched,
		interval: interval,
		loader:   newLoader[[]entities.Alert]("alerts", logger),
	}
}

// Start fetches immediately and then on every tick. Calling Start again is a
// no-op.
func (w *AlertsWidget) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true

	w.loader.issue("", w.api.Alerts)
	w.stop = w.sched.Every(w.interval, w.Poll)
}

// Poll performs one synchronous refresh
func (w *AlertsWidget) Poll() {
	w.loader.load("", w.api.Alerts)
}

// OnChange registers fn to be called after every refresh
func (w *AlertsWidget) OnChange(fn func()) {
	w.loader.mu.Lock()
	w.loader.onChange = fn
	w.loader.mu.Unlock()
}

// View returns the current display state
func (w *AlertsWidget) View() View[[]entities.Alert] {
	return w.loader.snapshot()
}

// Wait blocks until no fetch is in flight
func (w *AlertsWidget) Wait() {
	w.loader.wait()
}

// Close cancels the timer and any poll in flight. No fetch is issued after
// Close returns.
func (w *AlertsWidget) Close() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.started = true
	w.mu.Unlock()

	// A poll running on the scheduler holds stop until its fetch returns
	w.loader.shutdown()
	if stop != nil {
		stop()
	}
	w.loader.wait()
}
