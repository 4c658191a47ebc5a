package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// View is the displayable state of one widget.
//
// Data is the last successfully fetched snapshot and is kept when a later
// fetch fails. Unavailable is set when a fetch failed and nothing was ever
// loaded.
type View[T any] struct {
	StationID   string    `json:"station_id,omitempty"`
	Data        T         `json:"data"`
	Ready       bool      `json:"ready"`
	Loading     bool      `json:"loading"`
	Unavailable bool      `json:"unavailable"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// loader owns the fetch lifecycle of one widget. Every fetch is tagged with a
// sequence number and only the most recently issued one may update the view;
// issuing a new fetch also cancels the context of the previous one.
type loader[T any] struct {
	name   string
	logger *zap.SugaredLogger

	ctx       context.Context
	cancelAll context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	seq      uint64
	pending  int
	cancel   context.CancelFunc
	closed   bool
	view     View[T]
	onApply  func(key string, data T)
	onChange func()
}

func newLoader[T any](name string, logger *zap.SugaredLogger) *loader[T] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loader[T]{
		name:      name,
		logger:    logger,
		ctx:       ctx,
		cancelAll: cancel,
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// begin registers a new fetch and supersedes any in-flight one
func (l *loader[T]) begin() (uint64, context.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, nil, false
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	ctx, cancel := context.WithCancel(l.ctx)
	l.cancel = cancel
	l.pending++
	l.view.Loading = true
	return l.seq, ctx, true
}

// issue runs fetch in the background
func (l *loader[T]) issue(key string, fetch func(ctx context.Context) (T, error)) {
	seq, ctx, ok := l.begin()
	if !ok {
		return
	}
	go func() {
		data, err := fetch(ctx)
		l.complete(seq, key, data, err)
	}()
}

// load runs fetch on the calling goroutine
func (l *loader[T]) load(key string, fetch func(ctx context.Context) (T, error)) {
	seq, ctx, ok := l.begin()
	if !ok {
		return
	}
	data, err := fetch(ctx)
	l.complete(seq, key, data, err)
}

func (l *loader[T]) complete(seq uint64, key string, data T, err error) {
	defer l.done()

	l.mu.Lock()
	if l.closed || seq != l.seq {
		l.mu.Unlock()
		l.logger.Debugw("Discarding superseded response", "widget", l.name, "seq", seq, "station", key)
		return
	}

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if err != nil {
		l.view.Loading = false
		l.view.Error = err.Error()
		l.view.Unavailable = !l.view.Ready
	} else {
		l.view = View[T]{
			StationID: key,
			Data:      data,
			Ready:     true,
			UpdatedAt: time.Now(),
		}
	}
	onApply, onChange := l.onApply, l.onChange
	l.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			l.logger.Debugw("Fetch cancelled", "widget", l.name, "station", key)
		} else {
			l.logger.Warnw("Fetch failed, keeping last known state", "widget", l.name, "station", key, "error", err)
		}
	} else if onApply != nil {
		onApply(key, data)
	}
	if onChange != nil {
		onChange()
	}
}

// done marks a fetch finished once its callbacks have run, so wait also
// covers any fetch those callbacks issued
func (l *loader[T]) done() {
	l.mu.Lock()
	l.pending--
	l.mu.Unlock()
	l.idle.Broadcast()
}

// reset supersedes any in-flight fetch and clears the view
func (l *loader[T]) reset() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
	l.view = View[T]{}
	onChange := l.onChange
	l.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

func (l *loader[T]) snapshot() View[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view
}

func (l *loader[T]) sequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// wait blocks until no fetch is in flight
func (l *loader[T]) wait() {
	l.mu.Lock()
	for l.pending > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// close cancels everything in flight and waits for it to drain. Responses
// arriving after close are dropped.
func (l *loader[T]) close() {
	l.shutdown()
	l.wait()
}

// shutdown marks the loader closed and cancels every fetch in flight without
// waiting for them. Later fetches are refused.
func (l *loader[T]) shutdown() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.cancel = nil
	l.mu.Unlock()

	l.cancelAll()
}
