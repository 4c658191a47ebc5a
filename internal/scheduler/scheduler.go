// Package scheduler runs repeating jobs on a shared cron instance
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler registers a function to run every d. The returned stop function
// is idempotent, waits for a running invocation, and once it returns fn is
// never called again.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// CronScheduler implements Scheduler on robfig/cron
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates a scheduler whose jobs are skipped while a
// previous run of the same job is still in progress
func NewCronScheduler(logger *zap.SugaredLogger) *CronScheduler {
	cl := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start begins dispatching jobs in the background
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatching and waits for running jobs to complete
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Every schedules fn with a constant delay. cron rounds delays below one
// second up to one second.
func (s *CronScheduler) Every(d time.Duration, fn func()) func() {
	var (
		mu      sync.Mutex
		stopped bool
	)
	id := s.cron.Schedule(cron.Every(d), cron.FuncJob(func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		fn()
	}))

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			s.cron.Remove(id)
		})
	}
}

// Entries reports how many jobs are registered
func (s *CronScheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
