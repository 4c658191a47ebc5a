package usecases

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type session struct {
	dashboard *Dashboard
	lastUsed  time.Time
}

// Sessions keeps one mounted Dashboard per key: a Telegram chat or a browser
// session
type Sessions struct {
	factory func() *Dashboard
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates an empty session table. factory builds an unmounted
// dashboard.
func NewSessions(factory func() *Dashboard, logger *zap.SugaredLogger) *Sessions {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sessions{
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Get returns the dashboard for key, creating it on first use. It never
// returns before the dashboard is mounted, even when another caller created
// it concurrently.
func (s *Sessions) Get(key string) *Dashboard {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	if ok {
		sess.lastUsed = s.now()
	} else {
		sess = &session{dashboard: s.factory(), lastUsed: s.now()}
		s.sessions[key] = sess
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Infow("Opening dashboard session", "session", key)
	}
	sess.dashboard.Mount()
	return sess.dashboard
}

// Peek returns the dashboard for key without creating it or touching it
func (s *Sessions) Peek(key string) (*Dashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	return sess.dashboard, true
}

// Reap closes every dashboard unused for longer than idle and returns how
// many were closed
func (s *Sessions) Reap(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*Dashboard
	for key, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			stale = append(stale, sess.dashboard)
			delete(s.sessions, key)
			s.logger.Infow("Closing idle dashboard session", "session", key, "last_used", sess.lastUsed)
		}
	}
	s.mu.Unlock()

	for _, d := range stale {
		d.Close()
	}
	return len(stale)
}

// Len reports the number of open sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close tears every session down
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.dashboard.Close()
	}
}
