package usecases

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSessionsGetCreatesAndReuses(t *testing.T) {
	api := newFakeAPI("A")
	sched := newManualScheduler()
	sessions := NewSessions(func() *Dashboard {
		return NewDashboard(api, sched, Options{})
	}, nil)
	defer sessions.Close()

	first := sessions.Get("chat-1")
	first.Wait()
	assert.Same(t, first, sessions.Get("chat-1"))
	assert.Equal(t, "A", first.ActiveStation(), "dashboard is mounted on first use")

	second := sessions.Get("chat-2")
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, sessions.Len())

	_, ok := sessions.Peek("chat-3")
	assert.False(t, ok)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessionsReapClosesIdleDashboards(t *testing.T) {
	api := newFakeAPI("A")
	sched := newManualScheduler()
	clock := &fakeClock{now: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)}
	sessions := NewSessions(func() *Dashboard {
		return NewDashboard(api, sched, Options{})
	}, nil)
	sessions.now = clock.Now
	defer sessions.Close()

	idle := sessions.Get("idle")
	sessions.Get("busy")
	idle.Wait()
	require.Equal(t, 2, sched.Len(), "one alerts poll per dashboard")

	clock.Advance(20 * time.Minute)
	sessions.Get("busy")
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, sessions.Reap(30*time.Minute))
	assert.Equal(t, 1, sessions.Len())
	assert.Equal(t, 1, sched.Len(), "reaped dashboard stopped polling")

	_, ok := sessions.Peek("idle")
	assert.False(t, ok)
	_, ok = sessions.Peek("busy")
	assert.True(t, ok)

	assert.Equal(t, 0, sessions.Reap(30*time.Minute))
}

func TestSessionsCloseStopsEverything(t *testing.T) {
	api := newFakeAPI("A")
	sched := newManualScheduler()
	sessions := NewSessions(func() *Dashboard {
		return NewDashboard(api, sched, Options{})
	}, nil)

	sessions.Get("a").Wait()
	sessions.Get("b").Wait()
	sessions.Close()

	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, sched.Len())
}

func TestSessionsGetMountsBeforeReturning(t *testing.T) {
	api := newFakeAPI("A")
	sched := newManualScheduler()
	sessions := NewSessions(func() *Dashboard {
		return NewDashboard(api, sched, Options{})
	}, nil)
	defer sessions.Close()

	// a session published by a concurrent Get that has not mounted yet
	sessions.mu.Lock()
	sessions.sessions["chat"] = &session{dashboard: sessions.factory(), lastUsed: sessions.now()}
	sessions.mu.Unlock()

	d := sessions.Get("chat")
	d.Wait()
	assert.Equal(t, "A", d.ActiveStation())
	assert.Equal(t, 1, api.count("stations"))
}

func TestSessionsConcurrentGetSharesOneMountedDashboard(t *testing.T) {
	api := newFakeAPI("A")
	sched := newManualScheduler()
	sessions := NewSessions(func() *Dashboard {
		return NewDashboard(api, sched, Options{})
	}, nil)
	defer sessions.Close()

	var wg sync.WaitGroup
	got := make([]*Dashboard, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := sessions.Get("chat")
			d.Wait()
			got[i] = d
		}(i)
	}
	wg.Wait()

	for _, d := range got {
		assert.Same(t, got[0], d)
		assert.Equal(t, "A", d.ActiveStation())
	}
	assert.Equal(t, 1, api.count("stations"))
}
