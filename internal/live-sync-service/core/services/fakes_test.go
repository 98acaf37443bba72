package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
)

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) driven.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Advance moves time forward, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// activeTimers counts timers that are neither stopped nor fired.
func (c *fakeClock) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeSource lets tests push fixes and errors through the watch callbacks.
type fakeSource struct {
	mu       sync.Mutex
	startErr error
	onFix    func(driven.Fix)
	onErr    func(error)
	opts     model.WatchOptions
	watches  int
	stops    int
}

type fakeSourceWatch struct {
	src *fakeSource
}

func (s *fakeSource) Watch(_ context.Context, opts model.WatchOptions, onFix func(driven.Fix), onErr func(error)) (driven.SourceWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.watches++
	s.opts = opts
	s.onFix = onFix
	s.onErr = onErr
	return &fakeSourceWatch{src: s}, nil
}

func (w *fakeSourceWatch) Stop() {
	w.src.mu.Lock()
	defer w.src.mu.Unlock()
	w.src.stops++
}

func (s *fakeSource) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSource) fix(lat, lon float64, at time.Time) {
	s.mu.Lock()
	onFix := s.onFix
	s.mu.Unlock()
	onFix(driven.Fix{Latitude: lat, Longitude: lon, CapturedAt: at})
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	onErr := s.onErr
	s.mu.Unlock()
	onErr(err)
}
