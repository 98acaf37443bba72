package services

import (
	"sync"
	"time"

	"fleet-dash/internal/live-sync-service/core/ports/driven"
)

// Throttle runs action at most once per window on the leading edge and flushes the last value
// seen inside the window when the window closes. After a flush the throttle is quiet again, so
// the next Call is a new leading call. Exactly one timer is outstanding at a time. Actions run
// one at a time in the order they were scheduled.
type Throttle[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	action  func(T)
	clock   driven.Clock
	timer   driven.Timer
	gen     uint64
	pending *T
	// next is the ticket handed to the next scheduled action; serving is the ticket allowed to run.
	next    uint64
	serving uint64
	runMu   sync.Mutex
	turn    *sync.Cond
}

func NewThrottle[T any](window time.Duration, action func(T), clock driven.Clock) *Throttle[T] {
	if clock == nil {
		clock = RealClock()
	}
	t := &Throttle[T]{
		window: window,
		action: action,
		clock:  clock,
	}
	t.turn = sync.NewCond(&t.runMu)
	return t
}

// Call runs action immediately when the throttle is quiet, otherwise it replaces the pending
// trailing value. The action is not awaited beyond its synchronous return.
func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.timer != nil {
		t.pending = &v
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.window, func() { t.expire(gen) })
	ticket := t.takeTicket()
	t.mu.Unlock()

	t.run(ticket, v)
}

// Cancel drops the pending trailing call and stops the window timer.
func (t *Throttle[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.pending = nil
}

// Pending reports whether a trailing call is waiting for the window to close.
func (t *Throttle[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Throttle[T]) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.timer == nil {
		// cancelled or superseded
		t.mu.Unlock()
		return
	}
	t.timer = nil
	p := t.pending
	t.pending = nil
	if p == nil {
		t.mu.Unlock()
		return
	}
	ticket := t.takeTicket()
	t.mu.Unlock()

	t.run(ticket, *p)
}

// takeTicket must be called with mu held.
func (t *Throttle[T]) takeTicket() uint64 {
	n := t.next
	t.next++
	return n
}

// run waits for the earlier actions to return, then runs this one. No lock is held while the
// action runs, so it may call back into the throttle.
func (t *Throttle[T]) run(ticket uint64, v T) {
	t.runMu.Lock()
	for t.serving != ticket {
		t.turn.Wait()
	}
	t.runMu.Unlock()

	defer func() {
		t.runMu.Lock()
		t.serving++
		t.turn.Broadcast()
		t.runMu.Unlock()
	}()
	t.action(v)
}

// ThrottleGroup hands out one Throttle per name. Wrapping the same name again returns the
// existing throttle, so re-subscribing never resets a pending trailing call or starts a second
// timer.
type ThrottleGroup[T any] struct {
	mu        sync.Mutex
	clock     driven.Clock
	throttles map[string]*Throttle[T]
}

func NewThrottleGroup[T any](clock driven.Clock) *ThrottleGroup[T] {
	return &ThrottleGroup[T]{
		clock:     clock,
		throttles: make(map[string]*Throttle[T]),
	}
}

func (g *ThrottleGroup[T]) Wrap(name string, window time.Duration, action func(T)) *Throttle[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.throttles[name]; ok {
		return t
	}
	t := NewThrottle(window, action, g.clock)
	g.throttles[name] = t
	return t
}

// CancelAll drops every pending trailing call.
func (g *ThrottleGroup[T]) CancelAll() {
	g.mu.Lock()
	throttles := make([]*Throttle[T], 0, len(g.throttles))
	for _, t := range g.throttles {
		throttles = append(throttles, t)
	}
	g.mu.Unlock()

	for _, t := range throttles {
		t.Cancel()
	}
}
