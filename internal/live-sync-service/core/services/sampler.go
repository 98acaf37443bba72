package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"
)

// WatchHandle identifies the sampler's active watch.
type WatchHandle uint64

type watch struct {
	id       WatchHandle
	opts     model.WatchOptions
	onSample func(model.PositionSample)
	onError  func(error)
	cancel   context.CancelFunc

	// deliverMu is held while a callback runs, so StopWatching cannot return mid-delivery.
	deliverMu sync.Mutex
	stopped   bool
	src       driven.SourceWatch
	last      model.PositionSample
	timer     driven.Timer
	timerGen  uint64
}

// Sampler wraps a position source and holds at most one active platform watch.
type Sampler struct {
	source driven.IPositionSource
	clock  driven.Clock
	log    mylogger.Logger

	mu        sync.Mutex
	active    *watch
	nextID    uint64
	disabled  bool
	latest    model.PositionSample
	hasLatest bool
	waiters   []chan model.PositionSample
}

func NewSampler(source driven.IPositionSource, clock driven.Clock, log mylogger.Logger) *Sampler {
	if clock == nil {
		clock = RealClock()
	}
	return &Sampler{
		source: source,
		clock:  clock,
		log:    log.Action("geolocation"),
	}
}

// StartWatching starts the platform watch. ErrUnsupported is terminal for the sampler: every
// later call fails with it as well. Callbacks must not call StopWatching synchronously.
func (s *Sampler) StartWatching(onSample func(model.PositionSample), onError func(error), opts model.WatchOptions) (WatchHandle, error) {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return 0, myerrors.ErrUnsupported
	}
	if s.active != nil {
		s.mu.Unlock()
		return 0, myerrors.ErrWatchActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.nextID++
	w := &watch{
		id:       WatchHandle(s.nextID),
		opts:     opts,
		onSample: onSample,
		onError:  onError,
		cancel:   cancel,
	}
	s.active = w
	s.mu.Unlock()

	src, err := s.source.Watch(ctx, opts,
		func(fix driven.Fix) { s.handleFix(w, fix) },
		func(err error) { s.handleSourceError(w, err) },
	)
	if err != nil {
		cancel()
		s.mu.Lock()
		if s.active == w {
			s.active = nil
		}
		if errors.Is(err, myerrors.ErrUnsupported) {
			s.disabled = true
		}
		s.mu.Unlock()
		return 0, fmt.Errorf("start watching: %w", err)
	}

	w.deliverMu.Lock()
	w.src = src
	stoppedEarly := w.stopped
	if !stoppedEarly {
		s.armTimeout(w)
	}
	w.deliverMu.Unlock()
	if stoppedEarly {
		src.Stop()
	}

	s.log.Debug("watch started", "handle", w.id, "high_accuracy", opts.HighAccuracy)
	return w.id, nil
}

// StopWatching releases the platform watch. No callback fires after it returns. Unknown or
// already stopped handles are ignored.
func (s *Sampler) StopWatching(h WatchHandle) {
	s.mu.Lock()
	w := s.active
	if w == nil || w.id != h {
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.mu.Unlock()

	w.deliverMu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	src := w.src
	w.deliverMu.Unlock()

	w.cancel()
	if src != nil {
		src.Stop()
	}
	s.log.Debug("watch stopped", "handle", h)
}

// CurrentPosition returns one fresh fix. With an active watch it waits for the watch's next
// sample (or returns the latest one if it is younger than MaxSampleAge); otherwise it opens a
// temporary watch and stops it after the first sample.
func (s *Sampler) CurrentPosition(ctx context.Context, opts model.WatchOptions) (model.PositionSample, error) {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return model.PositionSample{}, myerrors.ErrUnsupported
	}
	if s.active != nil && s.hasLatest && opts.MaxSampleAge > 0 &&
		s.clock.Now().Sub(s.latest.CapturedAt) <= opts.MaxSampleAge {
		latest := s.latest
		s.mu.Unlock()
		return latest, nil
	}
	ch := make(chan model.PositionSample, 1)
	s.waiters = append(s.waiters, ch)
	owned := s.active == nil
	s.mu.Unlock()

	errCh := make(chan error, 1)
	if owned {
		h, err := s.StartWatching(
			func(model.PositionSample) {},
			func(err error) {
				select {
				case errCh <- err:
				default:
				}
			},
			opts,
		)
		if err != nil {
			s.dropWaiter(ch)
			return model.PositionSample{}, err
		}
		defer s.StopWatching(h)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	select {
	case sample := <-ch:
		return sample, nil
	case err := <-errCh:
		s.dropWaiter(ch)
		return model.PositionSample{}, err
	case <-ctx.Done():
		s.dropWaiter(ch)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.PositionSample{}, fmt.Errorf("current position: %w", myerrors.ErrTimedOut)
		}
		return model.PositionSample{}, ctx.Err()
	}
}

// Disabled reports whether the device turned out not to support geolocation.
func (s *Sampler) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

func (s *Sampler) handleFix(w *watch, fix driven.Fix) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	if w.stopped {
		return
	}

	sample := model.PositionSample{
		Coordinate: model.Coordinate{Latitude: fix.Latitude, Longitude: fix.Longitude},
		CapturedAt: fix.CapturedAt,
	}
	now := s.clock.Now()
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = now
	}
	if err := sample.Coordinate.Validate(); err != nil {
		w.onError(fmt.Errorf("%w: %v", myerrors.ErrPositionUnavailable, err))
		return
	}
	if !w.last.CapturedAt.IsZero() && sample.CapturedAt.Before(w.last.CapturedAt) {
		s.log.Debug("out of order sample dropped", "captured_at", sample.CapturedAt, "last", w.last.CapturedAt)
		return
	}
	if w.opts.MaxSampleAge > 0 && now.Sub(sample.CapturedAt) > w.opts.MaxSampleAge {
		s.log.Debug("stale sample dropped", "age", now.Sub(sample.CapturedAt))
		return
	}

	w.last = sample
	s.armTimeout(w)

	s.mu.Lock()
	s.latest = sample
	s.hasLatest = true
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	w.onSample(sample)
	for _, ch := range waiters {
		ch <- sample
	}
}

// handleSourceError forwards a source failure. ErrUnsupported also ends the watch and releases
// the platform watch, since no further fix can arrive.
func (s *Sampler) handleSourceError(w *watch, err error) {
	w.deliverMu.Lock()
	if w.stopped {
		w.deliverMu.Unlock()
		return
	}
	err = classify(err)
	terminal := errors.Is(err, myerrors.ErrUnsupported)
	var src driven.SourceWatch
	if terminal {
		s.mu.Lock()
		s.disabled = true
		if s.active == w {
			s.active = nil
		}
		s.mu.Unlock()

		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		src = w.src
	}
	w.onError(err)
	w.deliverMu.Unlock()

	if !terminal {
		return
	}
	w.cancel()
	if src != nil {
		// Stop may wait for the goroutine that is delivering this very error.
		go src.Stop()
	}
	s.log.Warn("watch released, geolocation unsupported", "handle", w.id)
}

// armTimeout (re)starts the per-attempt deadline. Callers hold w.deliverMu.
func (s *Sampler) armTimeout(w *watch) {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.opts.Timeout <= 0 {
		return
	}
	w.timerGen++
	gen := w.timerGen
	w.timer = s.clock.AfterFunc(w.opts.Timeout, func() { s.handleTimeout(w, gen) })
}

func (s *Sampler) handleTimeout(w *watch, gen uint64) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	if w.stopped || gen != w.timerGen {
		return
	}
	w.timer = nil
	s.armTimeout(w)
	w.onError(fmt.Errorf("no fix within %s: %w", w.opts.Timeout, myerrors.ErrTimedOut))
}

func (s *Sampler) dropWaiter(ch chan model.PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.waiters {
		if existing == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// classify maps source failures onto the acquisition taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, myerrors.ErrPermissionDenied),
		errors.Is(err, myerrors.ErrPositionUnavailable),
		errors.Is(err, myerrors.ErrTimedOut),
		errors.Is(err, myerrors.ErrUnsupported):
		return err
	default:
		return fmt.Errorf("%w: %v", myerrors.ErrPositionUnavailable, err)
	}
}
