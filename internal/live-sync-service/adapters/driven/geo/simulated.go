package geo

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
)

const (
	// roughly 50 m per tick at city latitudes
	defaultStep = 0.0005
	// low accuracy readings wobble on top of the movement
	lowAccuracyNoise = 0.0002
)

// Simulated walks randomly around a start point, one fix per interval.
type Simulated struct {
	mu       sync.Mutex
	lat, lon float64
	interval time.Duration
	step     float64
	rng      *rand.Rand
}

func NewSimulated(lat, lon float64, interval time.Duration, seed uint64) *Simulated {
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulated{
		lat:      lat,
		lon:      lon,
		interval: interval,
		step:     defaultStep,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulated) Watch(ctx context.Context, opts model.WatchOptions, onFix func(driven.Fix), _ func(error)) (driven.SourceWatch, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &loopWatch{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		onFix(s.next(opts.HighAccuracy))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onFix(s.next(opts.HighAccuracy))
			}
		}
	}()
	return w, nil
}

func (s *Simulated) next(highAccuracy bool) driven.Fix {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lat = clamp(s.lat+(s.rng.Float64()*2-1)*s.step, -90, 90)
	s.lon = wrapLongitude(s.lon + (s.rng.Float64()*2-1)*s.step)

	lat, lon := s.lat, s.lon
	if !highAccuracy {
		lat = clamp(lat+(s.rng.Float64()*2-1)*lowAccuracyNoise, -90, 90)
		lon = wrapLongitude(lon + (s.rng.Float64()*2-1)*lowAccuracyNoise)
	}
	return driven.Fix{Latitude: lat, Longitude: lon, CapturedAt: time.Now()}
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// loopWatch stops a source goroutine and waits for it to exit.
type loopWatch struct {
	once   sync.Once
	cancel context.CancelFunc
	closer func()
	done   chan struct{}
}

func (w *loopWatch) Stop() {
	w.once.Do(func() {
		w.cancel()
		if w.closer != nil {
			w.closer()
		}
		<-w.done
	})
}
