package bm

import (
	"context"
	"sync"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/hub-service/core/ports/driven"
)

// LocalBus fans positions out inside one process, for a hub running without a broker.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[uint64]func(contracts.DriverLocationMessage)
	nextID uint64
	closed bool
}

var _ driven.ILocationBus = (*LocalBus)(nil)

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[uint64]func(contracts.DriverLocationMessage))}
}

func (b *LocalBus) Publish(_ context.Context, msg contracts.DriverLocationMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return myerrors.ErrBusClosed
	}
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

// Subscribe blocks until ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, fn func(contracts.DriverLocationMessage)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return myerrors.ErrBusClosed
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]func(contracts.DriverLocationMessage))
	return nil
}
