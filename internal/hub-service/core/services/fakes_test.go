package services

import (
	"context"
	"sort"
	"sync"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"
)

type memRepo struct {
	mu      sync.Mutex
	drivers map[string]model.Driver
	order   []string
	err     error
}

func newMemRepo() *memRepo {
	return &memRepo{drivers: map[string]model.Driver{}}
}

func (m *memRepo) Create(_ context.Context, d model.Driver) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Driver{}, m.err
	}
	for _, existing := range m.drivers {
		if existing.MobileNumber == d.MobileNumber {
			return model.Driver{}, myerrors.ErrMobileRegistered
		}
	}
	m.drivers[d.ID] = d
	m.order = append(m.order, d.ID)
	return d, nil
}

func (m *memRepo) List(context.Context) ([]model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Driver, 0, len(m.order))
	for _, id := range m.order {
		if d, ok := m.drivers[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[id]; !ok {
		return myerrors.ErrDriverNotFound
	}
	delete(m.drivers, id)
	return nil
}

func (m *memRepo) UpdateLocation(_ context.Context, id string, lat, lon float64) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, myerrors.ErrDriverNotFound
	}
	d.Latitude, d.Longitude = &lat, &lon
	d.LocationSeq++
	m.drivers[id] = d
	return d, nil
}

func (m *memRepo) PasswordHash(_ context.Context, mobile string) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.MobileNumber == mobile {
			return d.ID, d.PasswordHash, nil
		}
	}
	return "", nil, myerrors.ErrDriverNotFound
}

type recordingBus struct {
	mu        sync.Mutex
	published []contracts.DriverLocationMessage
	err       error
	fn        func(contracts.DriverLocationMessage)
}

func (b *recordingBus) Publish(_ context.Context, msg contracts.DriverLocationMessage) error {
	b.mu.Lock()
	if b.err != nil {
		b.mu.Unlock()
		return b.err
	}
	b.published = append(b.published, msg)
	fn := b.fn
	b.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, fn func(contracts.DriverLocationMessage)) error {
	b.mu.Lock()
	b.fn = fn
	b.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fn != nil
}

type broadcast struct {
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (r *recordingBroadcaster) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, broadcast{event, payload})
}

func (r *recordingBroadcaster) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.sent...)
}

func ptr(v float64) *float64 { return &v }

func seedDriver(repo *memRepo, id, mobile string) model.Driver {
	d := model.Driver{
		ID:           id,
		DriverName:   "Driver " + id,
		MobileNumber: mobile,
		RcBookNumber: "RC-" + id,
		CarModel:     "Swift",
		IsActive:     true,
		Latitude:     ptr(21.17),
		Longitude:    ptr(72.83),
	}
	repo.Create(context.Background(), d)
	return d
}

func sortedIDs(ds []contracts.Driver) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	sort.Strings(out)
	return out
}
