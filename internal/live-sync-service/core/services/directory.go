package services

import (
	"sync"

	"fleet-dash/internal/live-sync-service/core/domain/model"
)

type entry struct {
	record model.DriverRecord
	// seq of the last applied location event, zero until a stamped event arrives
	seq uint64
}

// Directory is the insertion-ordered, in-memory view of the fleet. All mutations go through a
// single mutex; All and Get return copies.
type Directory struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]*entry),
	}
}

// Seed replaces the whole collection. A duplicated id keeps its first position and its last
// content. Drivers that survive the reseed keep their last applied seq, so a stale event still
// loses after a refresh.
func (d *Directory) Seed(records []model.DriverRecord) {
	order := make([]string, 0, len(records))
	entries := make(map[string]*entry, len(records))
	for _, rec := range records {
		if _, ok := entries[rec.ID]; !ok {
			order = append(order, rec.ID)
		}
		entries[rec.ID] = &entry{record: rec.Clone()}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, e := range entries {
		if prev, ok := d.entries[id]; ok {
			e.seq = prev.seq
		}
	}
	d.order = order
	d.entries = entries
}

// Add inserts a new record at the end, or replaces the content of an existing one in place.
func (d *Directory) Add(rec model.DriverRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[rec.ID]; ok {
		e.record = rec.Clone()
		return
	}
	d.order = append(d.order, rec.ID)
	d.entries[rec.ID] = &entry{record: rec.Clone()}
}

// ApplyLocationUpdate sets location and activity of a known driver. Unknown ids are ignored.
func (d *Directory) ApplyLocationUpdate(id string, at model.Coordinate, isActive bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return false
	}
	loc := at
	e.record.Location = &loc
	e.record.IsActive = isActive
	return true
}

// ApplyEvent applies a remote location event. When the event carries a sequence number, an
// event not newer than the last applied one for the same driver is rejected as stale.
// Unstamped events are last-write-wins.
func (d *Directory) ApplyEvent(ev model.LocationEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[ev.DriverID]
	if !ok {
		return false
	}
	if ev.Seq != 0 {
		if ev.Seq <= e.seq {
			return false
		}
		e.seq = ev.Seq
	}
	loc := ev.Location
	e.record.Location = &loc
	e.record.IsActive = ev.IsActive
	return true
}

// Remove deletes a driver. Removing an absent id is a no-op.
func (d *Directory) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return false
	}
	delete(d.entries, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

func (d *Directory) Get(id string) (model.DriverRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok {
		return model.DriverRecord{}, false
	}
	return e.record.Clone(), true
}

// All returns a snapshot in insertion order.
func (d *Directory) All() []model.DriverRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.DriverRecord, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.entries[id].record.Clone())
	}
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}
