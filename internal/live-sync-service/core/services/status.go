package services

import (
	"errors"
	"sync"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
)

// Status is what the presentation layer reads: the user-visible error slot, the local position
// and the channel state.
type Status struct {
	mu       sync.RWMutex
	err      error
	local    model.PositionSample
	hasLocal bool
	channel  model.ChannelState
	tracking bool
}

func NewStatus() *Status {
	return &Status{channel: model.ChannelDisconnected}
}

func (s *Status) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	if errors.Is(err, myerrors.ErrUnsupported) {
		s.tracking = false
	}
}

// ClearIf empties the slot when the current error is of the given kind.
func (s *Status) ClearIf(kind error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && errors.Is(s.err, kind) {
		s.err = nil
	}
}

func (s *Status) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// LastError is the user-visible message, empty when there is none.
func (s *Status) LastError() string {
	return myerrors.UserMessage(s.Err())
}

func (s *Status) SetLocal(sample model.PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = sample
	s.hasLocal = true
}

func (s *Status) Local() (model.PositionSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local, s.hasLocal
}

func (s *Status) SetChannelState(state model.ChannelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = state
}

func (s *Status) ChannelState() model.ChannelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

func (s *Status) SetTracking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = on
}

// Tracking reports whether live position tracking is running.
func (s *Status) Tracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}
