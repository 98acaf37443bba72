package driven

import (
	"context"
	"encoding/json"

	"fleet-dash/internal/live-sync-service/core/domain/model"
)

// EventHandler receives the raw data of an inbound event.
type EventHandler func(data json.RawMessage)

// Subscription identifies a handler registered with On.
type Subscription struct {
	Event string
	ID    uint64
}

// IRealtimeChannel is the persistent bidirectional event transport.
type IRealtimeChannel interface {
	Connect(ctx context.Context) (model.ChannelSession, error)
	// SetToken replaces the token used by the next handshake and lifts an earlier auth
	// rejection. An established connection is kept.
	SetToken(token string)
	// Send is at-most-once: it returns myerrors.ErrNotConnected and drops the event while
	// disconnected.
	Send(event string, payload any) error
	On(event string, handler EventHandler) Subscription
	Off(sub Subscription)
	OnStateChange(fn func(state model.ChannelState, err error))
	Session() model.ChannelSession
	Disconnect()
}
