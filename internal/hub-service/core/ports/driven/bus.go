package driven

import (
	"context"

	"fleet-dash/internal/contracts"
)

// ILocationBus fans driver positions out to every hub instance.
type ILocationBus interface {
	Publish(ctx context.Context, msg contracts.DriverLocationMessage) error
	// Subscribe delivers every published message, including this instance's own, until ctx is done.
	Subscribe(ctx context.Context, fn func(contracts.DriverLocationMessage)) error
	Close() error
}

// IBroadcaster writes one event to every connected client.
type IBroadcaster interface {
	Broadcast(event string, payload any)
}
