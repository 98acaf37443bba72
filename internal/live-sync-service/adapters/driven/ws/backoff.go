package ws

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newReconnectBackOff grows from min towards max with jitter so a fleet of dashboards does not
// reconnect in lockstep. It never gives up on its own; it returns backoff.Stop once ctx is done.
func newReconnectBackOff(ctx context.Context, min, max time.Duration) backoff.BackOffContext {
	return backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(min),
		backoff.WithMaxInterval(max),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMaxElapsedTime(0),
	), ctx)
}
