package driven

import (
	"context"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/model"
)

// Fix is one raw reading from a position source.
type Fix struct {
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
}

// SourceWatch is a running platform watch. Stop must release it before returning.
type SourceWatch interface {
	Stop()
}

// IPositionSource is the platform's continuous position watch capability.
type IPositionSource interface {
	// Watch starts delivering fixes and errors until the returned watch is stopped. It returns
	// myerrors.ErrUnsupported when the device cannot provide positions at all.
	Watch(ctx context.Context, opts model.WatchOptions, onFix func(Fix), onErr func(error)) (SourceWatch, error)
}
