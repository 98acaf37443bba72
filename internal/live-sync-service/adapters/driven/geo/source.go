package geo

import (
	"context"
	"fmt"
	"time"

	"fleet-dash/internal/config"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"
)

const (
	SourceSimulated = "simulated"
	SourceNMEA      = "nmea"
)

// NewSource picks the platform position source named in the config.
func NewSource(cfg *config.Geoconfig, log mylogger.Logger) driven.IPositionSource {
	switch cfg.Source {
	case SourceSimulated:
		return NewSimulated(cfg.SimLatitude, cfg.SimLongitude, cfg.SimInterval(), uint64(time.Now().UnixNano()))
	case SourceNMEA:
		return NewNMEA(cfg.NmeaPath, cfg.NmeaReplay(), log)
	default:
		return Unsupported{}
	}
}

// Unsupported is the source of a device without any positioning.
type Unsupported struct{}

func (Unsupported) Watch(context.Context, model.WatchOptions, func(driven.Fix), func(error)) (driven.SourceWatch, error) {
	return nil, fmt.Errorf("%w: no position source", myerrors.ErrUnsupported)
}
