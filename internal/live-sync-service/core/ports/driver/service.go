package driver

import (
	"context"

	"fleet-dash/internal/live-sync-service/core/domain/model"
)

// ILiveSync is what the presentation layer drives.
type ILiveSync interface {
	Start(ctx context.Context) error
	Stop()
	SetToken(ctx context.Context, token string) error
	RefreshSeed(ctx context.Context) error
	RegisterDriver(ctx context.Context, form model.RegistrationForm) (model.DriverRecord, error)
	RemoveDriver(ctx context.Context, id string) error
	Drivers() []model.DriverRecord
	LocalPosition() (model.PositionSample, bool)
	LastError() string
}
