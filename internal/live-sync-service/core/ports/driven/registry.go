package driven

import (
	"context"

	"fleet-dash/internal/live-sync-service/core/domain/model"
)

// IRegistry is the external CRUD service for drivers.
type IRegistry interface {
	ListDrivers(ctx context.Context) ([]model.DriverRecord, error)
	RegisterDriver(ctx context.Context, form model.RegistrationForm, at model.Coordinate) (model.DriverRecord, error)
	RemoveDriver(ctx context.Context, id string) error
}
