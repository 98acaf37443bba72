package driven

import (
	"context"

	"fleet-dash/internal/hub-service/core/domain/model"
)

type IDriverRepo interface {
	Create(ctx context.Context, driver model.Driver) (model.Driver, error)
	List(ctx context.Context) ([]model.Driver, error)
	Delete(ctx context.Context, id string) error
	// UpdateLocation stores the position and returns the driver with its new LocationSeq.
	UpdateLocation(ctx context.Context, id string, lat, lon float64) (model.Driver, error)
	PasswordHash(ctx context.Context, mobileNumber string) (id string, hash []byte, err error)
}
