package services

import (
	"context"
	"errors"
	"fmt"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/hub-service/core/ports/driven"
	"fleet-dash/internal/mylogger"

	"github.com/google/uuid"
)

type RegistryService struct {
	repo  driven.IDriverRepo
	mylog mylogger.Logger
}

func NewRegistryService(repo driven.IDriverRepo, mylog mylogger.Logger) *RegistryService {
	return &RegistryService{
		repo:  repo,
		mylog: mylog,
	}
}

// ======================= Register =======================
func (rs *RegistryService) Register(ctx context.Context, req contracts.RegisterDriverRequest) (contracts.Driver, error) {
	mylog := rs.mylog.Action("Register")

	if err := validateRegistration(req); err != nil {
		return contracts.Driver{}, err
	}
	active, err := parseStatus(req.IsActive)
	if err != nil {
		return contracts.Driver{}, err
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return contracts.Driver{}, fmt.Errorf("failed to hash password: %v", err)
	}

	lat, lon := req.Location.Lat, req.Location.Lon
	driver := model.Driver{
		ID:           uuid.NewString(),
		DriverName:   req.DriverName,
		MobileNumber: req.MobileNumber,
		PasswordHash: hashed,
		RcBookNumber: req.RcBookNumber,
		CarModel:     req.CarModel,
		IsActive:     active,
		Latitude:     &lat,
		Longitude:    &lon,
	}

	created, err := rs.repo.Create(ctx, driver)
	if err != nil {
		if errors.Is(err, myerrors.ErrMobileRegistered) {
			mylog.Warn("Failed to register, mobile number already registered")
			return contracts.Driver{}, err
		}
		mylog.Error("Failed to save driver in db", err)
		return contracts.Driver{}, fmt.Errorf("cannot save driver in db: %w", err)
	}

	mylog.Info("driver registered", "driver_id", created.ID)
	return DriverView(created), nil
}

// ======================= List =======================
func (rs *RegistryService) List(ctx context.Context) ([]contracts.Driver, error) {
	drivers, err := rs.repo.List(ctx)
	if err != nil {
		rs.mylog.Action("List").Error("Failed to list drivers", err)
		return nil, fmt.Errorf("cannot list drivers: %w", err)
	}
	out := make([]contracts.Driver, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, DriverView(d))
	}
	return out, nil
}

// ======================= Remove =======================
func (rs *RegistryService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id: %w", myerrors.ErrFieldIsEmpty)
	}
	if err := rs.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, myerrors.ErrDriverNotFound) {
			rs.mylog.Action("Remove").Error("Failed to delete driver", err, "driver_id", id)
		}
		return err
	}
	rs.mylog.Action("Remove").Info("driver removed", "driver_id", id)
	return nil
}
