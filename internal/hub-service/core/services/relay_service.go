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
)

// RelayService stores reported driver positions and pushes them to every connected dashboard.
type RelayService struct {
	repo  driven.IDriverRepo
	bus   driven.ILocationBus
	out   driven.IBroadcaster
	mylog mylogger.Logger
}

func NewRelayService(repo driven.IDriverRepo, bus driven.ILocationBus, out driven.IBroadcaster, mylog mylogger.Logger) *RelayService {
	return &RelayService{
		repo:  repo,
		bus:   bus,
		out:   out,
		mylog: mylog.Action("relay"),
	}
}

// HandleLocation persists a position and publishes it. A position whose id is not a registered
// driver belongs to an operator and is only acknowledged.
func (r *RelayService) HandleLocation(ctx context.Context, claims model.Claims, upd model.LocationUpdate) error {
	if upd.DriverID == "" {
		upd.DriverID = claims.Subject
	}
	if claims.Role == RoleDriver && upd.DriverID != claims.Subject {
		return fmt.Errorf("%w: driver %s cannot report for %s", myerrors.ErrInvalidToken, claims.Subject, upd.DriverID)
	}
	if err := validateLocation(upd.Latitude, upd.Longitude); err != nil {
		return err
	}

	d, err := r.repo.UpdateLocation(ctx, upd.DriverID, upd.Latitude, upd.Longitude)
	if errors.Is(err, myerrors.ErrDriverNotFound) && !upd.Captain {
		r.mylog.Debug("operator position", "user_id", upd.DriverID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store location: %w", err)
	}

	if err := r.bus.Publish(ctx, LocationMessage(d)); err != nil {
		r.mylog.Error("Failed to publish location", err, "driver_id", d.ID)
		return fmt.Errorf("publish location: %w", err)
	}
	return nil
}

// Run forwards every bus message to the connected clients until ctx is done.
func (r *RelayService) Run(ctx context.Context) error {
	return r.bus.Subscribe(ctx, func(msg contracts.DriverLocationMessage) {
		r.out.Broadcast(contracts.EventLocationUpdate, msg)
	})
}
