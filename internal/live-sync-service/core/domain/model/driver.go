package model

import (
	"fmt"
	"time"

	"fleet-dash/internal/live-sync-service/core/myerrors"
)

// Coordinate is an immutable WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", myerrors.ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", myerrors.ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// PositionSample is one fix produced by the sampler.
type PositionSample struct {
	Coordinate Coordinate
	CapturedAt time.Time
}

// DriverRecord is the canonical driver shape held by the directory.
type DriverRecord struct {
	ID                  string
	Name                string
	MobileNumber        string
	VehicleModel        string
	VehicleRegistration string
	IsActive            bool
	Location            *Coordinate
}

// Clone copies the record so callers never share the Location pointer.
func (r DriverRecord) Clone() DriverRecord {
	if r.Location != nil {
		loc := *r.Location
		r.Location = &loc
	}
	return r
}

// LocationEvent is a normalized remote position event. Seq is zero when the server does not
// stamp its events.
type LocationEvent struct {
	DriverID   string
	DriverName string
	CarModel   string
	IsActive   bool
	Location   Coordinate
	Seq        uint64
}

// RegistrationForm carries the fields an operator fills in when adding a driver.
type RegistrationForm struct {
	DriverName          string
	MobileNumber        string
	Password            string
	VehicleRegistration string
	VehicleModel        string
	IsActive            bool
}

func (f RegistrationForm) Validate() error {
	required := map[string]string{
		"driverName":   f.DriverName,
		"mobileNumber": f.MobileNumber,
		"password":     f.Password,
		"rcBookNumber": f.VehicleRegistration,
		"carModel":     f.VehicleModel,
	}
	for _, field := range []string{"driverName", "mobileNumber", "password", "rcBookNumber", "carModel"} {
		if required[field] == "" {
			return fmt.Errorf("%w: %s", myerrors.ErrMissingField, field)
		}
	}
	return nil
}

// WatchOptions mirror the platform watch options.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxSampleAge time.Duration
}

// ChannelSession describes the current state of the realtime connection.
type ChannelSession struct {
	Connected   bool
	AuthToken   string
	ConnectedAt time.Time
}

// ChannelState is reported to state listeners on every lifecycle transition.
type ChannelState string

const (
	ChannelConnected    ChannelState = "connected"
	ChannelDisconnected ChannelState = "disconnected"
	ChannelRejected     ChannelState = "rejected"
	ChannelClosed       ChannelState = "closed"
)
