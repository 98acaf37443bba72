package services

import (
	"fmt"
	"strings"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinNameLen = 1
	MaxNameLen = 100

	MinMobileLen = 7
	MaxMobileLen = 15

	MinPasswordLen = 5
	MaxPasswordLen = 50

	HashFactor = 10
)

func validateRegistration(req contracts.RegisterDriverRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"driverName", req.DriverName},
		{"mobileNumber", req.MobileNumber},
		{"password", req.Password},
		{"rcBookNumber", req.RcBookNumber},
		{"carModel", req.CarModel},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: %w", f.name, myerrors.ErrFieldIsEmpty)
		}
	}

	if err := checkLen(req.DriverName, MinNameLen, MaxNameLen); err != nil {
		return fmt.Errorf("invalid driverName: %w", err)
	}
	if err := checkLen(req.MobileNumber, MinMobileLen, MaxMobileLen); err != nil {
		return fmt.Errorf("invalid mobileNumber: %w", err)
	}
	if err := checkLen(req.Password, MinPasswordLen, MaxPasswordLen); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	return validateLocation(req.Location.Lat, req.Location.Lon)
}

func checkLen(v string, min, max int) error {
	if l := len(v); l < min || l > max {
		return fmt.Errorf("must be in range [%d, %d]", min, max)
	}
	return nil
}

func validateLocation(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: (%v, %v)", myerrors.ErrInvalidLocation, lat, lon)
	}
	return nil
}

// parseStatus accepts the form's "active"/"inactive" and plain booleans.
func parseStatus(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "active", "true", "":
		return true, nil
	case "inactive", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", myerrors.ErrInvalidStatus, v)
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), HashFactor)
}

func checkPassword(hashed []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(password)) == nil
}

// DriverView is the public shape of a driver: never the password hash.
func DriverView(d model.Driver) contracts.Driver {
	out := contracts.Driver{
		ID:           d.ID,
		DriverName:   d.DriverName,
		MobileNumber: d.MobileNumber,
		RcBookNumber: d.RcBookNumber,
		CarModel:     d.CarModel,
		IsActive:     d.IsActive,
	}
	if d.Latitude != nil && d.Longitude != nil {
		out.Location = &contracts.GeoPoint{Lat: *d.Latitude, Lon: *d.Longitude}
	}
	return out
}

func LocationMessage(d model.Driver) contracts.DriverLocationMessage {
	msg := contracts.DriverLocationMessage{
		ID:         d.ID,
		DriverName: d.DriverName,
		CarModel:   d.CarModel,
		IsActive:   d.IsActive,
		Seq:        d.LocationSeq,
	}
	if d.Latitude != nil && d.Longitude != nil {
		msg.Location = contracts.GeoPoint{Lat: *d.Latitude, Lon: *d.Longitude}
	}
	return msg
}
