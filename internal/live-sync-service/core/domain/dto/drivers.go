package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
)

// flexBool accepts true/false as well as the "active"/"inactive" strings the registry form uses.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "active", "1", "yes":
		*b = true
	case "false", "inactive", "0", "no", "", "null":
		*b = false
	default:
		return fmt.Errorf("%w: isActive %s", myerrors.ErrMalformedEvent, data)
	}
	return nil
}

type rawLocation struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	Lng *float64 `json:"lng"`
}

// RawDriver is every driver shape seen on the wire: registry records, hub pushes and the
// legacy flat {id, latitude, longitude} events.
type RawDriver struct {
	UnderscoreID string       `json:"_id"`
	ID           string       `json:"id"`
	DriverName   string       `json:"driverName"`
	MobileNumber string       `json:"mobileNumber"`
	RcBookNumber string       `json:"rcBookNumber"`
	CarModel     string       `json:"carModel"`
	IsActive     *flexBool    `json:"isActive"`
	Location     *rawLocation `json:"location"`
	Latitude     *float64     `json:"latitude"`
	Longitude    *float64     `json:"longitude"`
	Seq          uint64       `json:"seq"`
}

func (r RawDriver) driverID() string {
	if r.UnderscoreID != "" {
		return r.UnderscoreID
	}
	return r.ID
}

// coordinate returns nil when the payload carries no position at all.
func (r RawDriver) coordinate() (*model.Coordinate, error) {
	var lat, lon *float64
	switch {
	case r.Location != nil:
		lat, lon = r.Location.Lat, r.Location.Lon
		if lon == nil {
			lon = r.Location.Lng
		}
	case r.Latitude != nil || r.Longitude != nil:
		lat, lon = r.Latitude, r.Longitude
	default:
		return nil, nil
	}
	if lat == nil || lon == nil {
		if lat == nil && lon == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: partial location", myerrors.ErrInvalidCoordinate)
	}
	c := model.Coordinate{Latitude: *lat, Longitude: *lon}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NormalizeDriver maps a raw registry record to the canonical DriverRecord.
func NormalizeDriver(raw RawDriver) (model.DriverRecord, error) {
	id := raw.driverID()
	if id == "" {
		return model.DriverRecord{}, fmt.Errorf("%w: driver without id", myerrors.ErrMalformedEvent)
	}
	loc, err := raw.coordinate()
	if err != nil {
		return model.DriverRecord{}, fmt.Errorf("driver %s: %w", id, err)
	}
	rec := model.DriverRecord{
		ID:                  id,
		Name:                raw.DriverName,
		MobileNumber:        raw.MobileNumber,
		VehicleModel:        raw.CarModel,
		VehicleRegistration: raw.RcBookNumber,
		Location:            loc,
	}
	if raw.IsActive != nil {
		rec.IsActive = bool(*raw.IsActive)
	}
	return rec, nil
}

// DecodeDriverList accepts either a bare JSON array or {"data": [...]}. Records that cannot be
// normalized are skipped and counted.
func DecodeDriverList(body []byte) ([]model.DriverRecord, int, error) {
	body = bytes.TrimSpace(body)
	var raws []RawDriver
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Data []RawDriver `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, 0, fmt.Errorf("decode driver list: %w", err)
		}
		raws = wrapped.Data
	} else if len(body) > 0 && !bytes.Equal(body, []byte("null")) {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, 0, fmt.Errorf("decode driver list: %w", err)
		}
	}

	records := make([]model.DriverRecord, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		rec, err := NormalizeDriver(raw)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// DecodeDriver decodes a single record, optionally wrapped in {"data": {...}}.
func DecodeDriver(body []byte) (model.DriverRecord, error) {
	var wrapped struct {
		Data *RawDriver `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return NormalizeDriver(*wrapped.Data)
	}
	var raw RawDriver
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.DriverRecord{}, fmt.Errorf("decode driver: %w", err)
	}
	return NormalizeDriver(raw)
}

// DecodeLocationEvent normalizes a location-update / receive-location payload. An event must
// carry an id and a valid position. A missing isActive means the driver is active: it just
// reported a position.
func DecodeLocationEvent(data []byte) (model.LocationEvent, error) {
	var raw RawDriver
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.LocationEvent{}, fmt.Errorf("%w: %v", myerrors.ErrMalformedEvent, err)
	}
	id := raw.driverID()
	if id == "" {
		return model.LocationEvent{}, fmt.Errorf("%w: location event without id", myerrors.ErrMalformedEvent)
	}
	loc, err := raw.coordinate()
	if err != nil {
		return model.LocationEvent{}, fmt.Errorf("location event for %s: %w", id, err)
	}
	if loc == nil {
		return model.LocationEvent{}, fmt.Errorf("%w: location event for %s without location", myerrors.ErrMalformedEvent, id)
	}
	ev := model.LocationEvent{
		DriverID:   id,
		DriverName: raw.DriverName,
		CarModel:   raw.CarModel,
		IsActive:   true,
		Location:   *loc,
		Seq:        raw.Seq,
	}
	if raw.IsActive != nil {
		ev.IsActive = bool(*raw.IsActive)
	}
	return ev, nil
}

// NewRegisterRequest builds the registration body from the form and the captured position.
func NewRegisterRequest(form model.RegistrationForm, at model.Coordinate) contracts.RegisterDriverRequest {
	active := "inactive"
	if form.IsActive {
		active = "active"
	}
	return contracts.RegisterDriverRequest{
		DriverName:   form.DriverName,
		MobileNumber: form.MobileNumber,
		Password:     form.Password,
		RcBookNumber: form.VehicleRegistration,
		CarModel:     form.VehicleModel,
		IsActive:     active,
		Location:     contracts.GeoPoint{Lat: at.Latitude, Lon: at.Longitude},
	}
}

// NewUpdateLocation builds the outbound update-location payload.
func NewUpdateLocation(userID string, at model.Coordinate) contracts.UpdateLocationMessage {
	return contracts.UpdateLocationMessage{
		UserID:   userID,
		Location: contracts.GeoPoint{Lat: at.Latitude, Lon: at.Longitude},
	}
}
