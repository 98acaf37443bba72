package contracts

import (
	"encoding/json"
	"fmt"
)

// Event names are the wire contract between dashboards and the hub.
const (
	EventUpdateLocation        = "update-location"
	EventUpdateLocationCaptain = "update-location-captain"
	EventLocationUpdate        = "location-update"
	EventReceiveLocation       = "receive-location"
	EventError                 = "error"
)

const (
	ErrorCodeAuthRejected = "auth_rejected"
	ErrorCodeBadRequest   = "bad_request"
	ErrorCodeInternal     = "internal"
)

// Envelope frames every WebSocket message: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope ready to be written.
func NewEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UpdateLocationMessage is sent by a dashboard for its own position.
type UpdateLocationMessage struct {
	UserID   string   `json:"userId"`
	Location GeoPoint `json:"location"`
}

// DriverLocationMessage is pushed by the hub whenever a driver moves.
type DriverLocationMessage struct {
	ID         string   `json:"_id"`
	DriverName string   `json:"driverName"`
	CarModel   string   `json:"carModel"`
	IsActive   bool     `json:"isActive"`
	Location   GeoPoint `json:"location"`
	Seq        uint64   `json:"seq,omitempty"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
