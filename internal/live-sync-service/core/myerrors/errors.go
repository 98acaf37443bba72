package myerrors

import (
	"errors"
	"fmt"
)

// Acquisition errors.
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimedOut            = errors.New("timed out")
	ErrUnsupported         = errors.New("geolocation unsupported")
)

// Transport errors.
var (
	ErrAuthRejected   = errors.New("auth rejected")
	ErrNotConnected   = errors.New("channel not connected")
	ErrConnectionLost = errors.New("connection lost")
)

// Domain errors.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrMissingField      = errors.New("field is empty")
	ErrWatchActive       = errors.New("watch already active")
	ErrMalformedEvent    = errors.New("malformed event")
)

var ErrRegistry = errors.New("registry request failed")

// RegistryError is returned for every failed registry call. Status is zero when no response
// arrived; Err then holds the transport failure.
type RegistryError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *RegistryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRegistry}
	}
	return []error{ErrRegistry, e.Err}
}

// UserMessage maps an error to the text shown in the user-visible error slot.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var regErr *RegistryError
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Permission to access location was denied."
	case errors.Is(err, ErrPositionUnavailable):
		return "Location information is unavailable."
	case errors.Is(err, ErrTimedOut):
		return "Geolocation request timed out."
	case errors.Is(err, ErrUnsupported):
		return "Geolocation is not supported by this device."
	case errors.Is(err, ErrAuthRejected):
		return "Authentication was rejected by the server. Sign in again to resume live tracking."
	case errors.Is(err, ErrConnectionLost):
		return "Connection to the server was lost. Reconnecting..."
	case errors.As(err, &regErr):
		return regErr.Message
	case errors.Is(err, ErrMissingField):
		return "Please fill in all required fields."
	case errors.Is(err, ErrRegistry):
		return "Could not reach the driver registry. Please try again."
	default:
		return "An unknown error occurred."
	}
}

// IsTerminal reports errors that end live tracking for the session.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, ErrAuthRejected)
}
