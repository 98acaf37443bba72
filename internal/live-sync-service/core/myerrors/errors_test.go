package myerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "permission", err: fmt.Errorf("watch: %w", ErrPermissionDenied), want: "Permission to access location was denied."},
		{name: "unavailable", err: ErrPositionUnavailable, want: "Location information is unavailable."},
		{name: "timeout", err: ErrTimedOut, want: "Geolocation request timed out."},
		{name: "unsupported", err: ErrUnsupported, want: "Geolocation is not supported by this device."},
		{name: "registry status", err: &RegistryError{Op: "list drivers", Status: 500, Message: "Failed to fetch drivers."}, want: "Failed to fetch drivers."},
		{name: "unknown", err: errors.New("weird"), want: "An unknown error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestRegistryErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("seed: %w", &RegistryError{Op: "list drivers", Message: "Failed to fetch drivers.", Err: context.DeadlineExceeded})

	assert.ErrorIs(t, err, ErrRegistry)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var regErr *RegistryError
	assert.ErrorAs(t, err, &regErr)
	assert.Zero(t, regErr.Status)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(ErrUnsupported))
	assert.True(t, IsTerminal(fmt.Errorf("connect: %w", ErrAuthRejected)))
	assert.False(t, IsTerminal(ErrTimedOut))
	assert.False(t, IsTerminal(ErrConnectionLost))
}
