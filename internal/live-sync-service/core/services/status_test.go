package services

import (
	"fmt"
	"testing"

	"fleet-dash/internal/live-sync-service/core/myerrors"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorSlot(t *testing.T) {
	s := NewStatus()
	assert.Empty(t, s.LastError())

	s.SetError(fmt.Errorf("watch: %w", myerrors.ErrPermissionDenied))
	assert.Equal(t, "Permission to access location was denied.", s.LastError())

	s.ClearIf(myerrors.ErrTimedOut)
	assert.NotEmpty(t, s.LastError())

	s.ClearIf(myerrors.ErrPermissionDenied)
	assert.Empty(t, s.LastError())
}

func TestStatusUnsupportedStopsTracking(t *testing.T) {
	s := NewStatus()
	s.SetTracking(true)

	s.SetError(myerrors.ErrTimedOut)
	assert.True(t, s.Tracking())

	s.SetError(myerrors.ErrUnsupported)
	assert.False(t, s.Tracking())
}
