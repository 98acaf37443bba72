package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/mylogger"

	"github.com/stretchr/testify/assert"
)

type stubSync struct {
	local    *model.PositionSample
	drivers  []model.DriverRecord
	errorMsg string
	tokens   []string
	tokenErr error
}

func (s *stubSync) Start(context.Context) error { return nil }
func (s *stubSync) Stop()                       {}
func (s *stubSync) SetToken(_ context.Context, token string) error {
	s.tokens = append(s.tokens, token)
	return s.tokenErr
}
func (s *stubSync) RefreshSeed(context.Context) error { return nil }
func (s *stubSync) RegisterDriver(context.Context, model.RegistrationForm) (model.DriverRecord, error) {
	return model.DriverRecord{}, nil
}
func (s *stubSync) RemoveDriver(context.Context, string) error { return nil }
func (s *stubSync) Drivers() []model.DriverRecord              { return s.drivers }
func (s *stubSync) LastError() string                          { return s.errorMsg }
func (s *stubSync) LocalPosition() (model.PositionSample, bool) {
	if s.local == nil {
		return model.PositionSample{}, false
	}
	return *s.local, true
}

func TestReporterPrecision(t *testing.T) {
	var buf bytes.Buffer
	stub := &stubSync{
		local: &model.PositionSample{Coordinate: model.Coordinate{Latitude: 21.17023456789, Longitude: 72.8311}},
		drivers: []model.DriverRecord{
			{ID: "d1", Name: "Asha", Location: &model.Coordinate{Latitude: 21.123456, Longitude: 72.987654}},
			{ID: "d2", Name: "Ravi"},
		},
		errorMsg: myerrors.UserMessage(myerrors.ErrTimedOut),
	}

	NewReporter(stub, time.Second, mylogger.NewWithWriter(&buf, "INFO")).Report()

	out := buf.String()
	assert.Contains(t, out, `"lat":"21.1702346"`)
	assert.Contains(t, out, `"lon":"72.8311000"`)
	assert.Contains(t, out, `"lat":"21.1235"`)
	assert.Contains(t, out, `"lon":"72.9877"`)
	assert.NotContains(t, out, `"driver_id":"d2"`)
	assert.Contains(t, out, "Geolocation request timed out.")
}

func TestReporterRunStopsWithContext(t *testing.T) {
	var buf bytes.Buffer
	stub := &stubSync{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewReporter(stub, time.Millisecond, mylogger.NewWithWriter(&buf, "INFO")).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}
