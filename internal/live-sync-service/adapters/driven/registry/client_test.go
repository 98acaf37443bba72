package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/mylogger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", time.Second, func() string { return "tok" }, mylogger.Discard())
}

func TestListDrivers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/drivers/all/driver", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data": [{"_id": "d1", "driverName": "Asha", "isActive": "active"}, {"driverName": "broken"}]}`))
	})

	drivers, err := client.ListDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "d1", drivers[0].ID)
	assert.True(t, drivers[0].IsActive)
}

func TestListDriversServerError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "default message", body: `oops`, wantMsg: "Failed to fetch drivers."},
		{name: "message field", body: `{"message": "database is down"}`, wantMsg: "database is down"},
		{name: "error field", body: `{"error": "maintenance"}`, wantMsg: "maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tt.body))
			})

			_, err := client.ListDrivers(context.Background())
			require.ErrorIs(t, err, myerrors.ErrRegistry)

			var regErr *myerrors.RegistryError
			require.True(t, errors.As(err, &regErr))
			assert.Equal(t, http.StatusInternalServerError, regErr.Status)
			assert.Equal(t, tt.wantMsg, regErr.Message)
			assert.Equal(t, tt.wantMsg, myerrors.UserMessage(err))
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, time.Second, nil, mylogger.Discard())

	_, err := client.ListDrivers(context.Background())
	require.ErrorIs(t, err, myerrors.ErrRegistry)
	var regErr *myerrors.RegistryError
	require.True(t, errors.As(err, &regErr))
	assert.Zero(t, regErr.Status)
}

func TestContextDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.RemoveDriver(ctx, "d1")
	assert.ErrorIs(t, err, myerrors.ErrRegistry)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterDriver(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/drivers/register/driver", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req contracts.RegisterDriverRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Asha", req.DriverName)
		assert.Equal(t, "active", req.IsActive)
		assert.Equal(t, 21.17, req.Location.Lat)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(contracts.Driver{
			ID:         "new-1",
			DriverName: req.DriverName,
			IsActive:   true,
			Location:   &req.Location,
		})
	})

	form := model.RegistrationForm{DriverName: "Asha", MobileNumber: "1", Password: "p", VehicleRegistration: "r", VehicleModel: "m", IsActive: true}
	rec, err := client.RegisterDriver(context.Background(), form, model.Coordinate{Latitude: 21.17, Longitude: 72.83})
	require.NoError(t, err)
	assert.Equal(t, "new-1", rec.ID)
	require.NotNil(t, rec.Location)
	assert.Equal(t, 72.83, rec.Location.Longitude)
}

func TestRegisterDriverRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "mobileNumber already registered"}`))
	})

	_, err := client.RegisterDriver(context.Background(), model.RegistrationForm{}, model.Coordinate{})
	assert.Equal(t, "mobileNumber already registered", myerrors.UserMessage(err))
}

func TestRemoveDriver(t *testing.T) {
	statuses := map[string]int{"d1": http.StatusOK, "gone": http.StatusNotFound, "boom": http.StatusInternalServerError}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		id := r.URL.Path[len("/api/drivers/remove/"):]
		w.WriteHeader(statuses[id])
	})

	assert.NoError(t, client.RemoveDriver(context.Background(), "d1"))
	assert.NoError(t, client.RemoveDriver(context.Background(), "gone"))

	err := client.RemoveDriver(context.Background(), "boom")
	require.Error(t, err)
	assert.Equal(t, "Failed to remove the driver.", myerrors.UserMessage(err))
}
