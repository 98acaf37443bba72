package dto

import (
	"testing"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDriverListShapes(t *testing.T) {
	bare := `[
		{"_id": "d1", "driverName": "Asha", "carModel": "Swift", "rcBookNumber": "GJ05AB1234", "mobileNumber": "9000000001", "isActive": "active", "location": {"lat": 21.17, "lon": 72.83}},
		{"id": "d2", "driverName": "Ravi", "isActive": false}
	]`
	wrapped := `{"data": ` + bare + `}`

	for name, body := range map[string]string{"bare": bare, "wrapped": wrapped} {
		t.Run(name, func(t *testing.T) {
			records, skipped, err := DecodeDriverList([]byte(body))
			require.NoError(t, err)
			assert.Zero(t, skipped)
			require.Len(t, records, 2)

			assert.Equal(t, "d1", records[0].ID)
			assert.Equal(t, "Swift", records[0].VehicleModel)
			assert.Equal(t, "GJ05AB1234", records[0].VehicleRegistration)
			assert.True(t, records[0].IsActive)
			require.NotNil(t, records[0].Location)
			assert.Equal(t, model.Coordinate{Latitude: 21.17, Longitude: 72.83}, *records[0].Location)

			assert.Equal(t, "d2", records[1].ID)
			assert.False(t, records[1].IsActive)
			assert.Nil(t, records[1].Location)
		})
	}
}

func TestDecodeDriverListSkipsBadRecords(t *testing.T) {
	body := `[{"driverName": "no id"}, {"_id": "d3", "location": {"lat": 123, "lon": 0}}, {"_id": "d4"}]`

	records, skipped, err := DecodeDriverList([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "d4", records[0].ID)
}

func TestDecodeDriverListEmptyAndInvalid(t *testing.T) {
	records, _, err := DecodeDriverList([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, _, err = DecodeDriverList([]byte("[{"))
	assert.Error(t, err)
}

func TestDecodeLocationEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    model.LocationEvent
		wantErr error
	}{
		{
			name:    "canonical",
			payload: `{"_id": "d1", "driverName": "Asha", "carModel": "Swift", "isActive": true, "location": {"lat": 10.5, "lon": 20.25}, "seq": 7}`,
			want:    model.LocationEvent{DriverID: "d1", DriverName: "Asha", CarModel: "Swift", IsActive: true, Location: model.Coordinate{Latitude: 10.5, Longitude: 20.25}, Seq: 7},
		},
		{
			name:    "plain id and inactive",
			payload: `{"id": "d2", "isActive": "inactive", "location": {"lat": -1, "lon": -2}}`,
			want:    model.LocationEvent{DriverID: "d2", IsActive: false, Location: model.Coordinate{Latitude: -1, Longitude: -2}},
		},
		{
			name:    "legacy flat coordinates",
			payload: `{"id": "d3", "latitude": 1.5, "longitude": 2.5}`,
			want:    model.LocationEvent{DriverID: "d3", IsActive: true, Location: model.Coordinate{Latitude: 1.5, Longitude: 2.5}},
		},
		{
			name:    "missing id",
			payload: `{"location": {"lat": 1, "lon": 2}}`,
			wantErr: myerrors.ErrMalformedEvent,
		},
		{
			name:    "missing location",
			payload: `{"_id": "d4"}`,
			wantErr: myerrors.ErrMalformedEvent,
		},
		{
			name:    "out of range",
			payload: `{"_id": "d5", "location": {"lat": 0, "lon": 181}}`,
			wantErr: myerrors.ErrInvalidCoordinate,
		},
		{
			name:    "garbage isActive",
			payload: `{"_id": "d6", "isActive": "maybe", "location": {"lat": 0, "lon": 0}}`,
			wantErr: myerrors.ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLocationEvent([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRegisterRequest(t *testing.T) {
	form := model.RegistrationForm{
		DriverName:          "Asha",
		MobileNumber:        "9000000001",
		Password:            "secret",
		VehicleRegistration: "GJ05AB1234",
		VehicleModel:        "Ertiga",
		IsActive:            true,
	}
	req := NewRegisterRequest(form, model.Coordinate{Latitude: 21.1, Longitude: 72.8})

	assert.Equal(t, "active", req.IsActive)
	assert.Equal(t, "GJ05AB1234", req.RcBookNumber)
	assert.Equal(t, 21.1, req.Location.Lat)
	assert.Equal(t, 72.8, req.Location.Lon)
}
