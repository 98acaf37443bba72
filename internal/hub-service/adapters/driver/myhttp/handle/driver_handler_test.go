package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/mylogger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	registered contracts.RegisterDriverRequest
	registerFn func() (contracts.Driver, error)
	drivers    []contracts.Driver
	listErr    error
	removed    []string
	removeErr  error
}

func (s *stubRegistry) Register(_ context.Context, req contracts.RegisterDriverRequest) (contracts.Driver, error) {
	s.registered = req
	return s.registerFn()
}

func (s *stubRegistry) List(context.Context) ([]contracts.Driver, error) {
	return s.drivers, s.listErr
}

func (s *stubRegistry) Remove(_ context.Context, id string) error {
	s.removed = append(s.removed, id)
	return s.removeErr
}

type stubLogin struct {
	err error
}

func (s stubLogin) Login(_ context.Context, mobile, password string) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return "d-" + mobile, "token-" + password, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterHandler(t *testing.T) {
	reg := &stubRegistry{registerFn: func() (contracts.Driver, error) {
		return contracts.Driver{ID: "d1", DriverName: "Ravi", IsActive: true, Location: &contracts.GeoPoint{Lat: 1, Lon: 2}}, nil
	}}
	h := NewDriverHandler(reg, stubLogin{}, mylogger.Discard())

	body := `{"driverName":"Ravi","mobileNumber":"9876543210","password":"secret1","rcBookNumber":"RC","carModel":"Dzire","isActive":"active","location":{"lat":1,"lon":2}}`
	rec := httptest.NewRecorder()
	h.Register()(rec, httptest.NewRequest(http.MethodPost, "/drivers/register/driver", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ravi", reg.registered.DriverName)
	assert.Equal(t, contracts.GeoPoint{Lat: 1, Lon: 2}, reg.registered.Location)
	got := decodeBody(t, rec)
	assert.Equal(t, "d1", got["_id"])
}

func TestRegisterHandlerErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		err  error
		code int
	}{
		"bad json":   {"{", nil, http.StatusBadRequest},
		"validation": {"{}", myerrors.ErrFieldIsEmpty, http.StatusBadRequest},
		"duplicate":  {"{}", myerrors.ErrMobileRegistered, http.StatusConflict},
		"internal":   {"{}", errors.New("db down"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			reg := &stubRegistry{registerFn: func() (contracts.Driver, error) { return contracts.Driver{}, tc.err }}
			h := NewDriverHandler(reg, stubLogin{}, mylogger.Discard())

			rec := httptest.NewRecorder()
			h.Register()(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)))

			assert.Equal(t, tc.code, rec.Code)
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["message"])
			assert.EqualValues(t, tc.code, body["code"])
		})
	}
}

func TestListHandler(t *testing.T) {
	reg := &stubRegistry{drivers: []contracts.Driver{{ID: "a"}, {ID: "b"}}}
	h := NewDriverHandler(reg, stubLogin{}, mylogger.Discard())

	rec := httptest.NewRecorder()
	h.List()(rec, httptest.NewRequest(http.MethodGet, "/drivers/all/driver", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []contracts.Driver `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "b", body.Data[1].ID)

	reg.listErr = errors.New("db down")
	rec = httptest.NewRecorder()
	h.List()(rec, httptest.NewRequest(http.MethodGet, "/drivers/all/driver", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch drivers.", decodeBody(t, rec)["message"])
}

func TestRemoveHandler(t *testing.T) {
	reg := &stubRegistry{}
	h := NewDriverHandler(reg, stubLogin{}, mylogger.Discard())
	mux := http.NewServeMux()
	mux.Handle("DELETE /drivers/remove/{id}", h.Remove())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/drivers/remove/d1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"d1"}, reg.removed)

	reg.removeErr = myerrors.ErrDriverNotFound
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/drivers/remove/d1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	h := NewDriverHandler(&stubRegistry{}, stubLogin{}, mylogger.Discard())

	rec := httptest.NewRecorder()
	h.Login()(rec, httptest.NewRequest(http.MethodPost, "/drivers/login", strings.NewReader(`{"mobileNumber":"123","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "d-123", body["driverId"])
	assert.Equal(t, "token-pw", body["jwt_access"])

	h = NewDriverHandler(&stubRegistry{}, stubLogin{err: myerrors.ErrBadCredentials}, mylogger.Discard())
	rec = httptest.NewRecorder()
	h.Login()(rec, httptest.NewRequest(http.MethodPost, "/drivers/login", strings.NewReader(`{"mobileNumber":"123","password":"pw"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(func(context.Context) bool { return true })(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Health(func(context.Context) bool { return false })(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
