package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/adapters/driven/bm"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/ws"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/hub-service/core/services"
	"fleet-dash/internal/mylogger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locRepo struct {
	mu      sync.Mutex
	drivers map[string]model.Driver
}

func (r *locRepo) Create(context.Context, model.Driver) (model.Driver, error) {
	return model.Driver{}, nil
}

func (r *locRepo) List(context.Context) ([]model.Driver, error) { return nil, nil }

func (r *locRepo) Delete(context.Context, string) error { return nil }

func (r *locRepo) PasswordHash(context.Context, string) (string, []byte, error) {
	return "", nil, myerrors.ErrDriverNotFound
}

func (r *locRepo) UpdateLocation(_ context.Context, id string, lat, lon float64) (model.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return model.Driver{}, myerrors.ErrDriverNotFound
	}
	d.Latitude, d.Longitude = &lat, &lon
	d.LocationSeq++
	r.drivers[id] = d
	return d, nil
}

type hubFixture struct {
	srv     *httptest.Server
	auth    *services.AuthService
	manager *ws.WebSocketManager
}

func newHub(t *testing.T) *hubFixture {
	t.Helper()
	repo := &locRepo{drivers: map[string]model.Driver{
		"d1": {ID: "d1", DriverName: "Ravi", CarModel: "Dzire", IsActive: true},
	}}
	log := mylogger.Discard()
	auth := services.NewAuthService("s3cret")
	manager := ws.NewWebSocketManager(log)
	bus := bm.NewLocalBus()
	relay := services.NewRelayService(repo, bus, manager, log)

	ctx, cancel := context.WithCancel(context.Background())
	go relay.Run(ctx)
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", NewWebSocketHandler(manager, auth, relay, log).Handle())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		bus.Close()
	})
	return &hubFixture{srv: srv, auth: auth, manager: manager}
}

func (f *hubFixture) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
}

func (f *hubFixture) token(t *testing.T, sub, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := f.auth.Issue(sub, role, ttl)
	require.NoError(t, err)
	return tok
}

func (f *hubFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(f.url(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	msg, err := contracts.NewEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) contracts.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env contracts.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	hub := newHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(hub.url(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := hub.token(t, "op-1", services.RoleOperator, -time.Minute)
	_, resp, err = websocket.DefaultDialer.Dial(hub.url()+"?token="+expired, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketAcceptsQueryToken(t *testing.T) {
	hub := newHub(t)
	tok := hub.token(t, "op-1", services.RoleOperator, time.Hour)

	conn, _, err := websocket.DefaultDialer.Dial(hub.url()+"?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.manager.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketRelaysDriverPositions(t *testing.T) {
	hub := newHub(t)
	reporter := hub.dial(t, hub.token(t, "op-1", services.RoleOperator, time.Hour))
	watcher := hub.dial(t, hub.token(t, "op-2", services.RoleOperator, time.Hour))
	require.Eventually(t, func() bool { return hub.manager.Count() == 2 }, time.Second, 5*time.Millisecond)

	send(t, reporter, contracts.EventUpdateLocation, contracts.UpdateLocationMessage{
		UserID:   "d1",
		Location: contracts.GeoPoint{Lat: 21.17, Lon: 72.83},
	})

	env := readEnvelope(t, watcher)
	assert.Equal(t, contracts.EventLocationUpdate, env.Event)
	var msg contracts.DriverLocationMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "d1", msg.ID)
	assert.Equal(t, "Ravi", msg.DriverName)
	assert.Equal(t, contracts.GeoPoint{Lat: 21.17, Lon: 72.83}, msg.Location)
	assert.Equal(t, uint64(1), msg.Seq)

	// the reporter gets the broadcast too
	env = readEnvelope(t, reporter)
	assert.Equal(t, contracts.EventLocationUpdate, env.Event)
}

func TestWebSocketReportsBadRequests(t *testing.T) {
	hub := newHub(t)
	conn := hub.dial(t, hub.token(t, "d1", services.RoleDriver, time.Hour))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	env := readEnvelope(t, conn)
	assert.Equal(t, contracts.EventError, env.Event)

	send(t, conn, contracts.EventUpdateLocation, contracts.UpdateLocationMessage{
		UserID:   "someone-else",
		Location: contracts.GeoPoint{Lat: 1, Lon: 2},
	})
	env = readEnvelope(t, conn)
	require.Equal(t, contracts.EventError, env.Event)
	var e contracts.ErrorMessage
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, contracts.ErrorCodeBadRequest, e.Code)
}

func TestWebSocketRejectsExpiredSession(t *testing.T) {
	hub := newHub(t)
	conn := hub.dial(t, hub.token(t, "op-1", services.RoleOperator, time.Second))

	// jwt expiry has second resolution
	time.Sleep(2100 * time.Millisecond)
	send(t, conn, contracts.EventUpdateLocation, contracts.UpdateLocationMessage{UserID: "op-1", Location: contracts.GeoPoint{Lat: 1, Lon: 2}})

	env := readEnvelope(t, conn)
	require.Equal(t, contracts.EventError, env.Event)
	var e contracts.ErrorMessage
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, contracts.ErrorCodeAuthRejected, e.Code)
	assert.Equal(t, "Session expired.", e.Message)

	require.Eventually(t, func() bool { return hub.manager.Count() == 0 }, time.Second, 5*time.Millisecond)
}
