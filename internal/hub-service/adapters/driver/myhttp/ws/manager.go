package ws

import (
	"sync"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/ports/driven"
	"fleet-dash/internal/mylogger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const WriteWait = 10 * time.Second

type WebSocketManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	mylog       mylogger.Logger
}

// Connection is one authenticated dashboard or driver socket. Writes are serialized by mu.
type Connection struct {
	ID     string
	Claims model.Claims
	Conn   *websocket.Conn
	mu     sync.Mutex
}

var _ driven.IBroadcaster = (*WebSocketManager)(nil)

func NewWebSocketManager(mylog mylogger.Logger) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]*Connection),
		mylog:       mylog.Action("ws_manager"),
	}
}

func (m *WebSocketManager) Register(conn *websocket.Conn, claims model.Claims) *Connection {
	c := &Connection{
		ID:     uuid.NewString(),
		Claims: claims,
		Conn:   conn,
	}
	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()
	m.mylog.Debug("client connected", "conn_id", c.ID, "user_id", claims.Subject, "role", claims.Role)
	return c
}

func (m *WebSocketManager) Unregister(id string) {
	m.mu.Lock()
	c, exists := m.connections[id]
	delete(m.connections, id)
	m.mu.Unlock()

	if exists {
		c.Conn.Close()
		m.mylog.Debug("client disconnected", "conn_id", id)
	}
}

func (m *WebSocketManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Broadcast writes the event to every connection. A connection that fails the write is dropped.
func (m *WebSocketManager) Broadcast(event string, payload any) {
	msg, err := contracts.NewEnvelope(event, payload)
	if err != nil {
		m.mylog.Error("Failed to encode broadcast", err, "event", event)
		return
	}

	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			m.mylog.Warn("broadcast write failed", "conn_id", c.ID, "error", err)
			m.Unregister(c.ID)
		}
	}
}

// Send writes one event to a single connection.
func (c *Connection) Send(event string, payload any) error {
	msg, err := contracts.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, msg)
}

func (c *Connection) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait))
}

// Reject tells the client its credentials are no longer accepted and closes the socket.
func (c *Connection) Reject(message string) {
	_ = c.Send(contracts.EventError, contracts.ErrorMessage{Code: contracts.ErrorCodeAuthRejected, Message: message})
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(WriteWait))
}

func (c *Connection) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.Conn.WriteMessage(messageType, data)
}
