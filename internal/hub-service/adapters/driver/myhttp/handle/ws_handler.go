package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/ws"
	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/mylogger"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	maxFrame     = 64 << 10
)

type TokenValidator interface {
	Validate(token string) (model.Claims, error)
}

type LocationRelay interface {
	HandleLocation(ctx context.Context, claims model.Claims, upd model.LocationUpdate) error
}

type WebSocketHandler struct {
	wsManager *ws.WebSocketManager
	upgrader  websocket.Upgrader
	auth      TokenValidator
	relay     LocationRelay
	mylog     mylogger.Logger
}

func NewWebSocketHandler(wsManager *ws.WebSocketManager, auth TokenValidator, relay LocationRelay, mylog mylogger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		auth:  auth,
		relay: relay,
		mylog: mylog,
	}
}

// Handle authenticates the handshake, then relays position events until the socket closes or
// the token stops being valid.
func (h *WebSocketHandler) Handle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mylog := h.mylog.Action("WebSocket")

		token := bearerToken(r)
		claims, err := h.auth.Validate(token)
		if err != nil {
			mylog.Warn("handshake rejected", "error", err)
			jsonError(w, http.StatusUnauthorized, err, "Authentication failed.")
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			mylog.Error("Failed to upgrade", err)
			return
		}
		c := h.wsManager.Register(conn, claims)
		defer h.wsManager.Unregister(c.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go h.handlePingPong(ctx, c, token)
		h.handleIncomingMessages(ctx, c, token)
	}
}

func (h *WebSocketHandler) handleIncomingMessages(ctx context.Context, c *ws.Connection, token string) {
	mylog := h.mylog.Action("ws_incoming").With("conn_id", c.ID, "user_id", c.Claims.Subject)

	c.Conn.SetReadLimit(maxFrame)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				mylog.Debug("read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !h.stillValid(c, token) {
			return
		}

		var env contracts.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.sendError(c, contracts.ErrorCodeBadRequest, "malformed message")
			continue
		}

		switch env.Event {
		case contracts.EventUpdateLocation, contracts.EventUpdateLocationCaptain:
			var msg contracts.UpdateLocationMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				h.sendError(c, contracts.ErrorCodeBadRequest, "malformed location")
				continue
			}
			upd := model.LocationUpdate{
				DriverID:  msg.UserID,
				Latitude:  msg.Location.Lat,
				Longitude: msg.Location.Lon,
				Captain:   env.Event == contracts.EventUpdateLocationCaptain,
			}
			if err := h.relay.HandleLocation(ctx, c.Claims, upd); err != nil {
				mylog.Warn("location rejected", "error", err, "event", env.Event)
				h.sendRelayError(c, err)
			}
		default:
			mylog.Debug("unknown event ignored", "event", env.Event)
		}
	}
}

// handlePingPong closes the socket on a failed ping or an expired token, which ends the read loop.
func (h *WebSocketHandler) handlePingPong(ctx context.Context, c *ws.Connection, token string) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.stillValid(c, token) {
				h.wsManager.Unregister(c.ID)
				return
			}
			if err := c.Ping(); err != nil {
				h.wsManager.Unregister(c.ID)
				return
			}
		}
	}
}

// stillValid rejects the connection once its token has expired.
func (h *WebSocketHandler) stillValid(c *ws.Connection, token string) bool {
	if _, err := h.auth.Validate(token); err != nil {
		msg := "Authentication failed."
		if errors.Is(err, myerrors.ErrTokenExpired) {
			msg = "Session expired."
		}
		c.Reject(msg)
		return false
	}
	return true
}

func (h *WebSocketHandler) sendRelayError(c *ws.Connection, err error) {
	switch {
	case errors.Is(err, myerrors.ErrInvalidLocation), errors.Is(err, myerrors.ErrInvalidToken),
		errors.Is(err, myerrors.ErrDriverNotFound):
		h.sendError(c, contracts.ErrorCodeBadRequest, err.Error())
	default:
		h.sendError(c, contracts.ErrorCodeInternal, "Failed to update location.")
	}
}

func (h *WebSocketHandler) sendError(c *ws.Connection, code, message string) {
	if err := c.Send(contracts.EventError, contracts.ErrorMessage{Code: code, Message: message}); err != nil {
		h.mylog.Debug("error event not delivered", "conn_id", c.ID, "error", err)
	}
}
