package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/mylogger"

	"github.com/gorilla/websocket"
)

type WebSocketClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger mylogger.Logger
}

func NewWebSocketClient(logger mylogger.Logger) *WebSocketClient {
	return &WebSocketClient{logger: logger}
}

func (w *WebSocketClient) Connect(ctx context.Context, url, token string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connecting to websocket (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("connecting to websocket: %w", err)
	}

	w.conn = conn
	w.logger.Info("WebSocket connected", "url", url)
	return nil
}

func (w *WebSocketClient) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *WebSocketClient) Send(event string, payload any) error {
	data, err := contracts.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// ReadMessages logs what the hub pushes until the socket closes. An auth_rejected error ends the loop.
func (w *WebSocketClient) ReadMessages(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, payload, err := w.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		var env contracts.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			w.logger.Warn("unreadable message", "error", err)
			continue
		}

		switch env.Event {
		case contracts.EventLocationUpdate:
			var msg contracts.DriverLocationMessage
			if err := json.Unmarshal(env.Data, &msg); err == nil {
				w.logger.Debug("location update", "driver_id", msg.ID, "seq", msg.Seq)
			}
		case contracts.EventError:
			var e contracts.ErrorMessage
			if err := json.Unmarshal(env.Data, &e); err != nil {
				continue
			}
			w.logger.Warn("hub error", "code", e.Code, "message", e.Message)
			if e.Code == contracts.ErrorCodeAuthRejected {
				return fmt.Errorf("rejected by hub: %s", e.Message)
			}
		}
	}
}
