package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
)

type Options struct {
	URL              string
	Token            string
	MinDelay         time.Duration
	MaxDelay         time.Duration
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
}

// Channel is a JSON-envelope WebSocket client that reconnects on its own until Disconnect.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer
	log    mylogger.Logger

	mu       sync.Mutex
	token    string
	conn     *websocket.Conn
	session  model.ChannelSession
	handlers map[string]map[uint64]driven.EventHandler
	nextID   uint64
	stateFns []func(model.ChannelState, error)
	cancel   context.CancelFunc
	rejected bool

	// gorilla allows one concurrent writer per connection
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func NewChannel(opts Options, log mylogger.Logger) *Channel {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	return &Channel{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		log:      log.Action("realtime_channel"),
		token:    opts.Token,
		handlers: make(map[string]map[uint64]driven.EventHandler),
	}
}

// SetToken replaces the auth token used on the next handshake and lifts an earlier rejection.
func (c *Channel) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.rejected = false
}

// Connect performs the handshake. If it fails for any reason other than an auth rejection the
// channel keeps retrying in the background and the error is still returned. Calling Connect
// again while that retry loop runs returns ErrNotConnected until a connection is up.
func (c *Channel) Connect(ctx context.Context) (model.ChannelSession, error) {
	c.mu.Lock()
	if c.cancel != nil {
		session := c.session
		c.mu.Unlock()
		if !session.Connected {
			return session, fmt.Errorf("connect: %w", myerrors.ErrNotConnected)
		}
		return session, nil
	}
	if c.rejected {
		c.mu.Unlock()
		return model.ChannelSession{}, fmt.Errorf("connect: %w", myerrors.ErrAuthRejected)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if errors.Is(err, myerrors.ErrAuthRejected) {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		c.reject(err)
		return model.ChannelSession{}, err
	}

	if err == nil {
		c.attach(conn)
	} else {
		c.log.Warn("initial connect failed", "url", c.opts.URL, "error", err)
	}

	c.wg.Add(1)
	go c.run(runCtx, conn)

	if err != nil {
		return model.ChannelSession{}, err
	}
	return c.Session(), nil
}

// Send writes one event. Nothing is buffered: while disconnected the event is dropped and
// ErrNotConnected returned.
func (c *Channel) Send(event string, payload any) error {
	msg, err := contracts.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("send %s: %w", event, myerrors.ErrNotConnected)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		// the read loop sees the closed connection and reconnects
		conn.Close()
		return fmt.Errorf("send %s: %w: %v", event, myerrors.ErrNotConnected, err)
	}
	return nil
}

func (c *Channel) On(event string, handler driven.EventHandler) driven.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]driven.EventHandler)
	}
	c.handlers[event][c.nextID] = handler
	return driven.Subscription{Event: event, ID: c.nextID}
}

func (c *Channel) Off(sub driven.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers[sub.Event], sub.ID)
}

func (c *Channel) OnStateChange(fn func(state model.ChannelState, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

func (c *Channel) Session() model.ChannelSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Disconnect closes the connection and stops reconnecting. It waits for the background loop.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	conn := c.conn
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteWait))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.conn = nil
	c.session = model.ChannelSession{}
	c.mu.Unlock()
	c.notify(model.ChannelClosed, nil)
	c.log.Info("channel closed")
}

func (c *Channel) run(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	bo := newReconnectBackOff(ctx, c.opts.MinDelay, c.opts.MaxDelay)

	for {
		if conn != nil {
			bo.Reset()
			err := c.serve(ctx, conn)
			c.detach(conn)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, myerrors.ErrAuthRejected) {
				c.stopRunning()
				c.reject(err)
				return
			}
			c.log.Warn("connection lost", "error", err)
			c.notify(model.ChannelDisconnected, err)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		var err error
		conn, err = c.dial(ctx)
		switch {
		case ctx.Err() != nil:
			if conn != nil {
				conn.Close()
			}
			return
		case errors.Is(err, myerrors.ErrAuthRejected):
			c.stopRunning()
			c.reject(err)
			return
		case err != nil:
			c.log.Debug("reconnect failed", "delay", delay, "error", err)
			conn = nil
		default:
			c.attach(conn)
		}
	}
}

// serve pumps inbound events and pings until the connection fails or ctx is done.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait))
				c.writeMu.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", myerrors.ErrConnectionLost, err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := c.dispatch(payload); err != nil {
			return err
		}
	}
}

func (c *Channel) dispatch(payload []byte) error {
	var env contracts.Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		c.log.Warn("malformed envelope dropped", "size", len(payload))
		return nil
	}

	if env.Event == contracts.EventError {
		var msg contracts.ErrorMessage
		if err := json.Unmarshal(env.Data, &msg); err == nil && msg.Code == contracts.ErrorCodeAuthRejected {
			return fmt.Errorf("%w: %s", myerrors.ErrAuthRejected, msg.Message)
		}
		c.log.Warn("server error event", "code", msg.Code, "message", msg.Message)
	}

	c.mu.Lock()
	handlers := make([]driven.EventHandler, 0, len(c.handlers[env.Event]))
	for _, h := range c.handlers[env.Event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(env.Data)
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil, fmt.Errorf("%w: no auth token", myerrors.ErrAuthRejected)
	}

	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", myerrors.ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.session = model.ChannelSession{Connected: true, AuthToken: c.token, ConnectedAt: time.Now()}
	c.mu.Unlock()
	c.log.Info("connected", "url", c.opts.URL)
	c.notify(model.ChannelConnected, nil)
}

func (c *Channel) detach(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.session.Connected = false
	}
	c.mu.Unlock()
}

func (c *Channel) stopRunning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Channel) reject(err error) {
	c.mu.Lock()
	c.rejected = true
	c.session = model.ChannelSession{}
	c.mu.Unlock()
	c.log.Error("authentication rejected", err)
	c.notify(model.ChannelRejected, err)
}

func (c *Channel) notify(state model.ChannelState, err error) {
	c.mu.Lock()
	fns := append([]func(model.ChannelState, error){}, c.stateFns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(state, err)
	}
}
