package bm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fleet-dash/internal/config"
	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/hub-service/core/ports/driven"
	"fleet-dash/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	locationExchangeName = "fleet_location" // topic
	locationRoutingKey   = "location.driver"
	locationBindingKey   = "location.*"
	reconnInterval       = 5 // seconds
)

// RabbitMQ is the location bus shared by every hub instance. Each instance consumes through
// its own exclusive queue, so every instance sees every position.
type RabbitMQ struct {
	cfg          *config.RabbitMqconfig
	log          mylogger.Logger
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	mu           *sync.Mutex
}

var _ driven.ILocationBus = (*RabbitMQ)(nil)

func New(rabbitmqCfg *config.RabbitMqconfig, log mylogger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		cfg: rabbitmqCfg,
		log: log.Action("location_bus"),
		mu:  &sync.Mutex{},
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("rabbit connect: %w", err)
	}
	return r, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, msg contracts.DriverLocationMessage) error {
	if !r.IsAlive() {
		r.log.Error("amqp not alive", myerrors.ErrBusClosed)
		go r.reconnect(context.Background())
		return myerrors.ErrBusClosed
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pubctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	return ch.PublishWithContext(pubctx, locationExchangeName, locationRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Subscribe consumes until ctx is done, re-subscribing after a broker reconnect.
func (r *RabbitMQ) Subscribe(ctx context.Context, fn func(contracts.DriverLocationMessage)) error {
	for {
		deliveries, err := r.consume(ctx)
		if err != nil {
			r.log.Error("consume failed", err)
		} else {
			for d := range deliveries {
				var msg contracts.DriverLocationMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					r.log.Warn("malformed location dropped", "error", err)
					continue
				}
				fn(msg)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnInterval * time.Second):
		}
		if !r.IsAlive() {
			r.reconnect(ctx)
		}
	}
}

func (r *RabbitMQ) consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	if !r.IsAlive() {
		return nil, myerrors.ErrBusClosed
	}
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	// server-named, exclusive, auto-delete: one queue per hub instance
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, locationBindingKey, locationExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	out := make(chan amqp.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}
	return true
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}

func amqpURL(cfg *config.RabbitMqconfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(amqpURL(r.cfg))
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(locationExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(time.Duration(reconnInterval) * time.Second)
	defer t.Stop()
	l := r.log.Action("mb_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				l.Action("mb_reconnection_completed").Info("reconnected")
				return
			}
			l.Info("reconnect failed")
		case <-ctx.Done():
			return
		}
	}
}
