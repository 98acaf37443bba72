package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/live-sync-service/core/domain/dto"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"
)

type Options struct {
	UserID         string
	ThrottleWindow time.Duration
	// Watch configures the continuous watch, RegisterWatch the one-shot fix taken on registration.
	Watch         model.WatchOptions
	RegisterWatch model.WatchOptions
	// Tokens, when set, receives every token passed to SetToken.
	Tokens *TokenHolder
}

// LiveSync wires the sampler, throttle, channel, directory and registry together.
type LiveSync struct {
	sampler   *Sampler
	channel   driven.IRealtimeChannel
	directory *Directory
	registry  driven.IRegistry
	status    *Status
	throttles *ThrottleGroup[model.PositionSample]
	opts      Options
	log       mylogger.Logger

	mu       sync.Mutex
	started  bool
	watching bool
	watch    WatchHandle
	subs     []driven.Subscription
}

func NewLiveSync(
	sampler *Sampler,
	channel driven.IRealtimeChannel,
	directory *Directory,
	registry driven.IRegistry,
	status *Status,
	throttles *ThrottleGroup[model.PositionSample],
	opts Options,
	log mylogger.Logger,
) *LiveSync {
	ls := &LiveSync{
		sampler:   sampler,
		channel:   channel,
		directory: directory,
		registry:  registry,
		status:    status,
		throttles: throttles,
		opts:      opts,
		log:       log.Action("live_sync"),
	}
	channel.OnStateChange(ls.onChannelState)
	return ls
}

// Start seeds the directory, subscribes to remote position events, connects the channel and
// starts watching the local position. Failures of the individual steps end up in the status
// slot; Start keeps going so the rest of the dashboard still works.
func (ls *LiveSync) Start(ctx context.Context) error {
	ls.mu.Lock()
	if ls.started {
		ls.mu.Unlock()
		return nil
	}
	ls.started = true
	ls.mu.Unlock()

	if err := ls.RefreshSeed(ctx); err != nil {
		ls.log.Warn("starting with an empty directory", "error", err)
	}

	subs := []driven.Subscription{
		ls.channel.On(contracts.EventLocationUpdate, ls.onLocationEvent),
		ls.channel.On(contracts.EventReceiveLocation, ls.onLocationEvent),
	}
	ls.mu.Lock()
	ls.subs = subs
	ls.mu.Unlock()

	session, err := ls.channel.Connect(ctx)
	switch {
	case errors.Is(err, myerrors.ErrAuthRejected):
		ls.status.SetError(err)
		ls.log.Error("channel handshake rejected", err)
	case err != nil:
		ls.status.SetError(connectionLost(err))
		ls.log.Warn("channel not connected, retrying in background", "error", err)
	default:
		ls.log.Info("channel connected", "connected_at", session.ConnectedAt)
	}

	h, err := ls.sampler.StartWatching(ls.onSample, ls.onSampleError, ls.opts.Watch)
	if err != nil {
		ls.status.SetError(err)
		ls.status.SetTracking(false)
		ls.log.Error("live tracking not started", err)
	} else {
		ls.mu.Lock()
		ls.watch = h
		ls.watching = true
		ls.mu.Unlock()
		ls.status.SetTracking(true)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Stop releases the watch, drops pending throttled sends, unsubscribes and disconnects.
func (ls *LiveSync) Stop() {
	ls.mu.Lock()
	if !ls.started {
		ls.mu.Unlock()
		return
	}
	ls.started = false
	watching, h := ls.watching, ls.watch
	ls.watching = false
	subs := ls.subs
	ls.subs = nil
	ls.mu.Unlock()

	if watching {
		ls.sampler.StopWatching(h)
	}
	ls.throttles.CancelAll()
	for _, sub := range subs {
		ls.channel.Off(sub)
	}
	ls.channel.Disconnect()
	ls.status.SetTracking(false)
	ls.log.Info("live sync stopped")
}

// SetToken switches to a fresh auth token. A rejected channel is reconnected right away when
// the session is running; a connected one keeps its connection and uses the token on its next
// handshake.
func (ls *LiveSync) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("set token: %w", myerrors.ErrMissingField)
	}
	if ls.opts.Tokens != nil {
		ls.opts.Tokens.Set(token)
	}
	ls.channel.SetToken(token)
	ls.status.ClearIf(myerrors.ErrAuthRejected)

	ls.mu.Lock()
	started := ls.started
	ls.mu.Unlock()
	if !started {
		return nil
	}

	session, err := ls.channel.Connect(ctx)
	switch {
	case errors.Is(err, myerrors.ErrAuthRejected):
		ls.status.SetError(err)
		ls.log.Error("fresh token rejected", err)
		return err
	case errors.Is(err, myerrors.ErrNotConnected):
		ls.log.Debug("channel already retrying, new token used on next attempt")
	case err != nil:
		ls.status.SetError(connectionLost(err))
		ls.log.Warn("channel not connected, retrying in background", "error", err)
	default:
		ls.log.Info("channel connected with fresh token", "connected_at", session.ConnectedAt)
	}
	return nil
}

// RefreshSeed replaces the directory with the registry's list. On failure the directory is left
// untouched.
func (ls *LiveSync) RefreshSeed(ctx context.Context) error {
	records, err := ls.registry.ListDrivers(ctx)
	if err != nil {
		ls.status.SetError(err)
		ls.log.Error("fetch drivers", err)
		return err
	}
	ls.directory.Seed(records)
	ls.status.ClearIf(myerrors.ErrRegistry)
	ls.log.Info("directory seeded", "drivers", len(records))
	return nil
}

// RegisterDriver takes a one-shot position, registers the driver and announces its position.
func (ls *LiveSync) RegisterDriver(ctx context.Context, form model.RegistrationForm) (model.DriverRecord, error) {
	if err := form.Validate(); err != nil {
		ls.status.SetError(err)
		return model.DriverRecord{}, err
	}

	sample, err := ls.sampler.CurrentPosition(ctx, ls.opts.RegisterWatch)
	if err != nil {
		ls.status.SetError(err)
		ls.log.Error("position for registration", err)
		return model.DriverRecord{}, fmt.Errorf("register driver: %w", err)
	}

	rec, err := ls.registry.RegisterDriver(ctx, form, sample.Coordinate)
	if err != nil {
		ls.status.SetError(err)
		ls.log.Error("register driver", err, "driver_name", form.DriverName)
		return model.DriverRecord{}, err
	}
	if rec.Location == nil {
		loc := sample.Coordinate
		rec.Location = &loc
	}
	ls.directory.Add(rec)
	ls.status.ClearIf(myerrors.ErrRegistry)
	ls.status.ClearIf(myerrors.ErrMissingField)

	err = ls.channel.Send(contracts.EventUpdateLocationCaptain, dto.NewUpdateLocation(rec.ID, *rec.Location))
	if err != nil {
		ls.log.Warn("captain location not announced", "driver_id", rec.ID, "error", err)
	}
	ls.log.Info("driver registered", "driver_id", rec.ID)
	return rec, nil
}

// RemoveDriver deletes the driver from the registry, then from the directory.
func (ls *LiveSync) RemoveDriver(ctx context.Context, id string) error {
	if err := ls.registry.RemoveDriver(ctx, id); err != nil {
		ls.status.SetError(err)
		ls.log.Error("remove driver", err, "driver_id", id)
		return err
	}
	ls.directory.Remove(id)
	ls.status.ClearIf(myerrors.ErrRegistry)
	ls.log.Info("driver removed", "driver_id", id)
	return nil
}

func (ls *LiveSync) Drivers() []model.DriverRecord {
	return ls.directory.All()
}

func (ls *LiveSync) LocalPosition() (model.PositionSample, bool) {
	return ls.status.Local()
}

func (ls *LiveSync) LastError() string {
	return ls.status.LastError()
}

func (ls *LiveSync) ChannelState() model.ChannelState {
	return ls.status.ChannelState()
}

func (ls *LiveSync) onSample(sample model.PositionSample) {
	ls.status.SetLocal(sample)
	ls.status.ClearIf(myerrors.ErrTimedOut)
	ls.status.ClearIf(myerrors.ErrPositionUnavailable)

	ls.throttles.Wrap(contracts.EventUpdateLocation, ls.opts.ThrottleWindow, ls.publishLocation).Call(sample)
}

func (ls *LiveSync) onSampleError(err error) {
	ls.status.SetError(err)
	if myerrors.IsTerminal(err) {
		if errors.Is(err, myerrors.ErrUnsupported) {
			// the sampler has already released the watch
			ls.mu.Lock()
			ls.watching = false
			ls.mu.Unlock()
			ls.status.SetTracking(false)
		}
		ls.log.Error("live tracking disabled", err)
		return
	}
	ls.log.Warn("position sample failed", "error", err)
}

func (ls *LiveSync) publishLocation(sample model.PositionSample) {
	err := ls.channel.Send(contracts.EventUpdateLocation, dto.NewUpdateLocation(ls.opts.UserID, sample.Coordinate))
	switch {
	case err == nil:
		ls.log.Debug("location sent", "lat", sample.Coordinate.Latitude, "lon", sample.Coordinate.Longitude)
	case errors.Is(err, myerrors.ErrNotConnected):
		ls.log.Debug("location dropped while disconnected")
	default:
		ls.log.Error("send location", err)
	}
}

func (ls *LiveSync) onLocationEvent(data json.RawMessage) {
	ev, err := dto.DecodeLocationEvent(data)
	if err != nil {
		ls.log.Warn("location event ignored", "error", err)
		return
	}
	if !ls.directory.ApplyEvent(ev) {
		ls.log.Debug("location event not applied", "driver_id", ev.DriverID, "seq", ev.Seq)
	}
}

func (ls *LiveSync) onChannelState(state model.ChannelState, err error) {
	ls.status.SetChannelState(state)
	switch state {
	case model.ChannelConnected:
		ls.status.ClearIf(myerrors.ErrConnectionLost)
		ls.log.Info("channel up")
	case model.ChannelDisconnected:
		if err != nil {
			ls.status.SetError(connectionLost(err))
			ls.log.Warn("channel down", "error", err)
		}
	case model.ChannelRejected:
		if err == nil {
			err = myerrors.ErrAuthRejected
		}
		ls.status.SetError(err)
		ls.throttles.CancelAll()
		ls.log.Error("channel rejected", err)
	}
}

func connectionLost(err error) error {
	if errors.Is(err, myerrors.ErrConnectionLost) {
		return err
	}
	return fmt.Errorf("%w: %v", myerrors.ErrConnectionLost, err)
}
