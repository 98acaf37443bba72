package livesyncservice

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"fleet-dash/internal/config"
	"fleet-dash/internal/live-sync-service/adapters/driven/geo"
	"fleet-dash/internal/live-sync-service/adapters/driven/registry"
	"fleet-dash/internal/live-sync-service/adapters/driven/token"
	"fleet-dash/internal/live-sync-service/adapters/driven/ws"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/live-sync-service/core/services"
	"fleet-dash/internal/mylogger"
)

type app struct {
	sync    *services.LiveSync
	channel *ws.Channel
	store   driven.ITokenStore
	token   string
}

func build(cfg *config.Config, mylog mylogger.Logger) (*app, error) {
	var store driven.ITokenStore = token.NewFileStore(cfg.App.TokenFile, cfg.App.AuthToken)
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if tok == "" {
		mylog.Warn("no auth token configured, live updates will be rejected", "token_file", cfg.App.TokenFile)
	}

	channel := ws.NewChannel(ws.Options{
		URL:              cfg.App.WebSocketURL(),
		Token:            tok,
		MinDelay:         cfg.Reconnect.MinDelay(),
		MaxDelay:         cfg.Reconnect.MaxDelay(),
		HandshakeTimeout: cfg.App.HTTPTimeout(),
	}, mylog)
	tokens := services.NewTokenHolder(tok)
	registryClient := registry.NewClient(cfg.App.RegistryURL(), cfg.App.HTTPTimeout(), tokens.Get, mylog)

	clock := services.RealClock()
	sampler := services.NewSampler(geo.NewSource(cfg.Geo, mylog), clock, mylog)

	sync := services.NewLiveSync(
		sampler,
		channel,
		services.NewDirectory(),
		registryClient,
		services.NewStatus(),
		services.NewThrottleGroup[model.PositionSample](clock),
		services.Options{
			UserID:         cfg.App.UserID,
			ThrottleWindow: cfg.Sync.ThrottleWindow(),
			Watch: model.WatchOptions{
				HighAccuracy: cfg.Geo.HighAccuracy,
				Timeout:      cfg.Geo.Timeout(),
				MaxSampleAge: cfg.Geo.MaxSampleAge(),
			},
			RegisterWatch: model.WatchOptions{
				HighAccuracy: cfg.Geo.HighAccuracy,
				Timeout:      cfg.Geo.RegisterTimeout(),
				MaxSampleAge: cfg.Geo.MaxSampleAge(),
			},
			Tokens: tokens,
		},
		mylog,
	)
	return &app{sync: sync, channel: channel, store: store, token: tok}, nil
}

// Execute runs the dashboard until a shutdown signal arrives.
func Execute(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	a, err := build(cfg, mylog)
	if err != nil {
		return err
	}
	if cfg.App.UserID == "" {
		mylog.Warn("FLEET_USER_ID is empty, own location updates carry no user id")
	}

	if err := a.sync.Start(newCtx); err != nil {
		return fmt.Errorf("start live sync: %w", err)
	}
	defer a.sync.Stop()

	go services.NewReporter(a.sync, cfg.Sync.ReportInterval(), mylog).Run(newCtx)
	if poll := cfg.App.TokenPoll(); poll > 0 {
		go services.NewTokenRefresher(a.store, a.sync, a.token, poll, mylog).Run(newCtx)
	}

	<-newCtx.Done()
	mylog.Info("Shutdown signal received")
	return nil
}

// RegisterDriver adds one driver at the device's current position and announces it to the hub.
func RegisterDriver(ctx context.Context, mylog mylogger.Logger, cfg *config.Config, form model.RegistrationForm) (model.DriverRecord, error) {
	a, err := build(cfg, mylog)
	if err != nil {
		return model.DriverRecord{}, err
	}
	if _, err := a.channel.Connect(ctx); err != nil {
		mylog.Warn("channel unavailable, registering without announcement", "error", err)
	}
	defer a.channel.Disconnect()

	return a.sync.RegisterDriver(ctx, form)
}

// RemoveDriver deletes one driver from the registry.
func RemoveDriver(ctx context.Context, mylog mylogger.Logger, cfg *config.Config, id string) error {
	a, err := build(cfg, mylog)
	if err != nil {
		return err
	}
	return a.sync.RemoveDriver(ctx, id)
}

// ListDrivers fetches the registry's drivers once.
func ListDrivers(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) ([]model.DriverRecord, error) {
	a, err := build(cfg, mylog)
	if err != nil {
		return nil, err
	}
	if err := a.sync.RefreshSeed(ctx); err != nil {
		return nil, err
	}
	return a.sync.Drivers(), nil
}
