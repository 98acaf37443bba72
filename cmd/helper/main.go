// Command helper simulates a driver: it logs in with driver credentials and streams a wandering
// position to the hub.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"fleet-dash/internal/config"
	"fleet-dash/internal/contracts"
	"fleet-dash/internal/live-sync-service/adapters/driven/geo"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := mylogger.New(cfg.Log.Level, mylogger.FileSink{})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mobile := flag.String("mobile", "", "driver mobile number")
	password := flag.String("password", "", "driver password")
	interval := flag.Duration("interval", 2*time.Second, "time between position reports")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random walk seed")
	flag.Parse()

	if *mobile == "" || *password == "" {
		log.Fatal("-mobile and -password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger = appLogger.Action("driver_simulator")

	login, err := NewHTTPClient(cfg.App.RegistryURL(), cfg.App.HTTPTimeout()).Login(ctx, *mobile, *password)
	if err != nil {
		appLogger.Error("Login failed", err)
		return
	}
	appLogger = appLogger.With("driver_id", login.DriverID)
	appLogger.Info("Logged in")

	client := NewWebSocketClient(appLogger)
	if err := client.Connect(ctx, cfg.App.WebSocketURL(), login.JWT); err != nil {
		appLogger.Error("Failed to connect to hub", err)
		return
	}
	defer client.Close()

	go func() {
		if err := client.ReadMessages(ctx); err != nil {
			appLogger.Error("Read loop ended", err)
			stop()
		}
	}()

	source := geo.NewSimulated(cfg.Geo.SimLatitude, cfg.Geo.SimLongitude, *interval, *seed)
	watch, err := source.Watch(ctx, model.WatchOptions{HighAccuracy: true}, func(fix driven.Fix) {
		msg := contracts.UpdateLocationMessage{
			UserID:   login.DriverID,
			Location: contracts.GeoPoint{Lat: fix.Latitude, Lon: fix.Longitude},
		}
		if err := client.Send(contracts.EventUpdateLocation, msg); err != nil {
			appLogger.Error("Error sending location", err)
			return
		}
		appLogger.Debug("Sent location", "lat", fix.Latitude, "lon", fix.Longitude)
	}, func(error) {})
	if err != nil {
		appLogger.Error("Position source failed", err)
		return
	}
	defer watch.Stop()

	<-ctx.Done()
	appLogger.Info("Simulator stopped")
}
