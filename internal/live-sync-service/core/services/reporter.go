package services

import (
	"context"
	"fmt"
	"time"

	"fleet-dash/internal/live-sync-service/core/ports/driver"
	"fleet-dash/internal/mylogger"
)

// Reporter periodically logs what the map and list views show: the local position and every
// driver that has one.
type Reporter struct {
	sync     driver.ILiveSync
	interval time.Duration
	log      mylogger.Logger
}

func NewReporter(sync driver.ILiveSync, interval time.Duration, log mylogger.Logger) *Reporter {
	return &Reporter{
		sync:     sync,
		interval: interval,
		log:      log.Action("report"),
	}
}

// Run reports every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

func (r *Reporter) Report() {
	if sample, ok := r.sync.LocalPosition(); ok {
		r.log.Info("current location",
			"lat", fmt.Sprintf("%.7f", sample.Coordinate.Latitude),
			"lon", fmt.Sprintf("%.7f", sample.Coordinate.Longitude),
		)
	}

	drivers := r.sync.Drivers()
	located := 0
	for _, d := range drivers {
		if d.Location == nil {
			continue
		}
		located++
		r.log.Info("driver location",
			"driver_id", d.ID,
			"driver_name", d.Name,
			"car_model", d.VehicleModel,
			"active", d.IsActive,
			"lat", fmt.Sprintf("%.4f", d.Location.Latitude),
			"lon", fmt.Sprintf("%.4f", d.Location.Longitude),
		)
	}
	r.log.Debug("directory", "drivers", len(drivers), "located", located)

	if msg := r.sync.LastError(); msg != "" {
		r.log.Warn("dashboard error", "message", msg)
	}
}
