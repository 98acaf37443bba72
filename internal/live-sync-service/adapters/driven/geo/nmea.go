package geo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/mylogger"

	nmea "github.com/adrianmo/go-nmea"
)

// maxHDOP is the worst horizontal dilution a GGA fix may have when high accuracy is requested.
const maxHDOP = 2.5

// NMEA reads RMC and GGA sentences from a GPS receiver device or a recorded log file.
type NMEA struct {
	path string
	// replay > 0 paces a recorded file and stamps fixes with the time they are replayed.
	replay time.Duration
	open   func(path string) (io.ReadCloser, error)
	now    func() time.Time
	log    mylogger.Logger
}

func NewNMEA(path string, replay time.Duration, log mylogger.Logger) *NMEA {
	return &NMEA{
		path:   path,
		replay: replay,
		open:   func(p string) (io.ReadCloser, error) { return os.Open(p) },
		now:    time.Now,
		log:    log.Action("nmea"),
	}
}

func (n *NMEA) Watch(ctx context.Context, opts model.WatchOptions, onFix func(driven.Fix), onErr func(error)) (driven.SourceWatch, error) {
	if n.path == "" {
		return nil, fmt.Errorf("%w: no nmea device configured", myerrors.ErrUnsupported)
	}
	r, err := n.open(n.path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %v", myerrors.ErrPermissionDenied, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", myerrors.ErrUnsupported, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &loopWatch{
		cancel: cancel,
		closer: func() { r.Close() },
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer r.Close()
		n.read(ctx, r, opts, onFix, onErr)
	}()
	return w, nil
}

func (n *NMEA) read(ctx context.Context, r io.Reader, opts model.WatchOptions, onFix func(driven.Fix), onErr func(error)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fix, ok, err := n.decode(line, opts.HighAccuracy)
		switch {
		case err != nil:
			onErr(err)
		case ok:
			onFix(fix)
		default:
			continue
		}

		if n.replay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.replay):
			}
		}
	}
	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		onErr(fmt.Errorf("%w: read nmea: %v", myerrors.ErrPositionUnavailable, err))
		return
	}
	onErr(fmt.Errorf("%w: nmea stream ended", myerrors.ErrPositionUnavailable))
}

// decode returns ok=false for sentences that carry no position or cannot be parsed.
func (n *NMEA) decode(line string, highAccuracy bool) (driven.Fix, bool, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		n.log.Debug("unparsable sentence skipped", "error", err)
		return driven.Fix{}, false, nil
	}

	switch m := s.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return driven.Fix{}, false, fmt.Errorf("%w: receiver reports void fix", myerrors.ErrPositionUnavailable)
		}
		return driven.Fix{Latitude: m.Latitude, Longitude: m.Longitude, CapturedAt: n.capturedAt(m.Date, m.Time)}, true, nil
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return driven.Fix{}, false, fmt.Errorf("%w: receiver has no fix", myerrors.ErrPositionUnavailable)
		}
		if highAccuracy && m.HDOP > maxHDOP {
			n.log.Debug("imprecise fix skipped", "hdop", m.HDOP)
			return driven.Fix{}, false, nil
		}
		// GGA has no date: only the receive time is known
		return driven.Fix{Latitude: m.Latitude, Longitude: m.Longitude, CapturedAt: n.now()}, true, nil
	default:
		return driven.Fix{}, false, nil
	}
}

func (n *NMEA) capturedAt(d nmea.Date, t nmea.Time) time.Time {
	if n.replay > 0 || !d.Valid || !t.Valid {
		return n.now()
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
