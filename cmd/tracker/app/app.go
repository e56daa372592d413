package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/speedtrack/internal/export"
	"github.com/roman-kulish/speedtrack/internal/location"
	"github.com/roman-kulish/speedtrack/internal/location/capture"
	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/location/nmea"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

// Run tracks until ctx is cancelled or the location stream ends, then writes
// the configured output artefacts.
func Run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) error {
	return run(ctx, config, timeutil.RealClock{}, out, logger)
}

func run(ctx context.Context, config *Config, clock timeutil.Clock, out io.Writer, logger *slog.Logger) error {
	provider, err := NewProvider(&config.Provider, clock, logger)
	if err != nil {
		return fmt.Errorf("creating location provider: %w", err)
	}

	t := tracker.New(provider,
		tracker.WithLogger(logger),
		tracker.WithClock(clock),
		tracker.WithSettings(config.Tracking.Settings()),
		tracker.WithTickInterval(time.Duration(config.Tracking.TickInterval)),
	)
	defer t.Dispose()

	if err = t.Start(ctx); err != nil {
		return err
	}

	dashboard := NewDashboard(out)

	var wg sync.WaitGroup
	dashCtx, stopDashboard := context.WithCancel(ctx)
	if config.Dashboard.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dashboard.Run(dashCtx, clock, time.Duration(config.Dashboard.Interval), t.Snapshot)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")

	case <-t.StreamClosed():
		logger.Info("location stream ended")
	}

	stopDashboard()
	wg.Wait()

	t.Stop()

	snap := t.Snapshot()
	if config.Dashboard.Enabled {
		_ = dashboard.Print(snap)
	}

	logger.Info("tracking stopped",
		slog.Group("session",
			slog.String("id", snap.SessionID),
			slog.String("elapsed", snap.Elapsed()),
			slog.Float64("distance", snap.TotalDistance),
			slog.Int("points", len(snap.TrackPoints)),
		))

	return export.Write(snap, exportOptions(&config.Output), logger)
}

// NewProvider builds the location provider selected by config.
func NewProvider(config *ProviderConfig, clock timeutil.Clock, logger *slog.Logger) (location.Provider, error) {
	switch config.Type {
	case ProviderNMEA:
		return nmea.New(config.NMEA.Config,
			nmea.WithLogger(logger),
			nmea.WithParseErrorsThreshold(config.NMEA.ParseErrorsThreshold),
		), nil

	case ProviderGPX:
		return gpxreplay.New(config.GPX.Path,
			gpxreplay.WithLogger(logger),
			gpxreplay.WithPace(config.GPX.Pace),
			gpxreplay.WithClock(clock),
		), nil

	case ProviderCapture:
		options := []func(*capture.Replay){
			capture.WithLogger(logger),
			capture.WithPace(config.Capture.Pace),
			capture.WithClock(clock),
		}
		if config.Capture.StartTime != nil {
			options = append(options, capture.WithStartTime(*config.Capture.StartTime))
		}
		if config.Capture.EndTime != nil {
			options = append(options, capture.WithEndTime(*config.Capture.EndTime))
		}
		return capture.New(config.Capture.Path, options...), nil
	}

	return nil, fmt.Errorf("unknown provider type: %s", config.Type)
}

func exportOptions(config *OutputConfig) export.Options {
	return export.Options{
		Name:        config.Name,
		ImagePath:   config.Image,
		ImageFormat: raster.ImageFormat(config.ImageFormat),
		Raster: raster.Config{
			Width:      config.ImageWidth,
			Height:     config.ImageHeight,
			ColorTheme: raster.ColorTheme(config.ColorTheme),
		},
		GeoJSONPath: config.GeoJSON,
		GPXPath:     config.GPX,
	}
}
