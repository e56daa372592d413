package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	"github.com/roman-kulish/speedtrack/internal/export"
	"github.com/roman-kulish/speedtrack/internal/location"
	"github.com/roman-kulish/speedtrack/internal/location/capture"
	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/location/nmea"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

// ErrNoPositions is returned when the input holds no usable position.
var ErrNoPositions = errors.New("input contains no positions")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.Input); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("input file '%s' does not exist: %w", config.Input, err)
	}

	provider := newProvider(config, logger)

	logger.Info("replaying track",
		slog.String("input", config.Input),
		slog.String("type", config.InputType))

	snap, err := Replay(ctx, provider, config.Settings, logger)
	if err != nil {
		return err
	}

	logger.Info("finished replaying track",
		slog.Group("stats",
			slog.String("start", snap.StartTime.In(config.TimeZone).Format(time.DateTime)),
			slog.String("elapsed", snap.Elapsed()),
			slog.String("distance", raster.FormatDistance(snap.TotalDistance)),
			slog.String("avgSpeed", raster.FormatSpeed(snap.AverageSpeedKmh)),
			slog.Int("points", len(snap.TrackPoints)),
		))

	if snap.Error != "" {
		logger.Warn("track contains delivery errors", slog.String("last", snap.Error))
	}

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.ImagePath()),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	return export.Write(snap, export.Options{
		Name:        snap.SessionID,
		ImagePath:   config.ImagePath(),
		ImageFormat: config.Format,
		Raster: raster.Config{
			Width:        config.Width,
			Height:       config.Height,
			Location:     config.TimeZone,
			ColorTheme:   config.Theme,
			NoAnnotation: config.NoAnnotations,
		},
		GeoJSONPath: config.GeoJSONPath(),
		GPXPath:     config.GPXPath(),
	}, logger)
}

// Replay consumes the whole provider stream through a session driven by the
// sample timeline: the session starts at the first position and the timer
// advances to each sample's timestamp. Delivery errors ahead of the first
// position are recorded once the session has started.
func Replay(ctx context.Context, provider location.Provider, settings tracker.Settings, logger *slog.Logger) (tracker.Snapshot, error) {
	stream, err := provider.Watch(ctx)
	if err != nil {
		return tracker.Snapshot{}, tracker.NewStartError(err)
	}
	defer stream.Close()

	session := tracker.NewSession(settings)
	handleError := func(err error) {
		if session.HandleError(err) {
			logger.Debug(tracker.NewStreamDeliveryError(err).Error())
		}
	}

	var pending error // delivery error seen before the first position
	for fix := range stream.Fixes() {
		if fix.Err != nil {
			if !session.IsTracking() {
				pending = fix.Err
				continue
			}
			handleError(fix.Err)
			continue
		}

		at := time.UnixMilli(fix.Sample.Timestamp)
		if !session.IsTracking() {
			session.Begin(uuid.NewString(), at)
			if pending != nil {
				handleError(pending)
				pending = nil
			}
		}

		session.HandleSample(fix.Sample, fix.Speed)
		session.Tick(at)
	}
	session.End()

	if err = stream.Err(); err != nil {
		return tracker.Snapshot{}, fmt.Errorf("reading %s: %w", provider.Name(), err)
	}
	if err = ctx.Err(); err != nil {
		return tracker.Snapshot{}, err
	}

	snap := session.Snapshot()
	if len(snap.TrackPoints) == 0 {
		return tracker.Snapshot{}, ErrNoPositions
	}

	return snap, nil
}

func newProvider(config *Config, logger *slog.Logger) location.Provider {
	switch config.InputType {
	case nmea.Name:
		return nmea.New(nmea.Config{Port: config.Input},
			nmea.WithLogger(logger),
			nmea.WithPortOpener(openLog),
		)

	case capture.Name:
		options := []func(*capture.Replay){capture.WithLogger(logger)}
		if config.StartTime != nil {
			options = append(options, capture.WithStartTime(*config.StartTime))
		}
		if config.EndTime != nil {
			options = append(options, capture.WithEndTime(*config.EndTime))
		}
		return capture.New(config.Input, options...)
	}

	return gpxreplay.New(config.Input, gpxreplay.WithLogger(logger))
}

// openLog reads a recorded NMEA log in place of a serial port.
func openLog(path string, _ *serial.Mode) (io.ReadCloser, error) {
	return os.Open(path)
}
