// Package gpxreplay replays a recorded GPX track as a location stream and
// exports a track history back to GPX.
package gpxreplay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/location"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
)

const Name = "gpx"

// WithLogger sets the logger for the replay
func WithLogger(logger *slog.Logger) func(r *Replay) {
	return func(r *Replay) {
		r.logger = logger.With(slog.String("provider", Name), slog.String("path", r.path))
	}
}

// WithPace sets the replay speed factor. 0 replays as fast as possible.
func WithPace(factor float64) func(r *Replay) {
	return func(r *Replay) {
		r.pace = factor
	}
}

// WithClock sets the clock used for pacing
func WithClock(clock timeutil.Clock) func(r *Replay) {
	return func(r *Replay) {
		r.clock = clock
	}
}

// Replay is a location.Provider reading fixes from a GPX file.
type Replay struct {
	path   string
	pace   float64
	clock  timeutil.Clock
	logger *slog.Logger
}

var _ location.Provider = (*Replay)(nil)

// New creates a Replay of the GPX file at path.
func New(path string, options ...func(r *Replay)) *Replay {
	r := Replay{
		path:   path,
		clock:  timeutil.RealClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

func (r *Replay) Name() string {
	return Name
}

// Available reports whether the GPX file exists.
func (r *Replay) Available() bool {
	stat, err := os.Stat(r.path)
	return err == nil && !stat.IsDir()
}

// Watch parses the file and streams its points in order.
func (r *Replay) Watch(ctx context.Context) (*location.Stream, error) {
	g, err := gpx.ParseFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("parsing GPX file: %w", err)
	}

	samples := Samples(g)
	if len(samples) == 0 {
		return nil, fmt.Errorf("GPX file %s contains no points", r.path)
	}

	r.logger.Info("replaying GPX track", slog.Int("points", len(samples)), slog.Float64("pace", r.pace))

	pacer := &location.Pacer{Clock: r.clock, Factor: r.pace}
	return location.NewStream(ctx, func(ctx context.Context, emit func(location.Fix) error) error {
		for _, s := range samples {
			if err := pacer.Wait(ctx, s.Timestamp); err != nil {
				return err
			}
			if err := emit(location.Fix{Sample: s}); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// Samples flattens the tracks of g into samples, falling back to routes when
// there are no track points. Points without a timestamp are placed one second
// after their predecessor.
func Samples(g *gpx.GPX) []geo.Sample {
	var points []gpx.GPXPoint
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}
	if len(points) == 0 {
		for _, route := range g.Routes {
			points = append(points, route.Points...)
		}
	}

	samples := make([]geo.Sample, 0, len(points))

	var last int64
	for i, p := range points {
		ts := last + time.Second.Milliseconds()
		if !p.Timestamp.IsZero() {
			ts = p.Timestamp.UnixMilli()
		} else if i == 0 {
			ts = firstTimestamp(points)
		}

		samples = append(samples, geo.Sample{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Timestamp: ts,
		})
		last = ts
	}

	return samples
}

// firstTimestamp back-fills the start of a track whose leading points carry no time.
func firstTimestamp(points []gpx.GPXPoint) int64 {
	for i, p := range points {
		if !p.Timestamp.IsZero() {
			return p.Timestamp.UnixMilli() - int64(i)*time.Second.Milliseconds()
		}
	}
	return 0
}
