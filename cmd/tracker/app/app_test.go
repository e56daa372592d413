package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/location/capture"
	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/location/nmea"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

var nilLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const walkGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <trkseg>
      <trkpt lat="48.85840" lon="2.29450"><time>2024-03-01T10:00:00Z</time></trkpt>
      <trkpt lat="48.85850" lon="2.29450"><time>2024-03-01T10:00:05Z</time></trkpt>
      <trkpt lat="48.85860" lon="2.29450"><time>2024-03-01T10:00:10Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestRun_Replay(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "walk.gpx")
	require.NoError(t, os.WriteFile(track, []byte(walkGPX), 0o644))

	config, err := ParseConfig([]byte(`
provider:
  type: gpx
  gpx:
    path: ` + track + `
dashboard:
  enabled: true
`))
	require.NoError(t, err)
	config.Output.GeoJSON = filepath.Join(dir, "out.geojson")
	config.Output.GPX = filepath.Join(dir, "out.gpx")

	var out bytes.Buffer
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, run(context.Background(), config, clock, &out, nilLogger))

	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, "[stopped] | 00:00:00 | "), line)
	assert.Contains(t, line, "3 points")
	assert.Contains(t, line, "48.8585, 2.2945")

	assert.FileExists(t, config.Output.GeoJSON)
	assert.FileExists(t, config.Output.GPX)

	exported, err := gpxreplay.New(config.Output.GPX).Watch(context.Background())
	require.NoError(t, err)
	defer exported.Close()

	var n int
	for range exported.Fixes() {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestRun_Unavailable(t *testing.T) {
	config, err := ParseConfig([]byte(`{provider: {type: gpx, gpx: {path: /nonexistent/walk.gpx}}}`))
	require.NoError(t, err)

	err = run(context.Background(), config, timeutil.NewMockClock(time.Now()), io.Discard, nilLogger)
	assert.ErrorIs(t, err, tracker.ErrUnsupportedPlatform)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "walk.gpx")
	require.NoError(t, os.WriteFile(track, []byte(walkGPX), 0o644))

	// real-time pacing keeps the stream open until the context is cancelled
	config, err := ParseConfig([]byte(`{provider: {type: gpx, gpx: {path: ` + track + `, pace: 1}}}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := timeutil.NewMockClock(time.Now())
	require.NoError(t, run(ctx, config, clock, io.Discard, nilLogger))
}

func TestNewProvider(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())

	p, err := NewProvider(&ProviderConfig{Type: ProviderNMEA, NMEA: NMEAConfig{Config: nmea.Config{Port: "/dev/null"}}}, clock, nilLogger)
	require.NoError(t, err)
	assert.Equal(t, nmea.Name, p.Name())

	p, err = NewProvider(&ProviderConfig{Type: ProviderGPX, GPX: ReplayConfig{Path: "a.gpx"}}, clock, nilLogger)
	require.NoError(t, err)
	assert.Equal(t, gpxreplay.Name, p.Name())

	start := time.Now()
	p, err = NewProvider(&ProviderConfig{Type: ProviderCapture, Capture: CaptureConfig{
		ReplayConfig: ReplayConfig{Path: "a.db"},
		StartTime:    &start,
	}}, clock, nilLogger)
	require.NoError(t, err)
	assert.Equal(t, capture.Name, p.Name())

	_, err = NewProvider(&ProviderConfig{Type: "bluetooth"}, clock, nilLogger)
	assert.Error(t, err)
}

func TestFormatSnapshot(t *testing.T) {
	speed, speedKmh := 1.5, 5.4
	avg, avgKmh := 1.25, 4.5
	pos := geo.Sample{Latitude: 51.50736, Longitude: -0.12776}

	line := FormatSnapshot(tracker.Snapshot{
		IsTracking:      true,
		IsMoving:        true,
		ElapsedSeconds:  3661,
		TotalDistance:   1250.25,
		SpeedMps:        &speed,
		SpeedKmh:        &speedKmh,
		AverageSpeedMps: &avg,
		AverageSpeedKmh: &avgKmh,
		Position:        &pos,
		TrackPoints:     make([]geo.Sample, 1500),
		Error:           "Error accessing location: receiver has no position fix",
	})

	assert.Equal(t, "[moving] | 01:01:01 | 1,250.25 m (1.25 km) | speed 1.50 m/s (5.40 km/h) | "+
		"avg 1.25 m/s (4.50 km/h) | 51.5074, -0.1278 | 1,500 points | "+
		"error: Error accessing location: receiver has no position fix", line)

	assert.Equal(t, "[stopped] | 00:00:00 | 0 m (0.00 km) | speed -- m/s (-- km/h) | avg -- m/s (-- km/h) | no position | 0 points",
		FormatSnapshot(tracker.Snapshot{}))
}
