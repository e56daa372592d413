package export

import (
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

var nilLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func snapshot() tracker.Snapshot {
	pos := geo.Sample{Latitude: 52.5200, Longitude: 13.4050, Timestamp: 1_700_000_002_000}
	return tracker.Snapshot{
		StartTime:      time.UnixMilli(1_700_000_000_000).UTC(),
		Position:       &pos,
		TotalDistance:  25.5,
		ElapsedSeconds: 2,
		TrackPoints: []geo.Sample{
			{Latitude: 52.5198, Longitude: 13.4048, Timestamp: 1_700_000_000_000},
			{Latitude: 52.5199, Longitude: 13.4049, Timestamp: 1_700_000_001_000},
			pos,
		},
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	options := Options{
		Name:        "city loop",
		ImagePath:   filepath.Join(dir, "track.png"),
		ImageFormat: raster.ImagePNG,
		Raster:      raster.Config{Width: 200, Height: 160, Location: time.UTC},
		GeoJSONPath: filepath.Join(dir, "track.geojson"),
		GPXPath:     filepath.Join(dir, "track.gpx"),
	}

	require.NoError(t, Write(snapshot(), options, nilLogger))

	f, err := os.Open(options.ImagePath)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 160, cfg.Height)

	p, err := os.ReadFile(options.GeoJSONPath)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(p)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	g, err := gpx.ParseFile(options.GPXPath)
	require.NoError(t, err)
	require.Len(t, g.Tracks, 1)
	assert.Equal(t, "city loop", g.Tracks[0].Name)
	assert.Len(t, g.Tracks[0].Segments[0].Points, 3)
}

func TestWrite_Skipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(snapshot(), Options{}, nilLogger))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWrite_JoinsErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	err := Write(snapshot(), Options{
		ImagePath: filepath.Join(missing, "track.png"),
		GPXPath:   filepath.Join(missing, "track.gpx"),
	}, nilLogger)

	require.Error(t, err)
	assert.ErrorContains(t, err, "writing image")
	assert.ErrorContains(t, err, "writing GPX")
	assert.NotContains(t, err.Error(), "GeoJSON")
}
