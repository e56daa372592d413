package geojson

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/render"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

func TestRenderer_Draw(t *testing.T) {
	pos := geo.Sample{Latitude: -33.86, Longitude: 151.22, Timestamp: 2000}
	snap := tracker.Snapshot{
		Position: &pos,
		TrackPoints: []geo.Sample{
			{Latitude: -33.87, Longitude: 151.20, Timestamp: 1000},
			pos,
		},
	}

	r := NewRenderer("harbour walk")
	render.Draw(r, snap)

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	track := fc.Features[0]
	assert.Equal(t, "LineString", track.Geometry.GeoJSONType())
	assert.Equal(t, orb.LineString{{151.20, -33.87}, {151.22, -33.86}}, track.Geometry.(orb.LineString))
	assert.Equal(t, "harbour walk", track.Properties.MustString("name"))
	assert.Equal(t, TrackFeature, track.Properties.MustString("kind"))

	position := fc.Features[1]
	assert.Equal(t, orb.Point{151.22, -33.86}, position.Geometry.(orb.Point))
	assert.Equal(t, PositionFeature, position.Properties.MustString("kind"))

	assert.Equal(t, orb.Bound{Min: orb.Point{151.20, -33.87}, Max: orb.Point{151.22, -33.86}}, fc.BBox.Bound())
}

func TestRenderer_SinglePoint(t *testing.T) {
	pos := geo.Sample{Latitude: 1, Longitude: 2}

	r := NewRenderer("")
	render.Draw(r, tracker.Snapshot{Position: &pos, TrackPoints: []geo.Sample{pos}})

	fc := r.FeatureCollection()
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Point", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, orb.Bound{Min: orb.Point{2, 1}, Max: orb.Point{2, 1}}, fc.BBox.Bound())
}

func TestRenderer_Empty(t *testing.T) {
	r := NewRenderer("")
	r.FitView()

	fc := r.FeatureCollection()
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)

	p, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(p), `"FeatureCollection"`)
}
