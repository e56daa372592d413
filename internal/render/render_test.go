package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

type recorder struct {
	calls  []string
	path   []geo.Point
	marker *geo.Point
}

func (r *recorder) SetPath(points []geo.Point) {
	r.calls = append(r.calls, "path")
	r.path = points
}

func (r *recorder) SetMarkerPosition(p geo.Point) {
	r.calls = append(r.calls, "marker")
	r.marker = &p
}

func (r *recorder) FitView() {
	r.calls = append(r.calls, "fit")
}

func TestDraw(t *testing.T) {
	pos := geo.Sample{Latitude: 2, Longitude: 3, Timestamp: 2000}
	snap := tracker.Snapshot{
		Position: &pos,
		TrackPoints: []geo.Sample{
			{Latitude: 1, Longitude: 2, Timestamp: 1000},
			pos,
		},
	}

	r := &recorder{}
	Draw(r, snap)

	assert.Equal(t, []string{"path", "marker", "fit"}, r.calls)
	assert.Equal(t, []geo.Point{{Latitude: 1, Longitude: 2}, {Latitude: 2, Longitude: 3}}, r.path)
	assert.Equal(t, &geo.Point{Latitude: 2, Longitude: 3}, r.marker)
}

func TestDraw_NoPosition(t *testing.T) {
	r := &recorder{}
	Draw(r, tracker.Snapshot{})

	assert.Equal(t, []string{"path", "fit"}, r.calls)
	assert.Empty(t, r.path)
	assert.Nil(t, r.marker)
}
