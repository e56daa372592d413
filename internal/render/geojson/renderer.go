// Package geojson renders a tracked path and the current position as a
// GeoJSON FeatureCollection.
package geojson

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/render"
)

const (
	TrackFeature    = "track"
	PositionFeature = "position"
)

// Renderer is a render.PathRenderer building a FeatureCollection with a
// LineString "track" feature and a Point "position" feature.
type Renderer struct {
	name   string
	path   orb.LineString
	marker *orb.Point
	bbox   geojson.BBox
}

var _ render.PathRenderer = (*Renderer)(nil)

// NewRenderer creates a renderer; name is stored in the track properties.
func NewRenderer(name string) *Renderer {
	return &Renderer{name: name}
}

func (r *Renderer) SetPath(points []geo.Point) {
	r.path = make(orb.LineString, len(points))
	for i, p := range points {
		r.path[i] = toOrb(p)
	}
}

func (r *Renderer) SetMarkerPosition(p geo.Point) {
	pt := toOrb(p)
	r.marker = &pt
}

// FitView sets the collection bounding box to cover the path and the marker.
func (r *Renderer) FitView() {
	points := make(orb.MultiPoint, 0, len(r.path)+1)
	points = append(points, r.path...)
	if r.marker != nil {
		points = append(points, *r.marker)
	}

	if len(points) == 0 {
		r.bbox = nil
		return
	}
	r.bbox = geojson.NewBBox(points.Bound())
}

// FeatureCollection returns the current state as GeoJSON features. A path
// shorter than two points yields no track feature.
func (r *Renderer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = r.bbox

	if len(r.path) > 1 {
		f := geojson.NewFeature(r.path)
		f.ID = TrackFeature
		f.Properties["kind"] = TrackFeature
		f.Properties["points"] = len(r.path)
		if r.name != "" {
			f.Properties["name"] = r.name
		}
		fc.Append(f)
	}

	if r.marker != nil {
		f := geojson.NewFeature(*r.marker)
		f.ID = PositionFeature
		f.Properties["kind"] = PositionFeature
		fc.Append(f)
	}

	return fc
}

// MarshalJSON encodes the FeatureCollection.
func (r *Renderer) MarshalJSON() ([]byte, error) {
	return r.FeatureCollection().MarshalJSON()
}

// WriteTo writes the encoded FeatureCollection to w.
func (r *Renderer) WriteTo(w io.Writer) (int64, error) {
	p, err := r.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("encoding GeoJSON: %w", err)
	}

	n, err := w.Write(p)
	return int64(n), err
}

// GeoJSON positions are longitude first.
func toOrb(p geo.Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
