// Package render defines the map widget contract used to display a tracked
// path and the current position.
package render

import (
	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

// PathRenderer draws a path with a position marker. Implementations are
// read-only consumers of session state.
type PathRenderer interface {
	// SetPath replaces the drawn path.
	SetPath(points []geo.Point)

	// SetMarkerPosition moves the current position marker.
	SetMarkerPosition(p geo.Point)

	// FitView adjusts the visible area to contain the path and the marker.
	FitView()
}

// Draw feeds a session snapshot into r: the track history becomes the path,
// the current position (if any) the marker, then the view is fitted.
func Draw(r PathRenderer, snap tracker.Snapshot) {
	r.SetPath(snap.Path())
	if snap.Position != nil {
		r.SetMarkerPosition(snap.Position.Point())
	}
	r.FitView()
}
