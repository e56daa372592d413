package gpxreplay

import (
	"fmt"
	"io"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/roman-kulish/speedtrack/internal/geo"
)

const creator = "speedtrack"

// Export writes history as a single-segment GPX 1.1 track.
func Export(w io.Writer, name string, history []geo.Sample) error {
	segment := gpx.GPXTrackSegment{
		Points: make([]gpx.GPXPoint, len(history)),
	}
	for i, s := range history {
		segment.Points[i] = gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
			},
			Timestamp: time.UnixMilli(s.Timestamp).UTC(),
		}
	}

	g := gpx.GPX{
		Creator: creator,
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Segments: []gpx.GPXTrackSegment{segment},
		}},
	}

	p, err := g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encoding GPX: %w", err)
	}

	if _, err = w.Write(p); err != nil {
		return fmt.Errorf("writing GPX: %w", err)
	}

	return nil
}
