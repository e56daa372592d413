// Package geo holds the position types and the distance and speed arithmetic
// shared by the tracker, the location providers and the renderers.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadius is the mean Earth radius in meters used by Haversine
	EarthRadius = 6371e3

	// KmhPerMps converts meters per second to kilometers per hour
	KmhPerMps = 3.6
)

// Sample is a single position fix. Timestamp is in epoch milliseconds.
type Sample struct {
	Latitude  float64 `json:"latitude"`  // Latitude in degrees
	Longitude float64 `json:"longitude"` // Longitude in degrees
	Timestamp int64   `json:"timestamp"` // Epoch milliseconds
}

// Point returns the coordinate pair of the sample.
func (s Sample) Point() Point {
	return Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Point is a coordinate pair without time information.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Haversine returns the great-circle distance in meters between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Distance returns the Haversine distance between two samples.
func Distance(a, b Sample) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// MpsToKmh converts a speed in m/s to km/h.
func MpsToKmh(mps float64) float64 {
	return mps * KmhPerMps
}

// FormatElapsed formats seconds as HH:MM:SS. Hours keep counting past 24.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Bounds returns the south-west and north-east corners of points.
// ok is false when points is empty.
func Bounds(points []Point) (sw, ne Point, ok bool) {
	if len(points) == 0 {
		return
	}

	sw, ne = points[0], points[0]
	for _, p := range points[1:] {
		sw.Latitude = math.Min(sw.Latitude, p.Latitude)
		sw.Longitude = math.Min(sw.Longitude, p.Longitude)
		ne.Latitude = math.Max(ne.Latitude, p.Latitude)
		ne.Longitude = math.Max(ne.Longitude, p.Longitude)
	}

	return sw, ne, true
}
