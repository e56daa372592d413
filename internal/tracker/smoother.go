package tracker

import "github.com/roman-kulish/speedtrack/internal/geo"

// DefaultSmoothingWindow is the number of raw fixes averaged into one reported position
const DefaultSmoothingWindow = 3

// Smoother reports the centroid of the most recent raw fixes. A short window
// removes most of the jitter of indoor fixes without lagging real movement.
type Smoother struct {
	window int
	buf    []geo.Sample
}

// NewSmoother creates a Smoother over the last window samples. Windows below 1
// fall back to DefaultSmoothingWindow.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = DefaultSmoothingWindow
	}
	return &Smoother{
		window: window,
		buf:    make([]geo.Sample, 0, window+1),
	}
}

// Smooth adds raw to the window and returns the mean latitude and longitude of
// the window, stamped with raw's timestamp. The first sample after a reset is
// returned unchanged.
func (s *Smoother) Smooth(raw geo.Sample) geo.Sample {
	s.buf = append(s.buf, raw)
	if len(s.buf) > s.window {
		s.buf = append(s.buf[:0], s.buf[1:]...)
	}

	if len(s.buf) <= 1 {
		return raw
	}

	var sumLat, sumLng float64
	for _, p := range s.buf {
		sumLat += p.Latitude
		sumLng += p.Longitude
	}
	n := float64(len(s.buf))

	return geo.Sample{
		Latitude:  sumLat / n,
		Longitude: sumLng / n,
		Timestamp: raw.Timestamp,
	}
}

// Len returns the number of buffered samples.
func (s *Smoother) Len() int {
	return len(s.buf)
}

// Reset empties the window.
func (s *Smoother) Reset() {
	s.buf = s.buf[:0]
}
