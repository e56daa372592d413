package tracker

import (
	"sync"
	"time"

	"github.com/roman-kulish/speedtrack/internal/geo"
)

const (
	// MinStepDistance is the smallest step in meters added to the total distance
	MinStepDistance = 0.2

	// MaxStepDistance is the largest step in meters added to the total distance;
	// anything longer is treated as a fix jump
	MaxStepDistance = 100.0

	// MovingSpeed is the speed in m/s above which the device is considered moving
	MovingSpeed = 0.05
)

// Settings tunes the session filters.
type Settings struct {
	SmoothingWindow int     // Raw fixes averaged into one position
	MinStep         float64 // Exclusive lower bound of an accrued step, meters
	MaxStep         float64 // Exclusive upper bound of an accrued step, meters
	MovingSpeed     float64 // Moving classification threshold, m/s
}

// DefaultSettings returns the settings tuned for slow and indoor movement.
func DefaultSettings() Settings {
	return Settings{
		SmoothingWindow: DefaultSmoothingWindow,
		MinStep:         MinStepDistance,
		MaxStep:         MaxStepDistance,
		MovingSpeed:     MovingSpeed,
	}
}

// Snapshot is a point-in-time copy of the session state for the presentation layer.
type Snapshot struct {
	SessionID       string       `json:"sessionID,omitempty"`
	StartTime       time.Time    `json:"startTime"`
	Position        *geo.Sample  `json:"position,omitempty"`
	SpeedMps        *float64     `json:"speedMps,omitempty"`
	SpeedKmh        *float64     `json:"speedKmh,omitempty"`
	AverageSpeedMps *float64     `json:"averageSpeedMps,omitempty"`
	AverageSpeedKmh *float64     `json:"averageSpeedKmh,omitempty"`
	TotalDistance   float64      `json:"totalDistance"`  // meters
	ElapsedSeconds  int64        `json:"elapsedSeconds"` // whole seconds since start
	IsTracking      bool         `json:"isTracking"`
	IsMoving        bool         `json:"isMoving"`
	Error           string       `json:"error,omitempty"`
	TrackPoints     []geo.Sample `json:"trackPoints"`
}

// Elapsed returns the elapsed time formatted as HH:MM:SS.
func (s Snapshot) Elapsed() string {
	return geo.FormatElapsed(s.ElapsedSeconds)
}

// Path returns the track history as coordinate pairs.
func (s Snapshot) Path() []geo.Point {
	path := make([]geo.Point, len(s.TrackPoints))
	for i, p := range s.TrackPoints {
		path[i] = p.Point()
	}
	return path
}

// Session is the accumulated state of one tracking session. Every handler runs
// to completion under the session lock, so a sample and a timer tick never
// interleave.
type Session struct {
	settings Settings

	mu        sync.RWMutex
	id        string
	tracking  bool
	startTime time.Time
	smoother  *Smoother

	position *geo.Sample
	speed    *float64
	average  *float64
	distance float64
	elapsed  int64
	moving   bool
	lastErr  string
	history  []geo.Sample
}

// NewSession creates an idle session. Zero fields of settings take their defaults.
func NewSession(settings Settings) *Session {
	def := DefaultSettings()
	if settings.SmoothingWindow <= 0 {
		settings.SmoothingWindow = def.SmoothingWindow
	}
	if settings.MinStep <= 0 {
		settings.MinStep = def.MinStep
	}
	if settings.MaxStep <= 0 {
		settings.MaxStep = def.MaxStep
	}
	if settings.MovingSpeed <= 0 {
		settings.MovingSpeed = def.MovingSpeed
	}

	return &Session{
		settings: settings,
		smoother: NewSmoother(settings.SmoothingWindow),
	}
}

// Settings returns the effective filter settings.
func (s *Session) Settings() Settings {
	return s.settings
}

// Begin resets every metric, the history and the smoothing window, records the
// start time and marks the session as tracking.
func (s *Session) Begin(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = id
	s.startTime = now
	s.smoother.Reset()
	s.position = nil
	s.speed = nil
	s.average = nil
	s.distance = 0
	s.elapsed = 0
	s.moving = false
	s.lastErr = ""
	s.history = nil
	s.tracking = true
}

// End marks the session as not tracking. History and metrics are kept.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = false
}

// IsTracking reports whether the session accepts samples.
func (s *Session) IsTracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}

// HandleSample processes one raw fix. nativeSpeed is the provider supplied
// speed in m/s, or nil. Samples received while not tracking are ignored and
// false is returned.
func (s *Session) HandleSample(raw geo.Sample, nativeSpeed *float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracking {
		return false
	}

	smoothed := s.smoother.Smooth(raw)
	s.position = &smoothed

	var prev *geo.Sample
	if n := len(s.history); n > 0 {
		prev = &s.history[n-1]
	}

	switch {
	case nativeSpeed != nil:
		s.setSpeed(*nativeSpeed)

	case prev != nil:
		dt := float64(raw.Timestamp-prev.Timestamp) / 1000
		if dt > 0 {
			s.setSpeed(geo.Distance(*prev, smoothed) / dt)
		}
	}

	// distance accrual is gated on the step size only, not on the moving state
	if prev != nil {
		d := geo.Distance(*prev, smoothed)
		if d > s.settings.MinStep && d < s.settings.MaxStep {
			s.distance += d
		}
	}

	s.history = append(s.history, smoothed)
	return true
}

// setSpeed stores the speed unclamped; anything above zero counts as moving.
func (s *Session) setSpeed(mps float64) {
	s.speed = &mps
	if mps > s.settings.MovingSpeed {
		s.moving = true
	} else {
		s.moving = mps > 0
	}
}

// HandleError records a stream delivery error. Tracking continues.
func (s *Session) HandleError(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracking || err == nil {
		return false
	}

	s.lastErr = NewStreamDeliveryError(err).Error()
	return true
}

// Fail records a message for an error that prevented tracking.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = displayMessage(err)
}

// Tick recomputes the elapsed time and the average speed against now.
func (s *Session) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracking {
		return false
	}

	elapsed := int64(now.Sub(s.startTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	s.elapsed = elapsed

	if elapsed > 0 {
		avg := s.distance / float64(elapsed)
		s.average = &avg
	}

	return true
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:      s.id,
		StartTime:      s.startTime,
		TotalDistance:  s.distance,
		ElapsedSeconds: s.elapsed,
		IsTracking:     s.tracking,
		IsMoving:       s.moving,
		Error:          s.lastErr,
		TrackPoints:    make([]geo.Sample, len(s.history)),
	}
	copy(snap.TrackPoints, s.history)

	if s.position != nil {
		p := *s.position
		snap.Position = &p
	}
	if s.speed != nil {
		mps, kmh := *s.speed, geo.MpsToKmh(*s.speed)
		snap.SpeedMps, snap.SpeedKmh = &mps, &kmh
	}
	if s.average != nil {
		mps, kmh := *s.average, geo.MpsToKmh(*s.average)
		snap.AverageSpeedMps, snap.AverageSpeedKmh = &mps, &kmh
	}

	return snap
}
