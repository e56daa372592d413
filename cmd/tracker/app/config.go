package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/speedtrack/internal/location/capture"
	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/location/nmea"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

const (
	ProviderNMEA    ProviderType = nmea.Name
	ProviderGPX     ProviderType = gpxreplay.Name
	ProviderCapture ProviderType = capture.Name

	defaultDashboardInterval = time.Second
)

type ProviderType string

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Provider  ProviderConfig  `yaml:"provider"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Output    OutputConfig    `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses LogLevel; an empty value is INFO.
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level: %s", s.LogLevel)
	}
	return level, nil
}

// ProviderConfig selects the location source
type ProviderConfig struct {
	Type    ProviderType  `yaml:"type"`
	NMEA    NMEAConfig    `yaml:"nmea"`
	GPX     ReplayConfig  `yaml:"gpx"`
	Capture CaptureConfig `yaml:"capture"`
}

// NMEAConfig represents a serial GPS receiver
type NMEAConfig struct {
	nmea.Config          `yaml:",inline"`
	ParseErrorsThreshold uint8 `yaml:"parseErrorsThreshold"`
}

// ReplayConfig represents a recorded track replayed as a live stream
type ReplayConfig struct {
	Path string  `yaml:"path"`
	Pace float64 `yaml:"pace"` // 0 replays as fast as possible, 1 in real time
}

// CaptureConfig represents a SQLite position capture
type CaptureConfig struct {
	ReplayConfig `yaml:",inline"`
	StartTime    *time.Time `yaml:"startTime"`
	EndTime      *time.Time `yaml:"endTime"`
}

// TrackingConfig represents session thresholds; zero values take defaults
type TrackingConfig struct {
	SmoothingWindow int      `yaml:"smoothingWindow"`
	MinStepDistance float64  `yaml:"minStepDistance"`
	MaxStepDistance float64  `yaml:"maxStepDistance"`
	MovingSpeed     float64  `yaml:"movingSpeed"`
	TickInterval    Duration `yaml:"tickInterval"`
}

// Settings converts the configuration into tracker settings.
func (c TrackingConfig) Settings() tracker.Settings {
	return tracker.Settings{
		SmoothingWindow: c.SmoothingWindow,
		MinStep:         c.MinStepDistance,
		MaxStep:         c.MaxStepDistance,
		MovingSpeed:     c.MovingSpeed,
	}
}

// DashboardConfig represents the terminal dashboard
type DashboardConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// OutputConfig represents artefacts written when tracking stops
type OutputConfig struct {
	Name        string `yaml:"name"`
	Image       string `yaml:"image"`
	ImageFormat string `yaml:"imageFormat"`
	ImageWidth  int    `yaml:"imageWidth"`
	ImageHeight int    `yaml:"imageHeight"`
	ColorTheme  string `yaml:"colorTheme"`
	GeoJSON     string `yaml:"geojson"`
	GPX         string `yaml:"gpx"`
}

// LoadConfig reads, defaults and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	return ParseConfig(p)
}

// ParseConfig decodes a YAML document. Unknown fields are rejected.
func ParseConfig(p []byte) (*Config, error) {
	var config Config

	dec := yaml.NewDecoder(bytes.NewReader(p))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Tracking.TickInterval == 0 {
		c.Tracking.TickInterval = Duration(tracker.DefaultTickInterval)
	}
	if c.Dashboard.Interval == 0 {
		c.Dashboard.Interval = Duration(defaultDashboardInterval)
	}
	if c.Provider.NMEA.BaudRate == 0 {
		c.Provider.NMEA.BaudRate = nmea.DefaultBaudRate
	}
	if c.Provider.NMEA.ParseErrorsThreshold == 0 {
		c.Provider.NMEA.ParseErrorsThreshold = nmea.ParseErrorsThreshold
	}
	if c.Output.ImageFormat == "" {
		c.Output.ImageFormat = string(raster.ImagePNG)
	}
	if c.Output.Name == "" {
		c.Output.Name = "speedtrack"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	switch c.Provider.Type {
	case ProviderNMEA:
		if c.Provider.NMEA.Port == "" {
			return errors.New("provider.nmea.port is required")
		}
		if c.Provider.NMEA.BaudRate < 0 {
			return fmt.Errorf("provider.nmea.baudRate must be positive: %d", c.Provider.NMEA.BaudRate)
		}

	case ProviderGPX:
		if err := c.Provider.GPX.validate("provider.gpx"); err != nil {
			return err
		}

	case ProviderCapture:
		if err := c.Provider.Capture.validate("provider.capture"); err != nil {
			return err
		}
		start, end := c.Provider.Capture.StartTime, c.Provider.Capture.EndTime
		if start != nil && end != nil && end.Before(*start) {
			return errors.New("provider.capture.endTime is before startTime")
		}

	case "":
		return errors.New("provider.type is required")

	default:
		return fmt.Errorf("unknown provider type: %s", c.Provider.Type)
	}

	t := c.Tracking
	switch {
	case t.SmoothingWindow < 0:
		return fmt.Errorf("tracking.smoothingWindow must not be negative: %d", t.SmoothingWindow)
	case t.MinStepDistance < 0, t.MaxStepDistance < 0, t.MovingSpeed < 0:
		return errors.New("tracking thresholds must not be negative")
	case t.MaxStepDistance > 0 && t.MinStepDistance >= t.MaxStepDistance:
		return fmt.Errorf("tracking.minStepDistance must be less than maxStepDistance: %g >= %g", t.MinStepDistance, t.MaxStepDistance)
	}
	if err := t.TickInterval.Validate(); err != nil {
		return fmt.Errorf("tracking.tickInterval: %w", err)
	}
	if err := c.Dashboard.Interval.Validate(); err != nil {
		return fmt.Errorf("dashboard.interval: %w", err)
	}

	if _, err := raster.ParseImageFormat(c.Output.ImageFormat); err != nil {
		return fmt.Errorf("output.imageFormat: %w", err)
	}
	if _, err := raster.ParseColorTheme(c.Output.ColorTheme); err != nil {
		return fmt.Errorf("output.colorTheme: %w", err)
	}
	if c.Output.ImageWidth < 0 || c.Output.ImageHeight < 0 {
		return errors.New("output image size must not be negative")
	}

	return nil
}

func (c ReplayConfig) validate(prefix string) error {
	if c.Path == "" {
		return fmt.Errorf("%s.path is required", prefix)
	}
	if c.Pace < 0 {
		return fmt.Errorf("%s.pace must not be negative: %g", prefix, c.Pace)
	}
	return nil
}

// Duration is a time.Duration decoded from strings such as "1s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) Validate() error {
	if d < 0 {
		return fmt.Errorf("app.Duration: must not be negative: %s", d)
	}
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
