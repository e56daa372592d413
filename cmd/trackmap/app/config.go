package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/speedtrack/internal/location/capture"
	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/location/nmea"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

type Config struct {
	Input         string
	InputType     string
	OutputFile    string // without extension
	Format        raster.ImageFormat
	Theme         raster.ColorTheme
	Width         int
	Height        int
	TimeZone      *time.Location
	StartTime     *time.Time
	EndTime       *time.Time
	Settings      tracker.Settings
	GeoJSON       bool
	GPX           bool
	NoAnnotations bool
	Verbose       bool
}

func NewConfig() *Config {
	return &Config{
		Format:   raster.ImagePNG,
		Theme:    raster.ClassicTheme,
		TimeZone: time.Local,
		Settings: tracker.DefaultSettings(),
	}
}

// NewConfigFromCLI parses the process command line.
func NewConfigFromCLI(args []string) (*Config, error) {
	fs := flag.NewFlagSet("trackmap", flag.ContinueOnError)
	return parseFlags(fs, args)
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, tz, from, to string
	fs.StringVar(&c.Input, "i", "", "Path to the recorded track (GPX, NMEA log or SQLite capture)")
	fs.StringVar(&c.InputType, "t", "", "Input type [gpx, nmea, capture]; guessed from the file extension when empty")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(raster.ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(raster.ClassicTheme), "Path color theme. [classic, grayscale, thermal, marine]")
	fs.IntVar(&c.Width, "w", 1024, "Image width in pixels")
	fs.IntVar(&c.Height, "h", 768, "Image height in pixels")
	fs.StringVar(&tz, "tz", "", "Time zone for the annotations, e.g. Europe/London (default local)")
	fs.StringVar(&from, "from", "", "Skip capture positions before this RFC 3339 time")
	fs.StringVar(&to, "to", "", "Skip capture positions after this RFC 3339 time")
	fs.IntVar(&c.Settings.SmoothingWindow, "window", tracker.DefaultSmoothingWindow, "Number of raw positions averaged into one")
	fs.Float64Var(&c.Settings.MinStep, "min-step", tracker.MinStepDistance, "Shortest step in meters counted as distance (exclusive)")
	fs.Float64Var(&c.Settings.MaxStep, "max-step", tracker.MaxStepDistance, "Longest step in meters counted as distance (exclusive)")
	fs.Float64Var(&c.Settings.MovingSpeed, "moving-speed", tracker.MovingSpeed, "Speed in m/s above which the subject is moving")
	fs.BoolVar(&c.GeoJSON, "geojson", false, "Also write a GeoJSON file next to the image")
	fs.BoolVar(&c.GPX, "gpx", false, "Also write the smoothed track as GPX next to the image")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable the summary bar")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	if c.InputType == "" {
		c.InputType = guessInputType(c.Input)
	}

	var err error
	switch {
	case c.Input == "":
		err = errors.New("input path is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.InputType != gpxreplay.Name && c.InputType != nmea.Name && c.InputType != capture.Name:
		err = fmt.Errorf("invalid input type: %s", c.InputType)
	case c.Width <= 0 || c.Height <= 0:
		err = fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	}
	if err == nil {
		c.Format, err = raster.ParseImageFormat(imageFormat)
	}
	if err == nil {
		c.Theme, err = raster.ParseColorTheme(theme)
	}
	if err == nil && tz != "" {
		c.TimeZone, err = time.LoadLocation(tz)
	}
	if err == nil {
		c.StartTime, err = parseTime(from)
	}
	if err == nil {
		c.EndTime, err = parseTime(to)
	}

	if err != nil {
		if fs.Output() != io.Discard {
			fs.Usage()
		}
		return nil, err
	}

	return c, nil
}

// ImagePath returns the output image file name.
func (c *Config) ImagePath() string {
	return fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
}

// GeoJSONPath returns the GeoJSON file name, or "" when disabled.
func (c *Config) GeoJSONPath() string {
	if !c.GeoJSON {
		return ""
	}
	return c.OutputFile + ".geojson"
}

// GPXPath returns the GPX file name, or "" when disabled.
func (c *Config) GPXPath() string {
	if !c.GPX {
		return ""
	}
	return c.OutputFile + ".gpx"
}

func guessInputType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		return gpxreplay.Name
	case ".nmea", ".log", ".txt":
		return nmea.Name
	case ".db", ".sqlite", ".sqlite3":
		return capture.Name
	}
	return ""
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return &t, nil
}
