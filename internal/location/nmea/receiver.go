// Package nmea reads position fixes from a GPS receiver attached to a serial
// port and speaking NMEA 0183.
package nmea

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/location"
)

const (
	Name = "nmea"

	// DefaultBaudRate is the usual rate of consumer GPS receivers
	DefaultBaudRate = 9600

	// ParseErrorsThreshold defines the number of consecutive parse errors reported as one delivery error
	ParseErrorsThreshold = 5

	// MpsPerKnot converts RMC ground speed to m/s
	MpsPerKnot = 0.514444
)

var (
	// ErrNoFix is delivered when the receiver reports a void RMC sentence
	ErrNoFix = errors.New("receiver has no position fix")

	// ErrTooManyParseErrors is delivered when the number of consecutive parse errors reaches the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrSkip marks sentences that carry no position
	ErrSkip = errors.New("sentence skipped")
)

// PortOpener opens the serial device. It is replaced in tests.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

// openSerial opens the port in blocking mode; closing it unblocks a pending read.
func openSerial(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// Config describes the serial connection.
type Config struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
}

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("provider", Name), slog.String("port", r.config.Port))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors.
// Zero keeps ParseErrorsThreshold.
func WithParseErrorsThreshold(threshold uint8) func(r *Receiver) {
	return func(r *Receiver) {
		if threshold > 0 {
			r.parseErrorsThreshold = threshold
		}
	}
}

// WithPortOpener replaces the function used to open the serial port
func WithPortOpener(open PortOpener) func(r *Receiver) {
	return func(r *Receiver) {
		r.open = open
	}
}

// Receiver is a location.Provider backed by a serial NMEA receiver.
type Receiver struct {
	config Config
	open   PortOpener
	ports  func() ([]string, error)

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

var _ location.Provider = (*Receiver)(nil)

// New creates a Receiver for the given port.
func New(config Config, options ...func(r *Receiver)) *Receiver {
	if config.BaudRate <= 0 {
		config.BaudRate = DefaultBaudRate
	}

	r := Receiver{
		config:               config,
		open:                 openSerial,
		ports:                serial.GetPortsList,
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

func (r *Receiver) Name() string {
	return Name
}

// Available reports whether the configured serial port exists.
func (r *Receiver) Available() bool {
	if r.config.Port == "" {
		return false
	}
	if ports, err := r.ports(); err == nil && slices.Contains(ports, r.config.Port) {
		return true
	}
	_, err := os.Stat(r.config.Port)
	return err == nil
}

// Watch opens the serial port and streams fixes until ctx is cancelled or the
// port is closed.
func (r *Receiver) Watch(ctx context.Context) (*location.Stream, error) {
	port, err := r.open(r.config.Port, &serial.Mode{
		BaudRate: r.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", r.config.Port, err)
	}

	r.logger.Info("serial port opened", slog.Int("baudRate", r.config.BaudRate))

	return location.NewStream(ctx, func(ctx context.Context, emit func(location.Fix) error) error {
		stop := context.AfterFunc(ctx, func() { _ = port.Close() })
		defer func() {
			if stop() {
				_ = port.Close()
			}
		}()

		return r.scan(ctx, port, emit)
	}), nil
}

// scan reads sentences line by line and emits fixes.
func (r *Receiver) scan(ctx context.Context, in io.Reader, emit func(location.Fix) error) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fix, err := Parse(line)
		switch {
		case errors.Is(err, ErrSkip):
			continue

		case err != nil:
			parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing sentence: %s", err.Error()), slog.String("line", line))

			if parseErrors >= r.parseErrorsThreshold {
				parseErrors = 0
				if err = emit(location.Fix{Err: ErrTooManyParseErrors}); err != nil {
					return err
				}
			}
			continue
		}

		parseErrors = 0 // reset counter
		if err = emit(fix); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("reading serial port: %w", err)
	}

	return nil
}

// Parse converts one NMEA sentence into a fix. RMC is the only sentence that
// carries both date and speed; every other valid sentence yields ErrSkip.
func Parse(line string) (location.Fix, error) {
	s, err := gonmea.Parse(line)
	if err != nil {
		return location.Fix{}, err
	}

	rmc, ok := s.(gonmea.RMC)
	if !ok {
		return location.Fix{}, ErrSkip
	}

	if rmc.Validity != gonmea.ValidRMC {
		return location.Fix{Err: ErrNoFix}, nil
	}

	ts, err := timestamp(rmc.Date, rmc.Time)
	if err != nil {
		return location.Fix{}, err
	}

	speed := rmc.Speed * MpsPerKnot

	return location.Fix{
		Sample: geo.Sample{
			Latitude:  rmc.Latitude,
			Longitude: rmc.Longitude,
			Timestamp: ts.UnixMilli(),
		},
		Speed: &speed,
	}, nil
}

func timestamp(d gonmea.Date, t gonmea.Time) (time.Time, error) {
	if !d.Valid || !t.Valid {
		return time.Time{}, fmt.Errorf("invalid RMC date or time")
	}

	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}

	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC), nil
}
