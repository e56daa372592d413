package nmea

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/roman-kulish/speedtrack/internal/location"
)

const (
	rmcValid = "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70"
	rmcVoid  = "$GPRMC,220517,V,5133.82,N,00042.24,W,0.0,0.0,130694,004.2,W*63"
	gga      = "$GPGGA,172814.0,3723.46587704,N,12202.26957864,W,2,6,1.2,18.893,M,-25.669,M,2.0,0031*4F"
)

func TestParse_RMC(t *testing.T) {
	fix, err := Parse(rmcValid)
	require.NoError(t, err)
	require.NoError(t, fix.Err)

	assert.InDelta(t, 51.5636666, fix.Sample.Latitude, 1e-6)
	assert.InDelta(t, -0.704, fix.Sample.Longitude, 1e-6)

	want := time.Date(1994, 6, 13, 22, 5, 16, 0, time.UTC)
	assert.Equal(t, want.UnixMilli(), fix.Sample.Timestamp)

	require.NotNil(t, fix.Speed)
	assert.InDelta(t, 173.8*MpsPerKnot, *fix.Speed, 1e-9)
}

func TestParse_VoidAndSkipped(t *testing.T) {
	fix, err := Parse(rmcVoid)
	require.NoError(t, err)
	assert.ErrorIs(t, fix.Err, ErrNoFix)

	_, err = Parse(gga)
	assert.ErrorIs(t, err, ErrSkip)

	_, err = Parse("$GPRMC,garbage*00")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkip)
}

type nopCloser struct {
	io.Reader
	closed chan struct{}
}

func (c *nopCloser) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestReceiver_Watch(t *testing.T) {
	input := strings.Join([]string{
		gga,
		rmcValid,
		"",
		"not nmea",
		"still not nmea",
		rmcVoid,
	}, "\r\n")

	var gotPath string
	var gotMode *serial.Mode
	port := &nopCloser{Reader: strings.NewReader(input), closed: make(chan struct{})}

	r := New(Config{Port: "/dev/ttyGPS0"},
		WithParseErrorsThreshold(2),
		WithPortOpener(func(path string, mode *serial.Mode) (io.ReadCloser, error) {
			gotPath, gotMode = path, mode
			return port, nil
		}))

	stream, err := r.Watch(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var fixes []location.Fix
	for f := range stream.Fixes() {
		fixes = append(fixes, f)
	}

	assert.Equal(t, "/dev/ttyGPS0", gotPath)
	assert.Equal(t, DefaultBaudRate, gotMode.BaudRate)

	require.Len(t, fixes, 3)
	assert.NoError(t, fixes[0].Err)
	assert.ErrorIs(t, fixes[1].Err, ErrTooManyParseErrors)
	assert.ErrorIs(t, fixes[2].Err, ErrNoFix)
	assert.NoError(t, stream.Err())

	select {
	case <-port.closed:
	case <-time.After(time.Second):
		t.Fatal("port not closed")
	}
}

func TestWithParseErrorsThreshold(t *testing.T) {
	assert.Equal(t, uint8(ParseErrorsThreshold), New(Config{}, WithParseErrorsThreshold(0)).parseErrorsThreshold)
	assert.Equal(t, uint8(3), New(Config{}, WithParseErrorsThreshold(3)).parseErrorsThreshold)
}

func TestReceiver_WatchOpenError(t *testing.T) {
	r := New(Config{Port: "/dev/ttyGPS0"},
		WithPortOpener(func(string, *serial.Mode) (io.ReadCloser, error) {
			return nil, errors.New("busy")
		}))

	_, err := r.Watch(context.Background())
	assert.ErrorContains(t, err, "busy")
}

func TestReceiver_Available(t *testing.T) {
	assert.False(t, New(Config{}).Available())

	r := New(Config{Port: "/dev/ttyGPS0"})
	r.ports = func() ([]string, error) { return []string{"/dev/ttyGPS0"}, nil }
	assert.True(t, r.Available())

	r = New(Config{Port: t.TempDir() + "/missing"})
	r.ports = func() ([]string, error) { return nil, nil }
	assert.False(t, r.Available())
}
