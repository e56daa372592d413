// Package location defines the contract between position sources and the
// tracker: a Provider is watched, and the resulting Stream delivers Fix values
// until it is closed or the source runs dry.
package location

import (
	"context"
	"errors"
	"sync"

	"github.com/roman-kulish/speedtrack/internal/geo"
)

// ErrStreamClosed is returned by Emit once the stream has been closed by the consumer.
var ErrStreamClosed = errors.New("location stream closed")

// Fix is a single delivery from a provider: either a position sample with an
// optional native speed, or an error reported instead of a sample.
type Fix struct {
	Sample geo.Sample
	Speed  *float64 // Native ground speed in m/s, nil when the source has none
	Err    error
}

// Provider is a source of position fixes.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Available reports whether the location capability is present.
	Available() bool

	// Watch subscribes to the continuous position stream. The returned Stream
	// must be closed by the caller.
	Watch(ctx context.Context) (*Stream, error)
}

// ProduceFunc generates fixes and hands each one to emit. It must return once
// ctx is cancelled or emit returns an error.
type ProduceFunc func(ctx context.Context, emit func(Fix) error) error

// Stream is a subscription handle. The producer runs in its own goroutine and
// delivers fixes in order on Fixes.
type Stream struct {
	fixes  chan Fix
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewStream starts produce in a goroutine and returns the handle for it.
func NewStream(ctx context.Context, produce ProduceFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		fixes:  make(chan Fix),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.fixes)

		emit := func(f Fix) error {
			select {
			case s.fixes <- f:
				return nil
			case <-ctx.Done():
				return ErrStreamClosed
			}
		}

		if err := produce(ctx, emit); err != nil && !errors.Is(err, ErrStreamClosed) && !errors.Is(err, context.Canceled) {
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
		}
	}()

	return s
}

// Fixes returns the delivery channel. It is closed when the producer exits.
func (s *Stream) Fixes() <-chan Fix {
	return s.fixes
}

// Done is closed once the producer has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the producer terminated with, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close unsubscribes and waits for the producer to exit. It is safe to call
// multiple times and from multiple goroutines.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
}
