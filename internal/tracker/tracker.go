// Package tracker turns a stream of noisy position fixes into a tracking
// session: smoothed position, current and average speed, filtered distance,
// elapsed time and the path travelled.
package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/speedtrack/internal/location"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
)

// DefaultTickInterval is the period of the session timer
const DefaultTickInterval = time.Second

// WithLogger sets the logger for the tracker
func WithLogger(logger *slog.Logger) func(t *Tracker) {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock sets the clock used for the start time and the session timer
func WithClock(clock timeutil.Clock) func(t *Tracker) {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// WithSettings sets the session filter settings
func WithSettings(settings Settings) func(t *Tracker) {
	return func(t *Tracker) {
		t.session = NewSession(settings)
	}
}

// WithTickInterval sets the session timer period
func WithTickInterval(d time.Duration) func(t *Tracker) {
	return func(t *Tracker) {
		if d > 0 {
			t.tickInterval = d
		}
	}
}

// WithOnUpdate registers a callback invoked from the event loop after every
// sample, error or tick that changed the session. The loop is blocked while fn
// runs, so fn must not call Start, Stop, Dispose or StreamClosed synchronously.
func WithOnUpdate(fn func(Snapshot)) func(t *Tracker) {
	return func(t *Tracker) {
		t.onUpdate = fn
	}
}

// Tracker owns a Session and feeds it from a location provider and a timer.
// Sample processing and timer ticks run on a single event loop goroutine.
type Tracker struct {
	provider location.Provider
	session  *Session
	clock    timeutil.Clock
	logger   *slog.Logger
	onUpdate func(Snapshot)

	tickInterval time.Duration

	mu         sync.Mutex // serialises Start, Stop and Dispose
	stream     *location.Stream
	ticker     timeutil.Ticker
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	streamDone chan struct{}
	generation atomic.Uint64
}

// New creates an idle Tracker for provider. A nil provider is allowed; Start
// then reports ErrUnsupportedPlatform.
func New(provider location.Provider, options ...func(t *Tracker)) *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	t := Tracker{
		provider:     provider,
		session:      NewSession(DefaultSettings()),
		clock:        timeutil.RealClock{},
		logger:       logger,
		tickInterval: DefaultTickInterval,
		streamDone:   make(chan struct{}),
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Start begins a new session: metrics and history are reset and the tracker
// subscribes to the location stream. A running session is stopped first.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.provider == nil || !t.provider.Available() {
		t.session.Fail(ErrUnsupportedPlatform)
		t.logger.Error("location capability unavailable")
		return ErrUnsupportedPlatform
	}

	t.stopLocked()

	id := uuid.NewString()
	t.session.Begin(id, t.clock.Now())

	logger := t.logger.With(slog.String("provider", t.provider.Name()), slog.String("session", id))

	ctx, cancel := context.WithCancel(ctx)
	stream, err := t.provider.Watch(ctx)
	if err != nil {
		cancel()
		t.session.End()

		startErr := NewStartError(err)
		t.session.Fail(startErr)
		logger.Error(startErr.Error())
		return startErr
	}

	gen := t.generation.Add(1)
	t.stream = stream
	t.cancel = cancel
	t.ticker = t.clock.NewTicker(t.tickInterval)
	t.streamDone = make(chan struct{})

	t.wg.Add(1)
	go t.loop(ctx, gen, stream, t.ticker, t.streamDone, logger)

	logger.Info("tracking started")
	return nil
}

// Stop unsubscribes from the location stream and cancels the timer. The track
// history and the final metrics stay readable until the next Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stream == nil {
		return // already stopped
	}

	t.stopLocked()
	t.logger.Info("tracking stopped")
}

// Dispose releases the subscription and the timer. It is safe to call at any
// time and any number of times.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Tracker) stopLocked() {
	t.session.End()
	t.generation.Add(1) // events still in flight belong to a stale generation

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.stream != nil {
		t.stream.Close()
		t.stream = nil
	}
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}

	t.wg.Wait()
}

// Snapshot returns the current session state.
func (t *Tracker) Snapshot() Snapshot {
	return t.session.Snapshot()
}

// IsTracking reports whether a session is active.
func (t *Tracker) IsTracking() bool {
	return t.session.IsTracking()
}

// StreamClosed is closed when the provider stream of the current session ends.
// After a finished replay the session stays active until Stop; after the
// context passed to Start is cancelled the session has already ended.
func (t *Tracker) StreamClosed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamDone
}

func (t *Tracker) loop(ctx context.Context, gen uint64, stream *location.Stream, ticker timeutil.Ticker, streamDone chan struct{}, logger *slog.Logger) {
	defer t.wg.Done()

	var closed bool
	closeDone := func() {
		if !closed {
			closed = true
			close(streamDone)
		}
	}

	// cancelled ends a session whose parent context went away without a Stop
	cancelled := func() {
		if t.generation.Load() == gen {
			t.session.End()
			logger.Info("tracking cancelled")
			t.notify()
		}
		closeDone()
	}

	fixes := stream.Fixes()
	for {
		select {
		case <-ctx.Done():
			cancelled()
			return

		case fix, ok := <-fixes:
			if !ok {
				if ctx.Err() != nil {
					cancelled()
					return
				}

				fixes = nil // keep ticking until stopped
				if err := stream.Err(); err != nil {
					logger.Warn("location stream terminated", slog.String("error", err.Error()))
				} else {
					logger.Info("location stream ended")
				}
				closeDone()
				continue
			}
			if t.generation.Load() != gen {
				continue
			}
			t.dispatch(fix, logger)

		case now := <-ticker.C():
			if t.generation.Load() != gen {
				continue
			}
			if t.session.Tick(now) {
				t.notify()
			}
		}
	}
}

func (t *Tracker) dispatch(fix location.Fix, logger *slog.Logger) {
	if fix.Err != nil {
		if t.session.HandleError(fix.Err) {
			logger.Warn(NewStreamDeliveryError(fix.Err).Error())
			t.notify()
		}
		return
	}

	if t.session.HandleSample(fix.Sample, fix.Speed) {
		t.notify()
	}
}

func (t *Tracker) notify() {
	if t.onUpdate != nil {
		t.onUpdate(t.session.Snapshot())
	}
}
