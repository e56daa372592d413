package location

import (
	"context"
	"time"

	"github.com/roman-kulish/speedtrack/internal/timeutil"
)

// Pacer spaces out replayed fixes according to their recorded timestamps.
// A factor of 0 replays as fast as possible, 1 in real time and n n-times faster.
type Pacer struct {
	Clock  timeutil.Clock
	Factor float64

	last int64
	seen bool
}

// Wait blocks until the sample with the given timestamp (epoch ms) is due.
func (p *Pacer) Wait(ctx context.Context, timestamp int64) error {
	defer func() {
		p.last = timestamp
		p.seen = true
	}()

	if p.Factor <= 0 || !p.seen || timestamp <= p.last {
		return ctx.Err()
	}

	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	gap := time.Duration(float64(timestamp-p.last) * float64(time.Millisecond) / p.Factor)

	select {
	case <-clock.After(gap):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
