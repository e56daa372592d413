package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
)

func TestStream_DeliversInOrder(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(Fix) error) error {
		for i := int64(0); i < 5; i++ {
			if err := emit(Fix{Sample: geo.Sample{Timestamp: i * 1000}}); err != nil {
				return err
			}
		}
		return nil
	})
	defer s.Close()

	var got []int64
	for f := range s.Fixes() {
		got = append(got, f.Sample.Timestamp)
	}

	assert.Equal(t, []int64{0, 1000, 2000, 3000, 4000}, got)
	<-s.Done()
	assert.NoError(t, s.Err())
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(Fix) error) error {
		for {
			if err := emit(Fix{}); err != nil {
				return err
			}
		}
	})

	<-s.Fixes()

	s.Close()
	s.Close()

	select {
	case <-s.Done():
	default:
		t.Fatal("stream not done after Close")
	}
	assert.NoError(t, s.Err())
}

func TestStream_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream(context.Background(), func(ctx context.Context, emit func(Fix) error) error {
		return boom
	})

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stream did not finish")
	}

	_, ok := <-s.Fixes()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), boom)
	s.Close()
}

func TestPacer(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	p := &Pacer{Clock: clock, Factor: 2}
	ctx := context.Background()

	// first sample is never delayed
	require.NoError(t, p.Wait(ctx, 10_000))

	done := make(chan error, 1)
	go func() { done <- p.Wait(ctx, 14_000) }()

	require.Eventually(t, func() bool { return clock.Waiters() == 1 }, time.Second, time.Millisecond)

	// 4 s recorded gap at 2x pace
	clock.Advance(time.Second)
	select {
	case <-done:
		t.Fatal("returned too early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pacer did not release")
	}
}

func TestPacer_NoPacing(t *testing.T) {
	p := &Pacer{Factor: 0}
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Wait(ctx, 0))
	require.NoError(t, p.Wait(ctx, 3_600_000))

	cancel()
	assert.ErrorIs(t, p.Wait(ctx, 7_200_000), context.Canceled)
}
