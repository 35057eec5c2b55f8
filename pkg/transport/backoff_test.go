package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSequence(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for n, exp := range want {
		assert.Equal(t, exp, b.Base(n), "attempt %d", n)
	}
}

func TestBackoffJitter(t *testing.T) {
	b := DefaultBackoff()
	b.rand = func() float64 { return 0.5 }
	assert.Equal(t, 4*time.Second+500*time.Millisecond, b.Delay(2))

	b.rand = nil
	for range 20 {
		d := b.Delay(0)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1250*time.Millisecond)
	}
}

func TestBackoffCustomConfig(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100, 200, 400, 500, 500}
	for n, ms := range want {
		assert.Equal(t, ms*time.Millisecond, b.Delay(n), "attempt %d", n)
	}

	var zero Backoff
	assert.Equal(t, DefaultInitialBackoff, zero.Base(0))
	assert.Equal(t, DefaultMaxBackoff, zero.Base(100))
}

func TestRetry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := Backoff{Initial: time.Second, Max: 4 * time.Second, Multiplier: 2}

	var calls int
	var delays []time.Duration
	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), clock, b, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, func(_ int, d time.Duration, _ error) {
			delays = append(delays, d)
		})
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(2 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Retry did not return")
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	dialErr := errors.New("no servers available")

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, clock, DefaultBackoff(), func(context.Context) error { return dialErr }, nil)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, dialErr)
	case <-time.After(time.Second):
		t.Fatal("Retry did not stop")
	}
}
