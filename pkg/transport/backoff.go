package transport

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// Backoff defaults.
const (
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultBackoffJitter     = 0.25
)

// Backoff computes exponential reconnect delays with jitter:
//
//	delay(n) = min(Initial * Multiplier^n, Max) * (1 + rand[0, Jitter))
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64

	// rand returns a value in [0, 1). Defaults to math/rand/v2.
	rand func() float64
}

// DefaultBackoff returns 1s, 2s, 4s ... capped at 60s, plus up to 25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    DefaultInitialBackoff,
		Max:        DefaultMaxBackoff,
		Multiplier: DefaultBackoffMultiplier,
		Jitter:     DefaultBackoffJitter,
	}
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultInitialBackoff
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxBackoff
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier <= 1 {
		b.Multiplier = DefaultBackoffMultiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.rand == nil {
		b.rand = rand.Float64
	}
	return b
}

// Base returns the delay before attempt n (0-based), without jitter.
func (b Backoff) Base(n int) time.Duration {
	b = b.withDefaults()
	d := float64(b.Initial)
	for range n {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Delay returns the jittered delay before attempt n (0-based).
func (b Backoff) Delay(n int) time.Duration {
	b = b.withDefaults()
	base := b.Base(n)
	if b.Jitter == 0 {
		return base
	}
	return base + time.Duration(float64(base)*b.Jitter*b.rand())
}

// Retry calls fn until it succeeds or ctx is done, sleeping Delay(n) on
// clock between attempts. onRetry, if set, is called before each sleep.
func Retry(ctx context.Context, clock clockwork.Clock, b Backoff, fn func(context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		delay := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		select {
		case <-ctx.Done():
			return err
		case <-clock.After(delay):
		}
	}
}
