package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceConfigDefaults(t *testing.T) {
	cfg := DefaultPresenceConfig()
	if cfg.Interval != DefaultHeartbeatInterval {
		t.Errorf("Interval = %v, want %v", cfg.Interval, DefaultHeartbeatInterval)
	}
	if got, want := cfg.DetectionDelay(), 20*time.Second; got != want {
		t.Errorf("DetectionDelay() = %v, want %v", got, want)
	}
}

func TestPresenceReachability(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var beats atomic.Int32
	var mu sync.Mutex
	var changes []bool

	p := NewPresence(PresenceConfig{Interval: time.Second, Timeout: 3 * time.Second, Clock: clock},
		func() error { beats.Add(1); return nil },
		func(ok bool) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, ok)
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Eventually(t, func() bool { return beats.Load() == 1 }, time.Second, time.Millisecond, "initial heartbeat")
	assert.False(t, p.Reachable())

	p.Seen()
	assert.True(t, p.Reachable())

	// Two silent intervals stay within the timeout.
	for range 2 {
		clock.Advance(time.Second)
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
	}
	assert.True(t, p.Reachable())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return !p.Reachable() }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, changes)
	assert.GreaterOrEqual(t, beats.Load(), int32(2))
}

func TestPresenceSeenIsIdempotent(t *testing.T) {
	var n atomic.Int32
	p := NewPresence(PresenceConfig{Clock: clockwork.NewFakeClock()}, func() error { return nil }, func(bool) { n.Add(1) })
	p.Seen()
	p.Seen()
	if n.Load() != 1 {
		t.Errorf("onChange called %d times, want 1", n.Load())
	}
}

func TestSubjects(t *testing.T) {
	if got := MsgSubject("pt", "dev-a"); got != "pt.msg.dev-a" {
		t.Errorf("MsgSubject() = %q", got)
	}
	if got := PresenceSubject("pt", "dev-b"); got != "pt.presence.dev-b" {
		t.Errorf("PresenceSubject() = %q", got)
	}
	if got := ContextKey("dev-a"); got != "context.dev-a" {
		t.Errorf("ContextKey() = %q", got)
	}
}
