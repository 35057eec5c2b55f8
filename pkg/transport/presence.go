package transport

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Presence defaults.
const (
	// DefaultHeartbeatInterval is the interval between heartbeats.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultPeerTimeout is how long the peer may stay silent before it is
	// considered unreachable.
	DefaultPeerTimeout = 15 * time.Second
)

// PresenceConfig configures heartbeat-based reachability.
type PresenceConfig struct {
	// Interval between heartbeats and timeout checks.
	Interval time.Duration

	// Timeout after the last peer heartbeat before the peer is unreachable.
	Timeout time.Duration

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultPresenceConfig returns the default presence configuration.
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		Interval: DefaultHeartbeatInterval,
		Timeout:  DefaultPeerTimeout,
	}
}

// DetectionDelay is the longest time between the peer going silent and the
// change being reported.
func (c PresenceConfig) DetectionDelay() time.Duration {
	return c.Timeout + c.Interval
}

// Presence publishes heartbeats and derives peer reachability from the
// heartbeats it sees.
type Presence struct {
	config   PresenceConfig
	beat     func() error
	onChange func(reachable bool)

	mu        sync.Mutex
	lastSeen  time.Time
	reachable bool
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPresence creates a Presence. beat publishes one heartbeat; onChange is
// called on every reachability transition.
func NewPresence(config PresenceConfig, beat func() error, onChange func(bool)) *Presence {
	if config.Interval == 0 {
		config.Interval = DefaultHeartbeatInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultPeerTimeout
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Presence{
		config:   config,
		beat:     beat,
		onChange: onChange,
	}
}

// Start begins the heartbeat loop.
func (p *Presence) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop stops the heartbeat loop and waits for it to exit.
func (p *Presence) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
}

// Seen records a heartbeat from the peer.
func (p *Presence) Seen() {
	p.mu.Lock()
	p.lastSeen = p.config.Clock.Now()
	changed := !p.reachable
	p.reachable = true
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(true)
	}
}

// Reachable reports the current peer reachability.
func (p *Presence) Reachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

func (p *Presence) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := p.config.Clock.NewTicker(p.config.Interval)
	defer ticker.Stop()

	_ = p.beat()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.Chan():
			_ = p.beat()
			p.checkTimeout()
		}
	}
}

func (p *Presence) checkTimeout() {
	p.mu.Lock()
	expired := p.reachable && p.config.Clock.Since(p.lastSeen) >= p.config.Timeout
	if expired {
		p.reachable = false
	}
	p.mu.Unlock()

	if expired && p.onChange != nil {
		p.onChange(false)
	}
}
