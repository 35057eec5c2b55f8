package discovery

import (
	"context"
	"time"
)

// Advertiser publishes this device on the local network.
type Advertiser interface {
	// Advertise starts advertising, replacing any earlier advertisement.
	Advertise(ctx context.Context, info *PeerInfo) error

	// Update replaces the TXT records of the running advertisement.
	Update(info *PeerInfo) error

	// Stop stops advertising. It is a no-op when not advertising.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}
