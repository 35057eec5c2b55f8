package discovery

import (
	"context"
	"time"
)

// Browser finds pairtimer devices on the local network.
type Browser interface {
	// Browse reports devices as they appear. The channel is closed when ctx
	// is done.
	Browse(ctx context.Context) (<-chan *PeerService, error)

	// FindPeer returns the first device with the given role that is not
	// selfID. It gives up after BrowseTimeout or when ctx is done.
	FindPeer(ctx context.Context, role, selfID string) (*PeerService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindPeer.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}
