package transport

import "errors"

// Transport errors.
var (
	// ErrUnreachable is returned by Send while the peer is not reachable.
	ErrUnreachable = errors.New("peer unreachable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

// Transport delivers envelopes to the paired device.
type Transport interface {
	// Send delivers data directly. It does not wait for the peer to process
	// it. Returns ErrUnreachable if the peer is not reachable.
	Send(data []byte) error

	// UpdateDurableContext replaces the durable context slot for the peer.
	// The latest value is delivered on the next contact.
	UpdateDurableContext(data []byte) error

	// IsReachable reports whether direct sends can currently succeed.
	IsReachable() bool

	// OnReceive sets the handler for inbound envelopes.
	OnReceive(fn func(data []byte))

	// OnReachabilityChanged sets the handler for reachability changes.
	OnReachabilityChanged(fn func(reachable bool))

	// Close releases the transport. Handlers are not called afterwards.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*Endpoint)(nil)
	_ Transport = (*NATSTransport)(nil)
)
