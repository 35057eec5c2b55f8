// Package transport delivers opaque replication envelopes between the two
// devices of a pair.
//
// A Transport offers two channels:
//
//   - Send: direct, fire-and-forget delivery while the peer is reachable.
//   - UpdateDurableContext: a single overwrite-in-place slot per peer. Only the
//     latest value survives and it is delivered on the next contact.
//
// Reachability changes and inbound envelopes are reported through callbacks.
// Callbacks run on a transport goroutine; receivers are expected to hand the
// work to their own control loop.
//
// # Implementations
//
//   - Pair: two in-process endpoints linked in memory, with a switchable link.
//     Used by tests and single-process demos.
//   - NATSTransport: core NATS subjects for direct delivery and heartbeats,
//     and a JetStream key-value bucket (history 1) as the durable slot.
//
// # Subjects
//
//	<prefix>.msg.<device>        envelopes addressed to device
//	<prefix>.presence.<device>   heartbeats published by device
//	KV <bucket> context.<device> durable context addressed to device
package transport
