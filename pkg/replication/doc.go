// Package replication keeps the timer catalog and countdown intent of two
// paired devices convergent.
//
// # Outbound
//
// Every local mutation becomes one wire message on a logical stream:
//
//	timer/<timer>          created / updated / deleted
//	item/<timer>/<item>    item toggles
//	notes/<timer>          notes edits
//	runtime/<timer>        countdown transitions
//
// While the peer is reachable the message is sent directly. Otherwise it
// replaces the stream's entry in the pending context, and the whole pending
// context is written to the transport's durable slot as one ContextBundle.
// Intermediate values of a stream are dropped; the FullSync exchanged on
// reconnect corrects whatever coalescing lost.
//
// # Inbound
//
// Timer records merge last-write-wins on UpdatedAt, per timer and per item.
// Equal clocks keep the local value. The incoming item list is the complete
// item set: local items missing from it are deleted. Deletes are applied
// unconditionally. Runtime actions are applied to the named timer's engine
// using the sender's remaining seconds.
//
// The Protocol is not safe for concurrent use. It runs on the device's
// control loop together with the catalog and the coordinator.
package replication
