// Package discovery finds the paired device on the local network.
//
// Each device advertises one DNS-SD service of type _pairtimer._tcp. The
// instance name is the device id. TXT records carry:
//
//	DI  device id (required)
//	RO  role, "primary" or "companion" (required)
//	DN  device name (optional)
//	NU  NATS URL the device can be reached at (optional)
//
// A companion that has no NATS URL configured browses for the primary and
// connects to the advertised URL, or to nats://<address>:<port> when the
// primary does not advertise one.
package discovery
