package discovery

import (
	"errors"
	"time"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type of a pairtimer device.
	ServiceType = "_pairtimer._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default NATS client port.
	DefaultPort = 4222
)

// TXT record key constants.
const (
	TXTKeyDeviceID   = "DI"
	TXTKeyRole       = "RO"
	TXTKeyDeviceName = "DN"
	TXTKeyNATSURL    = "NU"
)

// Roles advertised in the RO key.
const (
	RolePrimary   = "primary"
	RoleCompanion = "companion"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for FindPeer.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrNotAdvertising      = errors.New("not advertising")
)

// PeerInfo is what a device advertises about itself.
type PeerInfo struct {
	DeviceID   string
	Role       string
	DeviceName string
	NATSURL    string

	// Port is the advertised service port. Zero means DefaultPort.
	Port uint16
}

// PeerService is a discovered device.
type PeerService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	DeviceID   string
	Role       string
	DeviceName string
	NATSURL    string
}
