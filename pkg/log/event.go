package log

import (
	"time"
)

// Event is one protocol trace record. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// DeviceID is the local device.
	DeviceID string `cbor:"2,keyasint"`

	// PeerID is the paired device, when known.
	PeerID string `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"6,keyasint"`

	// LocalRole is the local device's role in the pair.
	LocalRole Role `cbor:"7,keyasint,omitempty"`

	// TimerID is the timer concerned, if any.
	TimerID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (at most one is set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
	// DirectionLocal marks events that never crossed the transport.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the byte transport.
	LayerTransport Layer = 0
	// LayerWire is the envelope codec and replication protocol.
	LayerWire Layer = 1
	// LayerService is the device service.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the local device's role in the pair.
type Role uint8

const (
	RolePrimary   Role = 0
	RoleCompanion Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "PRIMARY"
	case RoleCompanion:
		return "COMPANION"
	default:
		return "UNKNOWN"
	}
}

// ParseRole parses "primary" or "companion".
func ParseRole(s string) (Role, bool) {
	switch s {
	case "primary", "PRIMARY":
		return RolePrimary, true
	case "companion", "COMPANION":
		return RoleCompanion, true
	}
	return 0, false
}

// MaxFrameData is the number of envelope bytes kept in a FrameEvent.
const MaxFrameData = 4096

// FrameEvent captures envelope bytes at the transport layer.
type FrameEvent struct {
	// Size is the full envelope size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the envelope, truncated to MaxFrameData.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut short.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Durable marks a write to the coalescing context channel.
	Durable bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent, truncating long envelopes.
func NewFrameEvent(data []byte, durable bool) *FrameEvent {
	f := &FrameEvent{Size: len(data), Durable: durable}
	if len(data) > MaxFrameData {
		f.Data = append([]byte(nil), data[:MaxFrameData]...)
		f.Truncated = true
	} else {
		f.Data = append([]byte(nil), data...)
	}
	return f
}

// Outcome records what happened to a replication message.
type Outcome uint8

const (
	OutcomeSent Outcome = iota
	OutcomeCoalesced
	OutcomeApplied
	OutcomeInserted
	OutcomeDiscarded
	OutcomeDropped
	OutcomeIgnored
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "SENT"
	case OutcomeCoalesced:
		return "COALESCED"
	case OutcomeApplied:
		return "APPLIED"
	case OutcomeInserted:
		return "INSERTED"
	case OutcomeDiscarded:
		return "DISCARDED"
	case OutcomeDropped:
		return "DROPPED"
	case OutcomeIgnored:
		return "IGNORED"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures a decoded replication message.
type MessageEvent struct {
	// Type is the envelope type discriminator ("timer_change", ...).
	Type string `cbor:"1,keyasint"`

	// Stream is the coalescing stream the message belongs to.
	Stream string `cbor:"2,keyasint,omitempty"`

	// Kind is the change kind, quick action kind or runtime action.
	Kind string `cbor:"3,keyasint,omitempty"`

	// Outcome says whether it was sent, coalesced, merged or discarded.
	Outcome Outcome `cbor:"4,keyasint"`

	// Timers is the number of timer records carried (FullSync).
	Timers int `cbor:"5,keyasint,omitempty"`

	// Entries is the number of streams carried (ContextBundle).
	Entries int `cbor:"6,keyasint,omitempty"`

	// Remaining is the snapshot remaining seconds of a runtime action.
	Remaining *int `cbor:"7,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityReachability StateEntity = 0
	StateEntityCountdown    StateEntity = 1
	StateEntitySync         StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityReachability:
		return "REACHABILITY"
	case StateEntityCountdown:
		return "COUNTDOWN"
	case StateEntitySync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures reachability, countdown and sync changes.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"4,keyasint,omitempty"`
}
