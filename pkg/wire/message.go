package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wire errors.
var (
	// ErrUnknownType indicates an envelope type with no registered message.
	ErrUnknownType = errors.New("unknown message type")

	// ErrMalformed indicates a payload that failed to decode or validate.
	ErrMalformed = errors.New("malformed message")
)

// MessageType is the envelope routing discriminator.
type MessageType string

const (
	TypeFullSync        MessageType = "full_sync"
	TypeFullSyncRequest MessageType = "full_sync_request"
	TypeTimerChange     MessageType = "timer_change"
	TypeQuickAction     MessageType = "quick_action"
	TypeRuntimeAction   MessageType = "runtime_action"
	TypeContextBundle   MessageType = "context_bundle"
)

// Message is implemented by every message body.
type Message interface {
	// MessageType returns the envelope discriminator for this body.
	MessageType() MessageType

	// Validate checks structural invariants of the body.
	Validate() error
}

// FullSyncPayload carries every non-deleted timer.
type FullSyncPayload struct {
	Timers    []TimerRecord `json:"timers"`
	Timestamp time.Time     `json:"timestamp"`
}

func (*FullSyncPayload) MessageType() MessageType { return TypeFullSync }

// Validate checks that every record has an id.
func (m *FullSyncPayload) Validate() error {
	for i := range m.Timers {
		if m.Timers[i].ID == uuid.Nil {
			return fmt.Errorf("timer %d: missing id", i)
		}
	}
	return nil
}

// FullSyncRequest asks the peer to answer with its FullSyncPayload.
type FullSyncRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

func (*FullSyncRequest) MessageType() MessageType { return TypeFullSyncRequest }

// Validate always succeeds.
func (*FullSyncRequest) Validate() error { return nil }

// ChangeKind is the kind of a TimerChangeMessage.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// TimerChangeMessage reports a created, updated or deleted timer.
// A deleted change carries only the id.
type TimerChangeMessage struct {
	Kind    ChangeKind   `json:"kind"`
	TimerID uuid.UUID    `json:"timer_id"`
	Timer   *TimerRecord `json:"timer,omitempty"`
}

func (*TimerChangeMessage) MessageType() MessageType { return TypeTimerChange }

// Validate checks kind/record consistency.
func (m *TimerChangeMessage) Validate() error {
	if m.TimerID == uuid.Nil {
		return errors.New("missing timer_id")
	}
	switch m.Kind {
	case ChangeCreated, ChangeUpdated:
		if m.Timer == nil {
			return fmt.Errorf("%s change without timer record", m.Kind)
		}
		if m.Timer.ID != m.TimerID {
			return errors.New("timer record id does not match timer_id")
		}
	case ChangeDeleted:
		if m.Timer != nil {
			return errors.New("deleted change must not carry a timer record")
		}
	default:
		return fmt.Errorf("invalid change kind %q", m.Kind)
	}
	return nil
}

// QuickActionKind is the kind of a QuickActionMessage.
type QuickActionKind string

const (
	QuickItemToggled QuickActionKind = "item-toggled"
	QuickNotesUpdate QuickActionKind = "notes-updated"
)

// QuickActionMessage is a narrow mutation that does not warrant a full
// timer rewrite. UpdatedAt is the clock of the mutated record (the item for
// a toggle, the timer for notes) and is used for last-write-wins.
type QuickActionMessage struct {
	Kind      QuickActionKind `json:"kind"`
	TimerID   uuid.UUID       `json:"timer_id"`
	ItemID    *uuid.UUID      `json:"item_id,omitempty"`
	Completed *bool           `json:"completed,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (*QuickActionMessage) MessageType() MessageType { return TypeQuickAction }

// Validate checks that the fields required by Kind are present.
func (m *QuickActionMessage) Validate() error {
	if m.TimerID == uuid.Nil {
		return errors.New("missing timer_id")
	}
	switch m.Kind {
	case QuickItemToggled:
		if m.ItemID == nil || m.Completed == nil {
			return errors.New("item-toggled requires item_id and completed")
		}
	case QuickNotesUpdate:
		if m.Notes == nil {
			return errors.New("notes-updated requires notes")
		}
	default:
		return fmt.Errorf("invalid quick action kind %q", m.Kind)
	}
	return nil
}

// RuntimeAction is a countdown transition mirrored to the peer.
type RuntimeAction string

const (
	ActionStarted   RuntimeAction = "started"
	ActionPaused    RuntimeAction = "paused"
	ActionResumed   RuntimeAction = "resumed"
	ActionReset     RuntimeAction = "reset"
	ActionCompleted RuntimeAction = "completed"
)

// IsValid returns true for a known action.
func (a RuntimeAction) IsValid() bool {
	switch a {
	case ActionStarted, ActionPaused, ActionResumed, ActionReset, ActionCompleted:
		return true
	}
	return false
}

// RuntimeActionMessage mirrors a countdown transition. The peer applies the
// snapshot remaining seconds directly instead of recomputing from durations.
type RuntimeActionMessage struct {
	TimerID                  uuid.UUID     `json:"timer_id"`
	Action                   RuntimeAction `json:"action"`
	SnapshotRemainingSeconds int           `json:"snapshot_remaining_seconds"`
	Timestamp                time.Time     `json:"timestamp"`
}

func (*RuntimeActionMessage) MessageType() MessageType { return TypeRuntimeAction }

// Validate checks the action and remaining seconds.
func (m *RuntimeActionMessage) Validate() error {
	if m.TimerID == uuid.Nil {
		return errors.New("missing timer_id")
	}
	if !m.Action.IsValid() {
		return fmt.Errorf("invalid runtime action %q", m.Action)
	}
	if m.SnapshotRemainingSeconds < 0 {
		return errors.New("negative snapshot_remaining_seconds")
	}
	return nil
}

// BundleEntry is the latest envelope for one logical stream.
type BundleEntry struct {
	Stream   string   `json:"stream"`
	Envelope Envelope `json:"envelope"`
}

// ContextBundle is the value placed on the coalescing durable channel.
// It holds at most one entry per stream, in the order the streams were
// first written.
type ContextBundle struct {
	Entries   []BundleEntry `json:"entries"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (*ContextBundle) MessageType() MessageType { return TypeContextBundle }

// Validate rejects nested bundles and duplicate streams.
func (m *ContextBundle) Validate() error {
	seen := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		if e.Envelope.Type == TypeContextBundle {
			return errors.New("nested context bundle")
		}
		if _, dup := seen[e.Stream]; dup {
			return fmt.Errorf("duplicate stream %q", e.Stream)
		}
		seen[e.Stream] = struct{}{}
	}
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Message = (*FullSyncPayload)(nil)
	_ Message = (*FullSyncRequest)(nil)
	_ Message = (*TimerChangeMessage)(nil)
	_ Message = (*QuickActionMessage)(nil)
	_ Message = (*RuntimeActionMessage)(nil)
	_ Message = (*ContextBundle)(nil)
)
