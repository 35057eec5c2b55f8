package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/metrics"
	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/notify"
	"github.com/pairtimer/pairtimer-go/pkg/persistence"
	"github.com/pairtimer/pairtimer-go/pkg/store"
	"github.com/pairtimer/pairtimer-go/pkg/transport"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is loading and recovering.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// DeviceConfig configures a DeviceService.
type DeviceConfig struct {
	// DeviceID and PeerID identify both ends of the pair.
	DeviceID string
	PeerID   string

	// Role of this device. Only used to tag protocol log events.
	Role plog.Role

	// Store is the persistent store. Required. Closed by Stop.
	Store store.Store

	// Transport reaches the peer. Required. Closed by Stop.
	Transport transport.Transport

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// TickInterval defaults to countdown.DefaultTickInterval.
	TickInterval time.Duration

	// Ticker overrides the scheduler-backed tick source. Callbacks are
	// still run on the control goroutine.
	Ticker countdown.Ticker

	// Notifier overrides the scheduler-backed alert scheduler.
	Notifier notify.Scheduler

	// AlertTitle renders the alert title from a timer name. Defaults to the
	// name itself.
	AlertTitle func(name string) string

	// AlertBody defaults to countdown.DefaultAlertBody.
	AlertBody string

	// StateStore records the last FullSync time. Optional.
	StateStore *persistence.DeviceStateStore

	// Recorder receives metrics. Optional.
	Recorder metrics.Recorder

	// Logger is the optional logger for operational output.
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events. Optional.
	ProtocolLogger plog.Logger
}

// Validate checks the configuration.
func (c *DeviceConfig) Validate() error {
	switch {
	case c.DeviceID == "" || c.PeerID == "":
		return errors.Join(ErrInvalidConfig, errors.New("device id and peer id are required"))
	case c.DeviceID == c.PeerID:
		return errors.Join(ErrInvalidConfig, errors.New("device id and peer id must differ"))
	case c.Store == nil:
		return errors.Join(ErrInvalidConfig, errors.New("store is required"))
	case c.Transport == nil:
		return errors.Join(ErrInvalidConfig, errors.New("transport is required"))
	}
	return nil
}

// EventType identifies a service event.
type EventType uint8

const (
	// EventTimerChanged - a timer was created or edited, locally or by the
	// peer.
	EventTimerChanged EventType = iota

	// EventTimerDeleted - a timer was deleted.
	EventTimerDeleted

	// EventRuntimeChanged - a countdown changed state or ticked.
	EventRuntimeChanged

	// EventTimerCompleted - a countdown reached zero.
	EventTimerCompleted

	// EventAlert - the "timer finished" alert fired.
	EventAlert

	// EventReachabilityChanged - the peer came or went.
	EventReachabilityChanged

	// EventFullSync - a peer FullSync was applied.
	EventFullSync

	// EventSaveFailed - a local mutation could not be persisted.
	EventSaveFailed
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventTimerChanged:
		return "TIMER_CHANGED"
	case EventTimerDeleted:
		return "TIMER_DELETED"
	case EventRuntimeChanged:
		return "RUNTIME_CHANGED"
	case EventTimerCompleted:
		return "TIMER_COMPLETED"
	case EventAlert:
		return "ALERT"
	case EventReachabilityChanged:
		return "REACHABILITY_CHANGED"
	case EventFullSync:
		return "FULL_SYNC"
	case EventSaveFailed:
		return "SAVE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	// Type is the event type.
	Type EventType

	// TimerID is the affected timer, if any.
	TimerID uuid.UUID

	// Timer is a snapshot of the timer for EventTimerChanged.
	Timer *model.Timer

	// Change describes the transition for EventRuntimeChanged and
	// EventTimerCompleted.
	Change *countdown.Change

	// Alert is set for EventAlert.
	Alert *notify.Alert

	// Reachable is set for EventReachabilityChanged.
	Reachable bool

	// Error is set for EventSaveFailed.
	Error error

	// Time is when the event was emitted.
	Time time.Time
}

// EventHandler handles service events.
type EventHandler func(Event)
