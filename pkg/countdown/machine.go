package countdown

import (
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// State is the countdown state of one timer.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StatePaused

	// StateCompleted is only ever the target of a Transition. The machine
	// itself is Idle again once completion has been reported.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Action names the user-visible transition, if any.
type Action uint8

const (
	ActionNone Action = iota
	ActionStarted
	ActionPaused
	ActionResumed
	ActionReset
	ActionCompleted
	ActionTick
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionStarted:
		return "started"
	case ActionPaused:
		return "paused"
	case ActionResumed:
		return "resumed"
	case ActionReset:
		return "reset"
	case ActionCompleted:
		return "completed"
	case ActionTick:
		return "tick"
	default:
		return "unknown"
	}
}

// EffectKind identifies a side effect requested by a transition.
type EffectKind uint8

const (
	// EffectClaim asks the coordinator to make this timer the only running one.
	EffectClaim EffectKind = iota
	// EffectPersist writes Effect.State as the checkpoint.
	EffectPersist
	// EffectDeleteState removes the checkpoint.
	EffectDeleteState
	// EffectArm schedules the finished alert at Effect.FireAt.
	EffectArm
	// EffectDisarm cancels the finished alert.
	EffectDisarm
	// EffectScheduleTick starts the once-per-second tick.
	EffectScheduleTick
	// EffectCancelTick stops the tick.
	EffectCancelTick
	// EffectRelease tells the coordinator this timer stopped running.
	EffectRelease
	// EffectReportCompletion reports that the countdown reached zero.
	EffectReportCompletion
)

// String returns the effect name.
func (k EffectKind) String() string {
	switch k {
	case EffectClaim:
		return "claim"
	case EffectPersist:
		return "persist"
	case EffectDeleteState:
		return "delete_state"
	case EffectArm:
		return "arm"
	case EffectDisarm:
		return "disarm"
	case EffectScheduleTick:
		return "schedule_tick"
	case EffectCancelTick:
		return "cancel_tick"
	case EffectRelease:
		return "release"
	case EffectReportCompletion:
		return "report_completion"
	default:
		return "unknown"
	}
}

// Effect is one side effect to execute after a transition.
type Effect struct {
	Kind   EffectKind
	State  model.RuntimeState
	FireAt time.Time
}

// Transition is the result of feeding one input to a Machine.
type Transition struct {
	From      State
	To        State
	Action    Action
	Remaining int
	Effects   []Effect
}

// IsNoop reports whether the input was ignored.
func (t Transition) IsNoop() bool {
	return t.Action == ActionNone && t.From == t.To && len(t.Effects) == 0
}

// Kinds returns the effect kinds in order.
func (t Transition) Kinds() []EffectKind {
	kinds := make([]EffectKind, len(t.Effects))
	for i, e := range t.Effects {
		kinds[i] = e.Kind
	}
	return kinds
}

// Machine is the countdown state machine for one timer.
type Machine struct {
	timerID    uuid.UUID
	duration   int
	state      State
	checkpoint model.RuntimeState
}

// NewMachine creates an Idle machine for a timer of the given duration.
func NewMachine(timerID uuid.UUID, durationSeconds int) *Machine {
	return &Machine{timerID: timerID, duration: durationSeconds}
}

// State returns the current state. It is never StateCompleted.
func (m *Machine) State() State { return m.state }

// Duration returns the configured duration in seconds.
func (m *Machine) Duration() int { return m.duration }

// SetDuration changes the duration used by the next start from Idle.
func (m *Machine) SetDuration(seconds int) { m.duration = seconds }

// Remaining returns the effective remaining seconds at now.
func (m *Machine) Remaining(now time.Time) int {
	switch m.state {
	case StateRunning:
		return m.checkpoint.EffectiveRemaining(now)
	case StatePaused:
		return m.checkpoint.RemainingSeconds
	default:
		return m.duration
	}
}

// Checkpoint returns the current checkpoint while Running or Paused.
func (m *Machine) Checkpoint() (model.RuntimeState, bool) {
	if m.state == StateIdle {
		return model.RuntimeState{}, false
	}
	return m.checkpoint, true
}

// Start moves Idle or Paused to Running. It is a no-op while Running.
func (m *Machine) Start(now time.Time) (Transition, error) {
	switch m.state {
	case StateIdle:
		return m.run(now, m.duration, ActionStarted)
	case StatePaused:
		return m.run(now, m.checkpoint.RemainingSeconds, ActionResumed)
	default:
		return m.noop(now), nil
	}
}

// Resume moves Paused to Running. It is a no-op in any other state.
func (m *Machine) Resume(now time.Time) (Transition, error) {
	if m.state != StatePaused {
		return m.noop(now), nil
	}
	return m.run(now, m.checkpoint.RemainingSeconds, ActionResumed)
}

// Pause freezes the remaining time. It is a no-op unless Running. Pausing
// at zero completes the countdown instead.
func (m *Machine) Pause(now time.Time) (Transition, error) {
	if m.state != StateRunning {
		return m.noop(now), nil
	}
	return m.pauseAt(now, m.checkpoint.EffectiveRemaining(now))
}

// Reset returns Running or Paused to Idle at full duration.
func (m *Machine) Reset(now time.Time) (Transition, error) {
	if m.state == StateIdle {
		return m.noop(now), nil
	}
	from := m.state
	m.state = StateIdle
	m.checkpoint = model.RuntimeState{}
	return Transition{
		From:      from,
		To:        StateIdle,
		Action:    ActionReset,
		Remaining: m.duration,
		Effects: []Effect{
			{Kind: EffectDeleteState},
			{Kind: EffectCancelTick},
			{Kind: EffectDisarm},
			{Kind: EffectRelease},
		},
	}, nil
}

// Tick applies the recovery formula while Running. The checkpoint moves
// forward by whole elapsed seconds only, so sub-second remainders carry over
// to the next tick.
func (m *Machine) Tick(now time.Time) (Transition, error) {
	if m.state != StateRunning {
		return m.noop(now), nil
	}
	r := m.checkpoint.EffectiveRemaining(now)
	if r == 0 {
		return m.complete(StateRunning), nil
	}
	m.rebase(r)
	return Transition{From: StateRunning, To: StateRunning, Action: ActionTick, Remaining: r}, nil
}

// Flush returns a transition persisting the current checkpoint so a later
// recovery is exact. It completes a running countdown that reached zero.
func (m *Machine) Flush(now time.Time) (Transition, error) {
	switch m.state {
	case StateRunning:
		r := m.checkpoint.EffectiveRemaining(now)
		if r == 0 {
			return m.complete(StateRunning), nil
		}
		m.rebase(r)
	case StatePaused:
	default:
		return m.noop(now), nil
	}
	if err := m.checkpoint.Validate(); err != nil {
		return Transition{}, err
	}
	return Transition{
		From:      m.state,
		To:        m.state,
		Remaining: m.checkpoint.RemainingSeconds,
		Effects:   []Effect{{Kind: EffectPersist, State: m.checkpoint}},
	}, nil
}

// Recover restores a persisted checkpoint into an Idle machine. A running
// checkpoint that has already run out completes without entering Running.
// A checkpoint violating its invariants returns model.ErrInconsistentState.
func (m *Machine) Recover(cp model.RuntimeState, now time.Time) (Transition, error) {
	if err := cp.Validate(); err != nil {
		return Transition{}, err
	}
	if m.state != StateIdle {
		return m.noop(now), nil
	}

	switch {
	case cp.Running:
		r := cp.EffectiveRemaining(now)
		if r == 0 {
			return Transition{
				From:   StateIdle,
				To:     StateCompleted,
				Action: ActionCompleted,
				Effects: []Effect{
					{Kind: EffectDeleteState},
					{Kind: EffectDisarm},
					{Kind: EffectReportCompletion},
				},
			}, nil
		}
		m.state = StateRunning
		m.checkpoint = cp
		return Transition{
			From:      StateIdle,
			To:        StateRunning,
			Remaining: r,
			Effects: []Effect{
				{Kind: EffectClaim},
				{Kind: EffectArm, FireAt: cp.LastUpdate.Add(time.Duration(cp.RemainingSeconds) * time.Second)},
				{Kind: EffectScheduleTick},
			},
		}, nil

	case cp.Paused:
		m.state = StatePaused
		m.checkpoint = cp
		return Transition{From: StateIdle, To: StatePaused, Remaining: cp.RemainingSeconds}, nil

	default:
		// An idle checkpoint carries nothing worth keeping.
		return Transition{
			From:      StateIdle,
			To:        StateIdle,
			Remaining: m.duration,
			Effects:   []Effect{{Kind: EffectDeleteState}},
		}, nil
	}
}

// ApplyRemote mirrors a transition made on the peer. The peer's remaining
// seconds are used as-is instead of being recomputed.
func (m *Machine) ApplyRemote(action Action, remaining int, now time.Time) (Transition, error) {
	switch action {
	case ActionStarted, ActionResumed:
		if m.state == StateRunning || remaining <= 0 {
			return m.noop(now), nil
		}
		return m.run(now, remaining, action)
	case ActionPaused:
		if m.state != StateRunning {
			return m.noop(now), nil
		}
		return m.pauseAt(now, remaining)
	case ActionReset:
		return m.Reset(now)
	case ActionCompleted:
		if m.state == StateIdle {
			return m.noop(now), nil
		}
		return m.complete(m.state), nil
	default:
		return m.noop(now), nil
	}
}

func (m *Machine) run(now time.Time, remaining int, action Action) (Transition, error) {
	if remaining <= 0 {
		return m.noop(now), nil
	}
	cp := model.RuntimeState{
		TimerID:          m.timerID,
		Running:          true,
		RemainingSeconds: remaining,
		StartTimestamp:   now,
		LastUpdate:       now,
	}
	if err := cp.Validate(); err != nil {
		return Transition{}, err
	}

	from := m.state
	m.state = StateRunning
	m.checkpoint = cp
	return Transition{
		From:      from,
		To:        StateRunning,
		Action:    action,
		Remaining: remaining,
		Effects: []Effect{
			{Kind: EffectClaim},
			{Kind: EffectPersist, State: cp},
			{Kind: EffectArm, FireAt: now.Add(time.Duration(remaining) * time.Second)},
			{Kind: EffectScheduleTick},
		},
	}, nil
}

func (m *Machine) pauseAt(now time.Time, remaining int) (Transition, error) {
	if remaining <= 0 {
		return m.complete(StateRunning), nil
	}
	cp := model.RuntimeState{
		TimerID:          m.timerID,
		Paused:           true,
		RemainingSeconds: remaining,
		PauseTimestamp:   now,
		LastUpdate:       now,
	}
	if err := cp.Validate(); err != nil {
		return Transition{}, err
	}

	m.state = StatePaused
	m.checkpoint = cp
	return Transition{
		From:      StateRunning,
		To:        StatePaused,
		Action:    ActionPaused,
		Remaining: remaining,
		Effects: []Effect{
			{Kind: EffectPersist, State: cp},
			{Kind: EffectCancelTick},
			{Kind: EffectDisarm},
			{Kind: EffectRelease},
		},
	}, nil
}

func (m *Machine) complete(from State) Transition {
	m.state = StateIdle
	m.checkpoint = model.RuntimeState{}
	return Transition{
		From:   from,
		To:     StateCompleted,
		Action: ActionCompleted,
		Effects: []Effect{
			{Kind: EffectDeleteState},
			{Kind: EffectCancelTick},
			{Kind: EffectDisarm},
			{Kind: EffectRelease},
			{Kind: EffectReportCompletion},
		},
	}
}

// rebase moves the running checkpoint forward to remaining r.
func (m *Machine) rebase(r int) {
	consumed := m.checkpoint.RemainingSeconds - r
	m.checkpoint.LastUpdate = m.checkpoint.LastUpdate.Add(time.Duration(consumed) * time.Second)
	m.checkpoint.RemainingSeconds = r
}

func (m *Machine) noop(now time.Time) Transition {
	return Transition{From: m.state, To: m.state, Remaining: m.Remaining(now)}
}
