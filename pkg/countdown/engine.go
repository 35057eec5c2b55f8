package countdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/notify"
)

// DefaultTickInterval is the live tick period.
const DefaultTickInterval = time.Second

// DefaultAlertBody is the body of the finished alert.
const DefaultAlertBody = "Timer finished"

// Checkpoints persists RuntimeState checkpoints.
type Checkpoints interface {
	SaveRuntime(ctx context.Context, s model.RuntimeState) error
	DeleteRuntime(ctx context.Context, timerID uuid.UUID) error
}

// Exclusivity is the coordinator side of the single-running-timer rule.
type Exclusivity interface {
	// OnStarted pauses every other running timer and records timerID as
	// the running one.
	OnStarted(ctx context.Context, timerID uuid.UUID) error

	// OnStopped clears the running timer if it is timerID.
	OnStopped(timerID uuid.UUID)
}

// Ticker runs a recurring callback. The callback must be delivered on the
// same serialized context that drives the Engine.
type Ticker interface {
	Every(name string, interval time.Duration, fn func()) (cancel func(), err error)
}

// Origin says where an input came from.
type Origin uint8

const (
	// OriginLocal is a user intent on this device, including pauses forced
	// by another local start.
	OriginLocal Origin = iota
	// OriginRemote is a runtime action mirrored from the peer.
	OriginRemote
	// OriginRecovery is a cold-start restore or a scheduled tick.
	OriginRecovery
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// Change is reported to the observer after every applied transition.
type Change struct {
	TimerID    uuid.UUID
	Origin     Origin
	Transition Transition
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	TimerID         uuid.UUID
	Name            string
	DurationSeconds int

	Checkpoints Checkpoints
	Notifier    notify.Scheduler
	Ticker      Ticker
	Exclusivity Exclusivity

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration

	// AlertBody defaults to DefaultAlertBody.
	AlertBody string

	// OnChange observes applied transitions. Optional.
	OnChange func(Change)

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Engine executes a Machine's effects for one timer. It is not safe for
// concurrent use; all calls must come from the device's control context.
type Engine struct {
	id      uuid.UUID
	name    string
	machine Machine

	checkpoints Checkpoints
	notifier    notify.Scheduler
	ticker      Ticker
	excl        Exclusivity
	clock       clockwork.Clock
	interval    time.Duration
	alertBody   string
	onChange    func(Change)
	logger      *slog.Logger

	cancelTick func()
	released   bool
}

// NewEngine creates an Idle engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.AlertBody == "" {
		cfg.AlertBody = DefaultAlertBody
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		id:          cfg.TimerID,
		name:        cfg.Name,
		machine:     *NewMachine(cfg.TimerID, cfg.DurationSeconds),
		checkpoints: cfg.Checkpoints,
		notifier:    cfg.Notifier,
		ticker:      cfg.Ticker,
		excl:        cfg.Exclusivity,
		clock:       cfg.Clock,
		interval:    cfg.TickInterval,
		alertBody:   cfg.AlertBody,
		onChange:    cfg.OnChange,
		logger:      cfg.Logger.With("timer_id", cfg.TimerID),
	}
}

// TimerID returns the timer this engine controls.
func (e *Engine) TimerID() uuid.UUID { return e.id }

// State returns the current state.
func (e *Engine) State() State { return e.machine.State() }

// Remaining returns the effective remaining seconds now.
func (e *Engine) Remaining() int { return e.machine.Remaining(e.clock.Now()) }

// Checkpoint returns the in-memory checkpoint while Running or Paused.
func (e *Engine) Checkpoint() (model.RuntimeState, bool) { return e.machine.Checkpoint() }

// SetTimer refreshes the name and duration after the Timer was edited. The
// duration only affects the next start from Idle.
func (e *Engine) SetTimer(name string, durationSeconds int) {
	e.name = name
	e.machine.SetDuration(durationSeconds)
}

// Start starts or resumes the countdown.
func (e *Engine) Start(ctx context.Context) (Transition, error) {
	return e.apply(ctx, OriginLocal, e.machine.Start)
}

// Pause pauses a running countdown.
func (e *Engine) Pause(ctx context.Context) (Transition, error) {
	return e.apply(ctx, OriginLocal, e.machine.Pause)
}

// Resume resumes a paused countdown.
func (e *Engine) Resume(ctx context.Context) (Transition, error) {
	return e.apply(ctx, OriginLocal, e.machine.Resume)
}

// Reset returns the countdown to Idle at full duration.
func (e *Engine) Reset(ctx context.Context) (Transition, error) {
	return e.apply(ctx, OriginLocal, e.machine.Reset)
}

// Tick applies one scheduled tick. A tick queued before Release is
// ignored.
func (e *Engine) Tick(ctx context.Context) (Transition, error) {
	if e.released {
		return e.machine.noop(model.Normalize(e.clock.Now())), nil
	}
	return e.apply(ctx, OriginRecovery, e.machine.Tick)
}

// Flush persists the current checkpoint.
func (e *Engine) Flush(ctx context.Context) (Transition, error) {
	return e.apply(ctx, OriginRecovery, e.machine.Flush)
}

// Recover restores a persisted checkpoint.
func (e *Engine) Recover(ctx context.Context, cp model.RuntimeState) (Transition, error) {
	return e.apply(ctx, OriginRecovery, func(now time.Time) (Transition, error) {
		return e.machine.Recover(cp, now)
	})
}

// ApplyRemote mirrors a transition made on the peer.
func (e *Engine) ApplyRemote(ctx context.Context, action Action, remaining int) (Transition, error) {
	return e.apply(ctx, OriginRemote, func(now time.Time) (Transition, error) {
		return e.machine.ApplyRemote(action, remaining, now)
	})
}

// Release stops the tick and the alert without touching the checkpoint.
// The engine must not be used afterwards.
func (e *Engine) Release() {
	e.released = true
	e.stopTick()
	e.notifier.Disarm(e.id)
	if e.machine.State() == StateRunning {
		e.excl.OnStopped(e.id)
	}
}

// apply runs one machine input and its effects. If an effect fails the
// machine and its checkpoint are restored and the error is returned.
func (e *Engine) apply(ctx context.Context, origin Origin, step func(now time.Time) (Transition, error)) (Transition, error) {
	now := model.Normalize(e.clock.Now())
	saved := e.machine

	tr, err := step(now)
	if err != nil {
		e.machine = saved
		e.logger.Error("rejected countdown transition", "error", err)
		return Transition{}, err
	}
	if wrote, err := e.execute(ctx, tr); err != nil {
		e.machine = saved
		if wrote {
			e.rewind(ctx)
		}
		return Transition{}, err
	}

	if !tr.IsNoop() {
		e.logger.Debug("countdown transition",
			"from", tr.From, "to", tr.To, "action", tr.Action, "origin", origin, "remaining", tr.Remaining)
		if e.onChange != nil {
			e.onChange(Change{TimerID: e.id, Origin: origin, Transition: tr})
		}
	}
	return tr, nil
}

// execute runs the durable effects first so that a failed write leaves the
// other engines untouched, then the rest in order. wrote reports whether a
// checkpoint was changed before the failure.
func (e *Engine) execute(ctx context.Context, tr Transition) (wrote bool, err error) {
	for _, eff := range tr.Effects {
		switch eff.Kind {
		case EffectPersist:
			if err := e.checkpoints.SaveRuntime(ctx, eff.State); err != nil {
				return wrote, err
			}
			wrote = true

		case EffectDeleteState:
			if err := e.checkpoints.DeleteRuntime(ctx, e.id); err != nil {
				return wrote, err
			}
			wrote = true
		}
	}

	for _, eff := range tr.Effects {
		switch eff.Kind {
		case EffectClaim:
			if err := e.excl.OnStarted(ctx, e.id); err != nil {
				return wrote, fmt.Errorf("claim running timer: %w", err)
			}

		case EffectArm:
			if err := e.notifier.Arm(e.id, eff.FireAt, e.name, e.alertBody); err != nil {
				e.logger.Warn("failed to arm alert", "error", err)
			}

		case EffectDisarm:
			e.notifier.Disarm(e.id)

		case EffectScheduleTick:
			e.startTick()

		case EffectCancelTick:
			e.stopTick()

		case EffectRelease:
			e.excl.OnStopped(e.id)

		case EffectReportCompletion:
			e.logger.Info("timer completed", "name", e.name)
		}
	}
	return wrote, nil
}

// rewind writes the restored machine's checkpoint back after a transition
// failed part way.
func (e *Engine) rewind(ctx context.Context) {
	var err error
	if cp, ok := e.machine.Checkpoint(); ok {
		err = e.checkpoints.SaveRuntime(ctx, cp)
	} else {
		err = e.checkpoints.DeleteRuntime(ctx, e.id)
	}
	if err != nil {
		e.logger.Warn("failed to restore checkpoint", "error", err)
	}
}

func (e *Engine) startTick() {
	if e.cancelTick != nil {
		return
	}
	cancel, err := e.ticker.Every("tick-"+e.id.String(), e.interval, func() {
		if _, err := e.Tick(context.Background()); err != nil {
			e.logger.Warn("tick failed", "error", err)
		}
	})
	if err != nil {
		e.logger.Warn("failed to schedule tick", "error", err)
		return
	}
	e.cancelTick = cancel
}

func (e *Engine) stopTick() {
	if e.cancelTick == nil {
		return
	}
	e.cancelTick()
	e.cancelTick = nil
}
