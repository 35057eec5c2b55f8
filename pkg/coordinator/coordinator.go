// Package coordinator keeps the device's live countdown engines and makes
// sure at most one of them is running.
//
// The coordinator is owned by the device's control context and is not safe
// for concurrent use. Engines call back into it synchronously (OnStarted,
// OnStopped) while executing their effects.
package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// TimerLookup resolves a timer id in the entity model.
type TimerLookup interface {
	Get(id uuid.UUID) (*model.Timer, bool)
}

// EngineFactory builds an engine for a timer. The coordinator passes itself
// as the engine's Exclusivity.
type EngineFactory func(t *model.Timer, excl countdown.Exclusivity) *countdown.Engine

// Config configures a Coordinator.
type Config struct {
	Timers    TimerLookup
	NewEngine EngineFactory
	Logger    *slog.Logger
}

// Coordinator is the registry of live engines.
type Coordinator struct {
	timers    TimerLookup
	newEngine EngineFactory
	logger    *slog.Logger

	engines map[uuid.UUID]*countdown.Engine
	running uuid.UUID
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		timers:    cfg.Timers,
		newEngine: cfg.NewEngine,
		logger:    cfg.Logger,
		engines:   make(map[uuid.UUID]*countdown.Engine),
	}
}

// AcquireOrCreate returns the live engine for a timer, creating it on first
// use. It fails with model.ErrNotFound if the timer does not exist.
func (c *Coordinator) AcquireOrCreate(id uuid.UUID) (*countdown.Engine, error) {
	if e, ok := c.engines[id]; ok {
		return e, nil
	}
	t, ok := c.timers.Get(id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, model.ErrNotFound)
	}
	e := c.newEngine(t, c)
	c.engines[id] = e
	return e, nil
}

// Lookup returns the live engine for a timer without creating one.
func (c *Coordinator) Lookup(id uuid.UUID) (*countdown.Engine, bool) {
	e, ok := c.engines[id]
	return e, ok
}

// OnStarted pauses every other running engine, then records id as the only
// running timer.
func (c *Coordinator) OnStarted(ctx context.Context, id uuid.UUID) error {
	for _, otherID := range c.ids() {
		if otherID == id {
			continue
		}
		other := c.engines[otherID]
		if other.State() != countdown.StateRunning {
			continue
		}
		if _, err := other.Pause(ctx); err != nil {
			return fmt.Errorf("pause timer %s: %w", otherID, err)
		}
		c.logger.Debug("paused timer for exclusivity", "timer_id", otherID, "started", id)
	}
	c.running = id
	return nil
}

// OnStopped clears the running id if it is id. Stale notifications from a
// timer that was already superseded are ignored.
func (c *Coordinator) OnStopped(id uuid.UUID) {
	if c.running == id {
		c.running = uuid.Nil
	}
}

// Running returns the running timer id, if any.
func (c *Coordinator) Running() (uuid.UUID, bool) {
	return c.running, c.running != uuid.Nil
}

// RunningCount counts engines currently in the Running state.
func (c *Coordinator) RunningCount() int {
	n := 0
	for _, e := range c.engines {
		if e.State() == countdown.StateRunning {
			n++
		}
	}
	return n
}

// Release drops the engine for id after stopping its tick and alert. It is
// a no-op for unknown ids.
func (c *Coordinator) Release(id uuid.UUID) {
	e, ok := c.engines[id]
	if !ok {
		return
	}
	e.Release()
	delete(c.engines, id)
	c.OnStopped(id)
}

// Refresh pushes an edited timer's name and duration to its engine.
func (c *Coordinator) Refresh(t *model.Timer) {
	if e, ok := c.engines[t.ID]; ok {
		e.SetTimer(t.Name, t.DurationSeconds)
	}
}

// FlushAll asks every live engine to persist its checkpoint. Errors are
// collected; every engine is attempted.
func (c *Coordinator) FlushAll(ctx context.Context) error {
	var errs []error
	for _, id := range c.ids() {
		if _, err := c.engines[id].Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush timer %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Engines returns the live engines ordered by timer id.
func (c *Coordinator) Engines() []*countdown.Engine {
	out := make([]*countdown.Engine, 0, len(c.engines))
	for _, id := range c.ids() {
		out = append(out, c.engines[id])
	}
	return out
}

// CheckpointSource lists and loads persisted checkpoints.
type CheckpointSource interface {
	RuntimeIDs(ctx context.Context) ([]uuid.UUID, error)
	LoadRuntime(ctx context.Context, id uuid.UUID) (model.RuntimeState, bool, error)
	DeleteRuntime(ctx context.Context, id uuid.UUID) error
}

// RecoverAll restores every persisted checkpoint into its engine. Checkpoints
// of deleted timers and checkpoints that violate their invariants are
// removed. It returns the number of engines restored.
func (c *Coordinator) RecoverAll(ctx context.Context, src CheckpointSource) (int, error) {
	ids, err := src.RuntimeIDs(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		cp, ok, err := src.LoadRuntime(ctx, id)
		if err != nil {
			c.logger.Warn("unreadable checkpoint, discarding", "timer_id", id, "error", err)
			c.discard(ctx, src, id)
			continue
		}
		if !ok {
			continue
		}

		e, err := c.AcquireOrCreate(id)
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Debug("checkpoint for deleted timer, discarding", "timer_id", id)
			c.discard(ctx, src, id)
			continue
		}

		if _, err := e.Recover(ctx, cp); err != nil {
			if errors.Is(err, model.ErrInconsistentState) {
				c.logger.Error("inconsistent checkpoint, discarding", "timer_id", id, "error", err)
				c.discard(ctx, src, id)
				continue
			}
			return restored, fmt.Errorf("recover timer %s: %w", id, err)
		}
		restored++
	}
	return restored, nil
}

func (c *Coordinator) discard(ctx context.Context, src CheckpointSource, id uuid.UUID) {
	if err := src.DeleteRuntime(ctx, id); err != nil {
		c.logger.Warn("failed to discard checkpoint", "timer_id", id, "error", err)
	}
}

// ApplyRemote mirrors a peer's runtime action onto the named timer. Unknown
// timers are ignored until a later FullSync brings them in. A remote start
// or resume yields to a different timer already running on this device.
func (c *Coordinator) ApplyRemote(ctx context.Context, id uuid.UUID, action countdown.Action, remaining int) (countdown.Transition, error) {
	e, err := c.AcquireOrCreate(id)
	if errors.Is(err, model.ErrNotFound) {
		c.logger.Debug("runtime action for unknown timer ignored", "timer_id", id, "action", action)
		return countdown.Transition{}, nil
	}
	if err != nil {
		return countdown.Transition{}, err
	}

	if action == countdown.ActionStarted || action == countdown.ActionResumed {
		if running, ok := c.Running(); ok && running != id {
			c.logger.Info("remote start yields to local running timer",
				"timer_id", id, "running", running)
			return countdown.Transition{From: e.State(), To: e.State(), Remaining: e.Remaining()}, nil
		}
	}
	return e.ApplyRemote(ctx, action, remaining)
}

func (c *Coordinator) ids() []uuid.UUID {
	return slices.SortedFunc(maps.Keys(c.engines), func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
}

// Compile-time interface satisfaction check.
var _ countdown.Exclusivity = (*Coordinator)(nil)
