package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/catalog"
	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// Timers returns every timer ordered by sort rank.
func (s *DeviceService) Timers() []*model.Timer {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.List()
}

// Timer returns one timer.
func (s *DeviceService) Timer(id uuid.UUID) (*model.Timer, bool) {
	if s.catalog == nil {
		return nil, false
	}
	return s.catalog.Get(id)
}

// CreateTimer creates a timer and replicates it.
func (s *DeviceService) CreateTimer(ctx context.Context, nt catalog.NewTimer) (*model.Timer, error) {
	var out *model.Timer
	err := s.exec(ctx, func() error {
		t, err := s.catalog.Create(s.ctx, nt)
		if err != nil {
			return s.failed("create", uuid.Nil, err)
		}
		s.proto.TimerCreated(t)
		s.timerChanged(t)
		out = t
		return nil
	})
	return out, err
}

// UpdateTimer edits a timer's scalar fields and replicates the result. A
// running countdown keeps its remaining time; a new duration applies from
// the next start.
func (s *DeviceService) UpdateTimer(ctx context.Context, id uuid.UUID, patch catalog.TimerPatch) (*model.Timer, error) {
	var out *model.Timer
	err := s.exec(ctx, func() error {
		t, err := s.catalog.Update(s.ctx, id, patch)
		if err != nil {
			return s.failed("update", id, err)
		}
		s.coord.Refresh(t)
		s.proto.TimerUpdated(t)
		s.timerChanged(t)
		out = t
		return nil
	})
	return out, err
}

// DeleteTimer deletes a timer, stops its countdown and replicates the
// deletion.
func (s *DeviceService) DeleteTimer(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, func() error {
		if err := s.catalog.Delete(s.ctx, id); err != nil {
			return s.failed("delete", id, err)
		}
		s.coord.Release(id)
		s.recorder.SetRunningTimers(s.coord.RunningCount())
		s.proto.TimerDeleted(id)
		s.emitEvent(Event{Type: EventTimerDeleted, TimerID: id})
		return nil
	})
}

// UpdateNotes replaces a timer's notes and replicates them as a quick
// action.
func (s *DeviceService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*model.Timer, error) {
	var out *model.Timer
	err := s.exec(ctx, func() error {
		t, err := s.catalog.SetNotes(s.ctx, id, notes)
		if err != nil {
			return s.failed("notes", id, err)
		}
		s.proto.NotesUpdated(t)
		s.timerChanged(t)
		out = t
		return nil
	})
	return out, err
}

// AddItem appends a checklist item.
func (s *DeviceService) AddItem(ctx context.Context, timerID uuid.UUID, text string) (model.ChecklistItem, error) {
	return s.itemIntent(ctx, "add_item", timerID, false, func() (*model.Timer, model.ChecklistItem, error) {
		return s.catalog.AddItem(s.ctx, timerID, text)
	})
}

// ToggleItem flips an item's completed flag and replicates it as a quick
// action.
func (s *DeviceService) ToggleItem(ctx context.Context, timerID, itemID uuid.UUID) (model.ChecklistItem, error) {
	return s.itemIntent(ctx, "toggle_item", timerID, true, func() (*model.Timer, model.ChecklistItem, error) {
		return s.catalog.ToggleItem(s.ctx, timerID, itemID)
	})
}

// RenameItem changes an item's text.
func (s *DeviceService) RenameItem(ctx context.Context, timerID, itemID uuid.UUID, text string) (model.ChecklistItem, error) {
	return s.itemIntent(ctx, "rename_item", timerID, false, func() (*model.Timer, model.ChecklistItem, error) {
		return s.catalog.RenameItem(s.ctx, timerID, itemID, text)
	})
}

// MoveItem changes an item's sort rank.
func (s *DeviceService) MoveItem(ctx context.Context, timerID, itemID uuid.UUID, rank int) (model.ChecklistItem, error) {
	return s.itemIntent(ctx, "move_item", timerID, false, func() (*model.Timer, model.ChecklistItem, error) {
		return s.catalog.MoveItem(s.ctx, timerID, itemID, rank)
	})
}

// RemoveItem deletes a checklist item.
func (s *DeviceService) RemoveItem(ctx context.Context, timerID, itemID uuid.UUID) error {
	return s.exec(ctx, func() error {
		t, err := s.catalog.RemoveItem(s.ctx, timerID, itemID)
		if err != nil {
			return s.failed("remove_item", timerID, err)
		}
		s.proto.TimerUpdated(t)
		s.timerChanged(t)
		return nil
	})
}

// itemIntent runs an item mutation. Toggles travel as quick actions, every
// other edit as a full timer record.
func (s *DeviceService) itemIntent(ctx context.Context, op string, timerID uuid.UUID, quick bool, fn func() (*model.Timer, model.ChecklistItem, error)) (model.ChecklistItem, error) {
	var out model.ChecklistItem
	err := s.exec(ctx, func() error {
		t, it, err := fn()
		if err != nil {
			return s.failed(op, timerID, err)
		}
		if quick {
			s.proto.ItemToggled(timerID, it)
		} else {
			s.proto.TimerUpdated(t)
		}
		s.timerChanged(t)
		out = it
		return nil
	})
	return out, err
}

func (s *DeviceService) timerChanged(t *model.Timer) {
	s.emitEvent(Event{Type: EventTimerChanged, TimerID: t.ID, Timer: t.Clone()})
}

// StartTimer starts or resumes a countdown, pausing any other running one.
func (s *DeviceService) StartTimer(ctx context.Context, id uuid.UUID) (countdown.Transition, error) {
	return s.runtimeIntent(ctx, "start", id, (*countdown.Engine).Start)
}

// PauseTimer pauses a running countdown.
func (s *DeviceService) PauseTimer(ctx context.Context, id uuid.UUID) (countdown.Transition, error) {
	return s.runtimeIntent(ctx, "pause", id, (*countdown.Engine).Pause)
}

// ResumeTimer resumes a paused countdown, pausing any other running one.
func (s *DeviceService) ResumeTimer(ctx context.Context, id uuid.UUID) (countdown.Transition, error) {
	return s.runtimeIntent(ctx, "resume", id, (*countdown.Engine).Resume)
}

// ResetTimer returns a countdown to idle at full duration.
func (s *DeviceService) ResetTimer(ctx context.Context, id uuid.UUID) (countdown.Transition, error) {
	return s.runtimeIntent(ctx, "reset", id, (*countdown.Engine).Reset)
}

func (s *DeviceService) runtimeIntent(ctx context.Context, op string, id uuid.UUID, fn func(*countdown.Engine, context.Context) (countdown.Transition, error)) (countdown.Transition, error) {
	var out countdown.Transition
	err := s.exec(ctx, func() error {
		e, err := s.coord.AcquireOrCreate(id)
		if err != nil {
			return err
		}
		tr, err := fn(e, s.ctx)
		if err != nil {
			return s.failed(op, id, err)
		}
		out = tr
		return nil
	})
	return out, err
}

// Runtime returns the countdown view of a timer. Timers without a live
// engine are idle at full duration.
func (s *DeviceService) Runtime(ctx context.Context, id uuid.UUID) (RuntimeStatus, error) {
	var out RuntimeStatus
	err := s.exec(ctx, func() error {
		if e, ok := s.coord.Lookup(id); ok {
			out = RuntimeStatus{TimerID: id, State: e.State(), Remaining: e.Remaining()}
			return nil
		}
		t, ok := s.catalog.Get(id)
		if !ok {
			return fmt.Errorf("timer %s: %w", id, model.ErrNotFound)
		}
		out = RuntimeStatus{TimerID: id, State: countdown.StateIdle, Remaining: t.DurationSeconds}
		return nil
	})
	return out, err
}

// RequestResync pushes a FullSync to the peer and asks for its own.
func (s *DeviceService) RequestResync(ctx context.Context) error {
	return s.exec(ctx, func() error {
		return s.proto.RequestResync("manual")
	})
}

// Background persists every live countdown so a later cold start recovers
// exact remaining times.
func (s *DeviceService) Background(ctx context.Context) error {
	return s.exec(ctx, func() error {
		return s.coord.FlushAll(s.ctx)
	})
}

// Status returns a summary of the device.
func (s *DeviceService) Status(ctx context.Context) (Status, error) {
	var out Status
	err := s.exec(ctx, func() error {
		running, _ := s.coord.Running()
		out = Status{
			DeviceID:       s.config.DeviceID,
			PeerID:         s.config.PeerID,
			State:          StateRunning,
			Reachable:      s.transport.IsReachable(),
			Timers:         s.catalog.Len(),
			LiveEngines:    len(s.coord.Engines()),
			Running:        running,
			PendingStreams: s.proto.PendingStreams(),
		}
		return nil
	})
	return out, err
}
