package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RuntimeState is the countdown checkpoint persisted for one Timer.
//
// Zero timestamps mean absent. Invariants (see Validate):
//   - RemainingSeconds >= 0
//   - not both Running and Paused
//   - Running implies StartTimestamp is set
//   - Paused implies PauseTimestamp is set
type RuntimeState struct {
	TimerID          uuid.UUID
	Running          bool
	Paused           bool
	RemainingSeconds int
	StartTimestamp   time.Time
	PauseTimestamp   time.Time
	LastUpdate       time.Time
}

// Validate checks the RuntimeState invariants.
func (s *RuntimeState) Validate() error {
	switch {
	case s.RemainingSeconds < 0:
		return fmt.Errorf("%w: negative remaining seconds %d", ErrInconsistentState, s.RemainingSeconds)
	case s.Running && s.Paused:
		return fmt.Errorf("%w: both running and paused", ErrInconsistentState)
	case s.Running && s.StartTimestamp.IsZero():
		return fmt.Errorf("%w: running without start timestamp", ErrInconsistentState)
	case s.Paused && s.PauseTimestamp.IsZero():
		return fmt.Errorf("%w: paused without pause timestamp", ErrInconsistentState)
	}
	return nil
}

// EffectiveRemaining applies the elapsed-time recovery formula:
// while running, max(0, remaining - floor(now - last update)) in seconds;
// otherwise the checkpoint value unchanged. A clock that moved backwards
// counts as zero elapsed time.
func (s *RuntimeState) EffectiveRemaining(now time.Time) int {
	if !s.Running {
		return s.RemainingSeconds
	}
	elapsed := now.Sub(s.LastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := s.RemainingSeconds - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
