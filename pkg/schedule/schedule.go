// Package schedule runs recurring and one-shot callbacks on a gocron
// scheduler with an injectable clock.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Config configures a Scheduler.
type Config struct {
	// Clock drives job timing. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger receives scheduler diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	cron  gocron.Scheduler
	clock clockwork.Clock
}

// New creates a Scheduler. Call Start before jobs can fire.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	cron, err := gocron.NewScheduler(
		gocron.WithClock(cfg.Clock),
		gocron.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{cron: cron, clock: cfg.Clock}, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// Every runs fn once per interval until cancelled. Runs that would overlap
// a still-running call are skipped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) (uuid.UUID, error) {
	j, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	return j.ID(), nil
}

// At runs fn once at the given time, or immediately if it has passed.
func (s *Scheduler) At(name string, at time.Time, fn func()) (uuid.UUID, error) {
	var (
		j   gocron.Job
		err error
	)
	if at.After(s.clock.Now()) {
		j, err = s.cron.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
			gocron.NewTask(fn),
			gocron.WithName(name),
		)
	} else {
		j, err = s.cron.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()),
			gocron.NewTask(fn),
			gocron.WithName(name),
		)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	return j.ID(), nil
}

// Cancel removes a job. Cancelling an unknown or finished job is a no-op.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	if err := s.cron.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Jobs())
}
