// Package notify arms and disarms the "timer finished" alert.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/schedule"
)

// Scheduler arms a one-shot alert per timer. Arming a timer that already
// has an alert replaces it.
type Scheduler interface {
	Arm(timerID uuid.UUID, fireAt time.Time, title, body string) error
	Disarm(timerID uuid.UUID)
}

// Alert is a fired notification.
type Alert struct {
	TimerID uuid.UUID
	FireAt  time.Time
	Title   string
	Body    string
}

// CronScheduler delivers alerts through a schedule.Scheduler.
type CronScheduler struct {
	sched   *schedule.Scheduler
	deliver func(Alert)
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[uuid.UUID]uuid.UUID
}

// NewCronScheduler creates a CronScheduler calling deliver when an alert
// fires. deliver runs on a scheduler goroutine.
func NewCronScheduler(sched *schedule.Scheduler, deliver func(Alert), logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{
		sched:   sched,
		deliver: deliver,
		logger:  logger,
		jobs:    make(map[uuid.UUID]uuid.UUID),
	}
}

// Arm schedules the alert for timerID at fireAt.
func (c *CronScheduler) Arm(timerID uuid.UUID, fireAt time.Time, title, body string) error {
	c.Disarm(timerID)

	alert := Alert{TimerID: timerID, FireAt: fireAt, Title: title, Body: body}
	jobID, err := c.sched.At("alert-"+timerID.String(), fireAt, func() { c.fire(alert) })
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.jobs[timerID] = jobID
	c.mu.Unlock()
	return nil
}

// Disarm cancels the pending alert for timerID, if any.
func (c *CronScheduler) Disarm(timerID uuid.UUID) {
	c.mu.Lock()
	jobID, ok := c.jobs[timerID]
	delete(c.jobs, timerID)
	c.mu.Unlock()

	if !ok {
		return
	}
	if err := c.sched.Cancel(jobID); err != nil {
		c.logger.Warn("failed to cancel alert", "timer_id", timerID, "error", err)
	}
}

// Armed reports whether an alert is pending for timerID.
func (c *CronScheduler) Armed(timerID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.jobs[timerID]
	return ok
}

func (c *CronScheduler) fire(a Alert) {
	c.mu.Lock()
	delete(c.jobs, a.TimerID)
	c.mu.Unlock()

	if c.deliver != nil {
		c.deliver(a)
	}
}

// Compile-time interface satisfaction check.
var _ Scheduler = (*CronScheduler)(nil)
