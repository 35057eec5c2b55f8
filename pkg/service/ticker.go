package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/notify"
	"github.com/pairtimer/pairtimer-go/pkg/schedule"
)

// scheduleTicker runs ticks as recurring scheduler jobs.
type scheduleTicker struct {
	sched  *schedule.Scheduler
	logger *slog.Logger
}

func (t *scheduleTicker) Every(name string, interval time.Duration, fn func()) (func(), error) {
	id, err := t.sched.Every(name, interval, fn)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := t.sched.Cancel(id); err != nil {
			t.logger.Warn("failed to cancel tick", slog.String("job", name), plog.Err(err))
		}
	}, nil
}

// loopTicker moves tick callbacks onto the control goroutine. A tick that
// finds the queue full is dropped; the next one catches up because ticks
// recompute the remaining time from the checkpoint.
type loopTicker struct {
	inner  countdown.Ticker
	loop   *control
	logger *slog.Logger
}

func (t *loopTicker) Every(name string, interval time.Duration, fn func()) (func(), error) {
	return t.inner.Every(name, interval, func() {
		if !t.loop.tryPost(fn) {
			t.logger.Debug("tick dropped", slog.String("job", name))
		}
	})
}

// titledNotifier renders the alert title before arming.
type titledNotifier struct {
	inner notify.Scheduler
	title func(name string) string
}

func (n *titledNotifier) Arm(timerID uuid.UUID, fireAt time.Time, name, body string) error {
	return n.inner.Arm(timerID, fireAt, n.title(name), body)
}

func (n *titledNotifier) Disarm(timerID uuid.UUID) { n.inner.Disarm(timerID) }

// Compile-time interface satisfaction checks.
var (
	_ countdown.Ticker = (*scheduleTicker)(nil)
	_ countdown.Ticker = (*loopTicker)(nil)
	_ notify.Scheduler = (*titledNotifier)(nil)
)
