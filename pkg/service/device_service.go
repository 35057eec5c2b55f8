package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/catalog"
	"github.com/pairtimer/pairtimer-go/pkg/coordinator"
	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/metrics"
	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/notify"
	"github.com/pairtimer/pairtimer-go/pkg/persistence"
	"github.com/pairtimer/pairtimer-go/pkg/replication"
	"github.com/pairtimer/pairtimer-go/pkg/schedule"
	"github.com/pairtimer/pairtimer-go/pkg/transport"
)

// DeviceService runs one device of the pair.
type DeviceService struct {
	mu sync.RWMutex

	config DeviceConfig
	state  ServiceState

	clock      clockwork.Clock
	logger     *slog.Logger
	trace      plog.Logger
	recorder   metrics.Recorder
	transport  transport.Transport
	stateStore *persistence.DeviceStateStore

	sched    *schedule.Scheduler
	notifier notify.Scheduler
	loop     *control

	// Owned by the control goroutine once started.
	catalog *catalog.Catalog
	coord   *coordinator.Coordinator
	proto   *replication.Protocol

	eventHandlers []EventHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// RuntimeStatus is the countdown view of one timer.
type RuntimeStatus struct {
	TimerID   uuid.UUID
	State     countdown.State
	Remaining int
}

// Status summarizes the device.
type Status struct {
	DeviceID       string
	PeerID         string
	State          ServiceState
	Reachable      bool
	Timers         int
	LiveEngines    int
	Running        uuid.UUID
	PendingStreams int
}

// NewDeviceService creates a new device service.
func NewDeviceService(config DeviceConfig) (*DeviceService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.AlertTitle == nil {
		config.AlertTitle = func(name string) string { return name }
	}

	logger := config.Logger.With(plog.Device(config.DeviceID))
	sched, err := schedule.New(schedule.Config{Clock: config.Clock, Logger: logger})
	if err != nil {
		return nil, err
	}

	svc := &DeviceService{
		config:     config,
		state:      StateIdle,
		clock:      config.Clock,
		logger:     logger,
		trace:      plog.OrNoop(config.ProtocolLogger),
		recorder:   metrics.OrNoop(config.Recorder),
		transport:  config.Transport,
		stateStore: config.StateStore,
		sched:      sched,
	}

	notifier := config.Notifier
	if notifier == nil {
		notifier = notify.NewCronScheduler(sched, svc.handleAlert, logger)
	}
	svc.notifier = &titledNotifier{inner: notifier, title: config.AlertTitle}
	return svc, nil
}

// DeviceID returns the local device id.
func (s *DeviceService) DeviceID() string { return s.config.DeviceID }

// State returns the current service state.
func (s *DeviceService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnEvent registers an event handler.
func (s *DeviceService) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// Start loads the catalog, recovers persisted countdowns, wires the
// transport and, if the peer is reachable, runs the reconnect sequence.
func (s *DeviceService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	s.logger.Info("device service started",
		plog.Peer(s.config.PeerID),
		slog.Int("timers", s.catalog.Len()))
	return nil
}

func (s *DeviceService) start(ctx context.Context) error {
	cat, err := catalog.Open(ctx, catalog.Config{
		Store:  s.config.Store,
		Clock:  s.clock,
		Logger: s.logger,
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	s.catalog = cat

	s.coord = coordinator.New(coordinator.Config{
		Timers:    cat,
		NewEngine: s.newEngine,
		Logger:    s.logger,
	})

	s.proto = replication.New(replication.Config{
		DeviceID:       s.config.DeviceID,
		PeerID:         s.config.PeerID,
		Role:           s.config.Role,
		Transport:      s.transport,
		Catalog:        cat,
		Runtime:        s.coord,
		Clock:          s.clock,
		Logger:         s.logger,
		ProtocolLogger: s.config.ProtocolLogger,
		Recorder:       s.recorder,
		OnTimerChanged: s.remoteTimerChanged,
		OnTimerDeleted: s.remoteTimerDeleted,
		OnFullSync:     s.fullSyncApplied,
	})

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.loop = newControl()
	s.sched.Start()

	err = s.loop.do(ctx, func() error {
		n, err := s.coord.RecoverAll(s.ctx, s.catalog)
		if err != nil {
			return fmt.Errorf("recover countdowns: %w", err)
		}
		s.recorder.SetRunningTimers(s.coord.RunningCount())
		s.logger.Info("recovered countdowns", slog.Int("count", n))
		return nil
	})
	if err != nil {
		s.teardown()
		return err
	}

	s.transport.OnReceive(func(data []byte) {
		s.loop.post(func() { s.proto.HandleInbound(s.ctx, data) })
	})
	s.transport.OnReachabilityChanged(func(reachable bool) {
		s.loop.post(func() { s.reachabilityChanged(reachable) })
	})
	if s.transport.IsReachable() {
		s.loop.post(func() { s.reachabilityChanged(true) })
	}
	return nil
}

// Stop flushes every live countdown and releases the scheduler, the
// transport and the store.
func (s *DeviceService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	err := s.loop.do(context.Background(), func() error {
		err := s.coord.FlushAll(s.ctx)
		for _, e := range s.coord.Engines() {
			s.coord.Release(e.TimerID())
		}
		return err
	})
	if err != nil {
		s.logger.Warn("flush on stop failed", plog.Err(err))
	}
	s.teardown()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("device service stopped")
	return err
}

func (s *DeviceService) teardown() {
	s.loop.stop()
	if err := s.sched.Shutdown(); err != nil {
		s.logger.Warn("scheduler shutdown failed", plog.Err(err))
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close failed", plog.Err(err))
	}
	if err := s.config.Store.Close(); err != nil {
		s.logger.Warn("store close failed", plog.Err(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// newEngine builds the countdown engine for a timer.
func (s *DeviceService) newEngine(t *model.Timer, excl countdown.Exclusivity) *countdown.Engine {
	var ticker countdown.Ticker = &scheduleTicker{sched: s.sched, logger: s.logger}
	if s.config.Ticker != nil {
		ticker = s.config.Ticker
	}
	return countdown.NewEngine(countdown.EngineConfig{
		TimerID:         t.ID,
		Name:            t.Name,
		DurationSeconds: t.DurationSeconds,
		Checkpoints:     s.catalog,
		Notifier:        s.notifier,
		Ticker:          &loopTicker{inner: ticker, loop: s.loop, logger: s.logger},
		Exclusivity:     excl,
		Clock:           s.clock,
		TickInterval:    s.config.TickInterval,
		AlertBody:       s.config.AlertBody,
		OnChange:        s.runtimeChanged,
		Logger:          s.logger,
	})
}

// runtimeChanged observes every applied countdown transition.
func (s *DeviceService) runtimeChanged(c countdown.Change) {
	s.proto.RuntimeChanged(c)

	if c.Transition.Action != countdown.ActionTick {
		s.recorder.IncRuntimeTransition(c.Transition.Action.String(), c.Origin.String())
		s.recorder.SetRunningTimers(s.coord.RunningCount())
	}

	typ := EventRuntimeChanged
	if c.Transition.Action == countdown.ActionCompleted {
		typ = EventTimerCompleted
	}
	s.emitEvent(Event{Type: typ, TimerID: c.TimerID, Change: &c})
}

func (s *DeviceService) reachabilityChanged(reachable bool) {
	s.proto.HandleReachability(reachable)
	s.emitEvent(Event{Type: EventReachabilityChanged, Reachable: reachable})
}

func (s *DeviceService) remoteTimerChanged(t *model.Timer) {
	s.emitEvent(Event{Type: EventTimerChanged, TimerID: t.ID, Timer: t.Clone()})
}

func (s *DeviceService) remoteTimerDeleted(id uuid.UUID) {
	s.recorder.SetRunningTimers(s.coord.RunningCount())
	s.emitEvent(Event{Type: EventTimerDeleted, TimerID: id})
}

func (s *DeviceService) fullSyncApplied(at time.Time) {
	if s.stateStore != nil {
		if err := s.stateStore.Update(func(st *persistence.DeviceState) { st.LastFullSync = at }); err != nil {
			s.logger.Warn("failed to record full sync", plog.Err(err))
		}
	}
	s.emitEvent(Event{Type: EventFullSync})
}

// handleAlert runs on a scheduler goroutine.
func (s *DeviceService) handleAlert(a notify.Alert) {
	s.logger.Info("timer alert", plog.TimerID(a.TimerID), slog.String("title", a.Title))
	s.emitEvent(Event{Type: EventAlert, TimerID: a.TimerID, Alert: &a})
}

// failed reports a local mutation error. Save failures are counted and
// surfaced as events; the error is returned unchanged.
func (s *DeviceService) failed(op string, timerID uuid.UUID, err error) error {
	if errors.Is(err, catalog.ErrSaveFailed) {
		s.recorder.IncStoreFailure(op)
		s.logger.Error("couldn't save", slog.String("op", op), plog.TimerID(timerID), plog.Err(err))
		s.emitEvent(Event{Type: EventSaveFailed, TimerID: timerID, Error: err})
	}
	return err
}

// emitEvent sends an event to all registered handlers.
func (s *DeviceService) emitEvent(event Event) {
	event.Time = s.clock.Now()
	s.mu.RLock()
	handlers := s.eventHandlers
	s.mu.RUnlock()
	for _, handler := range handlers {
		go handler(event)
	}
}

// exec runs fn on the control goroutine.
func (s *DeviceService) exec(ctx context.Context, fn func() error) error {
	if s.State() != StateRunning {
		return ErrNotStarted
	}
	return s.loop.do(ctx, fn)
}
