package coordinator

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	"github.com/pairtimer/pairtimer-go/pkg/model"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type timerMap map[uuid.UUID]*model.Timer

func (m timerMap) Get(id uuid.UUID) (*model.Timer, bool) {
	t, ok := m[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

type checkpoints struct {
	states  map[uuid.UUID]model.RuntimeState
	failFor uuid.UUID
}

var errDiskFull = errors.New("disk full")

func (c *checkpoints) SaveRuntime(_ context.Context, s model.RuntimeState) error {
	if s.TimerID == c.failFor {
		return errDiskFull
	}
	c.states[s.TimerID] = s
	return nil
}

func (c *checkpoints) DeleteRuntime(_ context.Context, id uuid.UUID) error {
	delete(c.states, id)
	return nil
}

func (c *checkpoints) RuntimeIDs(context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range c.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *checkpoints) LoadRuntime(_ context.Context, id uuid.UUID) (model.RuntimeState, bool, error) {
	s, ok := c.states[id]
	return s, ok, nil
}

type silentAlerts struct{}

func (silentAlerts) Arm(uuid.UUID, time.Time, string, string) error { return nil }
func (silentAlerts) Disarm(uuid.UUID)                               {}

type noTicks struct{}

func (noTicks) Every(string, time.Duration, func()) (func(), error) { return func() {}, nil }

type fixture struct {
	coord  *Coordinator
	timers timerMap
	cps    *checkpoints
	clock  *clockwork.FakeClock
	ids    []uuid.UUID
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := &fixture{
		timers: make(timerMap),
		cps:    &checkpoints{states: make(map[uuid.UUID]model.RuntimeState)},
		clock:  clockwork.NewFakeClockAt(t0),
	}
	for i := 0; i < n; i++ {
		id := uuid.New()
		f.timers[id] = &model.Timer{ID: id, Name: "T", DurationSeconds: 600}
		f.ids = append(f.ids, id)
	}
	f.coord = New(Config{
		Timers: f.timers,
		NewEngine: func(tm *model.Timer, excl countdown.Exclusivity) *countdown.Engine {
			return countdown.NewEngine(countdown.EngineConfig{
				TimerID:         tm.ID,
				Name:            tm.Name,
				DurationSeconds: tm.DurationSeconds,
				Checkpoints:     f.cps,
				Notifier:        silentAlerts{},
				Ticker:          noTicks{},
				Exclusivity:     excl,
				Clock:           f.clock,
			})
		},
	})
	return f
}

func (f *fixture) engine(t *testing.T, i int) *countdown.Engine {
	t.Helper()
	e, err := f.coord.AcquireOrCreate(f.ids[i])
	if err != nil {
		t.Fatalf("AcquireOrCreate failed: %v", err)
	}
	return e
}

func TestAcquireOrCreateReturnsSameHandle(t *testing.T) {
	f := newFixture(t, 1)
	a := f.engine(t, 0)
	b := f.engine(t, 0)
	if a != b {
		t.Error("expected the same engine for the same timer id")
	}
}

func TestAcquireOrCreateUnknown(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.coord.AcquireOrCreate(uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartPausesOthers(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	a, b := f.engine(t, 0), f.engine(t, 1)

	if _, err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)
	if _, err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if a.State() != countdown.StatePaused {
		t.Errorf("first engine state = %v, want PAUSED", a.State())
	}
	if a.Remaining() != 590 {
		t.Errorf("first engine remaining = %d, want 590", a.Remaining())
	}
	if id, ok := f.coord.Running(); !ok || id != f.ids[1] {
		t.Errorf("Running() = %v, %v; want second timer", id, ok)
	}
}

func TestFailedStartKeepsOtherRunning(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	x, y := f.engine(t, 0), f.engine(t, 1)

	if _, err := x.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)
	f.cps.failFor = f.ids[1]

	if _, err := y.Start(ctx); !errors.Is(err, errDiskFull) {
		t.Fatalf("Start() error = %v, want disk full", err)
	}
	if x.State() != countdown.StateRunning {
		t.Errorf("first engine state = %v, want RUNNING", x.State())
	}
	if y.State() != countdown.StateIdle {
		t.Errorf("second engine state = %v, want IDLE", y.State())
	}
	if id, ok := f.coord.Running(); !ok || id != f.ids[0] {
		t.Errorf("Running() = %v, %v; want first timer", id, ok)
	}
	if !f.cps.states[f.ids[0]].Running {
		t.Error("first engine checkpoint must still be running")
	}
}

func TestOnStoppedIgnoresStaleID(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	b := f.engine(t, 1)
	if _, err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}

	f.coord.OnStopped(f.ids[0])
	if id, ok := f.coord.Running(); !ok || id != f.ids[1] {
		t.Error("stale OnStopped must not clear the running id")
	}
	f.coord.OnStopped(f.ids[1])
	if _, ok := f.coord.Running(); ok {
		t.Error("OnStopped for the running id must clear it")
	}
}

func TestMutualExclusionRandomized(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	for step := 0; step < 500; step++ {
		f.clock.Advance(time.Duration(rng.IntN(5000)) * time.Millisecond)
		e := f.engine(t, rng.IntN(len(f.ids)))
		var err error
		switch rng.IntN(5) {
		case 0, 1:
			_, err = e.Start(ctx)
		case 2:
			_, err = e.Pause(ctx)
		case 3:
			_, err = e.Resume(ctx)
		case 4:
			_, err = e.Reset(ctx)
		}
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}

		if n := f.coord.RunningCount(); n > 1 {
			t.Fatalf("step %d: %d engines running", step, n)
		}
		running, ok := f.coord.Running()
		if n := f.coord.RunningCount(); (n == 1) != ok {
			t.Fatalf("step %d: running id %v/%v disagrees with %d running engines", step, running, ok, n)
		}
		if ok {
			if eng, _ := f.coord.Lookup(running); eng.State() != countdown.StateRunning {
				t.Fatalf("step %d: recorded running timer is %v", step, eng.State())
			}
		}
	}
}

func TestReleaseDropsEngine(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	e := f.engine(t, 0)
	if _, err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}

	f.coord.Release(f.ids[0])
	if _, ok := f.coord.Lookup(f.ids[0]); ok {
		t.Error("engine still registered after Release")
	}
	if _, ok := f.coord.Running(); ok {
		t.Error("running id not cleared after Release")
	}
	// Unknown ids are a no-op.
	f.coord.Release(uuid.New())
}

func TestFlushAllPersistsCheckpoints(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	a, b := f.engine(t, 0), f.engine(t, 1)
	a.Start(ctx)
	f.clock.Advance(30 * time.Second)
	b.Start(ctx)
	f.clock.Advance(45*time.Second + 500*time.Millisecond)

	if err := f.coord.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if cp := f.cps.states[f.ids[0]]; !cp.Paused || cp.RemainingSeconds != 570 {
		t.Errorf("paused checkpoint = %+v", cp)
	}
	cp := f.cps.states[f.ids[1]]
	if !cp.Running || cp.RemainingSeconds != 555 || !cp.LastUpdate.Equal(t0.Add(75*time.Second)) {
		t.Errorf("running checkpoint = %+v", cp)
	}
}

func TestRecoverAll(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	deleted := uuid.New()

	f.cps.states[f.ids[0]] = model.RuntimeState{TimerID: f.ids[0], Running: true, RemainingSeconds: 100, StartTimestamp: t0, LastUpdate: t0}
	f.cps.states[f.ids[1]] = model.RuntimeState{TimerID: f.ids[1], Paused: true, RemainingSeconds: 800, PauseTimestamp: t0, LastUpdate: t0}
	f.cps.states[f.ids[2]] = model.RuntimeState{TimerID: f.ids[2], Running: true, Paused: true, StartTimestamp: t0, PauseTimestamp: t0}
	f.cps.states[deleted] = model.RuntimeState{TimerID: deleted, Paused: true, RemainingSeconds: 5, PauseTimestamp: t0, LastUpdate: t0}
	f.clock.Advance(30 * time.Second)

	n, err := f.coord.RecoverAll(ctx, f.cps)
	if err != nil {
		t.Fatalf("RecoverAll failed: %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d engines, want 2", n)
	}
	if e, _ := f.coord.Lookup(f.ids[0]); e.State() != countdown.StateRunning || e.Remaining() != 70 {
		t.Errorf("running timer recovered as %v/%d", e.State(), e.Remaining())
	}
	if e, _ := f.coord.Lookup(f.ids[1]); e.State() != countdown.StatePaused || e.Remaining() != 800 {
		t.Errorf("paused timer recovered as %v/%d", e.State(), e.Remaining())
	}
	if _, ok := f.cps.states[f.ids[2]]; ok {
		t.Error("inconsistent checkpoint should be discarded")
	}
	if _, ok := f.cps.states[deleted]; ok {
		t.Error("checkpoint of deleted timer should be discarded")
	}
	if id, ok := f.coord.Running(); !ok || id != f.ids[0] {
		t.Error("recovered running timer should hold the running slot")
	}
}

func TestApplyRemote(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	// Unknown timers are ignored.
	if _, err := f.coord.ApplyRemote(ctx, uuid.New(), countdown.ActionStarted, 10); err != nil {
		t.Errorf("unknown timer: %v", err)
	}

	local := f.engine(t, 0)
	if _, err := local.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// A remote start yields to the local running timer.
	if _, err := f.coord.ApplyRemote(ctx, f.ids[1], countdown.ActionStarted, 300); err != nil {
		t.Fatal(err)
	}
	if local.State() != countdown.StateRunning {
		t.Error("local running timer should keep running")
	}
	if e, _ := f.coord.Lookup(f.ids[1]); e.State() != countdown.StateIdle {
		t.Errorf("remote-started timer state = %v, want IDLE", e.State())
	}

	// Once the peer pauses the first timer, its start applies.
	if _, err := f.coord.ApplyRemote(ctx, f.ids[0], countdown.ActionPaused, 500); err != nil {
		t.Fatal(err)
	}
	if _, err := f.coord.ApplyRemote(ctx, f.ids[1], countdown.ActionStarted, 300); err != nil {
		t.Fatal(err)
	}
	if e, _ := f.coord.Lookup(f.ids[1]); e.State() != countdown.StateRunning || e.Remaining() != 300 {
		t.Errorf("remote start: %v/%d", e.State(), e.Remaining())
	}
	if local.Remaining() != 500 {
		t.Errorf("remote pause snapshot = %d, want 500", local.Remaining())
	}
}
