package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/metrics"
	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/transport"
	"github.com/pairtimer/pairtimer-go/pkg/wire"
)

// Catalog is the local timer collection.
type Catalog interface {
	Get(id uuid.UUID) (*model.Timer, bool)
	List() []*model.Timer
	Put(ctx context.Context, t *model.Timer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Runtime is the local countdown registry.
type Runtime interface {
	ApplyRemote(ctx context.Context, id uuid.UUID, action countdown.Action, remaining int) (countdown.Transition, error)
	Release(id uuid.UUID)
	Refresh(t *model.Timer)
	Engines() []*countdown.Engine
}

// Config configures a Protocol.
type Config struct {
	DeviceID string
	PeerID   string
	Role     plog.Role

	Transport transport.Transport
	Catalog   Catalog
	Runtime   Runtime

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	Logger         *slog.Logger
	ProtocolLogger plog.Logger
	Recorder       metrics.Recorder

	// OnTimerChanged is called after an incoming record changed the catalog.
	OnTimerChanged func(t *model.Timer)

	// OnTimerDeleted is called after an incoming delete removed a timer.
	OnTimerDeleted func(id uuid.UUID)

	// OnFullSync is called after a peer FullSync was applied.
	OnFullSync func(at time.Time)
}

// Protocol is one device's side of the replication protocol.
type Protocol struct {
	cfg       Config
	transport transport.Transport
	catalog   Catalog
	runtime   Runtime
	clock     clockwork.Clock
	logger    *slog.Logger
	trace     plog.Logger
	recorder  metrics.Recorder

	pending *pendingContext
}

// New creates a Protocol.
func New(cfg Config) *Protocol {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Protocol{
		cfg:       cfg,
		transport: cfg.Transport,
		catalog:   cfg.Catalog,
		runtime:   cfg.Runtime,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		trace:     plog.OrNoop(cfg.ProtocolLogger),
		recorder:  metrics.OrNoop(cfg.Recorder),
		pending:   newPendingContext(),
	}
}

// PendingStreams returns the number of streams waiting in the durable
// context.
func (p *Protocol) PendingStreams() int { return p.pending.len() }

func (p *Protocol) now() time.Time { return model.Normalize(p.clock.Now()) }

// TimerCreated replicates a new timer.
func (p *Protocol) TimerCreated(t *model.Timer) {
	rec := wire.RecordFromTimer(t)
	p.publish(TimerStream(t.ID), t.ID, &wire.TimerChangeMessage{Kind: wire.ChangeCreated, TimerID: t.ID, Timer: &rec})
}

// TimerUpdated replicates a changed timer as a full record.
func (p *Protocol) TimerUpdated(t *model.Timer) {
	rec := wire.RecordFromTimer(t)
	p.publish(TimerStream(t.ID), t.ID, &wire.TimerChangeMessage{Kind: wire.ChangeUpdated, TimerID: t.ID, Timer: &rec})
}

// TimerDeleted replicates a delete. Pending messages for the timer are
// dropped.
func (p *Protocol) TimerDeleted(id uuid.UUID) {
	p.pending.removeTimer(id)
	p.publish(TimerStream(id), id, &wire.TimerChangeMessage{Kind: wire.ChangeDeleted, TimerID: id})
}

// ItemToggled replicates an item's completed flag.
func (p *Protocol) ItemToggled(timerID uuid.UUID, it model.ChecklistItem) {
	itemID, completed := it.ID, it.Completed
	p.publish(ItemStream(timerID, it.ID), timerID, &wire.QuickActionMessage{
		Kind:      wire.QuickItemToggled,
		TimerID:   timerID,
		ItemID:    &itemID,
		Completed: &completed,
		UpdatedAt: model.Normalize(it.UpdatedAt),
	})
}

// NotesUpdated replicates a timer's notes.
func (p *Protocol) NotesUpdated(t *model.Timer) {
	notes := t.Notes
	p.publish(NotesStream(t.ID), t.ID, &wire.QuickActionMessage{
		Kind:      wire.QuickNotesUpdate,
		TimerID:   t.ID,
		Notes:     &notes,
		UpdatedAt: model.Normalize(t.UpdatedAt),
	})
}

// RuntimeChanged replicates a countdown transition. Transitions that were
// themselves mirrored from the peer, ticks and restores are not sent.
func (p *Protocol) RuntimeChanged(c countdown.Change) {
	if c.Origin == countdown.OriginRemote {
		return
	}
	action, ok := WireAction(c.Transition.Action)
	if !ok {
		return
	}
	p.publish(RuntimeStream(c.TimerID), c.TimerID, &wire.RuntimeActionMessage{
		TimerID:                  c.TimerID,
		Action:                   action,
		SnapshotRemainingSeconds: c.Transition.Remaining,
		Timestamp:                p.now(),
	})
}

// publish sends msg directly if possible and coalesces it otherwise.
func (p *Protocol) publish(stream string, timerID uuid.UUID, msg wire.Message) {
	env, err := wire.Seal(msg)
	if err != nil {
		p.logger.Error("failed to encode outbound message", plog.MsgType(string(msg.MessageType())), plog.Err(err))
		p.traceError(plog.LayerWire, err, "encode "+string(msg.MessageType()))
		p.recorder.IncMessage(string(msg.MessageType()), metrics.MessageDropped)
		return
	}

	if p.transport.IsReachable() {
		err := p.sendEnvelope(env)
		if err == nil {
			p.traceMessage(plog.DirectionOut, timerID, stream, msg, plog.OutcomeSent)
			p.recorder.IncMessage(string(env.Type), metrics.MessageSent)
			if p.pending.remove(stream) {
				p.pushContext()
			}
			return
		}
		p.logger.Debug("direct send failed, coalescing", plog.Stream(stream), plog.Err(err))
	}

	p.pending.set(stream, env)
	p.pushContext()
	p.traceMessage(plog.DirectionOut, timerID, stream, msg, plog.OutcomeCoalesced)
	p.recorder.IncMessage(string(env.Type), metrics.MessageCoalesced)
}

func (p *Protocol) sendEnvelope(env wire.Envelope) error {
	data, err := wire.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := p.transport.Send(data); err != nil {
		return err
	}
	p.trace.Log(p.event(plog.DirectionOut, plog.LayerTransport, plog.CategoryMessage, uuid.Nil, func(e *plog.Event) {
		e.Frame = plog.NewFrameEvent(data, false)
	}))
	return nil
}

// sendDirect sends a message that is never coalesced.
func (p *Protocol) sendDirect(msg wire.Message) error {
	env, err := wire.Seal(msg)
	if err != nil {
		return err
	}
	if err := p.sendEnvelope(env); err != nil {
		p.recorder.IncMessage(string(env.Type), metrics.MessageDropped)
		return err
	}
	p.traceMessage(plog.DirectionOut, uuid.Nil, "", msg, plog.OutcomeSent)
	p.recorder.IncMessage(string(env.Type), metrics.MessageSent)
	return nil
}

// pushContext writes the pending context to the durable slot.
func (p *Protocol) pushContext() {
	data, err := wire.Encode(p.pending.bundle(p.now()))
	if err != nil {
		p.logger.Error("failed to encode context bundle", plog.Err(err))
		return
	}
	if err := p.transport.UpdateDurableContext(data); err != nil {
		p.logger.Warn("failed to update durable context", plog.Err(err))
		p.traceError(plog.LayerTransport, err, "update durable context")
		return
	}
	p.trace.Log(p.event(plog.DirectionOut, plog.LayerTransport, plog.CategoryMessage, uuid.Nil, func(e *plog.Event) {
		e.Frame = plog.NewFrameEvent(data, true)
	}))
}

// FullSync builds the payload describing every local timer.
func (p *Protocol) FullSync() *wire.FullSyncPayload {
	timers := p.catalog.List()
	payload := &wire.FullSyncPayload{Timers: make([]wire.TimerRecord, 0, len(timers)), Timestamp: p.now()}
	for _, t := range timers {
		payload.Timers = append(payload.Timers, wire.RecordFromTimer(t))
	}
	return payload
}

// RequestResync pushes a FullSync and asks the peer for its own.
func (p *Protocol) RequestResync(reason string) error {
	if !p.transport.IsReachable() {
		return transport.ErrUnreachable
	}
	if err := p.sendDirect(p.FullSync()); err != nil {
		return fmt.Errorf("send full sync: %w", err)
	}
	if err := p.sendDirect(&wire.FullSyncRequest{Timestamp: p.now(), Reason: reason}); err != nil {
		return fmt.Errorf("send full sync request: %w", err)
	}
	return nil
}

// HandleReachability reacts to the peer coming and going. On reconnect the
// device sends what it coalesced while apart, pushes a FullSync, requests
// the peer's, re-announces its own running or paused countdowns and then
// rewrites the durable context with whatever is still undelivered.
func (p *Protocol) HandleReachability(reachable bool) {
	p.recorder.SetPeerReachable(reachable)
	old, next := "UNREACHABLE", "REACHABLE"
	if !reachable {
		old, next = next, old
	}
	p.trace.Log(p.event(plog.DirectionLocal, plog.LayerService, plog.CategoryState, uuid.Nil, func(e *plog.Event) {
		e.StateChange = &plog.StateChangeEvent{Entity: plog.StateEntityReachability, OldState: old, NewState: next}
	}))
	p.logger.Info("peer reachability changed", plog.Peer(p.cfg.PeerID), slog.Bool("reachable", reachable))
	if !reachable {
		return
	}

	// Deletions travel only as timer changes, so the queue goes out before
	// the FullSync exchange that would otherwise re-insert them.
	if !p.flushPending() {
		p.pushContext()
		return
	}
	if err := p.RequestResync("reconnect"); err != nil {
		p.logger.Warn("reconnect resync failed", plog.Err(err))
		p.pushContext()
		return
	}
	p.resyncRuntime()
	p.pushContext()
}

// flushPending sends every coalesced envelope directly in stream order and
// drops each one once sent. It stops at the first failure, leaving the rest
// queued.
func (p *Protocol) flushPending() bool {
	for _, stream := range slices.Clone(p.pending.order) {
		env := p.pending.entries[stream]
		if err := p.sendEnvelope(env); err != nil {
			p.logger.Warn("failed to flush coalesced stream", plog.Stream(stream), plog.Err(err))
			p.traceError(plog.LayerTransport, err, "flush "+stream)
			return false
		}
		p.pending.remove(stream)
		p.recorder.IncMessage(string(env.Type), metrics.MessageSent)
	}
	return true
}

// resyncRuntime re-announces every live countdown.
func (p *Protocol) resyncRuntime() {
	for _, e := range p.runtime.Engines() {
		var action wire.RuntimeAction
		switch e.State() {
		case countdown.StateRunning:
			action = wire.ActionStarted
		case countdown.StatePaused:
			action = wire.ActionPaused
		default:
			continue
		}
		id := e.TimerID()
		p.publish(RuntimeStream(id), id, &wire.RuntimeActionMessage{
			TimerID:                  id,
			Action:                   action,
			SnapshotRemainingSeconds: e.Remaining(),
			Timestamp:                p.now(),
		})
	}
}

// HandleInbound decodes and applies one envelope from the peer. Malformed
// input is logged and dropped.
func (p *Protocol) HandleInbound(ctx context.Context, data []byte) {
	p.trace.Log(p.event(plog.DirectionIn, plog.LayerTransport, plog.CategoryMessage, uuid.Nil, func(e *plog.Event) {
		e.Frame = plog.NewFrameEvent(data, false)
	}))

	msgType, _ := wire.PeekType(data)
	msg, err := wire.Decode(data)
	if err != nil {
		p.logger.Warn("dropping inbound message", plog.MsgType(string(msgType)), plog.Err(err))
		p.traceError(plog.LayerWire, err, "decode "+string(msgType))
		p.recorder.IncMessage(string(msgType), metrics.MessageDropped)
		return
	}
	p.recorder.IncMessage(string(msg.MessageType()), metrics.MessageReceived)
	p.dispatch(ctx, msg)
}

func (p *Protocol) dispatch(ctx context.Context, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.FullSyncPayload:
		p.applyFullSync(ctx, m)
	case *wire.FullSyncRequest:
		p.traceMessage(plog.DirectionIn, uuid.Nil, "", m, plog.OutcomeApplied)
		if err := p.sendDirect(p.FullSync()); err != nil {
			p.logger.Warn("failed to answer full sync request", plog.Err(err))
		}
	case *wire.TimerChangeMessage:
		p.applyTimerChange(ctx, m)
	case *wire.QuickActionMessage:
		p.applyQuickAction(ctx, m)
	case *wire.RuntimeActionMessage:
		p.applyRuntimeAction(ctx, m)
	case *wire.ContextBundle:
		p.applyBundle(ctx, m)
	}
}

func (p *Protocol) applyFullSync(ctx context.Context, m *wire.FullSyncPayload) {
	p.trace.Log(p.event(plog.DirectionIn, plog.LayerWire, plog.CategoryMessage, uuid.Nil, func(e *plog.Event) {
		e.Message = &plog.MessageEvent{Type: string(wire.TypeFullSync), Outcome: plog.OutcomeApplied, Timers: len(m.Timers)}
	}))
	for i := range m.Timers {
		p.applyRecord(ctx, m.Timers[i], "full_sync")
	}
	if p.cfg.OnFullSync != nil {
		p.cfg.OnFullSync(p.now())
	}
}

func (p *Protocol) applyTimerChange(ctx context.Context, m *wire.TimerChangeMessage) {
	if m.Kind != wire.ChangeDeleted {
		outcome := p.applyRecord(ctx, *m.Timer, string(m.Kind))
		p.traceMessage(plog.DirectionIn, m.TimerID, TimerStream(m.TimerID), m, outcome)
		return
	}

	p.runtime.Release(m.TimerID)
	err := p.catalog.Delete(ctx, m.TimerID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		p.traceMessage(plog.DirectionIn, m.TimerID, TimerStream(m.TimerID), m, plog.OutcomeIgnored)
		p.recorder.IncMerge(metrics.MergeIgnored)
	case err != nil:
		p.logger.Warn("failed to apply remote delete", plog.TimerID(m.TimerID), plog.Err(err))
		p.recorder.IncStoreFailure("delete")
		p.traceError(plog.LayerService, err, "delete timer")
	default:
		p.traceMessage(plog.DirectionIn, m.TimerID, TimerStream(m.TimerID), m, plog.OutcomeApplied)
		p.recorder.IncMerge(metrics.MergeDeleted)
		if p.cfg.OnTimerDeleted != nil {
			p.cfg.OnTimerDeleted(m.TimerID)
		}
	}
}

// applyRecord merges one incoming timer record into the catalog.
func (p *Protocol) applyRecord(ctx context.Context, rec wire.TimerRecord, source string) plog.Outcome {
	incoming := rec.Timer()
	local, _ := p.catalog.Get(incoming.ID)

	merged, outcome := MergeTimer(local, incoming)
	if !outcome.Changed() {
		p.logger.Debug("discarding older timer record", plog.TimerID(incoming.ID), slog.String("source", source))
		p.recorder.IncMerge(metrics.MergeDiscarded)
		return plog.OutcomeDiscarded
	}
	if err := p.catalog.Put(ctx, merged); err != nil {
		p.logger.Warn("failed to store incoming timer", plog.TimerID(incoming.ID), plog.Err(err))
		if errors.Is(err, model.ErrValidation) {
			p.recorder.IncMessage(string(wire.TypeTimerChange), metrics.MessageDropped)
		} else {
			p.recorder.IncStoreFailure("put")
		}
		p.traceError(plog.LayerService, err, "store timer "+incoming.ID.String())
		return plog.OutcomeDropped
	}
	p.runtime.Refresh(merged)

	if p.cfg.OnTimerChanged != nil {
		p.cfg.OnTimerChanged(merged)
	}
	if outcome == Inserted {
		p.recorder.IncMerge(metrics.MergeInserted)
		return plog.OutcomeInserted
	}
	p.recorder.IncMerge(metrics.MergeApplied)
	return plog.OutcomeApplied
}

func (p *Protocol) applyQuickAction(ctx context.Context, m *wire.QuickActionMessage) {
	stream := NotesStream(m.TimerID)
	if m.Kind == wire.QuickItemToggled {
		stream = ItemStream(m.TimerID, *m.ItemID)
	}
	outcome := p.quickAction(ctx, m)
	p.traceMessage(plog.DirectionIn, m.TimerID, stream, m, outcome)
}

func (p *Protocol) quickAction(ctx context.Context, m *wire.QuickActionMessage) plog.Outcome {
	t, ok := p.catalog.Get(m.TimerID)
	if !ok {
		p.recorder.IncMerge(metrics.MergeIgnored)
		return plog.OutcomeIgnored
	}

	switch m.Kind {
	case wire.QuickItemToggled:
		i := t.Item(*m.ItemID)
		if i < 0 {
			p.recorder.IncMerge(metrics.MergeIgnored)
			return plog.OutcomeIgnored
		}
		if !m.UpdatedAt.After(t.Items[i].UpdatedAt) {
			p.recorder.IncMerge(metrics.MergeDiscarded)
			return plog.OutcomeDiscarded
		}
		t.Items[i].Completed = *m.Completed
		t.Items[i].UpdatedAt = m.UpdatedAt

	case wire.QuickNotesUpdate:
		if !m.UpdatedAt.After(t.UpdatedAt) {
			p.recorder.IncMerge(metrics.MergeDiscarded)
			return plog.OutcomeDiscarded
		}
		t.Notes = *m.Notes
		t.UpdatedAt = m.UpdatedAt
	}

	if err := p.catalog.Put(ctx, t); err != nil {
		p.logger.Warn("failed to store quick action", plog.TimerID(m.TimerID), plog.Err(err))
		p.recorder.IncStoreFailure("put")
		p.traceError(plog.LayerService, err, "quick action "+string(m.Kind))
		return plog.OutcomeDropped
	}
	p.recorder.IncMerge(metrics.MergeApplied)
	if p.cfg.OnTimerChanged != nil {
		p.cfg.OnTimerChanged(t)
	}
	return plog.OutcomeApplied
}

func (p *Protocol) applyRuntimeAction(ctx context.Context, m *wire.RuntimeActionMessage) {
	action := CountdownAction(m.Action)
	tr, err := p.runtime.ApplyRemote(ctx, m.TimerID, action, m.SnapshotRemainingSeconds)
	outcome := plog.OutcomeApplied
	switch {
	case err != nil:
		p.logger.Warn("failed to apply runtime action", plog.TimerID(m.TimerID), slog.String("action", string(m.Action)), plog.Err(err))
		p.traceError(plog.LayerService, err, "runtime "+string(m.Action))
		outcome = plog.OutcomeDropped
	case tr.IsNoop():
		outcome = plog.OutcomeIgnored
	}
	p.traceMessage(plog.DirectionIn, m.TimerID, RuntimeStream(m.TimerID), m, outcome)
}

// applyBundle applies a coalesced context. Catalog entries go first so
// runtime actions find their timers; stop actions go before start actions
// so a start is not undone by the pause it caused on the sender.
func (p *Protocol) applyBundle(ctx context.Context, b *wire.ContextBundle) {
	p.trace.Log(p.event(plog.DirectionIn, plog.LayerWire, plog.CategoryMessage, uuid.Nil, func(e *plog.Event) {
		e.Message = &plog.MessageEvent{Type: string(wire.TypeContextBundle), Outcome: plog.OutcomeApplied, Entries: len(b.Entries)}
	}))

	var catalog, stops, starts []wire.Message
	for _, entry := range b.Entries {
		msg, err := entry.Envelope.Open()
		if err != nil {
			p.logger.Warn("dropping bundle entry", plog.Stream(entry.Stream), plog.Err(err))
			p.recorder.IncMessage(string(entry.Envelope.Type), metrics.MessageDropped)
			continue
		}
		p.recorder.IncMessage(string(msg.MessageType()), metrics.MessageReceived)
		ra, ok := msg.(*wire.RuntimeActionMessage)
		switch {
		case !ok:
			catalog = append(catalog, msg)
		case ra.Action == wire.ActionStarted || ra.Action == wire.ActionResumed:
			starts = append(starts, msg)
		default:
			stops = append(stops, msg)
		}
	}
	for _, group := range [][]wire.Message{catalog, stops, starts} {
		for _, msg := range group {
			p.dispatch(ctx, msg)
		}
	}
}

// WireAction maps a countdown action to the replicated action.
func WireAction(a countdown.Action) (wire.RuntimeAction, bool) {
	switch a {
	case countdown.ActionStarted:
		return wire.ActionStarted, true
	case countdown.ActionPaused:
		return wire.ActionPaused, true
	case countdown.ActionResumed:
		return wire.ActionResumed, true
	case countdown.ActionReset:
		return wire.ActionReset, true
	case countdown.ActionCompleted:
		return wire.ActionCompleted, true
	default:
		return "", false
	}
}

// CountdownAction maps a replicated action to the countdown action.
func CountdownAction(a wire.RuntimeAction) countdown.Action {
	switch a {
	case wire.ActionStarted:
		return countdown.ActionStarted
	case wire.ActionPaused:
		return countdown.ActionPaused
	case wire.ActionResumed:
		return countdown.ActionResumed
	case wire.ActionReset:
		return countdown.ActionReset
	case wire.ActionCompleted:
		return countdown.ActionCompleted
	default:
		return countdown.ActionNone
	}
}
