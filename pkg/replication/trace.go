package replication

import (
	"github.com/google/uuid"

	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/wire"
)

func (p *Protocol) event(dir plog.Direction, layer plog.Layer, cat plog.Category, timerID uuid.UUID, fill func(*plog.Event)) plog.Event {
	e := plog.Event{
		Timestamp: p.clock.Now(),
		DeviceID:  p.cfg.DeviceID,
		PeerID:    p.cfg.PeerID,
		Direction: dir,
		Layer:     layer,
		Category:  cat,
		LocalRole: p.cfg.Role,
	}
	if timerID != uuid.Nil {
		e.TimerID = timerID.String()
	}
	fill(&e)
	return e
}

func (p *Protocol) traceMessage(dir plog.Direction, timerID uuid.UUID, stream string, msg wire.Message, outcome plog.Outcome) {
	me := &plog.MessageEvent{Type: string(msg.MessageType()), Stream: stream, Outcome: outcome}
	switch m := msg.(type) {
	case *wire.TimerChangeMessage:
		me.Kind = string(m.Kind)
	case *wire.QuickActionMessage:
		me.Kind = string(m.Kind)
	case *wire.RuntimeActionMessage:
		me.Kind = string(m.Action)
		r := m.SnapshotRemainingSeconds
		me.Remaining = &r
	case *wire.FullSyncPayload:
		me.Timers = len(m.Timers)
	case *wire.ContextBundle:
		me.Entries = len(m.Entries)
	}
	p.trace.Log(p.event(dir, plog.LayerWire, plog.CategoryMessage, timerID, func(e *plog.Event) {
		e.Message = me
	}))
}

func (p *Protocol) traceError(layer plog.Layer, err error, context string) {
	p.trace.Log(p.event(plog.DirectionLocal, layer, plog.CategoryError, uuid.Nil, func(e *plog.Event) {
		e.Error = &plog.ErrorEventData{Layer: layer, Message: err.Error(), Context: context}
	}))
}
