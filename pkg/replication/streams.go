package replication

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/wire"
)

func TimerStream(id uuid.UUID) string            { return "timer/" + id.String() }
func ItemStream(timerID, itemID uuid.UUID) string { return "item/" + timerID.String() + "/" + itemID.String() }
func NotesStream(id uuid.UUID) string            { return "notes/" + id.String() }
func RuntimeStream(id uuid.UUID) string          { return "runtime/" + id.String() }

// pendingContext is the latest undelivered envelope per stream, kept in
// the order streams were first written.
type pendingContext struct {
	order   []string
	entries map[string]wire.Envelope
}

func newPendingContext() *pendingContext {
	return &pendingContext{entries: make(map[string]wire.Envelope)}
}

func (p *pendingContext) set(stream string, env wire.Envelope) {
	if _, ok := p.entries[stream]; !ok {
		p.order = append(p.order, stream)
	}
	p.entries[stream] = env
}

// remove drops one stream and reports whether it was present.
func (p *pendingContext) remove(stream string) bool {
	if _, ok := p.entries[stream]; !ok {
		return false
	}
	delete(p.entries, stream)
	p.order = slices.DeleteFunc(p.order, func(s string) bool { return s == stream })
	return true
}

// removeTimer drops every stream belonging to the timer.
func (p *pendingContext) removeTimer(id uuid.UUID) bool {
	itemPrefix := "item/" + id.String() + "/"
	owned := func(s string) bool {
		return s == TimerStream(id) || s == NotesStream(id) || s == RuntimeStream(id) ||
			strings.HasPrefix(s, itemPrefix)
	}
	removed := false
	for _, s := range p.order {
		if owned(s) {
			delete(p.entries, s)
			removed = true
		}
	}
	p.order = slices.DeleteFunc(p.order, owned)
	return removed
}

func (p *pendingContext) len() int { return len(p.order) }

func (p *pendingContext) bundle(now time.Time) *wire.ContextBundle {
	b := &wire.ContextBundle{Entries: make([]wire.BundleEntry, 0, len(p.order)), UpdatedAt: now}
	for _, s := range p.order {
		b.Entries = append(b.Entries, wire.BundleEntry{Stream: s, Envelope: p.entries[s]})
	}
	return b
}
