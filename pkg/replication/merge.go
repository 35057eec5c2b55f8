package replication

import (
	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// Outcome is the result of merging an incoming record.
type Outcome uint8

const (
	// Discarded means local was newer or equal and nothing changed.
	Discarded Outcome = iota
	// Applied means the incoming record overwrote the local one.
	Applied
	// Inserted means the timer was unknown locally.
	Inserted
	// ItemsApplied means local was newer or equal, but some items shared by
	// both sides were strictly newer in the incoming record.
	ItemsApplied
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Discarded:
		return "discarded"
	case Applied:
		return "applied"
	case Inserted:
		return "inserted"
	case ItemsApplied:
		return "items_applied"
	default:
		return "unknown"
	}
}

// Changed reports whether the merge produced a new local value.
func (o Outcome) Changed() bool { return o != Discarded }

// MergeTimer resolves an incoming timer record against the local one.
// local may be nil. Neither argument is modified.
//
// The record with the strictly newer UpdatedAt supplies every scalar field
// and the item membership; on a tie local wins. Items present on both sides
// keep whichever copy has the strictly newer UpdatedAt, again favoring local
// on a tie. Local items missing from a newer incoming record are dropped.
func MergeTimer(local, incoming *model.Timer) (*model.Timer, Outcome) {
	if local == nil {
		out := incoming.Clone()
		out.SortItems()
		return out, Inserted
	}

	if incoming.UpdatedAt.After(local.UpdatedAt) {
		out := incoming.Clone()
		out.Items = MergeItems(local.Items, incoming.Items)
		out.SortItems()
		return out, Applied
	}

	out := local.Clone()
	if !refreshItems(out.Items, incoming.Items) {
		return local, Discarded
	}
	out.SortItems()
	return out, ItemsApplied
}

// MergeItems merges an incoming complete item set into local items. The
// result has exactly the incoming ids; a local copy survives only if it is
// strictly newer than the incoming one.
func MergeItems(local, incoming []model.ChecklistItem) []model.ChecklistItem {
	byID := make(map[uuid.UUID]model.ChecklistItem, len(local))
	for _, it := range local {
		byID[it.ID] = it
	}

	out := make([]model.ChecklistItem, 0, len(incoming))
	for _, in := range incoming {
		if l, ok := byID[in.ID]; ok && l.UpdatedAt.After(in.UpdatedAt) {
			l.TimerID = in.TimerID
			out = append(out, l)
			continue
		}
		out = append(out, in)
	}
	return out
}

// refreshItems overwrites items in local with strictly newer incoming
// copies of the same id. It reports whether anything changed.
func refreshItems(local, incoming []model.ChecklistItem) bool {
	byID := make(map[uuid.UUID]model.ChecklistItem, len(incoming))
	for _, it := range incoming {
		byID[it.ID] = it
	}

	changed := false
	for i := range local {
		in, ok := byID[local[i].ID]
		if !ok || !in.UpdatedAt.After(local[i].UpdatedAt) {
			continue
		}
		in.TimerID = local[i].TimerID
		local[i] = in
		changed = true
	}
	return changed
}
