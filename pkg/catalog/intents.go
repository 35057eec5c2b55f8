package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// NewTimer describes a timer to create.
type NewTimer struct {
	Name            string
	DurationSeconds int
	Icon            string
	Color           string
	Notes           string

	// SortRank places the timer; nil appends it after all others.
	SortRank *int
}

// TimerPatch lists the scalar fields to change. Nil fields are kept.
type TimerPatch struct {
	Name            *string
	DurationSeconds *int
	Icon            *string
	Color           *string
	SortRank        *int
	Notes           *string
}

// Create validates and stores a new timer.
func (c *Catalog) Create(ctx context.Context, nt NewTimer) (*model.Timer, error) {
	if err := model.ValidateName(nt.Name); err != nil {
		return nil, err
	}
	if err := model.ValidateDuration(nt.DurationSeconds); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := model.Normalize(c.clock.Now())
	t := &model.Timer{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(nt.Name),
		DurationSeconds: nt.DurationSeconds,
		Icon:            nt.Icon,
		Color:           nt.Color,
		Notes:           nt.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nt.SortRank != nil {
		t.SortRank = *nt.SortRank
	} else {
		t.SortRank = c.nextTimerRank()
	}

	if err := c.commit(ctx, nil, t); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (c *Catalog) nextTimerRank() int {
	rank := 0
	for _, t := range c.timers {
		if t.SortRank >= rank {
			rank = t.SortRank + 1
		}
	}
	return rank
}

// Update applies a patch to a timer's scalar fields.
func (c *Catalog) Update(ctx context.Context, id uuid.UUID, p TimerPatch) (*model.Timer, error) {
	if p.Name != nil {
		if err := model.ValidateName(*p.Name); err != nil {
			return nil, err
		}
	}
	if p.DurationSeconds != nil {
		if err := model.ValidateDuration(*p.DurationSeconds); err != nil {
			return nil, err
		}
	}

	return c.mutate(ctx, id, func(t *model.Timer, _ time.Time) error {
		if p.Name != nil {
			t.Name = strings.TrimSpace(*p.Name)
		}
		if p.DurationSeconds != nil {
			t.DurationSeconds = *p.DurationSeconds
		}
		if p.Icon != nil {
			t.Icon = *p.Icon
		}
		if p.Color != nil {
			t.Color = *p.Color
		}
		if p.SortRank != nil {
			t.SortRank = *p.SortRank
		}
		if p.Notes != nil {
			t.Notes = *p.Notes
		}
		return nil
	})
}

// SetNotes replaces a timer's notes.
func (c *Catalog) SetNotes(ctx context.Context, id uuid.UUID, notes string) (*model.Timer, error) {
	return c.Update(ctx, id, TimerPatch{Notes: &notes})
}

// AddItem appends a checklist item to a timer.
func (c *Catalog) AddItem(ctx context.Context, timerID uuid.UUID, text string) (*model.Timer, model.ChecklistItem, error) {
	if err := model.ValidateItemText(text); err != nil {
		return nil, model.ChecklistItem{}, err
	}

	var added model.ChecklistItem
	t, err := c.mutate(ctx, timerID, func(t *model.Timer, now time.Time) error {
		added = model.ChecklistItem{
			ID:        uuid.New(),
			TimerID:   t.ID,
			Text:      strings.TrimSpace(text),
			SortRank:  t.NextItemRank(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		t.Items = append(t.Items, added)
		return nil
	})
	if err != nil {
		return nil, model.ChecklistItem{}, err
	}
	return t, added, nil
}

// ToggleItem flips an item's completed flag.
func (c *Catalog) ToggleItem(ctx context.Context, timerID, itemID uuid.UUID) (*model.Timer, model.ChecklistItem, error) {
	return c.mutateItem(ctx, timerID, itemID, func(it *model.ChecklistItem) error {
		it.Completed = !it.Completed
		return nil
	})
}

// RenameItem replaces an item's text.
func (c *Catalog) RenameItem(ctx context.Context, timerID, itemID uuid.UUID, text string) (*model.Timer, model.ChecklistItem, error) {
	if err := model.ValidateItemText(text); err != nil {
		return nil, model.ChecklistItem{}, err
	}
	return c.mutateItem(ctx, timerID, itemID, func(it *model.ChecklistItem) error {
		it.Text = strings.TrimSpace(text)
		return nil
	})
}

// MoveItem sets an item's sort rank.
func (c *Catalog) MoveItem(ctx context.Context, timerID, itemID uuid.UUID, rank int) (*model.Timer, model.ChecklistItem, error) {
	return c.mutateItem(ctx, timerID, itemID, func(it *model.ChecklistItem) error {
		it.SortRank = rank
		return nil
	})
}

// RemoveItem deletes an item from a timer.
func (c *Catalog) RemoveItem(ctx context.Context, timerID, itemID uuid.UUID) (*model.Timer, error) {
	return c.mutate(ctx, timerID, func(t *model.Timer, _ time.Time) error {
		i := t.Item(itemID)
		if i < 0 {
			return itemNotFound(timerID, itemID)
		}
		t.Items = append(t.Items[:i], t.Items[i+1:]...)
		return nil
	})
}

// mutateItem edits one item and stamps both the item and its timer, so the
// change also wins when the whole timer record is merged by the peer.
func (c *Catalog) mutateItem(ctx context.Context, timerID, itemID uuid.UUID, fn func(it *model.ChecklistItem) error) (*model.Timer, model.ChecklistItem, error) {
	var changed model.ChecklistItem
	t, err := c.mutate(ctx, timerID, func(t *model.Timer, now time.Time) error {
		i := t.Item(itemID)
		if i < 0 {
			return itemNotFound(timerID, itemID)
		}
		it := &t.Items[i]
		if err := fn(it); err != nil {
			return err
		}
		it.UpdatedAt = model.Stamp(it.UpdatedAt, now)
		changed = *it
		return nil
	})
	if err != nil {
		return nil, model.ChecklistItem{}, err
	}
	return t, changed, nil
}
