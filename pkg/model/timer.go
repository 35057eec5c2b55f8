package model

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Duration limits for a Timer, in whole seconds.
const (
	// MinDurationSeconds is the shortest allowed timer.
	MinDurationSeconds = 1

	// MaxDurationSeconds is the longest allowed timer (24 hours).
	MaxDurationSeconds = 86400
)

// Timer is a named countdown with an ordered checklist.
type Timer struct {
	ID              uuid.UUID
	Name            string
	DurationSeconds int
	Icon            string
	Color           string
	SortRank        int
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Items is kept sorted by SortRank, then CreatedAt.
	Items []ChecklistItem
}

// Duration returns the total duration as a time.Duration.
func (t *Timer) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// Validate checks the timer's scalar fields and every item.
func (t *Timer) Validate() error {
	if t.ID == uuid.Nil {
		return invalid("id", "must be set")
	}
	if strings.TrimSpace(t.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if err := ValidateDuration(t.DurationSeconds); err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(t.Items))
	for i := range t.Items {
		item := &t.Items[i]
		if err := item.Validate(); err != nil {
			return err
		}
		if item.TimerID != t.ID {
			return invalid("item.timer_id", "does not match owning timer")
		}
		if _, dup := seen[item.ID]; dup {
			return invalid("item.id", "duplicate within timer")
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// ValidateDuration checks a duration in whole seconds.
func ValidateDuration(seconds int) error {
	if seconds < MinDurationSeconds || seconds > MaxDurationSeconds {
		return invalid("duration", "must be between 1 and 86400 seconds")
	}
	return nil
}

// ValidateName checks a timer name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

// Clone returns a deep copy of the timer.
func (t *Timer) Clone() *Timer {
	c := *t
	c.Items = slices.Clone(t.Items)
	return &c
}

// Item returns the index of the item with the given id, or -1.
func (t *Timer) Item(id uuid.UUID) int {
	return slices.IndexFunc(t.Items, func(it ChecklistItem) bool { return it.ID == id })
}

// SortItems orders Items by SortRank, then CreatedAt, then ID.
func (t *Timer) SortItems() {
	slices.SortStableFunc(t.Items, compareItems)
}

// NextItemRank returns a sort rank placing a new item after all others.
func (t *Timer) NextItemRank() int {
	rank := 0
	for _, it := range t.Items {
		if it.SortRank >= rank {
			rank = it.SortRank + 1
		}
	}
	return rank
}

// CompareTimers orders timers by SortRank, then CreatedAt, then ID.
func CompareTimers(a, b *Timer) int {
	if c := cmp.Compare(a.SortRank, b.SortRank); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func compareItems(a, b ChecklistItem) int {
	if c := cmp.Compare(a.SortRank, b.SortRank); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
