package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChecklistItem is one entry in a Timer's checklist.
// TimerID is a lookup link to the owning Timer, not an ownership edge.
type ChecklistItem struct {
	ID        uuid.UUID
	TimerID   uuid.UUID
	Text      string
	Completed bool
	SortRank  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the item's fields.
func (i *ChecklistItem) Validate() error {
	if i.ID == uuid.Nil {
		return invalid("item.id", "must be set")
	}
	return ValidateItemText(i.Text)
}

// ValidateItemText checks checklist item text.
func ValidateItemText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("item.text", "must not be empty")
	}
	return nil
}
