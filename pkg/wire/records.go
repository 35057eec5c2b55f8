package wire

import (
	"time"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// ItemRecord is the wire form of a ChecklistItem.
type ItemRecord struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	SortRank  int       `json:"sort_rank"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimerRecord is the wire form of a Timer including its complete item set.
// It is a value snapshot: changing it has no effect on the local catalog
// until it is merged.
type TimerRecord struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	DurationSeconds int          `json:"duration_seconds"`
	Icon            string       `json:"icon,omitempty"`
	Color           string       `json:"color,omitempty"`
	SortRank        int          `json:"sort_rank"`
	Notes           string       `json:"notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Items           []ItemRecord `json:"items"`
}

// RecordFromTimer copies a Timer into its wire form.
func RecordFromTimer(t *model.Timer) TimerRecord {
	rec := TimerRecord{
		ID:              t.ID,
		Name:            t.Name,
		DurationSeconds: t.DurationSeconds,
		Icon:            t.Icon,
		Color:           t.Color,
		SortRank:        t.SortRank,
		Notes:           t.Notes,
		CreatedAt:       model.Normalize(t.CreatedAt),
		UpdatedAt:       model.Normalize(t.UpdatedAt),
		Items:           make([]ItemRecord, 0, len(t.Items)),
	}
	for _, it := range t.Items {
		rec.Items = append(rec.Items, ItemRecord{
			ID:        it.ID,
			Text:      it.Text,
			Completed: it.Completed,
			SortRank:  it.SortRank,
			CreatedAt: model.Normalize(it.CreatedAt),
			UpdatedAt: model.Normalize(it.UpdatedAt),
		})
	}
	return rec
}

// Timer converts the record into a new, independent model Timer.
func (r TimerRecord) Timer() *model.Timer {
	t := &model.Timer{
		ID:              r.ID,
		Name:            r.Name,
		DurationSeconds: r.DurationSeconds,
		Icon:            r.Icon,
		Color:           r.Color,
		SortRank:        r.SortRank,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Items:           make([]model.ChecklistItem, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		t.Items = append(t.Items, it.Item(r.ID))
	}
	t.SortItems()
	return t
}

// Item converts the record into a model ChecklistItem owned by timerID.
func (r ItemRecord) Item(timerID uuid.UUID) model.ChecklistItem {
	return model.ChecklistItem{
		ID:        r.ID,
		TimerID:   timerID,
		Text:      r.Text,
		Completed: r.Completed,
		SortRank:  r.SortRank,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
