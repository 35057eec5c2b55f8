package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validTimer() *Timer {
	id := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Timer{
		ID:              id,
		Name:            "Laundry",
		DurationSeconds: 1500,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items: []ChecklistItem{
			{ID: uuid.New(), TimerID: id, Text: "Sort", CreatedAt: now, UpdatedAt: now},
		},
	}
}

func TestTimerValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Timer)
		wantErr bool
	}{
		{"valid", func(*Timer) {}, false},
		{"empty name", func(tm *Timer) { tm.Name = "   " }, true},
		{"zero duration", func(tm *Timer) { tm.DurationSeconds = 0 }, true},
		{"negative duration", func(tm *Timer) { tm.DurationSeconds = -5 }, true},
		{"max duration", func(tm *Timer) { tm.DurationSeconds = MaxDurationSeconds }, false},
		{"over max duration", func(tm *Timer) { tm.DurationSeconds = MaxDurationSeconds + 1 }, true},
		{"nil id", func(tm *Timer) { tm.ID = uuid.Nil }, true},
		{"empty item text", func(tm *Timer) { tm.Items[0].Text = "" }, true},
		{"foreign item", func(tm *Timer) { tm.Items[0].TimerID = uuid.New() }, true},
		{"duplicate item", func(tm *Timer) { tm.Items = append(tm.Items, tm.Items[0]) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := validTimer()
			tt.mutate(tm)
			err := tm.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTimerCloneIsDeep(t *testing.T) {
	tm := validTimer()
	c := tm.Clone()
	c.Items[0].Text = "changed"
	c.Name = "other"

	if tm.Items[0].Text != "Sort" {
		t.Errorf("original item mutated through clone: %q", tm.Items[0].Text)
	}
	if tm.Name != "Laundry" {
		t.Errorf("original name mutated through clone: %q", tm.Name)
	}
}

func TestSortItems(t *testing.T) {
	tm := validTimer()
	base := tm.CreatedAt
	a := ChecklistItem{ID: uuid.New(), TimerID: tm.ID, Text: "a", SortRank: 2, CreatedAt: base}
	b := ChecklistItem{ID: uuid.New(), TimerID: tm.ID, Text: "b", SortRank: 1, CreatedAt: base.Add(time.Second)}
	c := ChecklistItem{ID: uuid.New(), TimerID: tm.ID, Text: "c", SortRank: 1, CreatedAt: base}
	tm.Items = []ChecklistItem{a, b, c}

	tm.SortItems()

	got := []string{tm.Items[0].Text, tm.Items[1].Text, tm.Items[2].Text}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortItems() order = %v, want %v", got, want)
		}
	}
	if tm.NextItemRank() != 3 {
		t.Errorf("NextItemRank() = %d, want 3", tm.NextItemRank())
	}
}

func TestStampIsStrictlyIncreasing(t *testing.T) {
	prev := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)

	if got := Stamp(prev, prev.Add(time.Second)); !got.Equal(prev.Add(time.Second)) {
		t.Errorf("Stamp(later) = %v, want %v", got, prev.Add(time.Second))
	}
	if got := Stamp(prev, prev); !got.After(prev) {
		t.Errorf("Stamp(equal) = %v, want after %v", got, prev)
	}
	if got := Stamp(prev, prev.Add(-time.Hour)); !got.After(prev) {
		t.Errorf("Stamp(earlier) = %v, want after %v", got, prev)
	}
}

func TestRuntimeStateValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		state   RuntimeState
		wantErr bool
	}{
		{"running", RuntimeState{Running: true, StartTimestamp: now, RemainingSeconds: 10}, false},
		{"paused", RuntimeState{Paused: true, PauseTimestamp: now, RemainingSeconds: 10}, false},
		{"negative remaining", RuntimeState{RemainingSeconds: -1}, true},
		{"running and paused", RuntimeState{Running: true, Paused: true, StartTimestamp: now, PauseTimestamp: now}, true},
		{"running without start", RuntimeState{Running: true}, true},
		{"paused without pause timestamp", RuntimeState{Paused: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInconsistentState) {
				t.Errorf("Validate() error = %v, want ErrInconsistentState", err)
			}
		})
	}
}

func TestEffectiveRemaining(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	running := RuntimeState{Running: true, StartTimestamp: t0, LastUpdate: t0, RemainingSeconds: 800}

	tests := []struct {
		name  string
		state RuntimeState
		at    time.Time
		want  int
	}{
		{"no elapsed time", running, t0, 800},
		{"partial seconds floor", running, t0.Add(700*time.Second + 900*time.Millisecond), 100},
		{"exactly expired", running, t0.Add(800 * time.Second), 0},
		{"long expired", running, t0.Add(24 * time.Hour), 0},
		{"clock moved backwards", running, t0.Add(-time.Minute), 800},
		{"paused is frozen", RuntimeState{Paused: true, PauseTimestamp: t0, LastUpdate: t0, RemainingSeconds: 800}, t0.Add(time.Hour), 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.EffectiveRemaining(tt.at); got != tt.want {
				t.Errorf("EffectiveRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}
