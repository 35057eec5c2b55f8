package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
)

// encMode is the CBOR encoder mode for stored records.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for stored records.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR decoder mode: %v", err))
	}
}

// timerRecord is the stored form of a Timer. Items are stored separately.
type timerRecord struct {
	ID              uuid.UUID `cbor:"1,keyasint"`
	Name            string    `cbor:"2,keyasint"`
	DurationSeconds int       `cbor:"3,keyasint"`
	Icon            string    `cbor:"4,keyasint,omitempty"`
	Color           string    `cbor:"5,keyasint,omitempty"`
	SortRank        int       `cbor:"6,keyasint"`
	Notes           string    `cbor:"7,keyasint,omitempty"`
	CreatedAt       time.Time `cbor:"8,keyasint"`
	UpdatedAt       time.Time `cbor:"9,keyasint"`
}

type itemRecord struct {
	ID        uuid.UUID `cbor:"1,keyasint"`
	TimerID   uuid.UUID `cbor:"2,keyasint"`
	Text      string    `cbor:"3,keyasint"`
	Completed bool      `cbor:"4,keyasint"`
	SortRank  int       `cbor:"5,keyasint"`
	CreatedAt time.Time `cbor:"6,keyasint"`
	UpdatedAt time.Time `cbor:"7,keyasint"`
}

type runtimeRecord struct {
	TimerID          uuid.UUID `cbor:"1,keyasint"`
	Running          bool      `cbor:"2,keyasint"`
	Paused           bool      `cbor:"3,keyasint"`
	RemainingSeconds int       `cbor:"4,keyasint"`
	StartTimestamp   time.Time `cbor:"5,keyasint,omitempty"`
	PauseTimestamp   time.Time `cbor:"6,keyasint,omitempty"`
	LastUpdate       time.Time `cbor:"7,keyasint"`
}

// TimerRecords returns the records for a timer and each of its items.
func TimerRecords(t *model.Timer) ([]Record, error) {
	data, err := encMode.Marshal(timerRecord{
		ID:              t.ID,
		Name:            t.Name,
		DurationSeconds: t.DurationSeconds,
		Icon:            t.Icon,
		Color:           t.Color,
		SortRank:        t.SortRank,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode timer %s: %w", t.ID, err)
	}
	records := []Record{{Key: TimerKey(t.ID), Value: data}}
	for i := range t.Items {
		rec, err := ItemRecord(&t.Items[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ItemRecord returns the record for one checklist item.
func ItemRecord(it *model.ChecklistItem) (Record, error) {
	data, err := encMode.Marshal(itemRecord{
		ID:        it.ID,
		TimerID:   it.TimerID,
		Text:      it.Text,
		Completed: it.Completed,
		SortRank:  it.SortRank,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	})
	if err != nil {
		return Record{}, fmt.Errorf("encode item %s: %w", it.ID, err)
	}
	return Record{Key: ItemKey(it.TimerID, it.ID), Value: data}, nil
}

// RuntimeRecord returns the record for a RuntimeState.
func RuntimeRecord(s *model.RuntimeState) (Record, error) {
	data, err := encMode.Marshal(runtimeRecord{
		TimerID:          s.TimerID,
		Running:          s.Running,
		Paused:           s.Paused,
		RemainingSeconds: s.RemainingSeconds,
		StartTimestamp:   s.StartTimestamp,
		PauseTimestamp:   s.PauseTimestamp,
		LastUpdate:       s.LastUpdate,
	})
	if err != nil {
		return Record{}, fmt.Errorf("encode runtime %s: %w", s.TimerID, err)
	}
	return Record{Key: RuntimeKey(s.TimerID), Value: data}, nil
}

// DecodeTimer decodes a timer record. The returned timer has no items.
func DecodeTimer(data []byte) (*model.Timer, error) {
	var r timerRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode timer: %w", err)
	}
	return &model.Timer{
		ID:              r.ID,
		Name:            r.Name,
		DurationSeconds: r.DurationSeconds,
		Icon:            r.Icon,
		Color:           r.Color,
		SortRank:        r.SortRank,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

// DecodeItem decodes a checklist item record.
func DecodeItem(data []byte) (model.ChecklistItem, error) {
	var r itemRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return model.ChecklistItem{}, fmt.Errorf("decode item: %w", err)
	}
	return model.ChecklistItem{
		ID:        r.ID,
		TimerID:   r.TimerID,
		Text:      r.Text,
		Completed: r.Completed,
		SortRank:  r.SortRank,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// DecodeRuntime decodes a RuntimeState record.
func DecodeRuntime(data []byte) (model.RuntimeState, error) {
	var r runtimeRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return model.RuntimeState{}, fmt.Errorf("decode runtime: %w", err)
	}
	return model.RuntimeState{
		TimerID:          r.TimerID,
		Running:          r.Running,
		Paused:           r.Paused,
		RemainingSeconds: r.RemainingSeconds,
		StartTimestamp:   r.StartTimestamp,
		PauseTimestamp:   r.PauseTimestamp,
		LastUpdate:       r.LastUpdate,
	}, nil
}
