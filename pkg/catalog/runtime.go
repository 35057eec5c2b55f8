package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/store"
)

// SaveRuntime persists a RuntimeState checkpoint after checking its
// invariants.
func (c *Catalog) SaveRuntime(ctx context.Context, s model.RuntimeState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	rec, err := store.RuntimeRecord(&s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := c.store.PutAll(ctx, []store.Record{rec}); err != nil {
		return fmt.Errorf("%w: runtime %s: %w", ErrSaveFailed, s.TimerID, err)
	}
	return nil
}

// DeleteRuntime removes a timer's checkpoint.
func (c *Catalog) DeleteRuntime(ctx context.Context, timerID uuid.UUID) error {
	if err := c.store.Delete(ctx, store.RuntimeKey(timerID)); err != nil {
		return fmt.Errorf("%w: runtime %s: %w", ErrSaveFailed, timerID, err)
	}
	return nil
}

// LoadRuntime returns a timer's checkpoint if one is stored.
func (c *Catalog) LoadRuntime(ctx context.Context, timerID uuid.UUID) (model.RuntimeState, bool, error) {
	rec, ok, err := c.store.Get(ctx, store.RuntimeKey(timerID))
	if err != nil || !ok {
		return model.RuntimeState{}, false, err
	}
	s, err := store.DecodeRuntime(rec.Value)
	if err != nil {
		return model.RuntimeState{}, false, err
	}
	return s, true, nil
}

// RuntimeIDs returns the ids of every timer with a stored checkpoint.
func (c *Catalog) RuntimeIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rec, err := range c.store.Scan(ctx, store.PrefixRuntime) {
		if err != nil {
			return nil, fmt.Errorf("scan runtime states: %w", err)
		}
		if id, ok := store.ParseRuntimeKey(rec.Key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
