package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/store"
)

// ErrSaveFailed is returned when a mutation could not be persisted. The
// in-memory collection is unchanged when it is returned.
var ErrSaveFailed = errors.New("couldn't save")

// Config configures a Catalog.
type Config struct {
	// Store is the backing store. Required.
	Store store.Store

	// Clock stamps created_at/updated_at. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger
}

// Catalog is the in-memory Timer collection backed by a store.
type Catalog struct {
	store  store.Store
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.RWMutex
	timers map[uuid.UUID]*model.Timer
}

// Open creates a Catalog and loads every timer and item from the store.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Catalog{
		store:  cfg.Store,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		timers: make(map[uuid.UUID]*model.Timer),
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) load(ctx context.Context) error {
	for rec, err := range c.store.Scan(ctx, store.PrefixTimer) {
		if err != nil {
			return fmt.Errorf("load timers: %w", err)
		}
		t, err := store.DecodeTimer(rec.Value)
		if err != nil {
			c.logger.Warn("skipping unreadable timer record", "key", rec.Key, "error", err)
			continue
		}
		c.timers[t.ID] = t
	}

	for rec, err := range c.store.Scan(ctx, store.PrefixItem) {
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}
		it, err := store.DecodeItem(rec.Value)
		if err != nil {
			c.logger.Warn("skipping unreadable item record", "key", rec.Key, "error", err)
			continue
		}
		t, ok := c.timers[it.TimerID]
		if !ok {
			c.logger.Warn("skipping orphan item", "key", rec.Key)
			continue
		}
		t.Items = append(t.Items, it)
	}

	for _, t := range c.timers {
		t.SortItems()
	}
	c.logger.Debug("catalog loaded", "timers", len(c.timers))
	return nil
}

// Get returns a copy of the timer with the given id.
func (c *Catalog) Get(id uuid.UUID) (*model.Timer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.timers[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Exists reports whether a timer with the given id exists.
func (c *Catalog) Exists(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.timers[id]
	return ok
}

// Len returns the number of timers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.timers)
}

// List returns copies of all timers ordered by sort rank.
func (c *Catalog) List() []*model.Timer {
	c.mu.RLock()
	out := make([]*model.Timer, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.Clone())
	}
	c.mu.RUnlock()

	slices.SortFunc(out, model.CompareTimers)
	return out
}

// Put stores t exactly as given, replacing any timer with the same id.
// Items present before and absent from t are deleted.
func (c *Catalog) Put(ctx context.Context, t *model.Timer) error {
	if err := t.Validate(); err != nil {
		return err
	}
	next := t.Clone()
	next.SortItems()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, c.timers[next.ID], next)
}

// Delete removes a timer with its items and runtime checkpoint.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.timers[id]
	if !ok {
		return notFound(id)
	}

	deletes := []string{store.TimerKey(id), store.RuntimeKey(id)}
	for _, it := range t.Items {
		deletes = append(deletes, store.ItemKey(id, it.ID))
	}
	if err := c.store.Commit(ctx, nil, deletes); err != nil {
		return fmt.Errorf("%w: delete timer %s: %w", ErrSaveFailed, id, err)
	}
	delete(c.timers, id)
	return nil
}

// commit persists next, deleting items of prev that next no longer has, and
// swaps next into memory on success. The caller holds c.mu.
func (c *Catalog) commit(ctx context.Context, prev, next *model.Timer) error {
	puts, err := store.TimerRecords(next)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	var deletes []string
	if prev != nil {
		for _, it := range prev.Items {
			if next.Item(it.ID) < 0 {
				deletes = append(deletes, store.ItemKey(prev.ID, it.ID))
			}
		}
	}

	if err := c.store.Commit(ctx, puts, deletes); err != nil {
		return fmt.Errorf("%w: timer %s: %w", ErrSaveFailed, next.ID, err)
	}
	c.timers[next.ID] = next
	return nil
}

// mutate applies fn to a clone of the timer, stamps updated_at, validates
// and commits. The stored timer is untouched if any step fails.
func (c *Catalog) mutate(ctx context.Context, id uuid.UUID, fn func(t *model.Timer, now time.Time) error) (*model.Timer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.timers[id]
	if !ok {
		return nil, notFound(id)
	}

	now := model.Normalize(c.clock.Now())
	next := prev.Clone()
	if err := fn(next, now); err != nil {
		return nil, err
	}
	next.UpdatedAt = model.Stamp(prev.UpdatedAt, now)
	next.SortItems()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := c.commit(ctx, prev, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func notFound(id uuid.UUID) error {
	return fmt.Errorf("timer %s: %w", id, model.ErrNotFound)
}

func itemNotFound(timerID, itemID uuid.UUID) error {
	return fmt.Errorf("item %s of timer %s: %w", itemID, timerID, model.ErrNotFound)
}
