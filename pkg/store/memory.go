package store

import (
	"context"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get returns the record for key.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, false, ErrClosed
	}
	v, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Key: key, Value: slices.Clone(v)}, true, nil
}

// PutAll writes all records.
func (s *MemoryStore) PutAll(ctx context.Context, records []Record) error {
	return s.Commit(ctx, records, nil)
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, nil, []string{key})
}

// Commit applies puts and deletes atomically.
func (s *MemoryStore) Commit(_ context.Context, puts []Record, deletes []string) error {
	if err := validateKeys(puts, deletes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, k := range deletes {
		delete(s.records, k)
	}
	for _, r := range puts {
		s.records[r.Key] = slices.Clone(r.Value)
	}
	return nil
}

// Scan yields records with the given prefix in key order.
func (s *MemoryStore) Scan(_ context.Context, prefix string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			yield(Record{}, ErrClosed)
			return
		}
		var matched []Record
		for _, k := range slices.Sorted(maps.Keys(s.records)) {
			if strings.HasPrefix(k, prefix) {
				matched = append(matched, Record{Key: k, Value: slices.Clone(s.records[k])})
			}
		}
		s.mu.RUnlock()

		for _, r := range matched {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
