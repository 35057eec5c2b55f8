package store

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/google/uuid"
)

// Store errors.
var (
	ErrClosed   = errors.New("store closed")
	ErrEmptyKey = errors.New("empty key")
)

// Record is one stored key/value pair.
type Record struct {
	Key   string
	Value []byte
}

// Store is durable keyed storage with transactional writes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record for key and whether it exists.
	Get(ctx context.Context, key string) (Record, bool, error)

	// PutAll writes all records or none.
	PutAll(ctx context.Context, records []Record) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan yields every record whose key starts with prefix, in key order.
	Scan(ctx context.Context, prefix string) iter.Seq2[Record, error]

	// Commit applies puts and deletes atomically.
	Commit(ctx context.Context, puts []Record, deletes []string) error

	// Close releases resources.
	Close() error
}

// Key prefixes.
const (
	PrefixTimer   = "timer/"
	PrefixItem    = "item/"
	PrefixRuntime = "runtime/"
)

// TimerKey returns the key of a Timer record.
func TimerKey(id uuid.UUID) string {
	return PrefixTimer + id.String()
}

// ItemKey returns the key of a ChecklistItem record.
func ItemKey(timerID, itemID uuid.UUID) string {
	return ItemPrefix(timerID) + itemID.String()
}

// ItemPrefix returns the prefix covering all items of one timer.
func ItemPrefix(timerID uuid.UUID) string {
	return PrefixItem + timerID.String() + "/"
}

// RuntimeKey returns the key of a RuntimeState record.
func RuntimeKey(timerID uuid.UUID) string {
	return PrefixRuntime + timerID.String()
}

// ParseRuntimeKey extracts the timer id from a runtime key.
func ParseRuntimeKey(key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, PrefixRuntime)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	return id, err == nil
}

func validateKeys(puts []Record, deletes []string) error {
	for _, r := range puts {
		if r.Key == "" {
			return ErrEmptyKey
		}
	}
	for _, k := range deletes {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
