// Package catalog owns the device's Timer collection.
//
// A Catalog keeps every Timer (with its ChecklistItems) in memory and mirrors
// each mutation to a store.Store. Mutations are copy-on-write: the change is
// applied to a clone, validated, persisted in a single transaction, and only
// then swapped in. A failed persist therefore leaves memory untouched and
// returns ErrSaveFailed.
//
// User intents (Create, Update, AddItem, ToggleItem, ...) stamp updated_at
// with model.Stamp so every local edit is strictly newer than the record it
// replaces. Replication writes merged records with Put, which stores them
// exactly as given.
//
// The catalog also persists RuntimeState checkpoints under the same store so
// that deleting a Timer removes its items and checkpoint atomically.
package catalog
