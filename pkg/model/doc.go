// Package model defines the pairtimer entity model.
//
// # Entities
//
// A Timer is a named countdown of a fixed whole-second duration that owns an
// ordered checklist:
//
//	Timer (id)
//	├── ChecklistItem (id, timer id)
//	├── ChecklistItem
//	└── ...
//
// A ChecklistItem refers back to its Timer only by id. Deleting a Timer
// deletes its items and its RuntimeState; deleting an item never touches the
// Timer.
//
// RuntimeState is the persisted countdown checkpoint for one Timer. It exists
// only while a timer is running or paused.
//
// # Clocks
//
// UpdatedAt is the last-write-wins clock used by replication. It never moves
// backwards for a given record; see Stamp.
//
// # Validation
//
// All mutations validate before any state change. Validation failures are
// returned as *ValidationError and match ErrValidation with errors.Is.
package model
