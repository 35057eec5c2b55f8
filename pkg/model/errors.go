package model

import (
	"errors"
	"fmt"
)

// Model errors.
var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a timer or item id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInconsistentState indicates a RuntimeState that violates its
	// invariants. It is a programming error and is never user-recoverable.
	ErrInconsistentState = errors.New("inconsistent runtime state")
)

// ValidationError describes a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
