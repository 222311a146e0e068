/*
errors.go - Error types for objectives and their stores

PURPOSE:
  All error types in one place. Stores wrap these with context; the API
  maps them to HTTP statuses with IsNotFound / IsClientError.

ERROR CATEGORIES:
  1. Validation errors - A record or query violates a rule
  2. Lookup errors     - A referenced objective does not exist
  3. Store errors      - Persistence failures (wrapped, not sentinel)
*/
package objective

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrObjectiveNotFound is returned when a referenced objective doesn't exist.
	ErrObjectiveNotFound = errors.New("objective not found")

	// ErrInvalidObjective is returned when a record fails validation.
	ErrInvalidObjective = errors.New("invalid objective")

	// ErrInvalidTransition is returned when a status change is not allowed
	// (e.g., validating a rejected objective).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid objective: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidObjective
}

// TransitionError carries the refused status change.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("objective %s cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidObjective) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing objective.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectiveNotFound)
}
