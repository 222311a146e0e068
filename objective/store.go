/*
store.go - Persistence interfaces for objectives

PURPOSE:
  Defines the boundary between the merge engine, the API and the database.

KEY INTERFACES:
  Finder:     What the merge engine needs: candidate objectives for a query
  Repository: Finder plus the CRUD and validation workflow used by the API

ORDERING:
  FindObjectives and List return records in insertion order. The index
  builder resolves duplicate agency keys by last write wins, so a stable
  order keeps merges reproducible across calls.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - objective/memstore/memory.go: In-memory for tests and dev

SEE ALSO:
  - query.go: Selection rule that FindObjectives must honour
*/
package objective

import "context"

// Finder returns the objectives matching a query.
// Implementations may apply the selection rule at the source; the merge
// engine filters again client-side, so returning a superset is allowed.
type Finder interface {
	FindObjectives(ctx context.Context, q Query) ([]Record, error)
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Type   Type
	Year   int
	Month  *int
	Status Status
}

// Matches applies the filter to one record.
func (f ListFilter) Matches(r Record) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Month != nil && (r.Month == nil || *r.Month != *f.Month) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Repository persists objectives.
type Repository interface {
	Finder

	// Save inserts or replaces a record by ID and returns it as stored.
	// An empty ID gets a fresh one; an empty Status becomes pending.
	Save(ctx context.Context, r Record) (Record, error)

	// Get returns ErrObjectiveNotFound when the ID is unknown.
	Get(ctx context.Context, id string) (Record, error)

	List(ctx context.Context, f ListFilter) ([]Record, error)

	// Delete returns ErrObjectiveNotFound when the ID is unknown.
	Delete(ctx context.Context, id string) error

	// Reset removes every objective.
	Reset(ctx context.Context) error
}

// =============================================================================
// VALIDATION WORKFLOW
// =============================================================================

// Transition returns r moved to status to, or a *TransitionError.
// Pending objectives may be validated or rejected; a rejected objective
// may be resubmitted (back to pending) and a validated one may be reopened.
func Transition(r Record, to Status) (Record, error) {
	from := r.Status
	if from == "" {
		from = StatusPending
	}
	allowed := false
	switch from {
	case StatusPending:
		allowed = to == StatusValidated || to == StatusRejected
	case StatusRejected, StatusValidated:
		allowed = to == StatusPending
	}
	if !allowed {
		return r, &TransitionError{ID: r.ID, From: from, To: to}
	}
	r.Status = to
	return r, nil
}
