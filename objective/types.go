/*
Package objective holds the locally-defined target records that the
dashboard blends into the analytical payload.

PURPOSE:
  An objective is a target value for one metric (new clients, production,
  prepaid cards sold, savings) scoped to an agency, a year and a period
  granularity. Records are read-only input to the merge engine; they are
  created and edited through the API and persisted by a Repository.

KEY CONCEPTS IN THIS FILE (types.go):
  - Type:   Which metric the objective targets
  - Period: Granularity (month, quarter, year)
  - Status: Validation workflow state
  - Record: One objective row

AGENCY KEYS:
  Records are keyed loosely. AgencyCode and AgencyName are both optional
  and free text; the merge engine reconciles them against the payload with
  a layered fuzzy lookup (see merge/index.go).

SEE ALSO:
  - query.go: Selection rule for a (types, year, month) query
  - store.go: Finder and Repository interfaces
  - merge/engine.go: Consumer of records
*/
package objective

import (
	"strings"
	"time"
)

// =============================================================================
// TYPE - Which metric an objective targets
// =============================================================================

type Type string

const (
	TypeClient        Type = "CLIENT"
	TypeProduction    Type = "PRODUCTION"
	TypePrepaidCard   Type = "PREPAID_CARD"
	TypeEpargneSimple Type = "EPARGNE_SIMPLE"
	TypeEpargneProjet Type = "EPARGNE_PROJET"
)

// AllTypes lists every known objective type.
var AllTypes = []Type{
	TypeClient,
	TypeProduction,
	TypePrepaidCard,
	TypeEpargneSimple,
	TypeEpargneProjet,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType accepts any casing and surrounding whitespace.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Message: "unknown objective type " + s}
	}
	return t, nil
}

// =============================================================================
// PERIOD - Granularity of an objective
// =============================================================================

type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

// ParsePeriod accepts any casing.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "period", Message: "unknown period " + s}
	}
	return p, nil
}

// =============================================================================
// STATUS - Validation workflow
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusRejected:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: "unknown status " + s}
	}
	return st, nil
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one objective. Month is only meaningful for PeriodMonth.
type Record struct {
	ID         string
	Type       Type
	Year       int
	Month      *int
	Period     Period
	AgencyCode string
	AgencyName string
	Category   string
	Value      int64
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasAgency reports whether the record carries any agency key.
func (r Record) HasAgency() bool {
	return strings.TrimSpace(r.AgencyCode) != "" || strings.TrimSpace(r.AgencyName) != ""
}

// Validate checks the record invariants before it is persisted.
func (r Record) Validate() error {
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Message: "unknown objective type " + string(r.Type)}
	}
	if !r.Period.Valid() {
		return &ValidationError{Field: "period", Message: "unknown period " + string(r.Period)}
	}
	if r.Year <= 0 {
		return &ValidationError{Field: "year", Message: "year must be positive"}
	}
	if r.Month != nil && (*r.Month < 1 || *r.Month > 12) {
		return &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if r.Period == PeriodMonth && r.Month == nil {
		return &ValidationError{Field: "month", Message: "month is required for a monthly objective"}
	}
	if r.Value < 0 {
		return &ValidationError{Field: "value", Message: "value must not be negative"}
	}
	if !r.HasAgency() {
		return &ValidationError{Field: "agency", Message: "agency code or agency name is required"}
	}
	if r.Status != "" && !r.Status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown status " + string(r.Status)}
	}
	return nil
}

// IntPtr is a small helper for optional months in literals.
func IntPtr(v int) *int { return &v }
