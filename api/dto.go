/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures of the API. objective.Record carries no JSON
  tags; these types are the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Objectives:
    ObjectiveDTO, ObjectiveRequest, AgencySumDTO

  Merge:
    MergePreviewRequest, MergePreviewResponse

  Cache:
    source.CacheStats is returned as-is, MessageResponse for commands

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Done in handlers through objective.Record.Validate, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/Modou1ngom/cofidash/merge"
	"github.com/Modou1ngom/cofidash/objective"
)

// =============================================================================
// OBJECTIVES
// =============================================================================

// ObjectiveDTO represents an objective in API responses.
type ObjectiveDTO struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Year       int       `json:"year"`
	Month      *int      `json:"month,omitempty"`
	Period     string    `json:"period"`
	AgencyCode string    `json:"agency_code,omitempty"`
	AgencyName string    `json:"agency_name,omitempty"`
	Category   string    `json:"category,omitempty"`
	Value      int64     `json:"value"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ObjectiveRequest is the body of create and update. On update, omitted
// fields keep their stored value.
type ObjectiveRequest struct {
	Type       *string `json:"type"`
	Year       *int    `json:"year"`
	Month      *int    `json:"month"`
	Period     *string `json:"period"`
	AgencyCode *string `json:"agency_code"`
	AgencyName *string `json:"agency_name"`
	Category   *string `json:"category"`
	Value      *int64  `json:"value"`
}

// AgencySumDTO is the summed objective of one agency.
type AgencySumDTO struct {
	AgencyKey  string `json:"agency_key"`
	AgencyCode string `json:"agency_code,omitempty"`
	AgencyName string `json:"agency_name,omitempty"`
	Total      int64  `json:"total"`
	Count      int    `json:"count"`
}

// AgencySumResponse wraps the per-agency totals of a query.
type AgencySumResponse struct {
	Target   string         `json:"target"`
	Year     int            `json:"year"`
	Month    *int           `json:"month,omitempty"`
	Agencies []AgencySumDTO `json:"agencies"`
	Total    int64          `json:"total"`
}

func toObjectiveDTO(r objective.Record) ObjectiveDTO {
	return ObjectiveDTO{
		ID:         r.ID,
		Type:       string(r.Type),
		Year:       r.Year,
		Month:      r.Month,
		Period:     string(r.Period),
		AgencyCode: r.AgencyCode,
		AgencyName: r.AgencyName,
		Category:   r.Category,
		Value:      r.Value,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toObjectiveDTOs(records []objective.Record) []ObjectiveDTO {
	out := make([]ObjectiveDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toObjectiveDTO(r))
	}
	return out
}

// apply copies the set fields of req onto r. Type and period strings are
// parsed so the caller gets a field-level validation error.
func (req ObjectiveRequest) apply(r objective.Record) (objective.Record, error) {
	if req.Type != nil {
		t, err := objective.ParseType(*req.Type)
		if err != nil {
			return r, err
		}
		r.Type = t
	}
	if req.Period != nil {
		p, err := objective.ParsePeriod(*req.Period)
		if err != nil {
			return r, err
		}
		r.Period = p
	}
	if req.Year != nil {
		r.Year = *req.Year
	}
	if req.Month != nil {
		r.Month = req.Month
	}
	if req.AgencyCode != nil {
		r.AgencyCode = *req.AgencyCode
	}
	if req.AgencyName != nil {
		r.AgencyName = *req.AgencyName
	}
	if req.Category != nil {
		r.Category = *req.Category
	}
	if req.Value != nil {
		r.Value = *req.Value
	}
	if r.Period == "" {
		r.Period = objective.PeriodYear
		if r.Month != nil {
			r.Period = objective.PeriodMonth
		}
	}
	return r, nil
}

// =============================================================================
// MERGE
// =============================================================================

// MergePreviewRequest merges objectives into a caller-supplied payload.
// When Objectives is set, those records are used instead of the store.
type MergePreviewRequest struct {
	Payload    map[string]any     `json:"payload"`
	Target     string             `json:"target"`
	Year       *int               `json:"year"`
	Month      *int               `json:"month"`
	Objectives []ObjectiveRequest `json:"objectives,omitempty"`
}

type MergePreviewResponse struct {
	Payload   map[string]any `json:"payload"`
	Target    string         `json:"target"`
	Year      int            `json:"year"`
	Month     *int           `json:"month,omitempty"`
	Stats     merge.Stats    `json:"stats"`
	Abandoned bool           `json:"abandoned"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Objectives  int    `json:"objectives"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Year       *int   `json:"year,omitempty"`
}
