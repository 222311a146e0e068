/*
scenarios.go - Demo objective sets for testing and demonstrations

PURPOSE:

	Seeds the objective store with realistic objective sets so that the
	dashboard shows merged values against the analytics proxy without
	anyone typing objectives in first.

AVAILABLE SCENARIOS:

	baseline:        Yearly objectives of every type, validated
	monthly-targets: Yearly objectives plus monthly overrides for one month
	savings-split:   Simple and project savings keyed by agency name only
	pending-review:  Mixed statuses for the validation workflow

HOW SCENARIOS WORK:
 1. Delete every objective
 2. Build the scenario's records for the requested year (default: current)
 3. Save them in order

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "baseline", "year": 2024}

NOTE:

	Loading a scenario deletes all objectives. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Other handlers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Modou1ngom/cofidash/objective"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type demoAgency struct {
	code string
	name string
}

var demoAgencies = []demoAgency{
	{"AG001", "AGENCE PLATEAU"},
	{"AG002", "AGENCE MÉDINA"},
	{"AG003", "AGENCE PIKINE"},
	{"AG004", "AGENCE THIÈS"},
	{"AG005", "AGENCE SAINT-LOUIS"},
	{"SP001", "POINT SERVICE KEUR MASSAR"},
}

type scenario struct {
	ScenarioDTO
	build func(year, month int) []objective.Record
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "baseline",
			Name:        "Baseline",
			Description: "Validated yearly objectives of every type for each agency",
		},
		build: buildBaseline,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "monthly-targets",
			Name:        "Monthly Targets",
			Description: "Yearly objectives with monthly overrides for the current month",
		},
		build: buildMonthlyTargets,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "savings-split",
			Name:        "Savings Split",
			Description: "Simple and project savings objectives keyed by agency name, summed per agency",
		},
		build: buildSavingsSplit,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pending-review",
			Name:        "Pending Review",
			Description: "Client objectives in pending, validated and rejected states",
		},
		build: buildPendingReview,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dto := s.ScenarioDTO
		dto.Objectives = len(s.build(now.Year(), int(now.Month())))
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario replaces every objective with the scenario's set.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	now := h.now()
	year := objective.ResolveYear(req.Year, now)
	n, err := h.loadScenario(r.Context(), s, year, int(now.Month()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("year", year), zap.Int("objectives", n))
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Scenario %s loaded", s.ID), Count: &n})
}

// ResetObjectives deletes every objective.
func (h *Handler) ResetObjectives(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset objectives", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Objectives reset"})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario, year, month int) (int, error) {
	if err := h.Store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	records := s.build(year, month)
	for _, rec := range records {
		if _, err := h.Store.Save(ctx, rec); err != nil {
			return 0, fmt.Errorf("save %s objective for %s: %w", rec.Type, rec.AgencyCode, err)
		}
	}
	return len(records), nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

// yearlyBase is the yearly objective of the first demo agency per type;
// following agencies get 10% less each.
var yearlyBase = map[objective.Type]int64{
	objective.TypeClient:        1200,
	objective.TypeProduction:    250_000_000,
	objective.TypePrepaidCard:   600,
	objective.TypeEpargneSimple: 80_000_000,
	objective.TypeEpargneProjet: 40_000_000,
}

func scaled(base int64, i int) int64 {
	return base * int64(10-i) / 10
}

func yearlyRecord(t objective.Type, a demoAgency, year int, value int64, status objective.Status) objective.Record {
	return objective.Record{
		Type:       t,
		Year:       year,
		Period:     objective.PeriodYear,
		AgencyCode: a.code,
		AgencyName: a.name,
		Value:      value,
		Status:     status,
	}
}

func buildBaseline(year, _ int) []objective.Record {
	var out []objective.Record
	for _, t := range objective.AllTypes {
		for i, a := range demoAgencies {
			out = append(out, yearlyRecord(t, a, year, scaled(yearlyBase[t], i), objective.StatusValidated))
		}
	}
	return out
}

func buildMonthlyTargets(year, month int) []objective.Record {
	out := buildBaseline(year, month)
	for i, a := range demoAgencies {
		for _, t := range []objective.Type{objective.TypeClient, objective.TypePrepaidCard} {
			out = append(out, objective.Record{
				Type:       t,
				Year:       year,
				Month:      objective.IntPtr(month),
				Period:     objective.PeriodMonth,
				AgencyCode: a.code,
				AgencyName: a.name,
				Value:      scaled(yearlyBase[t], i) / 12,
				Status:     objective.StatusValidated,
			})
		}
	}
	return out
}

func buildSavingsSplit(year, _ int) []objective.Record {
	var out []objective.Record
	for i, a := range demoAgencies {
		// Name-only keys, as typed by hand in the objectives form.
		name := strings.ToLower(a.name)
		for _, t := range []objective.Type{objective.TypeEpargneSimple, objective.TypeEpargneProjet} {
			out = append(out, objective.Record{
				Type:       t,
				Year:       year,
				Period:     objective.PeriodYear,
				AgencyName: name,
				Value:      scaled(yearlyBase[t], i),
				Status:     objective.StatusValidated,
			})
		}
	}
	return out
}

func buildPendingReview(year, _ int) []objective.Record {
	statuses := []objective.Status{objective.StatusPending, objective.StatusValidated, objective.StatusRejected}
	var out []objective.Record
	for i, a := range demoAgencies {
		out = append(out, yearlyRecord(objective.TypeClient, a, year, scaled(yearlyBase[objective.TypeClient], i), statuses[i%len(statuses)]))
	}
	return out
}
