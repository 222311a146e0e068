/*
handlers.go - HTTP API handlers for the objectives dashboard backend

PURPOSE:
  Serves analytics datasets with agency objectives merged in, and manages
  the objectives themselves. Handles HTTP request/response and JSON
  serialization, and delegates to the merge engine, the objective store
  and the analytics source.

ENDPOINTS:
  Datasets:
    GET    /api/data/{dataset}                 Proxy dataset with objectives merged
    POST   /api/merge/preview                  Merge into a supplied payload

  Objectives:
    GET    /api/objectives                     List (type, year, month, status)
    POST   /api/objectives                     Create (status pending)
    GET    /api/objectives/pending-validation  Objectives awaiting validation
    GET    /api/objectives/agency-sum          Sum per agency for a target
    GET    /api/objectives/{id}                Get one
    PUT    /api/objectives/{id}                Update (back to pending)
    DELETE /api/objectives/{id}                Delete
    POST   /api/objectives/{id}/validate       pending -> validated
    POST   /api/objectives/{id}/reject         pending -> rejected

  Cache:
    GET    /api/cache/stats                    Entry counts, hit/miss, TTL
    POST   /api/cache/clear?pattern=           Drop entries (all, or by substring)
    POST   /api/cache/enable                   Enable
    POST   /api/cache/disable                  Disable
    POST   /api/cache/ttl?ttl=                 Default TTL in seconds

  Scenarios:
    GET    /api/scenarios                      List demo objective sets
    GET    /api/scenarios/current              Last loaded scenario
    POST   /api/scenarios/load                 Replace objectives with a scenario
    POST   /api/scenarios/reset                Delete every objective

REQUEST FLOW (datasets):
  1. Parse dataset and query parameters
  2. Resolve the objective period (year, month) from the parameters
  3. Fetch the payload and the candidate objectives concurrently
  4. Merge each target of the dataset plan (plan.go)
  5. Serialize the merged payload

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown dataset, objective or scenario
  - 409: Invalid status transition
  - 502: Analytics proxy failure
  - 500: Internal errors
  A failing objective lookup never fails a dataset request: the payload
  is served without objectives.

SECURITY NOTE:
  No authentication. Put the server behind the dashboard's gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - plan.go: Dataset to merge target mapping
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Modou1ngom/cofidash/merge"
	"github.com/Modou1ngom/cofidash/objective"
	"github.com/Modou1ngom/cofidash/source"
)

// maxBodyBytes bounds request bodies; preview payloads can be large.
const maxBodyBytes = 16 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  objective.Repository
	Source source.DataSource
	Cache  *source.Cache // nil when the source is not cached
	Engine *merge.Engine
	Logger *zap.Logger

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a handler. When src is a *source.Cached its cache is
// exposed through the cache endpoints.
func NewHandler(store objective.Repository, src source.DataSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Store:  store,
		Source: src,
		Engine: merge.NewEngine(store, merge.WithObserver(merge.NewZapObserver(logger))),
		Logger: logger,
		now:    time.Now,
	}
	if c, ok := src.(*source.Cached); ok {
		h.Cache = c.Cache()
	}
	return h
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DATASET HANDLERS
// =============================================================================

// GetDataset fetches a dataset from the analytics proxy and merges the
// objectives of the dataset's targets into it.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := source.ParseDataset(chi.URLParam(r, "dataset"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown dataset", err)
		return
	}
	params, err := source.ParseParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	granularity := params.Period
	if granularity == "" {
		granularity = objective.GranularityMonth
	}
	now := h.now()
	year := objective.ResolveYear(params.Year, now)
	month := objective.ResolveMonth(granularity, params.Month, params.Date, now)
	targets := TargetsFor(ds)

	var (
		payload    map[string]any
		candidates = make([][]objective.Record, len(targets))
		findErr    error
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		p, err := h.Source.Fetch(ctx, ds, params)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if len(targets) > 0 {
		g.Go(func() error {
			for i, t := range targets {
				records, err := h.Store.FindObjectives(ctx, t.Query(year, month))
				if err != nil {
					findErr = fmt.Errorf("find %s objectives: %w", t.Name, err)
					return nil
				}
				candidates[i] = records
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.Logger.Warn("analytics fetch failed",
			zap.String("dataset", string(ds)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "Analytics service unavailable", err)
		return
	}

	if findErr != nil {
		h.Logger.Warn("serving dataset without objectives",
			zap.String("dataset", string(ds)), zap.Error(findErr))
		writeJSON(w, http.StatusOK, payload)
		return
	}

	for i, t := range targets {
		res := h.Engine.MergeRecords(payload, candidates[i], t, year, month)
		payload = res.Payload
		h.Logger.Debug("objectives merged",
			zap.String("dataset", string(ds)),
			zap.String("target", t.Name),
			zap.Int("year", year),
			zap.Intp("month", month),
			zap.Int("candidates", res.Stats.Candidates),
			zap.Int("matched", res.Stats.Matched),
			zap.Int("unmatched", res.Stats.Unmatched),
			zap.Bool("abandoned", res.Abandoned))
	}
	writeJSON(w, http.StatusOK, payload)
}

// MergePreview merges objectives into the payload of the request body,
// from the store or from the objectives listed in the body.
func (h *Handler) MergePreview(w http.ResponseWriter, r *http.Request) {
	var req MergePreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Payload == nil {
		writeError(w, http.StatusBadRequest, "payload is required", nil)
		return
	}
	target, err := merge.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target", err)
		return
	}
	if req.Month != nil && (*req.Month < 1 || *req.Month > 12) {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12", nil)
		return
	}
	year := objective.ResolveYear(req.Year, h.now())

	var res merge.Result
	if req.Objectives != nil {
		records, err := previewRecords(req.Objectives, year)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid objective", err)
			return
		}
		res = h.Engine.MergeRecords(req.Payload, records, target, year, req.Month)
	} else {
		res = h.Engine.MergeObjectives(r.Context(), req.Payload, target, year, req.Month)
	}

	writeJSON(w, http.StatusOK, MergePreviewResponse{
		Payload:   res.Payload,
		Target:    target.Name,
		Year:      year,
		Month:     req.Month,
		Stats:     res.Stats,
		Abandoned: res.Abandoned,
	})
}

func previewRecords(reqs []ObjectiveRequest, year int) ([]objective.Record, error) {
	records := make([]objective.Record, 0, len(reqs))
	for i, req := range reqs {
		rec, err := req.apply(objective.Record{Year: year})
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("objectives[%d]: %w", i, err)
		}
		rec.ID = strconv.Itoa(i)
		records = append(records, rec)
	}
	return records, nil
}

// =============================================================================
// OBJECTIVE HANDLERS
// =============================================================================

// ListObjectives returns objectives matching the query filters.
func (h *Handler) ListObjectives(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	records, err := h.Store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list objectives", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTOs(records))
}

// PendingValidation lists objectives awaiting validation.
func (h *Handler) PendingValidation(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.List(r.Context(), objective.ListFilter{Status: objective.StatusPending})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list objectives", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTOs(records))
}

func (h *Handler) GetObjective(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTO(rec))
}

// CreateObjective stores a new objective. Period defaults to "month" when a
// month is given, "year" otherwise.
func (h *Handler) CreateObjective(w http.ResponseWriter, r *http.Request) {
	var req ObjectiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := req.apply(objective.Record{})
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	rec.Status = objective.StatusPending

	saved, err := h.Store.Save(r.Context(), rec)
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	h.Logger.Info("objective created",
		zap.String("id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.Int64("value", saved.Value))
	writeJSON(w, http.StatusCreated, toObjectiveDTO(saved))
}

// UpdateObjective applies the set fields. Any change sends the objective
// back to pending validation.
func (h *Handler) UpdateObjective(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	var req ObjectiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := req.apply(existing)
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	if rec.Period != objective.PeriodMonth {
		rec.Month = nil
	}
	rec.Status = objective.StatusPending

	saved, err := h.Store.Save(r.Context(), rec)
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTO(saved))
}

func (h *Handler) DeleteObjective(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeObjectiveError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ValidateObjective(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, objective.StatusValidated)
}

func (h *Handler) RejectObjective(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, objective.StatusRejected)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to objective.Status) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	rec, err = objective.Transition(rec, to)
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	saved, err := h.Store.Save(r.Context(), rec)
	if err != nil {
		writeObjectiveError(w, err)
		return
	}
	h.Logger.Info("objective status changed", zap.String("id", saved.ID), zap.String("status", string(to)))
	writeJSON(w, http.StatusOK, toObjectiveDTO(saved))
}

// AgencySum returns the summed objective of every agency for a target
// (default: savings) in (year, month), the same totals the merge uses.
func (h *Handler) AgencySum(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("target")
	if name == "" {
		name = q.Get("type")
	}
	if name == "" {
		name = merge.TargetSavings.Name
	}
	target, err := merge.ParseTarget(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target", err)
		return
	}
	yearParam, err := queryInt(q, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := queryInt(q, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	year := objective.ResolveYear(yearParam, h.now())

	records, err := h.Store.FindObjectives(r.Context(), target.Query(year, month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load objectives", err)
		return
	}

	resp := AgencySumResponse{Target: target.Name, Year: year, Month: month, Agencies: []AgencySumDTO{}}
	for _, g := range merge.GroupTotals(objective.Filter(records, target.Query(year, month))) {
		resp.Agencies = append(resp.Agencies, AgencySumDTO{
			AgencyKey:  g.Key,
			AgencyCode: g.Code,
			AgencyName: g.Name,
			Total:      g.Total,
			Count:      g.Count,
		})
		resp.Total += g.Total
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CACHE HANDLERS
// =============================================================================

func (h *Handler) requireCache(w http.ResponseWriter) bool {
	if h.Cache == nil {
		writeError(w, http.StatusNotFound, "Cache is not configured", nil)
		return false
	}
	return true
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireCache(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// ClearCache drops every entry, or those whose key contains ?pattern=.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.requireCache(w) {
		return
	}
	n := h.Cache.Clear(r.URL.Query().Get("pattern"))
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Cache cleared: %d entries", n), Count: &n})
}

func (h *Handler) EnableCache(w http.ResponseWriter, r *http.Request) {
	if !h.requireCache(w) {
		return
	}
	h.Cache.Enable()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Cache enabled"})
}

func (h *Handler) DisableCache(w http.ResponseWriter, r *http.Request) {
	if !h.requireCache(w) {
		return
	}
	h.Cache.Disable()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Cache disabled"})
}

// SetCacheTTL sets the default TTL from ?ttl= (seconds).
func (h *Handler) SetCacheTTL(w http.ResponseWriter, r *http.Request) {
	if !h.requireCache(w) {
		return
	}
	seconds, err := queryInt(r.URL.Query(), "ttl")
	if err != nil || seconds == nil || *seconds <= 0 {
		writeError(w, http.StatusBadRequest, "ttl must be a positive number of seconds", err)
		return
	}
	h.Cache.SetTTL(time.Duration(*seconds) * time.Second)
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Default TTL set to %d seconds", *seconds)})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeObjectiveError maps objective errors onto HTTP statuses.
func writeObjectiveError(w http.ResponseWriter, err error) {
	switch {
	case objective.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Objective not found", err)
	case errors.Is(err, objective.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid status transition", err)
	case objective.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid objective", err)
	default:
		writeError(w, http.StatusInternalServerError, "Objective store failure", err)
	}
}

// decodeJSON decodes the request body, keeping numbers as json.Number so
// that payload identifiers survive untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

func queryInt(q url.Values, key string) (*int, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, s)
	}
	return &n, nil
}

func parseListFilter(q url.Values) (objective.ListFilter, error) {
	var f objective.ListFilter
	if s := q.Get("type"); s != "" {
		t, err := objective.ParseType(s)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if s := q.Get("status"); s != "" {
		st, err := objective.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	year, err := queryInt(q, "year")
	if err != nil {
		return f, err
	}
	if year != nil {
		f.Year = *year
	}
	if f.Month, err = queryInt(q, "month"); err != nil {
		return f, err
	}
	return f, nil
}
