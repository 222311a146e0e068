/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Dataset proxying with objectives merged per dataset plan
- Upstream and store failures
- Objective CRUD and validation workflow
- Agency sums, merge preview and cache administration
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Modou1ngom/cofidash/objective"
	"github.com/Modou1ngom/cofidash/objective/memstore"
	"github.com/Modou1ngom/cofidash/source"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeSource serves a fixed payload per dataset and records requests.
type fakeSource struct {
	mu       sync.Mutex
	payloads map[source.Dataset]map[string]any
	err      error
	calls    []source.Params
}

func (f *fakeSource) Fetch(_ context.Context, ds source.Dataset, p source.Params) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads[ds], nil
}

// failingStore fails every objective lookup.
type failingStore struct {
	*memstore.Memory
}

func (failingStore) FindObjectives(context.Context, objective.Query) ([]objective.Record, error) {
	return nil, errors.New("database is locked")
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func agencyPayload(agencies ...map[string]any) map[string]any {
	list := make([]any, len(agencies))
	for i, a := range agencies {
		list[i] = a
	}
	return map[string]any{
		"data": map[string]any{
			"hierarchicalData": map[string]any{
				"TERRITOIRE": map[string]any{
					"territoire_dakar": map[string]any{"name": "DAKAR", "agencies": list},
				},
			},
		},
	}
}

func newTestServer(t *testing.T, store objective.Repository, src source.DataSource) http.Handler {
	t.Helper()
	h := NewHandler(store, src, nil)
	h.now = func() time.Time { return fixedNow }
	return NewRouter(h, RouterOptions{})
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// firstAgency digs the first agency out of agencyPayload's shape.
func firstAgency(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data := body["data"].(map[string]any)
	hd := data["hierarchicalData"].(map[string]any)
	group := hd["TERRITOIRE"].(map[string]any)["territoire_dakar"].(map[string]any)
	return group["agencies"].([]any)[0].(map[string]any)
}

func yearly(t objective.Type, code string, value int64) objective.Record {
	return objective.Record{Type: t, Year: 2024, Period: objective.PeriodYear, AgencyCode: code, Value: value}
}

// =============================================================================
// DATASETS
// =============================================================================

func TestGetDataset_MergesClientObjectives(t *testing.T) {
	// GIVEN: A yearly CLIENT objective for AG001 and the clients dataset
	store := memstore.NewWith(yearly(objective.TypeClient, "AG001", 1200))
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetClients: agencyPayload(map[string]any{"CODE_AGENCE": "AG001", "NOMBRE_CLIENTS": 300}),
	}}
	srv := newTestServer(t, store, src)

	// WHEN: Fetching March 2024
	rec := do(t, srv, http.MethodGet, "/api/data/clients?period=month&month=3&year=2024", nil)

	// THEN: The agency carries the objective
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if agency["OBJECTIF_CLIENT"] != float64(1200) || agency["objectif"] != float64(1200) {
		t.Errorf("Expected objective 1200, got %v / %v", agency["OBJECTIF_CLIENT"], agency["objectif"])
	}
	if len(src.calls) != 1 || src.calls[0].Period != "month" {
		t.Errorf("Expected params forwarded to the source, got %+v", src.calls)
	}
}

func TestGetDataset_PrepaidCardRate(t *testing.T) {
	store := memstore.NewWith(yearly(objective.TypePrepaidCard, "AG001", 200))
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetPrepaidCardSales: agencyPayload(map[string]any{"CODE_AGENCE": "AG001", "NOMBRE_COFICARTE_VENDU_M": 50}),
	}}
	srv := newTestServer(t, store, src)

	rec := do(t, srv, http.MethodGet, "/api/data/prepaid-card-sales?year=2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if agency["TAUX_REALISATION"] != float64(25) {
		t.Errorf("Expected rate 25, got %v", agency["TAUX_REALISATION"])
	}
}

func TestGetDataset_SavingsAggregated(t *testing.T) {
	store := memstore.NewWith(
		yearly(objective.TypeEpargneSimple, "AG001", 100),
		yearly(objective.TypeEpargneProjet, "AG001", 50),
	)
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetEncours: agencyPayload(map[string]any{"CODE_AGENCE": "AG001"}),
	}}
	srv := newTestServer(t, store, src)

	rec := do(t, srv, http.MethodGet, "/api/data/encours", nil)
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if agency["OBJECTIF"] != float64(150) {
		t.Errorf("Expected OBJECTIF 150, got %v", agency["OBJECTIF"])
	}
}

func TestGetDataset_PassThrough(t *testing.T) {
	store := memstore.NewWith(yearly(objective.TypeClient, "AG001", 1))
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetCollection: agencyPayload(map[string]any{"CODE_AGENCE": "AG001"}),
	}}
	srv := newTestServer(t, store, src)

	rec := do(t, srv, http.MethodGet, "/api/data/collection", nil)
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if _, ok := agency["objectif"]; ok {
		t.Errorf("Collection has no merge plan, got objectif %v", agency["objectif"])
	}
}

func TestGetDataset_ProductionObjectives(t *testing.T) {
	// GIVEN: A yearly PRODUCTION objective for AG001
	store := memstore.NewWith(yearly(objective.TypeProduction, "AG001", 5000))
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetProduction:       agencyPayload(map[string]any{"CODE_AGENCE": "AG001"}),
		source.DatasetProductionVolume: agencyPayload(map[string]any{"CODE_AGENCE": "AG001"}),
	}}
	srv := newTestServer(t, store, src)

	// WHEN: Fetching production
	rec := do(t, srv, http.MethodGet, "/api/data/production?year=2024", nil)

	// THEN: The agency carries OBJECTIF_PRODUCTION
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if agency["OBJECTIF_PRODUCTION"] != float64(5000) {
		t.Errorf("Expected OBJECTIF_PRODUCTION 5000, got %v", agency["OBJECTIF_PRODUCTION"])
	}

	// AND: production-volume stays untouched
	rec = do(t, srv, http.MethodGet, "/api/data/production-volume?year=2024", nil)
	agency = firstAgency(t, decode[map[string]any](t, rec))
	if _, ok := agency["OBJECTIF_PRODUCTION"]; ok {
		t.Errorf("production-volume has no merge plan, got %v", agency["OBJECTIF_PRODUCTION"])
	}
}

func TestGetDataset_UnknownDataset(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	if rec := do(t, srv, http.MethodGet, "/api/data/payroll", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestGetDataset_BadParams(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	if rec := do(t, srv, http.MethodGet, "/api/data/clients?month=13", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestGetDataset_UpstreamFailure(t *testing.T) {
	src := &fakeSource{err: &source.HTTPError{Dataset: source.DatasetClients, Status: 500, Detail: "ORA-12541"}}
	srv := newTestServer(t, memstore.New(), src)

	rec := do(t, srv, http.MethodGet, "/api/data/clients", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Details == "" {
		t.Error("Expected upstream details in the error")
	}
}

func TestGetDataset_StoreFailureServesPayload(t *testing.T) {
	// GIVEN: An objective store that cannot answer
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetClients: agencyPayload(map[string]any{"CODE_AGENCE": "AG001"}),
	}}
	srv := newTestServer(t, failingStore{memstore.New()}, src)

	// WHEN: Fetching a dataset with a merge plan
	rec := do(t, srv, http.MethodGet, "/api/data/clients", nil)

	// THEN: The dataset is served without objectives
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	agency := firstAgency(t, decode[map[string]any](t, rec))
	if agency["CODE_AGENCE"] != "AG001" {
		t.Errorf("Expected original agency, got %v", agency)
	}
	if _, ok := agency["objectif"]; ok {
		t.Error("Expected no objectif")
	}
}

// =============================================================================
// OBJECTIVES
// =============================================================================

func TestObjectives_Lifecycle(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})

	// Create
	rec := do(t, srv, http.MethodPost, "/api/objectives", map[string]any{
		"type": "client", "year": 2024, "month": 3, "agency_code": "AG001", "value": 40,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[ObjectiveDTO](t, rec)
	if created.Type != "CLIENT" || created.Period != "month" || created.Status != "pending" {
		t.Fatalf("Unexpected objective %+v", created)
	}

	// Pending list
	pending := decode[[]ObjectiveDTO](t, do(t, srv, http.MethodGet, "/api/objectives/pending-validation", nil))
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("Expected the objective pending, got %+v", pending)
	}

	// Validate
	rec = do(t, srv, http.MethodPost, "/api/objectives/"+created.ID+"/validate", nil)
	if rec.Code != http.StatusOK || decode[ObjectiveDTO](t, rec).Status != "validated" {
		t.Fatalf("Expected validated, got %d: %s", rec.Code, rec.Body.String())
	}

	// Validate again is a conflict
	if rec = do(t, srv, http.MethodPost, "/api/objectives/"+created.ID+"/validate", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}

	// Update sends it back to pending
	rec = do(t, srv, http.MethodPut, "/api/objectives/"+created.ID, map[string]any{"value": 55})
	updated := decode[ObjectiveDTO](t, rec)
	if rec.Code != http.StatusOK || updated.Value != 55 || updated.Status != "pending" {
		t.Fatalf("Unexpected update result %d %+v", rec.Code, updated)
	}

	// Reject
	rec = do(t, srv, http.MethodPost, "/api/objectives/"+created.ID+"/reject", nil)
	if decode[ObjectiveDTO](t, rec).Status != "rejected" {
		t.Errorf("Expected rejected, got %s", rec.Body.String())
	}

	// Filtered list
	list := decode[[]ObjectiveDTO](t, do(t, srv, http.MethodGet, "/api/objectives?type=CLIENT&status=rejected&year=2024", nil))
	if len(list) != 1 {
		t.Errorf("Expected 1 rejected objective, got %d", len(list))
	}

	// Delete
	if rec = do(t, srv, http.MethodDelete, "/api/objectives/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec = do(t, srv, http.MethodGet, "/api/objectives/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestObjectives_CreateInvalid(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	tests := map[string]map[string]any{
		"unknown type": {"type": "PAYROLL", "year": 2024, "agency_code": "A", "value": 1},
		"no agency":    {"type": "CLIENT", "year": 2024, "value": 1},
		"bad month":    {"type": "CLIENT", "year": 2024, "month": 14, "agency_code": "A", "value": 1},
		"negative":     {"type": "CLIENT", "year": 2024, "agency_code": "A", "value": -5},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if rec := do(t, srv, http.MethodPost, "/api/objectives", body); rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestObjectives_ListBadFilter(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	if rec := do(t, srv, http.MethodGet, "/api/objectives?status=archived", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestAgencySum(t *testing.T) {
	store := memstore.NewWith(
		yearly(objective.TypeEpargneSimple, "AG001", 100),
		yearly(objective.TypeEpargneProjet, "ag001", 50),
		yearly(objective.TypeEpargneSimple, "AG002", 10),
		yearly(objective.TypeClient, "AG001", 999),
	)
	srv := newTestServer(t, store, &fakeSource{})

	resp := decode[AgencySumResponse](t, do(t, srv, http.MethodGet, "/api/objectives/agency-sum?year=2024", nil))
	if resp.Target != "savings" || len(resp.Agencies) != 2 {
		t.Fatalf("Unexpected response %+v", resp)
	}
	if resp.Agencies[0].AgencyKey != "AG001" || resp.Agencies[0].Total != 150 || resp.Agencies[0].Count != 2 {
		t.Errorf("Unexpected first agency %+v", resp.Agencies[0])
	}
	if resp.Total != 160 {
		t.Errorf("Expected total 160, got %d", resp.Total)
	}
}

// =============================================================================
// MERGE PREVIEW
// =============================================================================

func TestMergePreview_InlineObjectives(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	body := map[string]any{
		"target":  "client",
		"year":    2024,
		"payload": map[string]any{"agencies": []any{map[string]any{"code": "A1"}, map[string]any{"code": "B2"}}},
		"objectives": []map[string]any{
			{"type": "CLIENT", "agency_code": "A1", "value": 500},
		},
	}

	rec := do(t, srv, http.MethodPost, "/api/merge/preview", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[MergePreviewResponse](t, rec)
	if resp.Stats.Matched != 1 || resp.Stats.Unmatched != 1 || resp.Abandoned {
		t.Errorf("Unexpected stats %+v", resp.Stats)
	}
	first := resp.Payload["agencies"].([]any)[0].(map[string]any)
	if first["objectif"] != float64(500) {
		t.Errorf("Expected 500, got %v", first["objectif"])
	}
}

func TestMergePreview_FromStore(t *testing.T) {
	store := memstore.NewWith(yearly(objective.TypeProduction, "A1", 7))
	srv := newTestServer(t, store, &fakeSource{})
	body := map[string]any{
		"target":  "production",
		"payload": map[string]any{"agencies": []any{map[string]any{"code": "A1"}}},
	}
	resp := decode[MergePreviewResponse](t, do(t, srv, http.MethodPost, "/api/merge/preview", body))
	if resp.Year != 2024 || resp.Stats.Matched != 1 {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestMergePreview_Invalid(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	for name, body := range map[string]map[string]any{
		"no payload":  {"target": "client"},
		"bad target":  {"target": "payroll", "payload": map[string]any{}},
		"bad month":   {"target": "client", "month": 0, "payload": map[string]any{}},
		"bad records": {"target": "client", "payload": map[string]any{}, "objectives": []map[string]any{{"type": "CLIENT"}}},
	} {
		if rec := do(t, srv, http.MethodPost, "/api/merge/preview", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

// =============================================================================
// CACHE
// =============================================================================

func TestCacheEndpoints(t *testing.T) {
	src := &fakeSource{payloads: map[source.Dataset]map[string]any{
		source.DatasetCollection: {"rows": []any{}},
	}}
	cached := source.NewCached(src, source.NewCache(time.Minute, nil))
	srv := newTestServer(t, memstore.New(), cached)

	do(t, srv, http.MethodGet, "/api/data/collection?period=month", nil)
	do(t, srv, http.MethodGet, "/api/data/collection?period=month", nil)
	if len(src.calls) != 1 {
		t.Errorf("Expected one upstream call, got %d", len(src.calls))
	}

	stats := decode[source.CacheStats](t, do(t, srv, http.MethodGet, "/api/cache/stats", nil))
	if stats.TotalEntries != 1 || stats.Hits != 1 || !stats.Enabled {
		t.Errorf("Unexpected stats %+v", stats)
	}

	if rec := do(t, srv, http.MethodPost, "/api/cache/ttl?ttl=60", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/cache/ttl?ttl=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	cleared := decode[MessageResponse](t, do(t, srv, http.MethodPost, "/api/cache/clear?pattern=collection", nil))
	if cleared.Count == nil || *cleared.Count != 1 {
		t.Errorf("Expected 1 cleared entry, got %+v", cleared)
	}

	do(t, srv, http.MethodPost, "/api/cache/disable", nil)
	if decode[source.CacheStats](t, do(t, srv, http.MethodGet, "/api/cache/stats", nil)).Enabled {
		t.Error("Expected cache disabled")
	}
	do(t, srv, http.MethodPost, "/api/cache/enable", nil)
}

func TestCacheEndpoints_NoCache(t *testing.T) {
	srv := newTestServer(t, memstore.New(), &fakeSource{})
	if rec := do(t, srv, http.MethodGet, "/api/cache/stats", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
