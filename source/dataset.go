/*
Package source fetches hierarchical datasets from the analytics proxy.

PURPOSE:
  The analytics proxy exposes one GET endpoint per dataset under
  /api/oracle/data/{dataset}. Each returns a JSON object, usually
  {"hierarchicalData": {...}} possibly wrapped in {"data": ...}. This
  package turns (dataset, params) into a decoded payload; it does not
  interpret the payload.

COMPONENTS:
  Dataset:  Known endpoints
  Params:   Query parameters forwarded to the proxy
  Client:   fasthttp implementation of DataSource
  Cache:    In-memory TTL cache with admin operations
  Cached:   DataSource decorator backed by a Cache

SEE ALSO:
  - hierarchy/codec.go: JSON decoding
  - api/handlers.go: Merges objectives into fetched datasets
*/
package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DataSource returns the decoded payload of one dataset.
type DataSource interface {
	Fetch(ctx context.Context, ds Dataset, p Params) (map[string]any, error)
}

// Dataset names an analytics proxy endpoint.
type Dataset string

const (
	DatasetClients          Dataset = "clients"
	DatasetProduction       Dataset = "production"
	DatasetProductionVolume Dataset = "production-volume"
	DatasetEncours          Dataset = "encours"
	DatasetCollection       Dataset = "collection"
	DatasetVolumeDAT        Dataset = "volume-dat"
	DatasetDepotGarantie    Dataset = "depot-garantie"
	DatasetPrepaidCardSales Dataset = "prepaid-card-sales"
)

// AllDatasets lists the known datasets.
var AllDatasets = []Dataset{
	DatasetClients, DatasetProduction, DatasetProductionVolume, DatasetEncours,
	DatasetCollection, DatasetVolumeDAT, DatasetDepotGarantie, DatasetPrepaidCardSales,
}

// UnknownDatasetError is returned by ParseDataset.
type UnknownDatasetError struct {
	Name string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q", e.Name)
}

func ParseDataset(s string) (Dataset, error) {
	d := Dataset(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDatasets {
		if d == known {
			return d, nil
		}
	}
	return "", &UnknownDatasetError{Name: s}
}

// Path is the proxy path of the dataset.
func (d Dataset) Path() string {
	return "/api/oracle/data/" + string(d)
}

// =============================================================================
// PARAMS
// =============================================================================

// Params are forwarded verbatim to the proxy. Empty fields are omitted.
type Params struct {
	Period    string // "week", "month", "year"
	Zone      string
	Month     *int
	Year      *int
	Date      string // YYYY-MM-DD, with Period "week"
	Type      string // sub-filter, e.g. savings product family
	DateStart string // custom range, production datasets
	DateEnd   string
}

// Values encodes p as a query string. url.Values.Encode sorts keys, so
// equal params always encode identically.
func (p Params) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("period", p.Period)
	set("zone", p.Zone)
	if p.Month != nil {
		v.Set("month", strconv.Itoa(*p.Month))
	}
	if p.Year != nil {
		v.Set("year", strconv.Itoa(*p.Year))
	}
	set("date", p.Date)
	set("type", p.Type)
	set("date_m_debut", p.DateStart)
	set("date_m_fin", p.DateEnd)
	return v
}

// ParseParams reads Params from an incoming query string.
func ParseParams(q url.Values) (Params, error) {
	p := Params{
		Period:    q.Get("period"),
		Zone:      q.Get("zone"),
		Date:      q.Get("date"),
		Type:      q.Get("type"),
		DateStart: q.Get("date_m_debut"),
		DateEnd:   q.Get("date_m_fin"),
	}
	var err error
	if p.Month, err = optionalInt(q, "month"); err != nil {
		return Params{}, err
	}
	if p.Year, err = optionalInt(q, "year"); err != nil {
		return Params{}, err
	}
	if p.Month != nil && (*p.Month < 1 || *p.Month > 12) {
		return Params{}, fmt.Errorf("invalid month %d", *p.Month)
	}
	return p, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
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
