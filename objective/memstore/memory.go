// Package memstore provides an in-memory objective.Repository.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Modou1ngom/cofidash/objective"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]objective.Record
	order   []string // insertion order of IDs
	now     func() time.Time
}

func New() *Memory {
	return &Memory{
		records: make(map[string]objective.Record),
		now:     time.Now,
	}
}

// NewWith seeds the store, keeping the given order.
func NewWith(records ...objective.Record) *Memory {
	m := New()
	for _, r := range records {
		m.saveLocked(r)
	}
	return m
}

func (m *Memory) Save(_ context.Context, r objective.Record) (objective.Record, error) {
	if err := r.Validate(); err != nil {
		return objective.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(r), nil
}

func (m *Memory) saveLocked(r objective.Record) objective.Record {
	now := m.now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if existing, ok := m.records[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else {
		m.order = append(m.order, r.ID)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	}
	if r.Status == "" {
		r.Status = objective.StatusPending
	}
	r.UpdatedAt = now
	m.records[r.ID] = r
	return r
}

func (m *Memory) Get(_ context.Context, id string) (objective.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return objective.Record{}, objective.ErrObjectiveNotFound
	}
	return r, nil
}

func (m *Memory) List(_ context.Context, f objective.ListFilter) ([]objective.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []objective.Record
	for _, id := range m.order {
		if r := m.records[id]; f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindObjectives applies the selection rule over all records.
func (m *Memory) FindObjectives(_ context.Context, q objective.Query) ([]objective.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]objective.Record, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.records[id])
	}
	return objective.Filter(all, q), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return objective.ErrObjectiveNotFound
	}
	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]objective.Record)
	m.order = nil
	return nil
}

var _ objective.Repository = (*Memory)(nil)
