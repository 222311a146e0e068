/*
Package sqlite provides a SQLite-backed objective.Repository.

PURPOSE:
  Persists agency objectives for the merge engine and the objectives API.
  The same schema runs on PostgreSQL with minor dialect changes.

KEY TABLE:
  objectives: one row per objective. seq is an autoincrement used only for
              ordering; id is the public identifier (UUID unless the caller
              supplies one).

ORDERING:
  Every read is ORDER BY seq. An upsert keeps the row's seq, so replacing
  an objective does not move it. The merge index resolves duplicate agency
  keys by last write wins and relies on this order.

INDEXES:
  - idx_objectives_type_year: FindObjectives (hot path, one query per merge)
  - idx_objectives_status:    pending-validation listing

CONCURRENCY:
  Writes are serialized with a mutex; SQLite allows a single writer.
  The pool is capped at one connection so ":memory:" databases are shared
  by every query.

WAL MODE:
  Opened with WAL so that merge reads are not blocked by the API writing.

USAGE:
  store, err := sqlite.New("./data/cofidash.db")
  if err != nil {
      return err
  }
  defer store.Close()

  engine := merge.NewEngine(store)

SEE ALSO:
  - objective/store.go: Interface definitions
  - objective/memstore/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Modou1ngom/cofidash/objective"
)

// Store implements objective.Repository using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS objectives (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER,
		period TEXT NOT NULL,
		agency_code TEXT NOT NULL DEFAULT '',
		agency_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		value INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_objectives_type_year
		ON objectives(type, year);

	CREATE INDEX IF NOT EXISTS idx_objectives_status
		ON objectives(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `SELECT id, type, year, month, period, agency_code, agency_name,
	category, value, status, created_at, updated_at FROM objectives`

// =============================================================================
// OBJECTIVE REPOSITORY
// =============================================================================

// Save upserts r by ID.
func (s *Store) Save(ctx context.Context, r objective.Record) (objective.Record, error) {
	if err := r.Validate(); err != nil {
		return objective.Record{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = objective.StatusPending
	}
	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objectives (id, type, year, month, period, agency_code, agency_name,
			category, value, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			year = excluded.year,
			month = excluded.month,
			period = excluded.period,
			agency_code = excluded.agency_code,
			agency_name = excluded.agency_name,
			category = excluded.category,
			value = excluded.value,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ID, string(r.Type), r.Year, nullMonth(r.Month), string(r.Period),
		r.AgencyCode, r.AgencyName, r.Category, r.Value, string(r.Status),
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return objective.Record{}, fmt.Errorf("save objective %s: %w", r.ID, err)
	}

	// created_at is not updated on conflict; read it back.
	return s.get(ctx, r.ID)
}

// Get returns objective.ErrObjectiveNotFound for an unknown ID.
func (s *Store) Get(ctx context.Context, id string) (objective.Record, error) {
	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id string) (objective.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanObjective(row)
	if errors.Is(err, sql.ErrNoRows) {
		return objective.Record{}, objective.ErrObjectiveNotFound
	}
	if err != nil {
		return objective.Record{}, fmt.Errorf("get objective %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, f objective.ListFilter) ([]objective.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.Month != nil {
		where = append(where, "month = ?")
		args = append(args, *f.Month)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.queryObjectives(ctx, query+" ORDER BY seq", args...)
}

// FindObjectives applies the period selection rule in SQL:
//
//	month given:   monthly rows of that month, plus quarterly and yearly rows
//	month omitted: quarterly and yearly rows only
func (s *Store) FindObjectives(ctx context.Context, q objective.Query) ([]objective.Record, error) {
	if len(q.Types) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(q.Types))
	args := []any{q.Year}
	for i, t := range q.Types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}

	query := selectColumns + ` WHERE year = ? AND type IN (` + strings.Join(placeholders, ", ") + `)`
	if q.Month != nil {
		query += ` AND ((period = 'month' AND month = ?) OR period IN ('quarter', 'year'))`
		args = append(args, *q.Month)
	} else {
		query += ` AND period IN ('quarter', 'year')`
	}

	records, err := s.queryObjectives(ctx, query+" ORDER BY seq", args...)
	if err != nil {
		return nil, fmt.Errorf("find objectives: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM objectives WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete objective %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return objective.ErrObjectiveNotFound
	}
	return nil
}

// Reset removes every objective (demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM objectives`)
	return err
}

var _ objective.Repository = (*Store)(nil)

// =============================================================================
// ROW MAPPING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryObjectives(ctx context.Context, query string, args ...any) ([]objective.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []objective.Record
	for rows.Next() {
		r, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanObjective(row scanner) (objective.Record, error) {
	var (
		r                    objective.Record
		typ, period, status  string
		month                sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &typ, &r.Year, &month, &period, &r.AgencyCode, &r.AgencyName,
		&r.Category, &r.Value, &status, &createdAt, &updatedAt)
	if err != nil {
		return objective.Record{}, err
	}
	r.Type = objective.Type(typ)
	r.Period = objective.Period(period)
	r.Status = objective.Status(status)
	if month.Valid {
		r.Month = objective.IntPtr(int(month.Int64))
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

func nullMonth(m *int) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*m), Valid: true}
}
