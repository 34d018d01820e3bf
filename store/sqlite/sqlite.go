/*
Package sqlite provides a SQLite-backed store.Store.

PURPOSE:
  Persists planning instances and solve runs. Instances are kept in their
  JSON file format; run schedules and options as JSON documents.

KEY TABLES:
  instances: one row per submitted instance
  runs:      one row per finished solve, referencing its instance

INDEXES:
  - idx_instances_created: ListInstances ordering
  - idx_runs_instance:     ListRuns (hot path of the run history view)

CONCURRENCY:
  Uses sync.RWMutex around writes. SQLite is opened with WAL so readers
  do not block the single writer.

USAGE:
  st, err := sqlite.New("./data/planner.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go:       Interface and record definitions
  - store/postgres:       Same schema for PostgreSQL
  - store/memory:         In-memory implementation for testing
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

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		instance_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_instances_created
		ON instances(created_at, id);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL REFERENCES instances(id),
		status TEXT NOT NULL,
		objective REAL,
		bound REAL,
		gap REAL,
		nodes INTEGER NOT NULL DEFAULT 0,
		elapsed_ns INTEGER NOT NULL DEFAULT 0,
		options_json TEXT NOT NULL,
		schedule_json TEXT,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_instance
		ON runs(instance_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INSTANCES
// =============================================================================

// CreateInstance implements store.Store.
func (s *Store) CreateInstance(ctx context.Context, rec store.InstanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := instance.Marshal(rec.Instance)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (id, name, instance_json, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, string(data), formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// GetInstance implements store.Store.
func (s *Store) GetInstance(ctx context.Context, id string) (*store.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, instance_json, created_at FROM instances WHERE id = ?`, id)
	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// ListInstances implements store.Store.
func (s *Store) ListInstances(ctx context.Context) ([]store.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, instance_json, created_at FROM instances ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var out []store.InstanceRecord
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (*store.InstanceRecord, error) {
	var (
		rec       store.InstanceRecord
		data      string
		createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &data, &createdAt); err != nil {
		return nil, err
	}
	inst, err := instance.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("stored instance %s: %w", rec.ID, err)
	}
	rec.Instance = inst
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// RUNS
// =============================================================================

// CreateRun implements store.Store.
func (s *Store) CreateRun(ctx context.Context, rec store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM instances WHERE id = ?`, rec.InstanceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check instance: %w", err)
	}

	schedule, err := store.EncodeSchedule(rec.Schedule)
	if err != nil {
		return err
	}
	options, err := store.EncodeOptions(rec.Options)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, instance_id, status, objective, bound, gap, nodes, elapsed_ns,
		 options_json, schedule_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.InstanceID,
		rec.Status,
		nullFloat(rec.Objective),
		nullFloat(rec.Bound),
		nullFloat(rec.Gap),
		rec.Nodes,
		int64(rec.Elapsed),
		string(options),
		nullString(string(schedule)),
		nullString(rec.Error),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

const runColumns = `id, instance_id, status, objective, bound, gap, nodes, elapsed_ns,
	options_json, schedule_json, error, created_at`

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// ListRuns implements store.Store.
func (s *Store) ListRuns(ctx context.Context, instanceID string) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM instances WHERE id = ?`, instanceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check instance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE instance_id = ? ORDER BY created_at, rowid`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []store.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRun(row scanner) (*store.RunRecord, error) {
	var (
		rec                  store.RunRecord
		objective, bound     sql.NullFloat64
		gap                  sql.NullFloat64
		elapsed              int64
		options              string
		schedule, errMessage sql.NullString
		createdAt            string
	)
	err := row.Scan(&rec.ID, &rec.InstanceID, &rec.Status, &objective, &bound, &gap,
		&rec.Nodes, &elapsed, &options, &schedule, &errMessage, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Objective = floatPtr(objective)
	rec.Bound = floatPtr(bound)
	rec.Gap = floatPtr(gap)
	rec.Elapsed = time.Duration(elapsed)
	rec.Error = errMessage.String
	if rec.Options, err = store.DecodeOptions([]byte(options)); err != nil {
		return nil, err
	}
	if rec.Schedule, err = store.DecodeSchedule([]byte(schedule.String)); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Times are stored as fixed-width UTC strings so that lexical order is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
