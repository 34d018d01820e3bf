/*
Package postgres provides a PostgreSQL-backed store.Store.

PURPOSE:
  Same tables as store/sqlite, in PostgreSQL types: JSONB documents and
  TIMESTAMPTZ timestamps. Connections go through the pgx database/sql
  driver so the code stays on database/sql like the SQLite store.

USAGE:
  st, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/store"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to dsn, checks the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	st := &Store{db: db}
	if err := st.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		instance_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_instances_created
		ON instances(created_at, id);

	CREATE TABLE IF NOT EXISTS runs (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL REFERENCES instances(id),
		status TEXT NOT NULL,
		objective DOUBLE PRECISION,
		bound DOUBLE PRECISION,
		gap DOUBLE PRECISION,
		nodes INTEGER NOT NULL DEFAULT 0,
		elapsed_ns BIGINT NOT NULL DEFAULT 0,
		options_json JSONB NOT NULL,
		schedule_json JSONB,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_instance
		ON runs(instance_id, created_at);
	`)
	return err
}

// =============================================================================
// INSTANCES
// =============================================================================

// CreateInstance implements store.Store.
func (s *Store) CreateInstance(ctx context.Context, rec store.InstanceRecord) error {
	data, err := instance.Marshal(rec.Instance)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (id, name, instance_json, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Name, string(data), rec.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// GetInstance implements store.Store.
func (s *Store) GetInstance(ctx context.Context, id string) (*store.InstanceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, instance_json::text, created_at FROM instances WHERE id = $1`, id)
	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// ListInstances implements store.Store.
func (s *Store) ListInstances(ctx context.Context) ([]store.InstanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, instance_json::text, created_at FROM instances ORDER BY created_at, id`)
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
		rec  store.InstanceRecord
		data string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &data, &rec.CreatedAt); err != nil {
		return nil, err
	}
	inst, err := instance.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("stored instance %s: %w", rec.ID, err)
	}
	rec.Instance = inst
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// =============================================================================
// RUNS
// =============================================================================

// CreateRun implements store.Store.
func (s *Store) CreateRun(ctx context.Context, rec store.RunRecord) error {
	schedule, err := store.EncodeSchedule(rec.Schedule)
	if err != nil {
		return err
	}
	options, err := store.EncodeOptions(rec.Options)
	if err != nil {
		return err
	}
	var scheduleArg any
	if schedule != nil {
		scheduleArg = string(schedule)
	}
	var errArg any
	if rec.Error != "" {
		errArg = rec.Error
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, instance_id, status, objective, bound, gap, nodes, elapsed_ns,
		 options_json, schedule_json, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.InstanceID, rec.Status,
		rec.Objective, rec.Bound, rec.Gap,
		rec.Nodes, int64(rec.Elapsed),
		string(options), scheduleArg, errArg, rec.CreatedAt.UTC(),
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		case isUniqueViolation(err):
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

const runColumns = `id, instance_id, status, objective, bound, gap, nodes, elapsed_ns,
	options_json::text, schedule_json::text, error, created_at`

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// ListRuns implements store.Store.
func (s *Store) ListRuns(ctx context.Context, instanceID string) ([]store.RunRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM instances WHERE id = $1`, instanceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check instance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE instance_id = $1 ORDER BY created_at, seq`, instanceID)
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
	)
	err := row.Scan(&rec.ID, &rec.InstanceID, &rec.Status, &objective, &bound, &gap,
		&rec.Nodes, &elapsed, &options, &schedule, &errMessage, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Objective = floatPtr(objective)
	rec.Bound = floatPtr(bound)
	rec.Gap = floatPtr(gap)
	rec.Elapsed = time.Duration(elapsed)
	rec.Error = errMessage.String
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.Options, err = store.DecodeOptions([]byte(options)); err != nil {
		return nil, err
	}
	if rec.Schedule, err = store.DecodeSchedule([]byte(schedule.String)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// PostgreSQL error codes, see Appendix A of the PostgreSQL manual.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
