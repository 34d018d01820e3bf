/*
Package store persists planning instances and solve runs.

PURPOSE:
  The HTTP surface keeps every submitted instance and every solve run so
  results can be fetched later. Runs are written once, when the solve
  finishes, and never updated.

KEY INTERFACES:
  Store: instance and run persistence

IMPLEMENTATIONS:
  - store/memory:   in-memory, for tests and single-process use
  - store/sqlite:   SQLite file or ":memory:"
  - store/postgres: PostgreSQL through the pgx database/sql driver

SEE ALSO:
  - store/storetest: behaviour every implementation must share
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced instance or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when a record with the same ID exists.
	ErrDuplicateID = errors.New("duplicate id")
)

// =============================================================================
// RECORDS
// =============================================================================

// InstanceRecord is a stored instance.
type InstanceRecord struct {
	ID        string
	Name      string
	Instance  *instance.Instance
	CreatedAt time.Time
}

// RunRecord is one finished solve of a stored instance.
type RunRecord struct {
	ID         string
	InstanceID string
	Status     string
	Objective  *float64
	Bound      *float64
	Gap        *float64
	Nodes      int
	Elapsed    time.Duration
	Options    RunOptions
	Schedule   *formulation.Schedule
	Error      string
	CreatedAt  time.Time
}

// RunOptions are the request options a run was solved with.
type RunOptions struct {
	TimeLimit            time.Duration `json:"time_limit"`
	OneTaskPerDay        bool          `json:"one_task_per_day"`
	MaskUnrequiredSkills bool          `json:"mask_unrequired_skills"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists instances and runs.
type Store interface {
	// CreateInstance stores a new instance. The ID must be unique.
	CreateInstance(ctx context.Context, rec InstanceRecord) error

	// GetInstance returns ErrNotFound for unknown IDs.
	GetInstance(ctx context.Context, id string) (*InstanceRecord, error)

	// ListInstances returns all instances, oldest first.
	ListInstances(ctx context.Context) ([]InstanceRecord, error)

	// CreateRun stores a finished run. The instance must exist.
	CreateRun(ctx context.Context, rec RunRecord) error

	// GetRun returns ErrNotFound for unknown IDs.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the runs of an instance, oldest first.
	ListRuns(ctx context.Context, instanceID string) ([]RunRecord, error)

	Close() error
}

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// ENCODING HELPERS - shared by the SQL implementations
// =============================================================================

// EncodeSchedule returns the JSON form of s, or nil for a nil schedule.
func EncodeSchedule(s *formulation.Schedule) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return data, nil
}

// DecodeSchedule is the inverse of EncodeSchedule.
func DecodeSchedule(data []byte) (*formulation.Schedule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s formulation.Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &s, nil
}

// EncodeOptions returns the JSON form of o.
func EncodeOptions(o RunOptions) ([]byte, error) {
	return json.Marshal(o)
}

// DecodeOptions is the inverse of EncodeOptions.
func DecodeOptions(data []byte) (RunOptions, error) {
	var o RunOptions
	if len(data) == 0 {
		return o, nil
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("decode options: %w", err)
	}
	return o, nil
}
