/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  store records and the planner result.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Instance: InstanceSummaryDTO, InstanceDTO, CreatedDTO
  Run:      SolveRequest, RunDTO, RunOptionsDTO
  Scenario: ScenarioDTO, LoadScenarioRequest
  Errors:   ErrorResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - instance/file.go: Instance JSON format embedded in InstanceDTO
*/
package api

import (
	"encoding/json"
	"math"
	"time"

	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/store"
)

// =============================================================================
// INSTANCES
// =============================================================================

// InstanceSummaryDTO is one row of the instance list.
type InstanceSummaryDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Horizon   int       `json:"horizon"`
	Skills    int       `json:"skills"`
	Jobs      int       `json:"jobs"`
	Staff     int       `json:"staff"`
	CreatedAt time.Time `json:"created_at"`
}

// InstanceDTO is a stored instance with its full data in file format.
type InstanceDTO struct {
	InstanceSummaryDTO
	Instance json.RawMessage `json:"instance"`
}

// CreatedDTO is returned by create endpoints.
type CreatedDTO struct {
	ID string `json:"id"`
}

func toSummary(rec store.InstanceRecord) InstanceSummaryDTO {
	d := rec.Instance.Dimensions()
	return InstanceSummaryDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Horizon:   d.Horizon,
		Skills:    d.Skills,
		Jobs:      d.Jobs,
		Staff:     d.Staff,
		CreatedAt: rec.CreatedAt,
	}
}

// =============================================================================
// RUNS
// =============================================================================

// SolveRequest is the optional body of POST /api/instances/{id}/solve.
// Omitted fields take the server defaults.
type SolveRequest struct {
	TimeLimitSeconds     float64 `json:"time_limit_seconds"`
	OneTaskPerDay        *bool   `json:"one_task_per_day"`
	MaskUnrequiredSkills *bool   `json:"mask_unrequired_skills"`
}

// RunOptionsDTO echoes the options a run was solved with.
type RunOptionsDTO struct {
	TimeLimitSeconds     float64 `json:"time_limit_seconds"`
	OneTaskPerDay        bool    `json:"one_task_per_day"`
	MaskUnrequiredSkills bool    `json:"mask_unrequired_skills"`
}

// RunDTO is a finished solve run.
type RunDTO struct {
	ID         string                `json:"id"`
	InstanceID string                `json:"instance_id"`
	Status     string                `json:"status"`
	Objective  *float64              `json:"objective"`
	Bound      *float64              `json:"bound"`
	Gap        *float64              `json:"gap"`
	Nodes      int                   `json:"nodes"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
	Options    RunOptionsDTO         `json:"options"`
	Schedule   *formulation.Schedule `json:"schedule"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

func toRunDTO(rec store.RunRecord) RunDTO {
	return RunDTO{
		ID:         rec.ID,
		InstanceID: rec.InstanceID,
		Status:     rec.Status,
		Objective:  finite(rec.Objective),
		Bound:      finite(rec.Bound),
		Gap:        finite(rec.Gap),
		Nodes:      rec.Nodes,
		ElapsedMS:  rec.Elapsed.Milliseconds(),
		Options: RunOptionsDTO{
			TimeLimitSeconds:     rec.Options.TimeLimit.Seconds(),
			OneTaskPerDay:        rec.Options.OneTaskPerDay,
			MaskUnrequiredSkills: rec.Options.MaskUnrequiredSkills,
		},
		Schedule:  rec.Schedule,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
	}
}

// finite drops values encoding/json cannot represent.
func finite(v *float64) *float64 {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return nil
	}
	return v
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo instance.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo instance to store.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	Index   *int   `json:"index,omitempty"`
}
