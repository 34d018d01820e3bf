/*
scenarios.go - Demo instances for testing and demonstrations

PURPOSE:
  Provides pre-built instances that can be stored with one request, each
  demonstrating one behaviour of the planner.

AVAILABLE SCENARIOS:
  on-time:   one welder, two days of work due on day 3 (profit 20)
  too-short: the same job on a one-day horizon (cannot complete, profit 0)
  late:      due on day 1 but the only staff member is away on days 0-2
             (completes on day 4, profit 14)
  random:    a generated instance; ?seed= selects it

USAGE VIA API:
  POST /api/scenarios/load?seed=7
  {"scenario_id": "random"}

ADDING NEW SCENARIOS:
  1. Add to 'scenarios' with ID, name, description
  2. Add a builder to 'scenarioBuilders'

SEE ALSO:
  - handlers.go: instance storage
  - instance/generate.go: random instances
*/
package api

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-planner/instance"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{ID: "on-time", Name: "On-time completion", Description: "One welder finishes a two-day job before its due date."},
	{ID: "too-short", Name: "Horizon too short", Description: "A two-day job on a one-day horizon stays incomplete."},
	{ID: "late", Name: "Late completion", Description: "Vacations push a job three days past its due date."},
	{ID: "random", Name: "Random instance", Description: "Three skills, four staff, four jobs over ten days."},
}

var scenarioBuilders = map[string]func(seed int64) (*instance.Instance, error){
	"on-time": func(int64) (*instance.Instance, error) {
		return singleWelder(5, 3, []int{})
	},
	"too-short": func(int64) (*instance.Instance, error) {
		return singleWelder(1, 1, []int{})
	},
	"late": func(int64) (*instance.Instance, error) {
		return singleWelder(5, 1, []int{0, 1, 2})
	},
	"random": func(seed int64) (*instance.Instance, error) {
		return instance.Generate(instance.GeneratorParams{Skills: 3, Staff: 4, Jobs: 4, Horizon: 10}, rand.New(rand.NewSource(seed)))
	},
}

func singleWelder(horizon, due int, vacations []int) (*instance.Instance, error) {
	return instance.New(horizon,
		[]instance.Skill{"S1"},
		[]instance.Job{{
			Name: "Job1", Gain: decimal.NewFromInt(20), DailyPenalty: decimal.NewFromInt(2),
			DueDate: due, RequiredDays: map[instance.Skill]int{"S1": 2},
		}},
		[]instance.StaffMember{{Name: "Olivia", Skills: []instance.Skill{"S1"}, Vacations: vacations}},
	)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo instances.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario stores a demo instance and returns its ID.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	seed, err := parseIntParam(r, "seed", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid seed", err)
		return
	}

	inst, err := build(int64(seed))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build scenario", err)
		return
	}
	id, err := h.saveInstance(r.Context(), req.ScenarioID, inst)
	if err != nil {
		writeFailure(w, "Failed to store scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}
