/*
Package solver submits built models to a MIP engine and reports outcomes.

PURPOSE:
  The adapter is the only place that talks to an engine. It freezes a
  model on Submit, runs the engine under a wall-clock limit on Solve and
  maps whatever the engine reports onto four statuses:

    OPTIMAL     search finished, the incumbent is proven optimal
    INFEASIBLE  search finished, no feasible point exists
    TIME_LIMIT  search stopped early; Objective is set when an incumbent exists
    ERROR       the engine failed; the error is returned as *EngineError

SEE ALSO:
  - mip/engine.go: Engine interface and raw engine statuses
  - planner:       control flow around Submit/Solve
*/
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/warp/workforce-planner/metrics"
	"github.com/warp/workforce-planner/mip"
)

// Status is the outcome of a solve as seen by callers.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusInfeasible Status = "INFEASIBLE"
	StatusTimeLimit  Status = "TIME_LIMIT"
	StatusError      Status = "ERROR"
)

var (
	// ErrEngine is the sentinel every *EngineError unwraps to.
	ErrEngine = errors.New("engine failure")
	// ErrModelChanged is returned when a submitted model was modified
	// before Solve.
	ErrModelChanged = errors.New("model changed after submit")
)

// EngineError carries the engine's own message verbatim.
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	return "engine: " + e.Message
}

func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEngine}
	}
	return []error{ErrEngine, e.Err}
}

// Handle is a submitted model.
type Handle struct {
	model       *mip.Model
	vars        int
	constraints int
	submitted   time.Time
}

// Model returns the submitted model.
func (h *Handle) Model() *mip.Model { return h.model }

// Outcome is the result of one Solve call.
type Outcome struct {
	Status Status
	// Objective is nil when no feasible point is known.
	Objective *float64
	// Bound is the best proven bound on the objective, nil when unknown.
	Bound *float64
	// Values holds one value per model variable, nil without a solution.
	Values []float64
	// Gap is the relative optimality gap, nil without a solution.
	Gap     *float64
	Nodes   int
	Elapsed time.Duration
}

// HasSolution reports whether the outcome carries a feasible point.
func (o *Outcome) HasSolution() bool { return o.Objective != nil }

// Adapter runs models on an engine.
type Adapter struct {
	engine mip.Engine
}

// New returns an adapter over engine. A nil engine selects the built-in
// branch-and-bound engine.
func New(engine mip.Engine) *Adapter {
	if engine == nil {
		engine = mip.NewBranchAndBound()
	}
	return &Adapter{engine: engine}
}

// Submit validates m and freezes its shape.
func (a *Adapter) Submit(m *mip.Model) (*Handle, error) {
	if m == nil {
		return nil, &EngineError{Message: "nil model"}
	}
	if err := m.Validate(); err != nil {
		return nil, &EngineError{Message: err.Error(), Err: err}
	}
	return &Handle{
		model:       m,
		vars:        m.NumVars(),
		constraints: m.NumConstraints(),
		submitted:   time.Now(),
	}, nil
}

// Solve runs the engine on h for at most timeLimit (no limit when
// timeLimit <= 0). It blocks until the engine returns.
func (a *Adapter) Solve(ctx context.Context, h *Handle, timeLimit time.Duration) (out *Outcome, err error) {
	if h.model.NumVars() != h.vars || h.model.NumConstraints() != h.constraints {
		return &Outcome{Status: StatusError}, fmt.Errorf("solve: %w", ErrModelChanged)
	}
	if timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeLimit)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		out.Elapsed = time.Since(start)
		record(out)
	}()
	defer func() {
		if r := recover(); r != nil {
			out = &Outcome{Status: StatusError}
			err = &EngineError{Message: fmt.Sprint(r)}
		}
	}()

	res, engineErr := a.engine.Solve(ctx, h.model)
	if engineErr != nil {
		return &Outcome{Status: StatusError}, &EngineError{Message: engineErr.Error(), Err: engineErr}
	}
	if res.HasSolution && len(res.Values) != h.vars {
		return &Outcome{Status: StatusError}, &EngineError{
			Message: fmt.Sprintf("engine returned %d values for %d variables", len(res.Values), h.vars),
		}
	}
	return outcomeOf(res), nil
}

func outcomeOf(res mip.Result) *Outcome {
	out := &Outcome{Nodes: res.Nodes}
	switch res.Status {
	case mip.StatusOptimal:
		out.Status = StatusOptimal
	case mip.StatusInfeasible:
		out.Status = StatusInfeasible
	default:
		out.Status = StatusTimeLimit
	}
	if res.HasSolution {
		obj := res.Objective
		out.Objective = &obj
		out.Values = res.Values
		if gap := res.Gap(); !math.IsInf(gap, 0) && !math.IsNaN(gap) {
			out.Gap = &gap
		}
	}
	if !math.IsInf(res.Bound, 0) && !math.IsNaN(res.Bound) && out.Status != StatusInfeasible {
		bound := res.Bound
		out.Bound = &bound
	}
	return out
}

func record(out *Outcome) {
	status := string(out.Status)
	metrics.Solves.WithLabelValues(status).Inc()
	metrics.SolveDuration.WithLabelValues(status).Observe(out.Elapsed.Seconds())
	metrics.SolveNodes.Observe(float64(out.Nodes))
}
