/*
Package planner runs one planning request end to end.

FLOW:
  Instance -> formulation.Build -> solver.Submit -> solver.Solve -> Extract

  1. The instance is validated; a *instance.ValidationError stops here and
     no model is built.
  2. The model is built and submitted.
  3. The engine runs under the configured time limit.
  4. When a feasible point exists, the engine's objective is checked
     against the model objective at the returned values. Slack lateness
     left in a time-limited incumbent is then tightened, the objective and
     gap are recomputed, and the point is read back into a Schedule whose
     profit must match. A disagreement is a
     *formulation.ModelConstructionError.

  Infeasible and time-limited runs are results, not errors. Engine failures
  return both a Result with status ERROR and the *solver.EngineError.
*/
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/metrics"
	"github.com/warp/workforce-planner/mip"
	"github.com/warp/workforce-planner/solver"
)

// DriftTolerance is the largest accepted difference between the engine's
// objective and the recomputed profit, relative to max(1, |profit|).
const DriftTolerance = 1e-6

// Options configures one run.
type Options struct {
	Formulation formulation.Options
	// TimeLimit bounds the engine's wall time; 0 means no limit.
	TimeLimit time.Duration
	// Engine overrides the built-in branch-and-bound engine.
	Engine mip.Engine
}

// DefaultOptions returns the default formulation options and a 30s limit.
func DefaultOptions() Options {
	return Options{Formulation: formulation.DefaultOptions(), TimeLimit: 30 * time.Second}
}

// Result is the outcome of a run.
type Result struct {
	Status    solver.Status
	Objective *float64
	Bound     *float64
	Gap       *float64
	Nodes     int
	Elapsed   time.Duration
	// Schedule is nil when no feasible point is known.
	Schedule *formulation.Schedule
	// Model summarises the size of the built model.
	Model ModelStats
}

// ModelStats describes the built model.
type ModelStats struct {
	Variables   int
	Constraints int
	Masked      int
}

// Succeeded reports whether the run produced a usable schedule: an optimal
// one, or the incumbent of a time-limited run.
func (r *Result) Succeeded() bool {
	switch r.Status {
	case solver.StatusOptimal:
		return r.Schedule != nil
	case solver.StatusTimeLimit:
		return r.Schedule != nil
	default:
		return false
	}
}

// Plan builds, solves and reads back inst.
func Plan(ctx context.Context, inst *instance.Instance, opts Options) (*Result, error) {
	f, err := formulation.Build(inst, opts.Formulation)
	if err != nil {
		if errors.Is(err, instance.ErrInvalidInstance) {
			metrics.ModelBuilds.WithLabelValues("invalid").Inc()
		} else {
			metrics.ModelBuilds.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.ModelBuilds.WithLabelValues("ok").Inc()
	metrics.ModelSize.WithLabelValues("variables").Observe(float64(f.Model.NumVars()))
	metrics.ModelSize.WithLabelValues("constraints").Observe(float64(f.Model.NumConstraints()))

	res := &Result{Model: ModelStats{
		Variables:   f.Model.NumVars(),
		Constraints: f.Model.NumConstraints(),
		Masked:      f.Mask.Total(),
	}}

	adapter := solver.New(opts.Engine)
	h, err := adapter.Submit(f.Model)
	if err != nil {
		res.Status = solver.StatusError
		return res, err
	}
	out, err := adapter.Solve(ctx, h, opts.TimeLimit)
	res.Status, res.Nodes, res.Elapsed = out.Status, out.Nodes, out.Elapsed
	if err != nil {
		return res, err
	}
	res.Objective, res.Bound, res.Gap = out.Objective, out.Bound, out.Gap
	if !out.HasSolution() {
		return res, nil
	}

	if err := checkDrift(*out.Objective, f.Model.Objective().Eval(out.Values), "values"); err != nil {
		return res, err
	}
	values, err := f.TightenLateness(out.Values)
	if err != nil {
		return res, err
	}
	objective := f.Model.Objective().Eval(values)
	res.Objective = &objective
	if res.Bound != nil {
		if *res.Bound < objective {
			bound := objective
			res.Bound = &bound
		}
		gap := math.Abs(*res.Bound-objective) / math.Max(1, math.Abs(objective))
		res.Gap = &gap
	}

	schedule, err := f.Extract(values)
	if err != nil {
		return res, err
	}
	if err := checkDrift(objective, schedule.Profit.InexactFloat64(), "schedule"); err != nil {
		return res, err
	}
	res.Schedule = schedule
	return res, nil
}

func checkDrift(objective, actual float64, what string) error {
	if math.Abs(objective-actual) > DriftTolerance*math.Max(1, math.Abs(actual)) {
		return &formulation.ModelConstructionError{
			Op: "objective drift", Staff: -1, Day: -1, Skill: -1, Job: -1,
			Err: fmt.Errorf("engine reports %v, %s is worth %v", objective, what, actual),
		}
	}
	return nil
}
