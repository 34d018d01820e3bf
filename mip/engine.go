package mip

import (
	"context"
	"math"
)

// Status is the termination state of an engine run.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusTimeLimit
	StatusNodeLimit
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeLimit:
		return "time_limit"
	default:
		return "node_limit"
	}
}

// Result is what an engine returns for a model.
//
// Objective and Bound are expressed in the model's own direction: for a
// maximization model, Bound >= Objective. HasSolution is false when no
// feasible point was found; Values is nil in that case.
type Result struct {
	Status      Status
	HasSolution bool
	Objective   float64
	Bound       float64
	Values      []float64
	Nodes       int
}

// Gap is the relative distance between the best solution and the best
// bound, or +Inf when there is no solution.
func (r Result) Gap() float64 {
	if !r.HasSolution {
		return math.Inf(1)
	}
	return math.Abs(r.Bound-r.Objective) / math.Max(1, math.Abs(r.Objective))
}

// Engine solves models. Solve blocks until the model is solved, proven
// infeasible, or ctx is done; a done context is reported as
// StatusTimeLimit together with the best solution found so far.
type Engine interface {
	Solve(ctx context.Context, m *Model) (Result, error)
}
