/*
bnb.go - LP-based branch-and-bound engine

PURPOSE:
  Solves a Model exactly by depth-first branch-and-bound over the LP
  relaxation (simplex.go). Stands in for a commercial MIP engine behind
  the same Engine interface.

ALGORITHM:
  1. The hint, if feasible, becomes the first incumbent.
  2. Nodes carry their own variable bounds. A node is pruned when its
     parent's relaxation bound cannot beat the incumbent.
  3. The relaxation of a node is solved; infeasible nodes are dropped.
  4. If every integral variable is integral (within IntTol) the rounded
     point is checked against the model and may replace the incumbent.
     When rounding breaks a constraint, the node is split on the
     integral variable furthest from an integer instead.
  5. Otherwise the most fractional variable is split into
     x <= floor(v) and x >= ceil(v); the child on the side v is closer
     to is explored first.

TERMINATION:
  - Tree exhausted:   StatusOptimal, or StatusInfeasible without incumbent
  - ctx done:         StatusTimeLimit with the incumbent, if any; checked
                      inside each relaxation as well as between nodes
  - NodeLimit hit:    StatusNodeLimit with the incumbent, if any
*/
package mip

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// BranchAndBound is a pure-Go MIP engine.
type BranchAndBound struct {
	// NodeLimit stops the search after that many relaxations; 0 means none.
	NodeLimit int
	// IntTol is the integrality tolerance.
	IntTol float64
	// FeasTol is the tolerance used when checking candidate solutions.
	FeasTol float64
}

// NewBranchAndBound returns an engine with default tolerances.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{IntTol: 1e-6, FeasTol: 1e-6}
}

type node struct {
	lb, ub []float64
	bound  float64 // lower bound on the minimized cost
}

// Solve implements Engine.
func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	// Work internally as minimization of sign*objective.
	sign := 1.0
	if m.maximize {
		sign = -1
	}
	n := len(m.vars)
	cost := make([]float64, n)
	for _, t := range m.objective.Terms() {
		cost[t.Var] = sign * t.Coef
	}
	costConst := sign * m.objective.Constant()
	evalCost := func(x []float64) float64 {
		total := costConst
		for j, c := range cost {
			total += c * x[j]
		}
		return total
	}

	var (
		incumbent     []float64
		incumbentCost = math.Inf(1)
		nodes         int
	)
	if hint := m.Hint(); hint != nil && m.Violation(hint, b.FeasTol) == "" {
		incumbent = append([]float64(nil), hint...)
		incumbentCost = evalCost(incumbent)
	}

	root := node{lb: make([]float64, n), ub: make([]float64, n), bound: math.Inf(-1)}
	for j, v := range m.vars {
		root.lb[j], root.ub[j] = v.Lower, v.Upper
	}
	stack := []node{root}

	finish := func(status Status, open []node) Result {
		res := Result{Status: status, Nodes: nodes}
		bound := incumbentCost
		for _, nd := range open {
			bound = math.Min(bound, nd.bound)
		}
		if incumbent != nil {
			res.HasSolution = true
			res.Values = incumbent
			res.Objective = sign * incumbentCost
		}
		res.Bound = sign * bound
		return res
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return finish(StatusTimeLimit, stack), nil
		}
		if b.NodeLimit > 0 && nodes >= b.NodeLimit {
			return finish(StatusNodeLimit, stack), nil
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= incumbentCost-b.FeasTol {
			continue
		}

		value, x, err := relaxation(ctx, m, cost, costConst, nd.lb, nd.ub)
		nodes++
		if errors.Is(err, errLPInfeasible) {
			continue
		}
		if err != nil && ctx.Err() != nil {
			return finish(StatusTimeLimit, append(stack, nd)), nil
		}
		if err != nil {
			return finish(StatusNodeLimit, stack), err
		}
		if value >= incumbentCost-b.FeasTol {
			continue
		}

		branch, frac := -1, 0.0
		for j, v := range m.vars {
			if !v.Kind.IsIntegral() {
				continue
			}
			f := x[j] - math.Floor(x[j])
			dist := math.Min(f, 1-f)
			if dist > b.IntTol && dist > frac {
				branch, frac = j, dist
			}
		}

		if branch < 0 {
			rounded := append([]float64(nil), x...)
			for j, v := range m.vars {
				if v.Kind.IsIntegral() {
					rounded[j] = math.Round(rounded[j])
				}
			}
			violated := m.Violation(rounded, b.FeasTol)
			if violated == "" {
				if c := evalCost(rounded); c < incumbentCost {
					incumbent, incumbentCost = rounded, c
				}
				continue
			}
			branch = furthestFromInteger(m, x, nd)
			if branch < 0 {
				return finish(StatusNodeLimit, append(stack, nd)), fmt.Errorf(
					"%w: integral relaxation point violates %q", ErrNumerical, violated)
			}
		}

		down := node{lb: nd.lb, ub: append([]float64(nil), nd.ub...), bound: value}
		down.ub[branch] = math.Floor(x[branch])
		up := node{lb: append([]float64(nil), nd.lb...), ub: nd.ub, bound: value}
		up.lb[branch] = math.Ceil(x[branch])

		if x[branch]-math.Floor(x[branch]) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent == nil {
		return finish(StatusInfeasible, nil), nil
	}
	return finish(StatusOptimal, nil), nil
}

// furthestFromInteger returns the unfixed integral variable whose value is
// furthest from an integer, or -1 when every one is exactly integral.
func furthestFromInteger(m *Model, x []float64, nd node) int {
	branch, dist := -1, 0.0
	for j, v := range m.vars {
		if !v.Kind.IsIntegral() || nd.ub[j]-nd.lb[j] < 1 {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > dist {
			branch, dist = j, d
		}
	}
	return branch
}
