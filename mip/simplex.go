/*
simplex.go - LP relaxation by bounded-variable primal simplex

STANDARD FORM:
  Every free variable is shifted to y = x - lb with 0 <= y <= ub - lb;
  variables the node has fixed are substituted. Each inequality gets a
  slack, each row is signed so its right-hand side is non-negative, and a
  row whose slack cannot start basic gets an artificial column. Bounds are
  handled by the ratio test, not by extra rows, and no rank assumption is
  made on the constraint matrix.

PHASES:
  1. Minimize the sum of the artificials. A positive optimum means the
     relaxation is infeasible.
  2. Artificials are pinned at zero and barred from entering; the node
     cost is minimized from the phase-1 basis.

PIVOTING:
  Dantzig's rule, switching to Bland's rule after a run of degenerate
  pivots so the method cannot cycle. A nonbasic variable sits at either of
  its bounds and may flip between them without a pivot.

  The context is checked every few pivots, so a deadline interrupts a
  single long relaxation.
*/
package mip

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// errLPInfeasible marks an infeasible relaxation.
var errLPInfeasible = errors.New("relaxation infeasible")

const (
	feasTol    = 1e-9 // constant rows, step and tie comparisons
	pivotTol   = 1e-9 // smallest usable pivot element
	costTol    = 1e-9 // reduced-cost optimality
	phase1Tol  = 1e-7 // residual infeasibility accepted after phase 1
	blandAfter = 50   // degenerate pivots in a row before Bland's rule
	ctxEvery   = 16   // pivots between context checks
)

// =============================================================================
// RELAXATION
// =============================================================================

type lpRow struct {
	terms []Term // over free columns
	sense Sense
	rhs   float64
}

// relaxation minimizes cost·x + costConst over the LP relaxation of m
// restricted to lb <= x <= ub. It returns the optimal value and point,
// errLPInfeasible, ctx.Err() or an ErrNumerical failure.
func relaxation(ctx context.Context, m *Model, cost []float64, costConst float64, lb, ub []float64) (float64, []float64, error) {
	n := len(lb)
	col := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if ub[j] < lb[j]-feasTol {
			return 0, nil, errLPInfeasible
		}
		if ub[j]-lb[j] > feasTol {
			col[j] = len(free)
			free = append(free, j)
		} else {
			col[j] = -1
		}
	}

	var rows []lpRow
	for _, c := range m.cons {
		rhs := c.RHS
		var terms []Term
		for _, t := range c.Terms {
			rhs -= t.Coef * lb[t.Var]
			if k := col[t.Var]; k >= 0 {
				terms = append(terms, Term{Var: VarID(k), Coef: t.Coef})
			}
		}
		if len(terms) == 0 {
			if !constantHolds(c.Sense, rhs) {
				return 0, nil, errLPInfeasible
			}
			continue
		}
		rows = append(rows, lpRow{terms: terms, sense: c.Sense, rhs: rhs})
	}

	x := append([]float64(nil), lb...)
	if len(free) > 0 {
		t, phase1, hasArtificial := buildTableau(rows, free, lb, ub)
		if hasArtificial {
			if err := t.phaseOne(ctx, phase1); err != nil {
				return 0, nil, err
			}
		}
		phase2 := make([]float64, len(t.upper))
		for k, j := range free {
			phase2[k] = cost[j]
		}
		t.price(phase2)
		if err := t.optimize(ctx); err != nil {
			return 0, nil, err
		}
		for k, j := range free {
			x[j] = math.Max(lb[j], math.Min(ub[j], lb[j]+t.columnValue(k)))
		}
	}

	value := costConst
	for j, c := range cost {
		value += c * x[j]
	}
	return value, x, nil
}

func constantHolds(sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return rhs >= -feasTol
	case GreaterEqual:
		return rhs <= feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}

// buildTableau lays out free columns, then one slack per inequality, then
// the artificials. It returns the phase-1 cost vector and whether any
// artificial was needed.
func buildTableau(rows []lpRow, free []int, lb, ub []float64) (*tableau, []float64, bool) {
	type layout struct {
		sign       float64
		slack, art int
		slackCoef  float64
	}

	nCols := len(free)
	lay := make([]layout, len(rows))
	for i, rw := range rows {
		L := layout{sign: 1, slack: -1, art: -1}
		switch rw.sense {
		case LessEqual:
			L.slackCoef = 1
		case GreaterEqual:
			L.slackCoef = -1
		}
		if L.slackCoef != 0 {
			L.slack = nCols
			nCols++
		}
		if L.slackCoef != 0 && L.slackCoef*rw.rhs >= 0 {
			L.sign = L.slackCoef
		} else {
			if rw.rhs < 0 {
				L.sign = -1
			}
			L.art = nCols
			nCols++
		}
		lay[i] = L
	}

	t := newTableau(len(rows), nCols)
	for k, j := range free {
		t.upper[k] = ub[j] - lb[j]
	}
	phase1 := make([]float64, nCols)
	hasArtificial := false
	for i, rw := range rows {
		L := lay[i]
		row := t.rows[i]
		for _, term := range rw.terms {
			row[term.Var] += L.sign * term.Coef
		}
		basic := L.slack
		if L.slack >= 0 {
			row[L.slack] = L.sign * L.slackCoef
			t.upper[L.slack] = math.Inf(1)
		}
		if L.art >= 0 {
			row[L.art] = 1
			t.upper[L.art] = math.Inf(1)
			phase1[L.art] = 1
			basic = L.art
			hasArtificial = true
		}
		t.basis[i], t.rowOf[basic] = basic, i
		t.value[i] = L.sign * rw.rhs
	}
	return t, phase1, hasArtificial
}

// =============================================================================
// TABLEAU
// =============================================================================

// tableau is a dense simplex tableau over columns 0 <= y_j <= upper[j].
type tableau struct {
	rows    [][]float64 // B⁻¹A
	value   []float64   // value of the basic column of each row
	basis   []int       // basic column of each row
	rowOf   []int       // row of a basic column, -1 when nonbasic
	upper   []float64   // column upper bounds (lower bounds are zero)
	atUpper []bool      // nonbasic column sits at its upper bound
	blocked []bool      // column may not enter the basis
	reduced []float64   // reduced costs
}

func newTableau(nRows, nCols int) *tableau {
	t := &tableau{
		rows:    make([][]float64, nRows),
		value:   make([]float64, nRows),
		basis:   make([]int, nRows),
		rowOf:   make([]int, nCols),
		upper:   make([]float64, nCols),
		atUpper: make([]bool, nCols),
		blocked: make([]bool, nCols),
		reduced: make([]float64, nCols),
	}
	for i := range t.rows {
		t.rows[i] = make([]float64, nCols)
	}
	for j := range t.rowOf {
		t.rowOf[j] = -1
	}
	return t
}

// price sets the reduced costs c - c_B·B⁻¹A for cost vector c.
func (t *tableau) price(cost []float64) {
	copy(t.reduced, cost)
	for i, row := range t.rows {
		if cb := cost[t.basis[i]]; cb != 0 {
			floats.AddScaled(t.reduced, -cb, row)
		}
	}
}

// phaseOne drives the artificials out of the solution, then pins them.
func (t *tableau) phaseOne(ctx context.Context, phase1 []float64) error {
	t.price(phase1)
	if err := t.optimize(ctx); err != nil {
		return err
	}
	residual := 0.0
	for i, j := range t.basis {
		if phase1[j] != 0 {
			residual += t.value[i]
		}
	}
	if residual > phase1Tol {
		return errLPInfeasible
	}
	for j, c := range phase1 {
		if c == 0 {
			continue
		}
		t.upper[j], t.blocked[j] = 0, true
		if r := t.rowOf[j]; r >= 0 {
			t.value[r] = 0
		}
	}
	return nil
}

// optimize pivots until no reduced cost improves the objective.
func (t *tableau) optimize(ctx context.Context) error {
	limit := 50*(len(t.rows)+len(t.upper)) + 1000
	degenerate := 0
	for iter := 0; ; iter++ {
		if iter%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if iter > limit {
			return fmt.Errorf("%w: no convergence after %d pivots", ErrNumerical, limit)
		}

		bland := degenerate >= blandAfter
		q, dir := t.entering(bland)
		if q < 0 {
			return nil
		}
		r, step, toUpper := t.ratio(q, dir, bland)
		if math.IsInf(step, 1) {
			return fmt.Errorf("%w: unbounded direction on column %d", ErrNumerical, q)
		}
		if step > feasTol {
			degenerate = 0
		} else {
			degenerate++
		}
		t.advance(q, dir, step, r, toUpper)
	}
}

// entering picks a nonbasic column whose move improves the objective and
// the direction of that move (+1 up from the lower bound, -1 down from
// the upper bound). It returns -1 at optimality.
func (t *tableau) entering(bland bool) (int, float64) {
	best, dir, score := -1, 0.0, 0.0
	for j, d := range t.reduced {
		if t.rowOf[j] >= 0 || t.blocked[j] {
			continue
		}
		var s, dj float64
		switch {
		case !t.atUpper[j] && d < -costTol:
			s, dj = -d, 1
		case t.atUpper[j] && d > costTol:
			s, dj = d, -1
		default:
			continue
		}
		if bland {
			return j, dj
		}
		if s > score {
			best, dir, score = j, dj, s
		}
	}
	return best, dir
}

// ratio returns the leaving row (-1 when column q only flips to its other
// bound), the step length, and whether the leaving column ends at its
// upper bound.
func (t *tableau) ratio(q int, dir float64, bland bool) (int, float64, bool) {
	leave, step, toUpper, pivot := -1, t.upper[q], false, 0.0
	for i, row := range t.rows {
		a := dir * row[q]
		var lim float64
		var up bool
		switch {
		case a > pivotTol:
			lim = t.value[i] / a
		case a < -pivotTol:
			u := t.upper[t.basis[i]]
			if math.IsInf(u, 1) {
				continue
			}
			lim, up = (u-t.value[i])/-a, true
		default:
			continue
		}
		lim = math.Max(lim, 0)

		better := lim < step-feasTol
		if !better && leave >= 0 && lim <= step+feasTol {
			if bland {
				better = t.basis[i] < t.basis[leave]
			} else {
				better = math.Abs(a) > pivot
			}
		}
		if better {
			leave, step, toUpper, pivot = i, lim, up, math.Abs(a)
		}
	}
	return leave, step, toUpper
}

// advance moves column q by step in direction dir, then either flips q to
// its other bound (r < 0) or pivots it into row r.
func (t *tableau) advance(q int, dir, step float64, r int, toUpper bool) {
	if step > 0 {
		for i, row := range t.rows {
			if a := row[q]; a != 0 {
				j := t.basis[i]
				t.value[i] = math.Max(0, math.Min(t.upper[j], t.value[i]-dir*step*a))
			}
		}
	}
	if r < 0 {
		t.atUpper[q] = !t.atUpper[q]
		return
	}

	entered := step
	if t.atUpper[q] {
		entered = t.upper[q] - step
	}
	leaving := t.basis[r]
	t.atUpper[leaving] = toUpper
	t.rowOf[leaving] = -1
	t.atUpper[q] = false

	t.pivot(r, q)
	t.basis[r], t.rowOf[q] = q, r
	t.value[r] = entered
}

func (t *tableau) pivot(r, q int) {
	prow := t.rows[r]
	floats.Scale(1/prow[q], prow)
	prow[q] = 1
	for i, row := range t.rows {
		if i == r {
			continue
		}
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, prow)
			row[q] = 0
		}
	}
	if f := t.reduced[q]; f != 0 {
		floats.AddScaled(t.reduced, -f, prow)
		t.reduced[q] = 0
	}
}

// columnValue is the current value of column j.
func (t *tableau) columnValue(j int) float64 {
	switch {
	case t.rowOf[j] >= 0:
		return t.value[t.rowOf[j]]
	case t.atUpper[j]:
		return t.upper[j]
	default:
		return 0
	}
}
