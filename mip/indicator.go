package mip

import "fmt"

// =============================================================================
// INDICATOR CONSTRAINTS
// =============================================================================

// Bounds returns the smallest and largest value expr can take over the
// current variable bounds.
func (m *Model) Bounds(expr *LinExpr) (lo, hi float64) {
	lo, hi = expr.Constant(), expr.Constant()
	for _, t := range expr.Terms() {
		v := m.vars[t.Var]
		if t.Coef > 0 {
			lo += t.Coef * v.Lower
			hi += t.Coef * v.Upper
		} else {
			lo += t.Coef * v.Upper
			hi += t.Coef * v.Lower
		}
	}
	return lo, hi
}

// AddIndicator adds the implication "ind == active  =>  expr sense rhs".
//
// The implication is linearized with the tightest big-M the current bounds
// allow. When expr cannot violate the constraint at all, nothing is added.
// Equality indicators become a pair of inequalities.
func (m *Model) AddIndicator(name string, ind VarID, active bool, expr *LinExpr, sense Sense, rhs float64) error {
	if err := m.checkVar(ind); err != nil {
		return fmt.Errorf("indicator %q: %w", name, err)
	}
	if m.vars[ind].Kind != Binary {
		return invalidModel("indicator %q: %q is %s, need binary", name, m.vars[ind].Name, m.vars[ind].Kind)
	}
	for _, t := range expr.Terms() {
		if err := m.checkVar(t.Var); err != nil {
			return fmt.Errorf("indicator %q: %w", name, err)
		}
	}

	switch sense {
	case LessEqual:
		return m.indicatorLE(name, ind, active, expr, rhs)
	case GreaterEqual:
		return m.indicatorGE(name, ind, active, expr, rhs)
	default:
		if err := m.indicatorLE(name+"/le", ind, active, expr, rhs); err != nil {
			return err
		}
		return m.indicatorGE(name+"/ge", ind, active, expr, rhs)
	}
}

// expr <= rhs when ind == active:
//
//	active: expr + M*ind <= rhs + M
//	!active: expr - M*ind <= rhs
func (m *Model) indicatorLE(name string, ind VarID, active bool, expr *LinExpr, rhs float64) error {
	_, hi := m.Bounds(expr)
	bigM := hi - rhs
	if bigM <= 0 {
		return nil
	}
	e := expr.Clone()
	if active {
		e.AddTerm(ind, bigM)
		return m.AddConstraint(name, e, LessEqual, rhs+bigM)
	}
	e.AddTerm(ind, -bigM)
	return m.AddConstraint(name, e, LessEqual, rhs)
}

// expr >= rhs when ind == active:
//
//	active: expr - M*ind >= rhs - M
//	!active: expr + M*ind >= rhs
func (m *Model) indicatorGE(name string, ind VarID, active bool, expr *LinExpr, rhs float64) error {
	lo, _ := m.Bounds(expr)
	bigM := rhs - lo
	if bigM <= 0 {
		return nil
	}
	e := expr.Clone()
	if active {
		e.AddTerm(ind, -bigM)
		return m.AddConstraint(name, e, GreaterEqual, rhs-bigM)
	}
	e.AddTerm(ind, bigM)
	return m.AddConstraint(name, e, GreaterEqual, rhs)
}
