/*
Package mip provides a small mixed-integer linear programming toolkit.

PURPOSE:
  Domain code describes an optimization problem as a Model: bounded
  variables (binary, integer or continuous), linear constraints and a linear
  objective. The Model carries no domain knowledge; the formulation package
  builds the workforce model on top of it.

KEY CONCEPTS:
  - VarID:      Stable, index-addressable variable identity (its position)
  - LinExpr:    Linear expression builder
  - Constraint: expr {<=, >=, ==} rhs
  - Indicator:  "if binary == value then constraint", linearized with a
                big-M derived from variable bounds (indicator.go)
  - Engine:     Anything that can solve a Model (engine.go)

BOUNDS:
  Every variable has finite bounds. This keeps every indicator big-M finite
  and lets the branch-and-bound engine work on a bounded LP relaxation.

SEE ALSO:
  - indicator.go: Indicator linearization
  - bnb.go:       Branch-and-bound engine
  - simplex.go:   LP relaxation (bounded-variable simplex)
*/
package mip

import (
	"fmt"
	"math"
)

// =============================================================================
// VARIABLES
// =============================================================================

// VarID identifies a variable by its position in the model.
type VarID int

// VarKind is the domain type of a variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return "continuous"
	}
}

// IsIntegral reports whether the kind requires integer values.
func (k VarKind) IsIntegral() bool {
	return k == Integer || k == Binary
}

// Variable describes one decision variable.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Fixed reports whether the domain is a single value.
func (v Variable) Fixed() bool {
	return v.Lower == v.Upper
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

// Sense is the relation of a constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "=="
	}
}

// Constraint is sum(terms) sense RHS. The expression constant has already
// been moved to the right-hand side.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Activity evaluates the left-hand side at the given values.
func (c Constraint) Activity(values []float64) float64 {
	total := 0.0
	for _, t := range c.Terms {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Satisfied reports whether the constraint holds within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	a := c.Activity(values)
	switch c.Sense {
	case LessEqual:
		return a <= c.RHS+tol
	case GreaterEqual:
		return a >= c.RHS-tol
	default:
		return math.Abs(a-c.RHS) <= tol
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is a mixed-integer linear program. A Model is not safe for
// concurrent mutation; build one per goroutine.
type Model struct {
	Name string

	vars      []Variable
	cons      []Constraint
	objective *LinExpr
	maximize  bool
	hint      []float64

	err error // first construction error, reported by Validate
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, objective: NewExpr()}
}

// NewVar adds a variable and returns its identity. Invalid bounds are
// recorded and reported by Validate.
func (m *Model) NewVar(name string, kind VarKind, lower, upper float64) VarID {
	if kind == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	if m.err == nil {
		switch {
		case math.IsInf(lower, 0) || math.IsInf(upper, 0) || math.IsNaN(lower) || math.IsNaN(upper):
			m.err = invalidModel("variable %q has non-finite bounds [%v, %v]", name, lower, upper)
		case lower > upper:
			m.err = invalidModel("variable %q has empty domain [%v, %v]", name, lower, upper)
		}
	}
	m.vars = append(m.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return VarID(len(m.vars) - 1)
}

// NewBinary adds a 0/1 variable.
func (m *Model) NewBinary(name string) VarID {
	return m.NewVar(name, Binary, 0, 1)
}

// NewInteger adds an integer variable in [lower, upper].
func (m *Model) NewInteger(name string, lower, upper int) VarID {
	return m.NewVar(name, Integer, float64(lower), float64(upper))
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of linear constraints.
func (m *Model) NumConstraints() int { return len(m.cons) }

// Var returns the description of v.
func (m *Model) Var(v VarID) Variable { return m.vars[v] }

// Vars returns a copy of all variable descriptions.
func (m *Model) Vars() []Variable { return append([]Variable(nil), m.vars...) }

// Constraints returns a copy of all constraints.
func (m *Model) Constraints() []Constraint { return append([]Constraint(nil), m.cons...) }

// Fix restricts v to a single value.
func (m *Model) Fix(v VarID, value float64) error {
	if err := m.checkVar(v); err != nil {
		return err
	}
	d := &m.vars[v]
	if value < d.Lower || value > d.Upper {
		return invalidModel("cannot fix %q to %v outside [%v, %v]", d.Name, value, d.Lower, d.Upper)
	}
	d.Lower, d.Upper = value, value
	return nil
}

// AddConstraint adds expr sense rhs.
func (m *Model) AddConstraint(name string, expr *LinExpr, sense Sense, rhs float64) error {
	terms := expr.Terms()
	for _, t := range terms {
		if err := m.checkVar(t.Var); err != nil {
			return fmt.Errorf("constraint %q: %w", name, err)
		}
	}
	m.cons = append(m.cons, Constraint{
		Name:  name,
		Terms: terms,
		Sense: sense,
		RHS:   rhs - expr.Constant(),
	})
	return nil
}

// SetObjective sets the objective expression and its direction.
func (m *Model) SetObjective(expr *LinExpr, maximize bool) error {
	for _, t := range expr.Terms() {
		if err := m.checkVar(t.Var); err != nil {
			return fmt.Errorf("objective: %w", err)
		}
	}
	m.objective = expr.Clone()
	m.maximize = maximize
	return nil
}

// Objective returns the objective expression.
func (m *Model) Objective() *LinExpr { return m.objective }

// Maximize reports the objective direction.
func (m *Model) Maximize() bool { return m.maximize }

// SetHint records a known feasible assignment. Engines may use it as their
// first incumbent.
func (m *Model) SetHint(values []float64) error {
	if len(values) != len(m.vars) {
		return invalidModel("hint has %d values for %d variables", len(values), len(m.vars))
	}
	m.hint = append([]float64(nil), values...)
	return nil
}

// Hint returns the recorded hint, or nil.
func (m *Model) Hint() []float64 { return m.hint }

// Validate reports the first construction error, if any.
func (m *Model) Validate() error {
	return m.err
}

// Violation returns the name of the first bound, integrality or constraint
// violated by values, or "" when values are feasible within tol.
func (m *Model) Violation(values []float64, tol float64) string {
	if len(values) != len(m.vars) {
		return "dimension"
	}
	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return v.Name
		}
		if v.Kind.IsIntegral() && math.Abs(x-math.Round(x)) > tol {
			return v.Name
		}
	}
	for _, c := range m.cons {
		if !c.Satisfied(values, tol) {
			return c.Name
		}
	}
	return ""
}

func (m *Model) checkVar(v VarID) error {
	if v < 0 || int(v) >= len(m.vars) {
		return invalidModel("variable %d out of range [0, %d)", v, len(m.vars))
	}
	return nil
}
