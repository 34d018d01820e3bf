package mip

import "sort"

// Term is one coefficient-variable product of a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// LinExpr is a linear expression sum(coef * var) + constant. Methods return
// the receiver so terms can be chained:
//
//	e := mip.NewExpr().AddTerm(x, 2).AddTerm(y, -1).AddConstant(3)
type LinExpr struct {
	terms    []Term
	constant float64
}

// NewExpr returns an empty expression.
func NewExpr() *LinExpr {
	return &LinExpr{}
}

// Sum returns the expression v1 + v2 + ... .
func Sum(vars ...VarID) *LinExpr {
	e := &LinExpr{terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.terms = append(e.terms, Term{Var: v, Coef: 1})
	}
	return e
}

// AddTerm adds coef * v.
func (e *LinExpr) AddTerm(v VarID, coef float64) *LinExpr {
	e.terms = append(e.terms, Term{Var: v, Coef: coef})
	return e
}

// AddConstant adds c to the constant part.
func (e *LinExpr) AddConstant(c float64) *LinExpr {
	e.constant += c
	return e
}

// AddExpr adds scale * other.
func (e *LinExpr) AddExpr(other *LinExpr, scale float64) *LinExpr {
	for _, t := range other.terms {
		e.terms = append(e.terms, Term{Var: t.Var, Coef: t.Coef * scale})
	}
	e.constant += other.constant * scale
	return e
}

// Clone returns an independent copy.
func (e *LinExpr) Clone() *LinExpr {
	return &LinExpr{terms: append([]Term(nil), e.terms...), constant: e.constant}
}

// Terms returns the terms with duplicate variables merged and zero
// coefficients dropped, ordered by variable.
func (e *LinExpr) Terms() []Term {
	merged := make(map[VarID]float64, len(e.terms))
	for _, t := range e.terms {
		merged[t.Var] += t.Coef
	}
	out := make([]Term, 0, len(merged))
	for v, c := range merged {
		if c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Var < out[b].Var })
	return out
}

// Constant returns the constant part.
func (e *LinExpr) Constant() float64 {
	return e.constant
}

// Eval evaluates the expression at the given variable values.
func (e *LinExpr) Eval(values []float64) float64 {
	total := e.constant
	for _, t := range e.terms {
		total += t.Coef * values[t.Var]
	}
	return total
}
