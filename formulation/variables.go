/*
variables.go - Decision variables of the workforce model

PURPOSE:
  Declares the three variable families every other builder refers to.
  No constraint is added here.

FAMILIES:
  Assignment  x[i,j,k,l]  binary   staff i works skill k for job l on day j
  Completion  c[l]        binary   job l's skill-day requirements are met
  Dates       start[l], end[l], duration[l]  integer in [0, horizon+1]

ORDERING:
  Variables are created in a fixed nested order (staff, day, skill, job for
  assignments; then completions; then dates), so the same Instance always
  yields the same VarIDs. Assignment(i,j,k,l) lives at flat position
  ((i*H + j)*K + k)*L + l of the assignment block.
*/
package formulation

import (
	"fmt"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// DateField selects one of the three schedule date variables of a job.
type DateField int

const (
	Start DateField = iota
	End
	Duration
)

func (d DateField) String() string {
	switch d {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return "duration"
	}
}

// Variables holds the identities of the decision variables.
type Variables struct {
	dims     instance.Dimensions
	assign   []mip.VarID
	complete []mip.VarID
	dates    [][3]mip.VarID
}

// NewVariables declares all decision variables on m.
func NewVariables(m *mip.Model, dims instance.Dimensions) *Variables {
	v := &Variables{
		dims:     dims,
		assign:   make([]mip.VarID, 0, dims.Staff*dims.Horizon*dims.Skills*dims.Jobs),
		complete: make([]mip.VarID, dims.Jobs),
		dates:    make([][3]mip.VarID, dims.Jobs),
	}
	for i := 0; i < dims.Staff; i++ {
		for j := 0; j < dims.Horizon; j++ {
			for k := 0; k < dims.Skills; k++ {
				for l := 0; l < dims.Jobs; l++ {
					v.assign = append(v.assign, m.NewBinary(fmt.Sprintf("assign[%d,%d,%d,%d]", i, j, k, l)))
				}
			}
		}
	}
	for l := 0; l < dims.Jobs; l++ {
		v.complete[l] = m.NewBinary(fmt.Sprintf("complete[%d]", l))
	}
	for l := 0; l < dims.Jobs; l++ {
		for d := Start; d <= Duration; d++ {
			v.dates[l][d] = m.NewInteger(fmt.Sprintf("%s[%d]", d, l), 0, dims.Horizon+1)
		}
	}
	return v
}

// Dims returns the dimensions the variables were sized with.
func (v *Variables) Dims() instance.Dimensions { return v.dims }

// Assignment returns x[i,j,k,l].
func (v *Variables) Assignment(i, j, k, l int) (mip.VarID, error) {
	d := v.dims
	if i < 0 || i >= d.Staff || j < 0 || j >= d.Horizon || k < 0 || k >= d.Skills || l < 0 || l >= d.Jobs {
		return 0, &ModelConstructionError{
			Op: "assignment index out of range", Staff: i, Day: j, Skill: k, Job: l,
			Err: fmt.Errorf("dimensions are %+v", d),
		}
	}
	return v.assign[((i*d.Horizon+j)*d.Skills+k)*d.Jobs+l], nil
}

// Completion returns c[l].
func (v *Variables) Completion(l int) (mip.VarID, error) {
	if l < 0 || l >= v.dims.Jobs {
		return 0, &ModelConstructionError{Op: "completion index out of range", Staff: -1, Day: -1, Skill: -1, Job: l}
	}
	return v.complete[l], nil
}

// Date returns start[l], end[l] or duration[l].
func (v *Variables) Date(l int, field DateField) (mip.VarID, error) {
	if l < 0 || l >= v.dims.Jobs || field < Start || field > Duration {
		return 0, &ModelConstructionError{Op: "date index out of range", Staff: -1, Day: -1, Skill: -1, Job: l}
	}
	return v.dates[l][field], nil
}
