/*
dates.go - Start, end and duration of each job

A day j counts as worked for job l when at least one assignment exists on
that day: sum over staff i, skill k of x[i,j,k,l] >= 1. Strict positivity
matters; "sum >= 0" holds for every day and would make every job start on
day 0 and end on the last day.

CONSTRAINTS (per job l, day j):
  active[j,l] = 0  =>  daySum(j,l) <= 0
  active[j,l] = 1  =>  daySum(j,l) >= 1
  first[j,l] <= active[j,l],  sum_j first[j,l] = c[l],  start[l] = sum_j j*first[j,l]
  last[j,l]  <= active[j,l],  sum_j last[j,l]  = c[l],  end[l] = sum_j j*last[j,l] + (H+1)(1-c[l])
  active[j,l] = 1  =>  start[l] <= j   and   end[l] >= j
  duration[l] = end[l] - start[l] + 1 - (H+2)(1-c[l])

RESULT:
  c[l] = 1: start/end are the first/last worked day, duration = end-start+1
  c[l] = 0: (start, end, duration) = (0, H+1, 0)
*/
package formulation

import (
	"fmt"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// DateVars holds the day-activity binaries, keyed by [day, job]. Days on
// which no assignment is possible for a job have no entry.
type DateVars struct {
	Active map[[2]int]mip.VarID
	First  map[[2]int]mip.VarID
	Last   map[[2]int]mip.VarID
}

// DaySum returns sum over staff i, skill k of x[i,j,k,l], skipping
// assignments fixed to zero.
func DaySum(m *mip.Model, vars *Variables, j, l int) (*mip.LinExpr, error) {
	d := vars.Dims()
	expr := mip.NewExpr()
	for i := 0; i < d.Staff; i++ {
		for k := 0; k < d.Skills; k++ {
			x, err := vars.Assignment(i, j, k, l)
			if err != nil {
				return nil, err
			}
			if !isZero(m, x) {
				expr.AddTerm(x, 1)
			}
		}
	}
	return expr, nil
}

// AddScheduleDateConstraints derives start, end and duration of every job
// from the days it is worked on, and pins the sentinel (0, H+1, 0) on
// incomplete jobs.
func AddScheduleDateConstraints(m *mip.Model, vars *Variables, inst *instance.Instance) (*DateVars, error) {
	dv := &DateVars{
		Active: map[[2]int]mip.VarID{},
		First:  map[[2]int]mip.VarID{},
		Last:   map[[2]int]mip.VarID{},
	}
	H := float64(inst.Horizon)

	for l := range inst.Jobs {
		if err := dv.addJob(m, vars, l, H); err != nil {
			return nil, jobError("schedule dates", l, err)
		}
	}
	return dv, nil
}

func (dv *DateVars) addJob(m *mip.Model, vars *Variables, l int, H float64) error {
	c, err := vars.Completion(l)
	if err != nil {
		return err
	}
	start, err := vars.Date(l, Start)
	if err != nil {
		return err
	}
	end, err := vars.Date(l, End)
	if err != nil {
		return err
	}
	duration, err := vars.Date(l, Duration)
	if err != nil {
		return err
	}

	firstSum := mip.NewExpr().AddTerm(c, -1)
	lastSum := mip.NewExpr().AddTerm(c, -1)
	startDef := mip.NewExpr().AddTerm(start, 1)
	endDef := mip.NewExpr().AddTerm(end, 1).AddTerm(c, H+1)

	for j := 0; j < vars.Dims().Horizon; j++ {
		day, err := DaySum(m, vars, j, l)
		if err != nil {
			return err
		}
		if len(day.Terms()) == 0 {
			continue
		}
		key := [2]int{j, l}
		active := m.NewBinary(fmt.Sprintf("active[%d,%d]", j, l))
		first := m.NewBinary(fmt.Sprintf("first[%d,%d]", j, l))
		last := m.NewBinary(fmt.Sprintf("last[%d,%d]", j, l))
		dv.Active[key], dv.First[key], dv.Last[key] = active, first, last

		if err := m.AddIndicator(fmt.Sprintf("active[%d,%d]/idle", j, l), active, false, day, mip.LessEqual, 0); err != nil {
			return dayError(j, l, err)
		}
		if err := m.AddIndicator(fmt.Sprintf("active[%d,%d]/worked", j, l), active, true, day, mip.GreaterEqual, 1); err != nil {
			return dayError(j, l, err)
		}
		if err := m.AddConstraint(fmt.Sprintf("first[%d,%d]/active", j, l), mip.NewExpr().AddTerm(first, 1).AddTerm(active, -1), mip.LessEqual, 0); err != nil {
			return dayError(j, l, err)
		}
		if err := m.AddConstraint(fmt.Sprintf("last[%d,%d]/active", j, l), mip.NewExpr().AddTerm(last, 1).AddTerm(active, -1), mip.LessEqual, 0); err != nil {
			return dayError(j, l, err)
		}
		if err := m.AddIndicator(fmt.Sprintf("start[%d]/before[%d]", l, j), active, true, mip.Sum(start), mip.LessEqual, float64(j)); err != nil {
			return dayError(j, l, err)
		}
		if err := m.AddIndicator(fmt.Sprintf("end[%d]/after[%d]", l, j), active, true, mip.Sum(end), mip.GreaterEqual, float64(j)); err != nil {
			return dayError(j, l, err)
		}

		firstSum.AddTerm(first, 1)
		lastSum.AddTerm(last, 1)
		startDef.AddTerm(first, -float64(j))
		endDef.AddTerm(last, -float64(j))
	}

	if err := m.AddConstraint(fmt.Sprintf("first[%d]/one", l), firstSum, mip.Equal, 0); err != nil {
		return err
	}
	if err := m.AddConstraint(fmt.Sprintf("last[%d]/one", l), lastSum, mip.Equal, 0); err != nil {
		return err
	}
	if err := m.AddConstraint(fmt.Sprintf("start[%d]/def", l), startDef, mip.Equal, 0); err != nil {
		return err
	}
	if err := m.AddConstraint(fmt.Sprintf("end[%d]/def", l), endDef, mip.Equal, H+1); err != nil {
		return err
	}
	durDef := mip.NewExpr().
		AddTerm(duration, 1).
		AddTerm(end, -1).
		AddTerm(start, 1).
		AddTerm(c, -(H + 2))
	return m.AddConstraint(fmt.Sprintf("duration[%d]/def", l), durDef, mip.Equal, -(H + 1))
}

func dayError(j, l int, err error) error {
	return &ModelConstructionError{Op: "schedule dates", Staff: -1, Day: j, Skill: -1, Job: l, Err: err}
}
