/*
build.go - Assembles the full workforce model from an Instance

PURPOSE:
  Runs the builders in order on a fresh mip.Model:

    variables -> mask -> (daily capacity) -> completion -> dates -> objective -> hint

  and keeps every handle needed to read a solution back.

HINT:
  The all-idle schedule is always feasible with profit 0: no assignment,
  every job incomplete with its first required skill marked short, and the
  sentinel dates (0, H+1, 0). It is recorded as the model hint so an engine
  always has an incumbent.

SEE ALSO:
  - schedule.go: reading a solution back into a Schedule
*/
package formulation

import (
	"fmt"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// Options toggles the optional parts of the model.
type Options struct {
	// MaskUnrequiredSkills fixes assignments of skills a job does not
	// require to zero.
	MaskUnrequiredSkills bool
	// OneTaskPerDay allows at most one assignment per staff member and day.
	OneTaskPerDay bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{MaskUnrequiredSkills: true}
}

// Formulation is a built model together with the variable handles of
// every family.
type Formulation struct {
	Instance   *instance.Instance
	Options    Options
	Model      *mip.Model
	Vars       *Variables
	Lookup     *Lookup
	Mask       MaskStats
	Completion *CompletionVars
	Dates      *DateVars
	Objective  *ObjectiveVars
}

// Build validates inst and formulates its model.
func Build(inst *instance.Instance, opts Options) (*Formulation, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}

	f := &Formulation{
		Instance: inst,
		Options:  opts,
		Model:    mip.NewModel("workforce"),
		Lookup:   NewLookup(inst),
	}
	f.Vars = NewVariables(f.Model, inst.Dimensions())

	var err error
	if f.Mask, err = MaskAssignments(f.Model, f.Vars, f.Lookup, opts.MaskUnrequiredSkills); err != nil {
		return nil, err
	}
	if opts.OneTaskPerDay {
		if err := AddDailyCapacity(f.Model, f.Vars); err != nil {
			return nil, err
		}
	}
	if f.Completion, err = AddCompletionConstraints(f.Model, f.Vars, inst); err != nil {
		return nil, err
	}
	if f.Dates, err = AddScheduleDateConstraints(f.Model, f.Vars, inst); err != nil {
		return nil, err
	}
	if f.Objective, err = SetProfitObjective(f.Model, f.Vars, inst); err != nil {
		return nil, err
	}
	if err := f.Model.Validate(); err != nil {
		return nil, &ModelConstructionError{Op: "validate", Staff: -1, Day: -1, Skill: -1, Job: -1, Err: err}
	}
	if err := f.Model.SetHint(f.IdleSchedule()); err != nil {
		return nil, &ModelConstructionError{Op: "hint", Staff: -1, Day: -1, Skill: -1, Job: -1, Err: err}
	}
	return f, nil
}

// IdleSchedule returns the variable values of the schedule in which nobody
// works and no job completes.
func (f *Formulation) IdleSchedule() []float64 {
	vars := f.Model.Vars()
	values := make([]float64, len(vars))
	for v, d := range vars {
		values[v] = d.Lower
	}
	H := float64(f.Instance.Horizon)
	for l := range f.Instance.Jobs {
		end, _ := f.Vars.Date(l, End)
		values[end] = H + 1
		values[f.Completion.FirstShort[l]] = 1
	}
	return values
}

// Describe returns a one-line summary of the model size.
func (f *Formulation) Describe() string {
	return fmt.Sprintf("%d variables (%d masked), %d constraints",
		f.Model.NumVars(), f.Mask.Total(), f.Model.NumConstraints())
}
