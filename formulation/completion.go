package formulation

import (
	"fmt"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// CompletionVars holds the auxiliary "skill k is short for job l" binaries
// introduced by AddCompletionConstraints, keyed by [job, skill].
type CompletionVars struct {
	Short map[[2]int]mip.VarID
	// FirstShort is, per job, the short indicator of its first required
	// skill in catalog order.
	FirstShort []mip.VarID
}

// AssignedDays returns sum over staff i, day j of x[i,j,k,l], skipping
// assignments fixed to zero.
func AssignedDays(m *mip.Model, vars *Variables, k, l int) (*mip.LinExpr, error) {
	d := vars.Dims()
	expr := mip.NewExpr()
	for i := 0; i < d.Staff; i++ {
		for j := 0; j < d.Horizon; j++ {
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

// AddCompletionConstraints links each completion indicator to the
// skill-day requirements of its job, in both directions:
//
//	c[l] = 1        => assigned(l,k) >= req(l,k)        for every required k
//	short[l,k] = 1  => assigned(l,k) <= req(l,k) - 1
//	c[l] + sum_k short[l,k] >= 1
//
// So c[l] = 1 exactly when every required skill is met: a job cannot be
// marked complete while under-resourced, and marking it incomplete needs
// at least one skill that really is short.
func AddCompletionConstraints(m *mip.Model, vars *Variables, inst *instance.Instance) (*CompletionVars, error) {
	cv := &CompletionVars{
		Short:      map[[2]int]mip.VarID{},
		FirstShort: make([]mip.VarID, len(inst.Jobs)),
	}
	for l, job := range inst.Jobs {
		c, err := vars.Completion(l)
		if err != nil {
			return nil, err
		}
		required := inst.RequiredSkills(l)
		if len(required) == 0 {
			return nil, jobError("completion", l, fmt.Errorf("job %q requires no skill", job.Name))
		}

		cover := mip.NewExpr().AddTerm(c, 1)
		for n, k := range required {
			req := float64(job.RequiredDays[inst.Skills[k]])
			assigned, err := AssignedDays(m, vars, k, l)
			if err != nil {
				return nil, err
			}

			if err := m.AddIndicator(fmt.Sprintf("complete[%d]/meets[%d]", l, k), c, true, assigned, mip.GreaterEqual, req); err != nil {
				return nil, skillError("completion", k, l, err)
			}

			short := m.NewBinary(fmt.Sprintf("short[%d,%d]", l, k))
			if err := m.AddIndicator(fmt.Sprintf("short[%d,%d]/below", l, k), short, true, assigned, mip.LessEqual, req-1); err != nil {
				return nil, skillError("completion", k, l, err)
			}
			cv.Short[[2]int{l, k}] = short
			if n == 0 {
				cv.FirstShort[l] = short
			}
			cover.AddTerm(short, 1)
		}

		if err := m.AddConstraint(fmt.Sprintf("complete[%d]/or_short", l), cover, mip.GreaterEqual, 1); err != nil {
			return nil, jobError("completion", l, err)
		}
	}
	return cv, nil
}

func skillError(op string, k, l int, err error) error {
	return &ModelConstructionError{Op: op, Staff: -1, Day: -1, Skill: k, Job: l, Err: err}
}
