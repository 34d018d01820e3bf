package formulation

import (
	"fmt"
	"math"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// ObjectiveVars holds the lateness variables, one per job.
type ObjectiveVars struct {
	Late []mip.VarID
}

// SetProfitObjective sets
//
//	maximize sum_l c[l] * (gain[l] - penalty[l] * max(end[l] - due[l], 0))
//
// linearized as sum_l gain[l]*c[l] - penalty[l]*late[l] with
// late[l] in [0, H+1] and c[l] = 1 => end[l] - late[l] <= due[l].
// An incomplete job leaves late[l] unconstrained from below, so the
// maximization drives it to zero and the job contributes nothing.
func SetProfitObjective(m *mip.Model, vars *Variables, inst *instance.Instance) (*ObjectiveVars, error) {
	ov := &ObjectiveVars{Late: make([]mip.VarID, len(inst.Jobs))}
	profit := mip.NewExpr()

	for l, job := range inst.Jobs {
		c, err := vars.Completion(l)
		if err != nil {
			return nil, err
		}
		end, err := vars.Date(l, End)
		if err != nil {
			return nil, err
		}

		late := m.NewInteger(fmt.Sprintf("late[%d]", l), 0, inst.Horizon+1)
		ov.Late[l] = late

		lateness := mip.NewExpr().AddTerm(end, 1).AddTerm(late, -1)
		if err := m.AddIndicator(fmt.Sprintf("late[%d]/due", l), c, true, lateness, mip.LessEqual, float64(job.DueDate)); err != nil {
			return nil, jobError("objective", l, err)
		}

		profit.AddTerm(c, job.Gain.InexactFloat64())
		profit.AddTerm(late, -job.DailyPenalty.InexactFloat64())
	}

	if err := m.SetObjective(profit, true); err != nil {
		return nil, jobError("objective", -1, err)
	}
	return ov, nil
}

// TightenLateness returns a copy of values in which every late[l] equals
// c[l] * max(end[l] - due[l], 0). Any larger late[l] is feasible but
// understates the profit, which a time-limited incumbent may carry.
func (f *Formulation) TightenLateness(values []float64) ([]float64, error) {
	if len(values) != f.Model.NumVars() {
		return nil, fmt.Errorf("tighten lateness: %d values for %d variables", len(values), f.Model.NumVars())
	}
	out := append([]float64(nil), values...)
	for l, job := range f.Instance.Jobs {
		c, err := f.Vars.Completion(l)
		if err != nil {
			return nil, err
		}
		end, err := f.Vars.Date(l, End)
		if err != nil {
			return nil, err
		}
		late := 0.0
		if out[c] > 0.5 {
			late = math.Max(math.Round(out[end])-float64(job.DueDate), 0)
		}
		out[f.Objective.Late[l]] = late
	}
	return out, nil
}
