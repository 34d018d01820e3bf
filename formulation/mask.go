package formulation

import (
	"fmt"

	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// =============================================================================
// LOOKUP - integer-indexed qualification and vacation tables
// =============================================================================

// Lookup answers "does staff i hold skill k" and "is staff i away on day j"
// in constant time. It is built once per model build.
type Lookup struct {
	hasSkill   [][]bool // [staff][skill]
	onVacation [][]bool // [staff][day]
	required   [][]bool // [job][skill]
}

// NewLookup precomputes the tables from a validated instance.
func NewLookup(inst *instance.Instance) *Lookup {
	skillIdx := make(map[instance.Skill]int, len(inst.Skills))
	for k, s := range inst.Skills {
		skillIdx[s] = k
	}

	lk := &Lookup{
		hasSkill:   make([][]bool, len(inst.Staff)),
		onVacation: make([][]bool, len(inst.Staff)),
		required:   make([][]bool, len(inst.Jobs)),
	}
	for i, member := range inst.Staff {
		lk.hasSkill[i] = make([]bool, len(inst.Skills))
		for _, s := range member.Skills {
			lk.hasSkill[i][skillIdx[s]] = true
		}
		lk.onVacation[i] = make([]bool, inst.Horizon)
		for _, day := range member.Vacations {
			lk.onVacation[i][day] = true
		}
	}
	for l, job := range inst.Jobs {
		lk.required[l] = make([]bool, len(inst.Skills))
		for s := range job.RequiredDays {
			lk.required[l][skillIdx[s]] = true
		}
	}
	return lk
}

// HasSkill reports whether staff i holds skill k.
func (lk *Lookup) HasSkill(i, k int) bool { return lk.hasSkill[i][k] }

// OnVacation reports whether staff i is away on day j.
func (lk *Lookup) OnVacation(i, j int) bool { return lk.onVacation[i][j] }

// Requires reports whether job l needs skill k.
func (lk *Lookup) Requires(l, k int) bool { return lk.required[l][k] }

// =============================================================================
// MASK - structural zeros of the assignment variables
// =============================================================================

// MaskStats counts masked assignment variables by the first reason that
// applied, in the order skill, vacation, unrequired.
type MaskStats struct {
	MissingSkill int
	Vacation     int
	Unrequired   int
}

// Total is the number of assignment variables forced to zero.
func (s MaskStats) Total() int { return s.MissingSkill + s.Vacation + s.Unrequired }

// MaskAssignments fixes x[i,j,k,l] = 0 whenever staff i lacks skill k or is
// on vacation on day j. With maskUnrequired, assignments of a skill job l
// does not require are fixed to zero as well.
func MaskAssignments(m *mip.Model, vars *Variables, lk *Lookup, maskUnrequired bool) (MaskStats, error) {
	var stats MaskStats
	d := vars.Dims()
	for i := 0; i < d.Staff; i++ {
		for j := 0; j < d.Horizon; j++ {
			for k := 0; k < d.Skills; k++ {
				for l := 0; l < d.Jobs; l++ {
					switch {
					case !lk.HasSkill(i, k):
						stats.MissingSkill++
					case lk.OnVacation(i, j):
						stats.Vacation++
					case maskUnrequired && !lk.Requires(l, k):
						stats.Unrequired++
					default:
						continue
					}
					x, err := vars.Assignment(i, j, k, l)
					if err != nil {
						return stats, err
					}
					if err := m.Fix(x, 0); err != nil {
						return stats, &ModelConstructionError{Op: "mask", Staff: i, Day: j, Skill: k, Job: l, Err: err}
					}
				}
			}
		}
	}
	return stats, nil
}

// AddDailyCapacity limits every staff member to at most one assignment
// per day across all skills and jobs.
func AddDailyCapacity(m *mip.Model, vars *Variables) error {
	d := vars.Dims()
	for i := 0; i < d.Staff; i++ {
		for j := 0; j < d.Horizon; j++ {
			day := mip.NewExpr()
			for k := 0; k < d.Skills; k++ {
				for l := 0; l < d.Jobs; l++ {
					x, err := vars.Assignment(i, j, k, l)
					if err != nil {
						return err
					}
					if !isZero(m, x) {
						day.AddTerm(x, 1)
					}
				}
			}
			if len(day.Terms()) <= 1 {
				continue
			}
			if err := m.AddConstraint(fmt.Sprintf("capacity[%d,%d]", i, j), day, mip.LessEqual, 1); err != nil {
				return &ModelConstructionError{Op: "daily capacity", Staff: i, Day: j, Skill: -1, Job: -1, Err: err}
			}
		}
	}
	return nil
}

// isZero reports whether v has been fixed to zero.
func isZero(m *mip.Model, v mip.VarID) bool {
	d := m.Var(v)
	return d.Lower == 0 && d.Upper == 0
}
