/*
Package instance holds the validated problem data for the workforce planner.

PURPOSE:
  An Instance describes one planning problem: a finite horizon of working
  days, a fixed catalog of skills, the jobs competing for staff time and the
  staff members who can be assigned to them. Every model build starts from
  exactly one Instance and never mutates it.

DAY INDEXING:
  Days are 0-based. Day j is the (j+1)-th working day of the horizon.
  - Vacations lie in [0, Horizon)
  - Due dates lie in [0, Horizon]
  A job finishing on day d with due date D is late by max(d-D, 0) days.

KEY CONCEPTS IN THIS FILE (types.go):
  - Skill:       Opaque identifier from the instance's skill catalog
  - Job:         Gain, daily lateness penalty, due date, skill-day needs
  - StaffMember: Skills held and days on vacation
  - Dimensions:  (staff, horizon, skills, jobs) used to size the model

SEE ALSO:
  - validate.go: Invariants enforced before any model is built
  - file.go:     JSON file format
  - generate.go: Random instance generator
*/
package instance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SKILLS, JOBS, STAFF
// =============================================================================

// Skill is a named capability. Skills are compared by name.
type Skill string

// Job is a project that earns Gain when all of its skill-day requirements
// are met within the horizon.
type Job struct {
	Name         string
	Gain         decimal.Decimal
	DailyPenalty decimal.Decimal
	DueDate      int

	// RequiredDays maps each relevant skill to the number of staff-days of
	// that skill the job needs. Skills absent from the map are irrelevant.
	RequiredDays map[Skill]int
}

// StaffMember is a person who can work one or more skills.
type StaffMember struct {
	Name      string
	Skills    []Skill
	Vacations []int
}

// HasSkill reports whether the staff member holds the skill.
func (s StaffMember) HasSkill(skill Skill) bool {
	for _, sk := range s.Skills {
		if sk == skill {
			return true
		}
	}
	return false
}

// =============================================================================
// INSTANCE
// =============================================================================

// Instance is the complete problem data. Use New or Parse to obtain a
// validated Instance.
type Instance struct {
	Horizon int
	Skills  []Skill
	Jobs    []Job
	Staff   []StaffMember
}

// Dimensions are the array sizes of the decision variables.
type Dimensions struct {
	Staff   int
	Horizon int
	Skills  int
	Jobs    int
}

// New validates the given data and returns it as an Instance.
func New(horizon int, skills []Skill, jobs []Job, staff []StaffMember) (*Instance, error) {
	inst := &Instance{
		Horizon: horizon,
		Skills:  skills,
		Jobs:    jobs,
		Staff:   staff,
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Dimensions returns (num_staff, horizon, num_skills, num_jobs).
func (in *Instance) Dimensions() Dimensions {
	return Dimensions{
		Staff:   len(in.Staff),
		Horizon: in.Horizon,
		Skills:  len(in.Skills),
		Jobs:    len(in.Jobs),
	}
}

// SkillIndex returns the catalog position of a skill.
func (in *Instance) SkillIndex(skill Skill) (int, bool) {
	for i, s := range in.Skills {
		if s == skill {
			return i, true
		}
	}
	return -1, false
}

// RequiredSkills returns the catalog indices of the skills job l requires,
// in catalog order.
func (in *Instance) RequiredSkills(l int) []int {
	job := in.Jobs[l]
	out := make([]int, 0, len(job.RequiredDays))
	for k, s := range in.Skills {
		if _, ok := job.RequiredDays[s]; ok {
			out = append(out, k)
		}
	}
	return out
}
