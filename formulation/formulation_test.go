package formulation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func mustInstance(t *testing.T, horizon int, skills []instance.Skill, jobs []instance.Job, staff []instance.StaffMember) *instance.Instance {
	t.Helper()
	inst, err := instance.New(horizon, skills, jobs, staff)
	require.NoError(t, err)
	return inst
}

// singleJob: one welder, three days, one job needing two welding days,
// due on day 1.
func singleJob(t *testing.T) *instance.Instance {
	return mustInstance(t, 3,
		[]instance.Skill{"weld"},
		[]instance.Job{{
			Name: "bridge", Gain: decimal.NewFromInt(10), DailyPenalty: decimal.NewFromInt(3),
			DueDate: 1, RequiredDays: map[instance.Skill]int{"weld": 2},
		}},
		[]instance.StaffMember{{Name: "Ada", Skills: []instance.Skill{"weld"}, Vacations: []int{}}},
	)
}

func twoJobs(t *testing.T) *instance.Instance {
	return mustInstance(t, 4,
		[]instance.Skill{"A", "B"},
		[]instance.Job{
			{Name: "j0", Gain: decimal.NewFromInt(5), DailyPenalty: decimal.NewFromInt(1), DueDate: 2,
				RequiredDays: map[instance.Skill]int{"A": 1, "B": 1}},
			{Name: "j1", Gain: decimal.NewFromInt(8), DailyPenalty: decimal.Zero, DueDate: 4,
				RequiredDays: map[instance.Skill]int{"B": 2}},
		},
		[]instance.StaffMember{
			{Name: "s0", Skills: []instance.Skill{"A"}, Vacations: []int{3}},
			{Name: "s1", Skills: []instance.Skill{"A", "B"}, Vacations: []int{}},
		},
	)
}

func byName(m *mip.Model) map[string]mip.VarID {
	out := map[string]mip.VarID{}
	for v, d := range m.Vars() {
		out[d.Name] = mip.VarID(v)
	}
	return out
}

// completedValues sets up the single-job schedule in which Ada welds on
// days 0 and 2: start 0, end 2, duration 3, one day late.
func completedValues(t *testing.T, f *formulation.Formulation) []float64 {
	t.Helper()
	values := f.IdleSchedule()
	ids := byName(f.Model)
	set := func(name string, v float64) {
		id, ok := ids[name]
		require.True(t, ok, name)
		values[id] = v
	}
	set("assign[0,0,0,0]", 1)
	set("assign[0,2,0,0]", 1)
	set("complete[0]", 1)
	set("short[0,0]", 0)
	set("start[0]", 0)
	set("end[0]", 2)
	set("duration[0]", 3)
	set("active[0,0]", 1)
	set("active[2,0]", 1)
	set("first[0,0]", 1)
	set("last[2,0]", 1)
	set("late[0]", 1)
	return values
}

// =============================================================================
// VARIABLES
// =============================================================================

func TestVariables_IndexingIsStable(t *testing.T) {
	// GIVEN
	dims := instance.Dimensions{Staff: 2, Horizon: 3, Skills: 2, Jobs: 2}
	m := mip.NewModel("t")

	// WHEN
	vars := formulation.NewVariables(m, dims)

	// THEN
	assert.Equal(t, 2*3*2*2+2+3*2, m.NumVars())
	assert.Zero(t, m.NumConstraints())
	x, err := vars.Assignment(1, 2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, mip.VarID(((1*3+2)*2+0)*2+1), x)
	assert.Equal(t, "assign[1,2,0,1]", m.Var(x).Name)

	end, err := vars.Date(1, formulation.End)
	require.NoError(t, err)
	assert.Equal(t, "end[1]", m.Var(end).Name)
	assert.Equal(t, 4.0, m.Var(end).Upper)
}

func TestVariables_OutOfRange(t *testing.T) {
	m := mip.NewModel("t")
	vars := formulation.NewVariables(m, instance.Dimensions{Staff: 1, Horizon: 1, Skills: 1, Jobs: 1})

	_, err := vars.Assignment(0, 1, 0, 0)
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)
	var mce *formulation.ModelConstructionError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, 1, mce.Day)

	_, err = vars.Completion(-1)
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)
	_, err = vars.Date(2, formulation.Start)
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)
}

// =============================================================================
// MASK
// =============================================================================

func TestMask_CountsPerReason(t *testing.T) {
	// GIVEN s0 lacks B and is away on day 3; j1 does not require A
	inst := twoJobs(t)

	// WHEN
	f, err := formulation.Build(inst, formulation.DefaultOptions())
	require.NoError(t, err)

	// THEN
	// s0 lacks B: 4 days x 2 jobs
	assert.Equal(t, 8, f.Mask.MissingSkill)
	// s0 on day 3 with skill A: 2 jobs
	assert.Equal(t, 2, f.Mask.Vacation)
	// skill A for j1: s0 on days 0..2, s1 on days 0..3
	assert.Equal(t, 7, f.Mask.Unrequired)

	x, err := f.Vars.Assignment(0, 3, 0, 0)
	require.NoError(t, err)
	assert.True(t, f.Model.Var(x).Fixed())
	x, err = f.Vars.Assignment(1, 0, 1, 0)
	require.NoError(t, err)
	assert.False(t, f.Model.Var(x).Fixed())
}

func TestMask_UnrequiredKeptWhenDisabled(t *testing.T) {
	f, err := formulation.Build(twoJobs(t), formulation.Options{})
	require.NoError(t, err)

	assert.Zero(t, f.Mask.Unrequired)
	assert.Equal(t, 10, f.Mask.Total())
}

func TestDailyCapacity_OneTaskPerDay(t *testing.T) {
	inst := twoJobs(t)

	without, err := formulation.Build(inst, formulation.DefaultOptions())
	require.NoError(t, err)
	with, err := formulation.Build(inst, formulation.Options{MaskUnrequiredSkills: true, OneTaskPerDay: true})
	require.NoError(t, err)

	assert.Greater(t, with.Model.NumConstraints(), without.Model.NumConstraints())

	// s1 cannot weld A for j0 and B for j1 on the same day
	values := with.IdleSchedule()
	a, _ := with.Vars.Assignment(1, 0, 0, 0)
	b, _ := with.Vars.Assignment(1, 0, 1, 1)
	values[a], values[b] = 1, 1
	assert.Equal(t, "capacity[1,0]", with.Model.Violation(values, 1e-9))
}

// =============================================================================
// BUILD / HINT
// =============================================================================

func TestBuild_IdleScheduleIsFeasible(t *testing.T) {
	for _, opts := range []formulation.Options{{}, formulation.DefaultOptions(), {MaskUnrequiredSkills: true, OneTaskPerDay: true}} {
		f, err := formulation.Build(twoJobs(t), opts)
		require.NoError(t, err)

		assert.Empty(t, f.Model.Violation(f.Model.Hint(), 1e-9), "%+v", opts)
		assert.Equal(t, 0.0, f.Model.Objective().Eval(f.Model.Hint()))
		assert.True(t, f.Model.Maximize())
	}
}

func TestBuild_RejectsInvalidInstance(t *testing.T) {
	inst := singleJob(t)
	inst.Jobs[0].RequiredDays = map[instance.Skill]int{"paint": 1}

	_, err := formulation.Build(inst, formulation.DefaultOptions())
	assert.ErrorIs(t, err, instance.ErrInvalidInstance)
	assert.False(t, errors.Is(err, formulation.ErrModelConstruction))
}

func TestBuild_Describe(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, f.Describe(), "variables")
}

// =============================================================================
// COMPLETION
// =============================================================================

func TestCompletion_CannotCompleteUnderResourced(t *testing.T) {
	// GIVEN the idle schedule
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	values := f.IdleSchedule()

	// WHEN the job is marked complete without any work
	c, _ := f.Vars.Completion(0)
	values[c] = 1

	// THEN
	assert.NotEmpty(t, f.Model.Violation(values, 1e-9))
}

func TestCompletion_CannotStayIncompleteWhenMet(t *testing.T) {
	// GIVEN a fully resourced schedule
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	values := completedValues(t, f)
	require.Empty(t, f.Model.Violation(values, 1e-9))

	// WHEN the job is declared incomplete with its skill marked short
	c, _ := f.Vars.Completion(0)
	values[c] = 1 - values[c]
	values[f.Completion.FirstShort[0]] = 1

	// THEN
	assert.NotEmpty(t, f.Model.Violation(values, 1e-9))
}

// =============================================================================
// DATES / OBJECTIVE
// =============================================================================

func TestDates_FirstAndLastWorkedDay(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	values := completedValues(t, f)

	assert.Empty(t, f.Model.Violation(values, 1e-9))
	assert.Equal(t, 10.0-3.0, f.Model.Objective().Eval(values))

	start, _ := f.Vars.Date(0, formulation.Start)
	end, _ := f.Vars.Date(0, formulation.End)
	for name, tweak := range map[string]func(v []float64){
		"start after first day": func(v []float64) { v[start] = 1 },
		"end before last day":   func(v []float64) { v[end] = 1 },
		"end at sentinel":       func(v []float64) { v[end] = 4 },
	} {
		t.Run(name, func(t *testing.T) {
			v := append([]float64(nil), values...)
			tweak(v)
			assert.NotEmpty(t, f.Model.Violation(v, 1e-9))
		})
	}
}

func TestDates_IdleDayIsNotActive(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	values := completedValues(t, f)

	active := f.Dates.Active[[2]int{1, 0}]
	values[active] = 1
	assert.NotEmpty(t, f.Model.Violation(values, 1e-9))
}

func TestDates_NoVariablesForImpossibleDays(t *testing.T) {
	inst := singleJob(t)
	inst.Staff[0].Vacations = []int{1}

	f, err := formulation.Build(inst, formulation.DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, f.Dates.Active, 2)
	_, ok := f.Dates.Active[[2]int{1, 0}]
	assert.False(t, ok)
}

func TestObjective_LatenessCannotBeUnderstated(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)
	values := completedValues(t, f)

	values[f.Objective.Late[0]] = 0
	assert.Equal(t, "late[0]/due", f.Model.Violation(values, 1e-9))
}

// =============================================================================
// EXTRACT
// =============================================================================

func TestExtract_CompletedJob(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)

	s, err := f.Extract(completedValues(t, f))
	require.NoError(t, err)

	require.Len(t, s.Jobs, 1)
	js := s.Jobs[0]
	assert.True(t, js.Completed)
	assert.Equal(t, []int{0, 2, 3, 1}, []int{js.Start, js.End, js.Duration, js.Lateness})
	assert.True(t, decimal.NewFromInt(7).Equal(js.Contribution))
	assert.True(t, decimal.NewFromInt(7).Equal(s.Profit))
	assert.Equal(t, []formulation.Assignment{{Staff: 0, Day: 0, Skill: 0}, {Staff: 0, Day: 2, Skill: 0}}, js.Assignments)
	assert.Equal(t, 1, s.Completed())
}

func TestExtract_IdleScheduleUsesSentinel(t *testing.T) {
	f, err := formulation.Build(twoJobs(t), formulation.DefaultOptions())
	require.NoError(t, err)

	s, err := f.Extract(f.IdleSchedule())
	require.NoError(t, err)

	for _, js := range s.Jobs {
		assert.False(t, js.Completed)
		assert.Equal(t, []int{0, 5, 0}, []int{js.Start, js.End, js.Duration})
		assert.Empty(t, js.Assignments)
		assert.True(t, js.Contribution.IsZero())
	}
	assert.True(t, s.Profit.IsZero())
	assert.Zero(t, s.Completed())
}

func TestExtract_InconsistentValues(t *testing.T) {
	f, err := formulation.Build(singleJob(t), formulation.DefaultOptions())
	require.NoError(t, err)

	_, err = f.Extract([]float64{1})
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)

	values := completedValues(t, f)
	end, _ := f.Vars.Date(0, formulation.End)
	values[end] = 1
	_, err = f.Extract(values)
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)
}
