package planner_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/mip"
	"github.com/warp/workforce-planner/planner"
	"github.com/warp/workforce-planner/solver"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scenario builds the single-staff, single-job instance the scenarios vary.
func scenario(t *testing.T, horizon, due int, vacations []int) *instance.Instance {
	t.Helper()
	inst, err := instance.New(horizon,
		[]instance.Skill{"S1"},
		[]instance.Job{{
			Name: "Job1", Gain: decimal.NewFromInt(20), DailyPenalty: decimal.NewFromInt(2),
			DueDate: due, RequiredDays: map[instance.Skill]int{"S1": 2},
		}},
		[]instance.StaffMember{{Name: "Olivia", Skills: []instance.Skill{"S1"}, Vacations: vacations}},
	)
	require.NoError(t, err)
	return inst
}

// competing: one staff member, two jobs needing two days each of the same
// skill within three days.
func competing(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.New(3,
		[]instance.Skill{"A"},
		[]instance.Job{
			{Name: "big", Gain: decimal.NewFromInt(10), DailyPenalty: decimal.Zero, DueDate: 3, RequiredDays: map[instance.Skill]int{"A": 2}},
			{Name: "small", Gain: decimal.NewFromInt(6), DailyPenalty: decimal.Zero, DueDate: 3, RequiredDays: map[instance.Skill]int{"A": 2}},
		},
		[]instance.StaffMember{{Name: "Noah", Skills: []instance.Skill{"A"}, Vacations: []int{}}},
	)
	require.NoError(t, err)
	return inst
}

func plan(t *testing.T, inst *instance.Instance, opts planner.Options) *planner.Result {
	t.Helper()
	res, err := planner.Plan(context.Background(), inst, opts)
	require.NoError(t, err)
	return res
}

// requireConsistent checks a solved schedule against the instance data.
func requireConsistent(t *testing.T, inst *instance.Instance, s *formulation.Schedule) {
	t.Helper()
	profit := decimal.Zero
	for l, js := range s.Jobs {
		job := inst.Jobs[l]
		perSkill := map[int]int{}
		for _, a := range js.Assignments {
			member := inst.Staff[a.Staff]
			assert.True(t, member.HasSkill(inst.Skills[a.Skill]), "unqualified assignment %+v", a)
			assert.NotContains(t, member.Vacations, a.Day, "assignment on vacation %+v", a)
			perSkill[a.Skill]++
		}
		if js.Completed {
			for _, k := range inst.RequiredSkills(l) {
				assert.GreaterOrEqual(t, perSkill[k], job.RequiredDays[inst.Skills[k]])
			}
			assert.GreaterOrEqual(t, js.Start, 0)
			assert.Less(t, js.End, inst.Horizon)
			assert.Equal(t, js.End-js.Start+1, js.Duration)
			profit = profit.Add(js.Contribution)
		} else {
			assert.Equal(t, []int{0, inst.Horizon + 1, 0}, []int{js.Start, js.End, js.Duration})
			assert.True(t, js.Contribution.IsZero())
		}
	}
	assert.True(t, profit.Equal(s.Profit))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestPlan_ScenarioA_OnTimeCompletion(t *testing.T) {
	// GIVEN horizon 5, two days of S1 due on day 3
	inst := scenario(t, 5, 3, []int{})

	// WHEN
	res := plan(t, inst, planner.DefaultOptions())

	// THEN
	assert.Equal(t, solver.StatusOptimal, res.Status)
	require.True(t, res.Succeeded())
	require.NotNil(t, res.Objective)
	assert.InDelta(t, 20.0, *res.Objective, 1e-6)
	js := res.Schedule.Jobs[0]
	assert.True(t, js.Completed)
	assert.LessOrEqual(t, js.End, 3)
	assert.Zero(t, js.Lateness)
	requireConsistent(t, inst, res.Schedule)
}

func TestPlan_ScenarioB_HorizonTooShort(t *testing.T) {
	// GIVEN horizon 1, two days of S1 required
	inst := scenario(t, 1, 1, []int{})

	// WHEN
	res := plan(t, inst, planner.DefaultOptions())

	// THEN
	assert.Equal(t, solver.StatusOptimal, res.Status)
	require.True(t, res.Succeeded())
	assert.InDelta(t, 0.0, *res.Objective, 1e-6)
	js := res.Schedule.Jobs[0]
	assert.False(t, js.Completed)
	assert.Equal(t, []int{0, 2, 0}, []int{js.Start, js.End, js.Duration})
	assert.True(t, js.Contribution.IsZero())
}

func TestPlan_ScenarioC_LateCompletion(t *testing.T) {
	// GIVEN due on day 1 and a vacation on days 0..2: days 3 and 4 remain
	inst := scenario(t, 5, 1, []int{0, 1, 2})

	// WHEN
	res := plan(t, inst, planner.DefaultOptions())

	// THEN 20 - 2*(4-1)
	assert.Equal(t, solver.StatusOptimal, res.Status)
	assert.InDelta(t, 14.0, *res.Objective, 1e-6)
	js := res.Schedule.Jobs[0]
	assert.True(t, js.Completed)
	assert.Equal(t, []int{3, 4, 2, 3}, []int{js.Start, js.End, js.Duration, js.Lateness})
	assert.True(t, decimal.NewFromInt(14).Equal(res.Schedule.Profit))
	requireConsistent(t, inst, res.Schedule)
}

func TestPlan_ScenarioD_UnknownSkill(t *testing.T) {
	// GIVEN a job requiring a skill outside the catalog
	inst := scenario(t, 5, 3, []int{})
	inst.Jobs[0].RequiredDays = map[instance.Skill]int{"S9": 1}

	// WHEN
	res, err := planner.Plan(context.Background(), inst, planner.DefaultOptions())

	// THEN
	assert.Nil(t, res)
	var verr *instance.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "jobs", verr.Field)
}

// =============================================================================
// OPTIONS
// =============================================================================

func TestPlan_OneTaskPerDay(t *testing.T) {
	inst := competing(t)

	free := plan(t, inst, planner.DefaultOptions())
	require.Equal(t, solver.StatusOptimal, free.Status)
	assert.InDelta(t, 16.0, *free.Objective, 1e-6)
	requireConsistent(t, inst, free.Schedule)

	opts := planner.DefaultOptions()
	opts.Formulation.OneTaskPerDay = true
	limited := plan(t, inst, opts)
	require.Equal(t, solver.StatusOptimal, limited.Status)
	assert.InDelta(t, 10.0, *limited.Objective, 1e-6)
	assert.True(t, limited.Schedule.Jobs[0].Completed)
	assert.False(t, limited.Schedule.Jobs[1].Completed)
	requireConsistent(t, inst, limited.Schedule)

	days := map[int]int{}
	for _, js := range limited.Schedule.Jobs {
		for _, a := range js.Assignments {
			days[a.Day]++
		}
	}
	for day, n := range days {
		assert.LessOrEqual(t, n, 1, "day %d", day)
	}
}

func TestPlan_UnrequiredMaskDoesNotChangeOptimum(t *testing.T) {
	inst := scenario(t, 4, 2, []int{})
	inst.Skills = append(inst.Skills, "S2")
	inst.Staff[0].Skills = append(inst.Staff[0].Skills, "S2")

	masked := plan(t, inst, planner.DefaultOptions())
	unmasked := plan(t, inst, planner.Options{TimeLimit: 30 * time.Second})

	assert.InDelta(t, *masked.Objective, *unmasked.Objective, 1e-6)
	assert.Greater(t, masked.Model.Masked, unmasked.Model.Masked)
}

// =============================================================================
// ENGINE OUTCOMES
// =============================================================================

func TestPlan_CanceledContextReturnsIdleSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := planner.Plan(ctx, scenario(t, 5, 3, []int{}), planner.DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, solver.StatusTimeLimit, res.Status)
	require.True(t, res.Succeeded())
	assert.Zero(t, res.Schedule.Completed())
	assert.True(t, res.Schedule.Profit.IsZero())
}

func TestPlan_EngineError(t *testing.T) {
	opts := planner.DefaultOptions()
	opts.Engine = engineFunc(func(ctx context.Context, m *mip.Model) (mip.Result, error) {
		return mip.Result{}, errors.New("out of licenses")
	})

	res, err := planner.Plan(context.Background(), scenario(t, 5, 3, []int{}), opts)

	assert.ErrorIs(t, err, solver.ErrEngine)
	require.NotNil(t, res)
	assert.Equal(t, solver.StatusError, res.Status)
	assert.False(t, res.Succeeded())
}

func TestPlan_ObjectiveDriftDetected(t *testing.T) {
	// GIVEN an engine that returns the idle schedule with a wrong objective
	opts := planner.DefaultOptions()
	opts.Engine = engineFunc(func(ctx context.Context, m *mip.Model) (mip.Result, error) {
		return mip.Result{Status: mip.StatusOptimal, HasSolution: true, Objective: 5, Bound: 5, Values: m.Hint()}, nil
	})

	// WHEN
	_, err := planner.Plan(context.Background(), scenario(t, 5, 3, []int{}), opts)

	// THEN
	assert.ErrorIs(t, err, formulation.ErrModelConstruction)
	assert.Contains(t, err.Error(), "objective drift")
}

func TestPlan_TimeLimitStopsALongSolve(t *testing.T) {
	// GIVEN an instance far too large to prove optimal in 50ms
	inst, err := instance.Generate(instance.GeneratorParams{Skills: 3, Staff: 6, Jobs: 6, Horizon: 14}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	opts := planner.DefaultOptions()
	opts.TimeLimit = 50 * time.Millisecond

	// WHEN
	start := time.Now()
	res := plan(t, inst, opts)
	elapsed := time.Since(start)

	// THEN the run stops close to the limit with a usable incumbent
	assert.Equal(t, solver.StatusTimeLimit, res.Status)
	assert.Less(t, elapsed, 5*time.Second)
	require.True(t, res.Succeeded())
	require.NotNil(t, res.Objective)
	assert.InDelta(t, res.Schedule.Profit.InexactFloat64(), *res.Objective, 1e-6)
	requireConsistent(t, inst, res.Schedule)
}

func TestPlan_SlackLatenessIsTightened(t *testing.T) {
	// GIVEN an engine that stops on time with the optimal schedule of
	// scenario A but one unit of slack on late[0]
	opts := planner.DefaultOptions()
	opts.Engine = engineFunc(func(ctx context.Context, m *mip.Model) (mip.Result, error) {
		res, err := mip.NewBranchAndBound().Solve(ctx, m)
		if err != nil {
			return res, err
		}
		for v, d := range m.Vars() {
			if d.Name == "late[0]" {
				res.Values[v]++
			}
		}
		res.Status = mip.StatusTimeLimit
		res.Objective -= 2
		res.Bound = 20
		return res, nil
	})

	// WHEN
	inst := scenario(t, 5, 3, []int{})
	res := plan(t, inst, opts)

	// THEN the slack is removed and the objective is the schedule's profit
	assert.Equal(t, solver.StatusTimeLimit, res.Status)
	require.True(t, res.Succeeded())
	assert.InDelta(t, 20.0, *res.Objective, 1e-6)
	require.NotNil(t, res.Gap)
	assert.InDelta(t, 0.0, *res.Gap, 1e-9)
	assert.True(t, res.Schedule.Jobs[0].Completed)
	assert.Zero(t, res.Schedule.Jobs[0].Lateness)
	requireConsistent(t, inst, res.Schedule)
}

func TestPlan_SlackLatenessOnIdleJob(t *testing.T) {
	// GIVEN the idle schedule with late[0] = 1 on an incomplete job
	opts := planner.DefaultOptions()
	opts.Engine = engineFunc(func(ctx context.Context, m *mip.Model) (mip.Result, error) {
		values := append([]float64(nil), m.Hint()...)
		for v, d := range m.Vars() {
			if d.Name == "late[0]" {
				values[v] = 1
			}
		}
		return mip.Result{Status: mip.StatusTimeLimit, HasSolution: true, Objective: -2, Bound: 20, Values: values}, nil
	})

	// WHEN
	res := plan(t, scenario(t, 5, 3, []int{}), opts)

	// THEN
	require.True(t, res.Succeeded())
	assert.InDelta(t, 0.0, *res.Objective, 1e-9)
	require.NotNil(t, res.Gap)
	assert.InDelta(t, 20.0, *res.Gap, 1e-9)
	assert.False(t, res.Schedule.Jobs[0].Completed)
	assert.True(t, res.Schedule.Profit.IsZero())
}

type engineFunc func(ctx context.Context, m *mip.Model) (mip.Result, error)

func (f engineFunc) Solve(ctx context.Context, m *mip.Model) (mip.Result, error) { return f(ctx, m) }
