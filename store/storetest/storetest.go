// Package storetest holds the behaviour every store.Store implementation
// must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/store"
)

// Factory returns an empty store. Run closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("InstanceRoundTrip", func(t *testing.T) { testInstanceRoundTrip(t, newStore(t)) })
	t.Run("InstanceDuplicateID", func(t *testing.T) { testInstanceDuplicateID(t, newStore(t)) })
	t.Run("InstanceNotFound", func(t *testing.T) { testInstanceNotFound(t, newStore(t)) })
	t.Run("ListInstancesOrdered", func(t *testing.T) { testListInstancesOrdered(t, newStore(t)) })
	t.Run("RunRoundTrip", func(t *testing.T) { testRunRoundTrip(t, newStore(t)) })
	t.Run("RunWithoutSchedule", func(t *testing.T) { testRunWithoutSchedule(t, newStore(t)) })
	t.Run("RunRequiresInstance", func(t *testing.T) { testRunRequiresInstance(t, newStore(t)) })
	t.Run("ListRunsPerInstance", func(t *testing.T) { testListRunsPerInstance(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

// Instance returns a small valid instance.
func Instance(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.New(4,
		[]instance.Skill{"A", "B"},
		[]instance.Job{{
			Name: "j0", Gain: decimal.RequireFromString("12.5"), DailyPenalty: decimal.NewFromInt(1),
			DueDate: 3, RequiredDays: map[instance.Skill]int{"A": 1, "B": 2},
		}},
		[]instance.StaffMember{
			{Name: "s0", Skills: []instance.Skill{"A", "B"}, Vacations: []int{1}},
		},
	)
	require.NoError(t, err)
	return inst
}

// Schedule returns a schedule for Instance.
func Schedule() *formulation.Schedule {
	return &formulation.Schedule{
		Jobs: []formulation.JobSchedule{{
			Job: 0, Name: "j0", Completed: true, Start: 0, End: 3, Duration: 4,
			Contribution: decimal.RequireFromString("12.5"),
			Assignments: []formulation.Assignment{
				{Staff: 0, Day: 0, Skill: 0}, {Staff: 0, Day: 2, Skill: 1}, {Staff: 0, Day: 3, Skill: 1},
			},
		}},
		Profit: decimal.RequireFromString("12.5"),
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func ptr(v float64) *float64 { return &v }

func seedInstance(t *testing.T, s store.Store, id string, at time.Time) {
	t.Helper()
	require.NoError(t, s.CreateInstance(context.Background(), store.InstanceRecord{
		ID: id, Name: "inst-" + id, Instance: Instance(t), CreatedAt: at,
	}))
}

func marshal(t *testing.T, inst *instance.Instance) string {
	t.Helper()
	data, err := instance.Marshal(inst)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// INSTANCES
// =============================================================================

func testInstanceRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	at := now()

	// GIVEN
	seedInstance(t, s, "i1", at)

	// WHEN
	got, err := s.GetInstance(ctx, "i1")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)
	assert.Equal(t, "inst-i1", got.Name)
	assert.True(t, at.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, at)
	assert.Equal(t, marshal(t, Instance(t)), marshal(t, got.Instance))
}

func testInstanceDuplicateID(t *testing.T, s store.Store) {
	defer s.Close()
	seedInstance(t, s, "i1", now())

	err := s.CreateInstance(context.Background(), store.InstanceRecord{ID: "i1", Instance: Instance(t), CreatedAt: now()})
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func testInstanceNotFound(t *testing.T, s store.Store) {
	defer s.Close()
	_, err := s.GetInstance(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListInstancesOrdered(t *testing.T, s store.Store) {
	defer s.Close()
	base := now()
	seedInstance(t, s, "b", base.Add(2*time.Second))
	seedInstance(t, s, "a", base.Add(time.Second))
	seedInstance(t, s, "c", base)

	got, err := s.ListInstances(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

// =============================================================================
// RUNS
// =============================================================================

func testRunRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seedInstance(t, s, "i1", now())

	// GIVEN
	run := store.RunRecord{
		ID: "r1", InstanceID: "i1", Status: "OPTIMAL",
		Objective: ptr(12.5), Bound: ptr(12.5), Gap: ptr(0),
		Nodes: 7, Elapsed: 1500 * time.Millisecond,
		Options:   store.RunOptions{TimeLimit: 30 * time.Second, OneTaskPerDay: true, MaskUnrequiredSkills: true},
		Schedule:  Schedule(),
		CreatedAt: now(),
	}

	// WHEN
	require.NoError(t, s.CreateRun(ctx, run))
	got, err := s.GetRun(ctx, "r1")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "i1", got.InstanceID)
	assert.Equal(t, "OPTIMAL", got.Status)
	require.NotNil(t, got.Objective)
	assert.Equal(t, 12.5, *got.Objective)
	require.NotNil(t, got.Gap)
	assert.Equal(t, 0.0, *got.Gap)
	assert.Equal(t, 7, got.Nodes)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.Equal(t, run.Options, got.Options)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Schedule)
	assert.True(t, got.Schedule.Profit.Equal(run.Schedule.Profit))
	assert.Equal(t, run.Schedule.Jobs[0].Assignments, got.Schedule.Jobs[0].Assignments)
	assert.Equal(t, 3, got.Schedule.Jobs[0].End)
}

func testRunWithoutSchedule(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seedInstance(t, s, "i1", now())

	require.NoError(t, s.CreateRun(ctx, store.RunRecord{
		ID: "r1", InstanceID: "i1", Status: "ERROR", Error: "engine: out of licenses", CreatedAt: now(),
	}))
	got, err := s.GetRun(ctx, "r1")

	require.NoError(t, err)
	assert.Nil(t, got.Objective)
	assert.Nil(t, got.Bound)
	assert.Nil(t, got.Gap)
	assert.Nil(t, got.Schedule)
	assert.Equal(t, "engine: out of licenses", got.Error)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRunRequiresInstance(t *testing.T, s store.Store) {
	defer s.Close()
	err := s.CreateRun(context.Background(), store.RunRecord{ID: "r1", InstanceID: "nope", Status: "OPTIMAL", CreatedAt: now()})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListRunsPerInstance(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	base := now()
	seedInstance(t, s, "i1", base)
	seedInstance(t, s, "i2", base)

	for n, id := range []string{"r2", "r1", "r3"} {
		inst := "i1"
		if id == "r3" {
			inst = "i2"
		}
		require.NoError(t, s.CreateRun(ctx, store.RunRecord{
			ID: id, InstanceID: inst, Status: "OPTIMAL", CreatedAt: base.Add(time.Duration(n) * time.Second),
		}))
	}

	runs, err := s.ListRuns(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "r1", runs[1].ID)

	_, err = s.ListRuns(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
