/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario builds a valid instance and that solving it
	gives the profit its description promises.
*/
package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/planner"
)

func TestScenarios_AllListedHaveBuilders(t *testing.T) {
	require.Len(t, scenarioBuilders, len(scenarios))
	for _, sc := range scenarios {
		build, ok := scenarioBuilders[sc.ID]
		require.True(t, ok, sc.ID)
		inst, err := build(1)
		require.NoError(t, err, sc.ID)
		assert.NoError(t, inst.Validate(), sc.ID)
	}
}

func TestScenarios_ExpectedProfit(t *testing.T) {
	tests := []struct {
		id     string
		profit float64
	}{
		{"on-time", 20},
		{"too-short", 0},
		{"late", 14},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			// GIVEN
			inst, err := scenarioBuilders[tt.id](1)
			require.NoError(t, err)

			// WHEN
			res, err := planner.Plan(context.Background(), inst, planner.DefaultOptions())

			// THEN
			require.NoError(t, err)
			require.True(t, res.Succeeded())
			assert.InDelta(t, tt.profit, *res.Objective, 1e-6)
		})
	}
}

func TestScenarios_RandomDependsOnSeed(t *testing.T) {
	a, err := scenarioBuilders["random"](1)
	require.NoError(t, err)
	b, err := scenarioBuilders["random"](1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
