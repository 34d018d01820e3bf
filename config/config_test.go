package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.True(t, cfg.Solver.MaskUnrequiredSkills)
	assert.False(t, cfg.Solver.OneTaskPerDay)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	path := writeConfig(t, `
server:
  addr: ":9090"
store:
  driver: sqlite
  dsn: ./planner.db
solver:
  time_limit: 45s
  one_task_per_day: true
`)

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 45*time.Second, cfg.Solver.TimeLimit)
	assert.True(t, cfg.Solver.OneTaskPerDay)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Solver.MaxTimeLimit)
	assert.True(t, cfg.Solver.MaskUnrequiredSkills)
}

func TestLoad_EnvironmentFillsDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://planner@localhost/planner")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	path := writeConfig(t, "store:\n  driver: postgres\n")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "postgres://planner@localhost/planner", cfg.Store.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Events.RedisURL)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "solver:\n  speed: fast\n"},
		{"unknown driver", "store:\n  driver: mongo\n"},
		{"sqlite without dsn", "store:\n  driver: sqlite\n"},
		{"zero time limit", "solver:\n  time_limit: 0s\n"},
		{"max below default", "solver:\n  time_limit: 10m\n"},
		{"negative node limit", "solver:\n  node_limit: -1\n"},
		{"no rate", "server:\n  solve_rate: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
