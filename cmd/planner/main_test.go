package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/config"
	"github.com/warp/workforce-planner/instance"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const scenarioC = `{
  "horizon": 5,
  "qualifications": ["S1"],
  "jobs": [{"name": "Job1", "gain": 20, "daily_penalty": 2, "due_date": 1,
            "working_days_per_qualification": {"S1": 2}}],
  "staff": [{"name": "Olivia", "qualifications": ["S1"], "vacations": [0, 1, 2]}]
}`

func TestSolve_PrintsSchedule(t *testing.T) {
	path := writeFile(t, "c.json", scenarioC)

	code, out, _ := runCLI(t, "solve", "-instance", path, "-time-limit", "20s")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "status:    OPTIMAL")
	assert.Contains(t, out, "objective: 14")
	assert.Contains(t, out, "profit: 14 (1 of 1 jobs completed)")
}

func TestSolve_ValidationFailure(t *testing.T) {
	path := writeFile(t, "d.json", `{"horizon": 5, "qualifications": ["S1"],
	  "jobs": [{"name": "J", "gain": 1, "daily_penalty": 0, "due_date": 1,
	            "working_days_per_qualification": {"S9": 1}}],
	  "staff": []}`)

	code, _, errOut := runCLI(t, "solve", "-instance", path)

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "S9")
}

func TestSolve_Usage(t *testing.T) {
	code, _, _ := runCLI(t, "solve")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "frobnicate")
	assert.Equal(t, exitUsage, code)
}

func TestSolve_MissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "solve", "-instance", filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "failed to read instance")
}

func TestGenerate_WritesValidInstance(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gen.json")

	code, _, _ := runCLI(t, "generate", "-skills", "2", "-staff", "3", "-jobs", "2", "-horizon", "6", "-seed", "7", "-out", out)

	require.Equal(t, exitOK, code)
	inst, err := instance.Load(out)
	require.NoError(t, err)
	assert.Equal(t, instance.Dimensions{Staff: 3, Horizon: 6, Skills: 2, Jobs: 2}, inst.Dimensions())
}

func TestGenerate_Stdout(t *testing.T) {
	code, out, _ := runCLI(t, "generate", "-seed", "3")
	require.Equal(t, exitOK, code)
	_, err := instance.Parse([]byte(out))
	assert.NoError(t, err)
}

func TestOpenStore_Memory(t *testing.T) {
	st, err := openStore(context.Background(), config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}

func TestOpenPublisher_InProcessByDefault(t *testing.T) {
	pub, closeFn, err := openPublisher(config.EventsConfig{})
	require.NoError(t, err)
	defer closeFn()
	assert.NotNil(t, pub)
}
