/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Instance upload, listing and validation errors
- Solving, run storage and run-completed events
- Rate limiting, engine failures, demo scenarios
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-planner/config"
	"github.com/warp/workforce-planner/events"
	"github.com/warp/workforce-planner/mip"
	"github.com/warp/workforce-planner/store/sqlite"
	"golang.org/x/time/rate"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const onTimeJSON = `{
  "horizon": 5,
  "qualifications": ["S1"],
  "jobs": [{"name": "Job1", "gain": 20, "daily_penalty": 2, "due_date": 3,
            "working_days_per_qualification": {"S1": 2}}],
  "staff": [{"name": "Olivia", "qualifications": ["S1"], "vacations": []}]
}`

type testServer struct {
	*httptest.Server
	handler *Handler
	broker  *events.Broker
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	broker := events.NewBroker()
	h := NewHandler(st, broker, config.Default())
	srv := httptest.NewServer(NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, handler: h, broker: broker}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (s *testServer) createInstance(t *testing.T, body string) string {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, "/api/instances?name=demo", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	return decode[CreatedDTO](t, data).ID
}

type engineFunc func(ctx context.Context, m *mip.Model) (mip.Result, error)

func (f engineFunc) Solve(ctx context.Context, m *mip.Model) (mip.Result, error) { return f(ctx, m) }

// =============================================================================
// INSTANCES
// =============================================================================

func TestHealthz(t *testing.T) {
	s := setupTestServer(t)
	resp, data := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestCreateAndGetInstance(t *testing.T) {
	// GIVEN
	s := setupTestServer(t)

	// WHEN
	id := s.createInstance(t, onTimeJSON)

	// THEN
	resp, data := s.do(t, http.MethodGet, "/api/instances/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dto := decode[InstanceDTO](t, data)
	assert.Equal(t, "demo", dto.Name)
	assert.Equal(t, 5, dto.Horizon)
	assert.Equal(t, 1, dto.Jobs)
	assert.Contains(t, string(dto.Instance), `"Olivia"`)

	resp, data = s.do(t, http.MethodGet, "/api/instances", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]InstanceSummaryDTO](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestCreateInstance_ValidationError(t *testing.T) {
	// GIVEN a job requiring a skill outside the catalog
	s := setupTestServer(t)
	body := strings.Replace(onTimeJSON, `{"S1": 2}`, `{"S9": 2}`, 1)

	// WHEN
	resp, data := s.do(t, http.MethodPost, "/api/instances", body)

	// THEN
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	er := decode[ErrorResponse](t, data)
	assert.Equal(t, "jobs", er.Field)
	require.NotNil(t, er.Index)
	assert.Equal(t, 0, *er.Index)
	assert.Contains(t, er.Details, "S9")
}

func TestCreateInstance_MalformedJSON(t *testing.T) {
	s := setupTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/instances", `{"horizon": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	s := setupTestServer(t)
	for _, path := range []string{"/api/instances/nope", "/api/runs/nope", "/api/instances/nope/runs"} {
		resp, _ := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp, _ := s.do(t, http.MethodPost, "/api/instances/nope/solve", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// SOLVE
// =============================================================================

func TestSolve_StoresRunAndPublishes(t *testing.T) {
	// GIVEN
	s := setupTestServer(t)
	id := s.createInstance(t, onTimeJSON)
	sub := s.broker.Subscribe(id)
	defer s.broker.Unsubscribe(id, sub)

	// WHEN
	resp, data := s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", `{"time_limit_seconds": 20}`)

	// THEN
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	run := decode[RunDTO](t, data)
	assert.Equal(t, "OPTIMAL", run.Status)
	require.NotNil(t, run.Objective)
	assert.InDelta(t, 20.0, *run.Objective, 1e-6)
	assert.Equal(t, 20.0, run.Options.TimeLimitSeconds)
	assert.True(t, run.Options.MaskUnrequiredSkills)
	require.NotNil(t, run.Schedule)
	assert.True(t, run.Schedule.Jobs[0].Completed)
	assert.LessOrEqual(t, run.Schedule.Jobs[0].End, 3)

	select {
	case evt := <-sub:
		assert.Equal(t, events.TypeRunCompleted, evt.Type)
		assert.Equal(t, run.ID, evt.RunID)
		assert.Equal(t, "OPTIMAL", evt.Status)
	default:
		t.Fatal("expected a run.completed event")
	}

	resp, data = s.do(t, http.MethodGet, "/api/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, run.ID, decode[RunDTO](t, data).ID)

	resp, data = s.do(t, http.MethodGet, "/api/instances/"+id+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]RunDTO](t, data), 1)
}

func TestSolve_EmptyBodyUsesDefaults(t *testing.T) {
	s := setupTestServer(t)
	id := s.createInstance(t, onTimeJSON)

	resp, data := s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", "")

	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	run := decode[RunDTO](t, data)
	assert.Equal(t, config.Default().Solver.TimeLimit.Seconds(), run.Options.TimeLimitSeconds)
	assert.False(t, run.Options.OneTaskPerDay)
}

func TestSolve_InvalidRequest(t *testing.T) {
	s := setupTestServer(t)
	id := s.createInstance(t, onTimeJSON)

	resp, _ := s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", `{"time_limit_seconds": -1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", `{"time_limit_seconds": "soon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSolve_EngineFailureIsStored(t *testing.T) {
	// GIVEN an engine that always fails
	s := setupTestServer(t)
	s.handler.NewEngine = func() mip.Engine {
		return engineFunc(func(context.Context, *mip.Model) (mip.Result, error) {
			return mip.Result{}, errors.New("out of licenses")
		})
	}
	id := s.createInstance(t, onTimeJSON)

	// WHEN
	resp, data := s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", "")

	// THEN
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	run := decode[RunDTO](t, data)
	assert.Equal(t, "ERROR", run.Status)
	assert.Contains(t, run.Error, "out of licenses")
	assert.Nil(t, run.Objective)
	assert.Nil(t, run.Schedule)
}

func TestSolve_RateLimited(t *testing.T) {
	s := setupTestServer(t)
	s.handler.Limiter = rate.NewLimiter(0, 1)
	id := s.createInstance(t, onTimeJSON)

	resp, _ := s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/instances/"+id+"/solve", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestRunOptions_ClampsTimeLimit(t *testing.T) {
	h := &Handler{Solver: config.Default().Solver}
	yes := true

	opts, err := h.runOptions(SolveRequest{TimeLimitSeconds: 1e9, OneTaskPerDay: &yes})

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, opts.TimeLimit)
	assert.True(t, opts.OneTaskPerDay)
	assert.True(t, opts.MaskUnrequiredSkills)
}

// =============================================================================
// SCENARIOS / METRICS
// =============================================================================

func TestLoadScenario(t *testing.T) {
	s := setupTestServer(t)

	resp, data := s.do(t, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]ScenarioDTO](t, data), len(scenarios))

	resp, data = s.do(t, http.MethodPost, "/api/scenarios/load?seed=3", `{"scenario_id": "random"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	id := decode[CreatedDTO](t, data).ID

	resp, data = s.do(t, http.MethodGet, "/api/instances/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "random", decode[InstanceDTO](t, data).Name)

	resp, _ = s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.do(t, http.MethodGet, "/healthz", "")

	resp, data := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "planner_http_requests_total")
}

func TestIsClientError(t *testing.T) {
	assert.False(t, IsClientError(errors.New("disk full")))
}
