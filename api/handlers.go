/*
handlers.go - HTTP API handlers for the workforce planner

PURPOSE:
  Exposes instance storage and the planner via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the planner.

ENDPOINTS:
  Instances:
    GET    /api/instances              List stored instances
    POST   /api/instances              Store an instance (file format body)
    GET    /api/instances/{id}         Get an instance
    POST   /api/instances/{id}/solve   Solve an instance, store the run
    GET    /api/instances/{id}/runs    Runs of an instance

  Runs:
    GET    /api/runs/{id}              Get a run

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: instance and run persistence
  - Events: run-completed notifications
  - Limiter: solve-endpoint rate limit
  - Solver: per-run defaults and caps

REQUEST FLOW (solve):
  1. Rate limit
  2. Load instance
  3. planner.Plan with the request options
  4. Store the run, publish run.completed
  5. Respond with the run

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Instance or run not found
  - 409: Duplicate ID
  - 429: Solve rate exceeded
  - 500: Internal errors (including model construction defects)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo instances
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/workforce-planner/config"
	"github.com/warp/workforce-planner/events"
	"github.com/warp/workforce-planner/formulation"
	"github.com/warp/workforce-planner/instance"
	"github.com/warp/workforce-planner/metrics"
	"github.com/warp/workforce-planner/mip"
	"github.com/warp/workforce-planner/planner"
	"github.com/warp/workforce-planner/solver"
	"github.com/warp/workforce-planner/store"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds instance uploads.
const maxBodyBytes = 8 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   store.Store
	Events  events.Publisher
	Limiter *rate.Limiter
	Solver  config.SolverConfig

	// NewEngine returns the engine of one run; nil selects branch-and-bound
	// with Solver.NodeLimit.
	NewEngine func() mip.Engine
	// Now is the clock used for record timestamps.
	Now func() time.Time
}

// NewHandler creates a handler with the given store and configuration.
func NewHandler(st store.Store, pub events.Publisher, cfg config.Config) *Handler {
	return &Handler{
		Store:   st,
		Events:  pub,
		Limiter: rate.NewLimiter(rate.Limit(cfg.Server.SolveRate), cfg.Server.SolveBurst),
		Solver:  cfg.Solver,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) engine() mip.Engine {
	if h.NewEngine != nil {
		return h.NewEngine()
	}
	bnb := mip.NewBranchAndBound()
	bnb.NodeLimit = h.Solver.NodeLimit
	return bnb
}

// =============================================================================
// INSTANCE HANDLERS
// =============================================================================

// ListInstances returns all stored instances.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListInstances(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list instances", err)
		return
	}

	dtos := make([]InstanceSummaryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSummary(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInstance stores an instance given in the file format. The
// optional ?name= query parameter labels it.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	inst, err := instance.Parse(body)
	if err != nil {
		writeFailure(w, "Invalid instance", err)
		return
	}

	name := r.URL.Query().Get("name")
	id, err := h.saveInstance(r.Context(), name, inst)
	if err != nil {
		writeFailure(w, "Failed to store instance", err)
		return
	}
	log.Printf("[API] Stored instance %s (%s): %+v", id, name, inst.Dimensions())
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

func (h *Handler) saveInstance(ctx context.Context, name string, inst *instance.Instance) (string, error) {
	rec := store.InstanceRecord{
		ID:        store.NewID(),
		Name:      name,
		Instance:  inst,
		CreatedAt: h.Now(),
	}
	if rec.Name == "" {
		rec.Name = "instance-" + rec.ID[:8]
	}
	if err := h.Store.CreateInstance(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// GetInstance returns one instance with its data.
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Failed to load instance", err)
		return
	}
	data, err := instance.Marshal(rec.Instance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode instance", err)
		return
	}
	writeJSON(w, http.StatusOK, InstanceDTO{InstanceSummaryDTO: toSummary(*rec), Instance: data})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// Solve runs the planner on a stored instance and stores the run.
func (h *Handler) Solve(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil && !h.Limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "Solve rate exceeded", nil)
		return
	}

	ctx := r.Context()
	rec, err := h.Store.GetInstance(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Failed to load instance", err)
		return
	}

	var req SolveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid solve request", err)
			return
		}
	}
	opts, err := h.runOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid solve request", err)
		return
	}

	res, planErr := planner.Plan(ctx, rec.Instance, planner.Options{
		Formulation: formulation.Options{
			MaskUnrequiredSkills: opts.MaskUnrequiredSkills,
			OneTaskPerDay:        opts.OneTaskPerDay,
		},
		TimeLimit: opts.TimeLimit,
		Engine:    h.engine(),
	})
	if planErr != nil && !errors.Is(planErr, solver.ErrEngine) {
		log.Printf("[API] Solve of %s failed: %v", rec.ID, planErr)
		writeFailure(w, "Solve failed", planErr)
		return
	}

	run := store.RunRecord{
		ID:         store.NewID(),
		InstanceID: rec.ID,
		Status:     string(res.Status),
		Objective:  res.Objective,
		Bound:      res.Bound,
		Gap:        res.Gap,
		Nodes:      res.Nodes,
		Elapsed:    res.Elapsed,
		Options:    opts,
		Schedule:   res.Schedule,
		CreatedAt:  h.Now(),
	}
	if planErr != nil {
		run.Error = planErr.Error()
	}
	if err := h.Store.CreateRun(ctx, run); err != nil {
		writeFailure(w, "Failed to store run", err)
		return
	}
	log.Printf("[API] Run %s on %s: %s in %v (%d nodes)", run.ID, rec.ID, run.Status, run.Elapsed, run.Nodes)

	h.publish(ctx, run)
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// runOptions merges a solve request with the server defaults.
func (h *Handler) runOptions(req SolveRequest) (store.RunOptions, error) {
	opts := store.RunOptions{
		TimeLimit:            h.Solver.TimeLimit,
		OneTaskPerDay:        h.Solver.OneTaskPerDay,
		MaskUnrequiredSkills: h.Solver.MaskUnrequiredSkills,
	}
	switch {
	case req.TimeLimitSeconds < 0 || math.IsNaN(req.TimeLimitSeconds):
		return opts, fmt.Errorf("time_limit_seconds must be >= 0, got %v", req.TimeLimitSeconds)
	case req.TimeLimitSeconds > 0:
		limit := time.Duration(req.TimeLimitSeconds * float64(time.Second))
		if h.Solver.MaxTimeLimit > 0 && (limit > h.Solver.MaxTimeLimit || req.TimeLimitSeconds > h.Solver.MaxTimeLimit.Seconds()) {
			limit = h.Solver.MaxTimeLimit
		}
		opts.TimeLimit = limit
	}
	if req.OneTaskPerDay != nil {
		opts.OneTaskPerDay = *req.OneTaskPerDay
	}
	if req.MaskUnrequiredSkills != nil {
		opts.MaskUnrequiredSkills = *req.MaskUnrequiredSkills
	}
	return opts, nil
}

func (h *Handler) publish(ctx context.Context, run store.RunRecord) {
	if h.Events == nil {
		return
	}
	evt := events.Event{
		Type:       events.TypeRunCompleted,
		RunID:      run.ID,
		InstanceID: run.InstanceID,
		Status:     run.Status,
		Objective:  finite(run.Objective),
		At:         run.CreatedAt,
	}
	if err := h.Events.Publish(ctx, evt); err != nil {
		metrics.EventsPublished.WithLabelValues(fmt.Sprintf("%T", h.Events), "error").Inc()
		log.Printf("[API] Warning: failed to publish run %s: %v", run.ID, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(fmt.Sprintf("%T", h.Events), "ok").Inc()
}

// GetRun returns one run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// ListRuns returns the runs of an instance, oldest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// IsClientError reports whether err was caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	return errors.Is(err, instance.ErrInvalidInstance) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrDuplicateID)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, instance.ErrInvalidInstance):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure maps err to a status and writes it, including the violated
// field for validation errors.
func writeFailure(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	var verr *instance.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
		if verr.Index >= 0 {
			idx := verr.Index
			resp.Index = &idx
		}
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
