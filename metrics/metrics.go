// Package metrics holds the Prometheus collectors of the planner.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated registry served on /metrics.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "planner_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// ModelBuilds counts model builds by outcome (ok, invalid, error).
	ModelBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_model_builds_total", Help: "Model builds by outcome."},
		[]string{"outcome"},
	)
	// ModelSize records the number of variables and constraints of built models.
	ModelSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "planner_model_size", Help: "Variables and constraints per built model.", Buckets: prometheus.ExponentialBuckets(16, 4, 8)},
		[]string{"kind"},
	)

	// Solves counts engine runs by final status.
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_solves_total", Help: "Engine runs by status."},
		[]string{"status"},
	)
	// SolveDuration records engine wall time in seconds.
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "planner_solve_duration_seconds", Help: "Engine wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}},
		[]string{"status"},
	)
	// SolveNodes records branch-and-bound nodes per run.
	SolveNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "planner_solve_nodes", Help: "Branch-and-bound nodes per run.", Buckets: prometheus.ExponentialBuckets(1, 4, 10)},
	)

	// EventsPublished counts run events by publisher and result.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_events_published_total", Help: "Run events by publisher and result."},
		[]string{"publisher", "result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. It is safe to call
// more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(ModelBuilds, ModelSize)
		Registry.MustRegister(Solves, SolveDuration, SolveNodes)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
