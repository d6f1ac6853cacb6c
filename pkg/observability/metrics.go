// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the antwort pipeline orchestration server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// DurationBuckets covers HTTP request and pipeline-run durations, from
// 100ms (a fast status GET) to 20 minutes (a slow multi-phase run).
var DurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 600, 1200}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antwort_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antwort_request_duration_seconds",
			Help:    "Request duration",
			Buckets: DurationBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "antwort_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antwort_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// RunsCreatedTotal counts runs created via POST /runs.
	RunsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antwort_runs_created_total",
			Help: "Total pipeline runs created",
		},
	)

	// RunsFinishedTotal counts runs reaching a terminal status, by status.
	RunsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antwort_runs_finished_total",
			Help: "Total pipeline runs reaching a terminal status",
		},
		[]string{"status"},
	)

	// RunDuration records the wall-clock duration of a run from creation to
	// its terminal status, in seconds.
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "antwort_run_duration_seconds",
			Help:    "Run duration from creation to terminal status",
			Buckets: DurationBuckets,
		},
	)

	// ActiveSubscribers tracks the number of live SSE subscribers across
	// all runs.
	ActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "antwort_active_subscribers",
			Help: "Active SSE subscribers across all runs",
		},
	)

	// RingOverflowTotal counts events dropped from a run's event ring due
	// to the 1000-event cap being exceeded.
	RingOverflowTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antwort_ring_overflow_total",
			Help: "Events dropped from run event rings due to overflow",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ToolExecutionsTotal,
		RunsCreatedTotal,
		RunsFinishedTotal,
		RunDuration,
		ActiveSubscribers,
		RingOverflowTotal,
	)
}
