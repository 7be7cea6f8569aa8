package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker / claim metrics

	TaskPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chang",
		Name:      "task_pickup_latency_seconds",
		Help:      "Time from a task becoming eligible to a worker claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	TaskExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chang",
		Name:      "task_execution_duration_seconds",
		Help:      "Duration of a handler invocation.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "outcome"})

	TasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chang",
		Name:      "worker_tasks_in_flight",
		Help:      "Number of tasks currently claimed and running.",
	})

	TasksCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chang",
		Name:      "tasks_completed_total",
		Help:      "Total tasks finalized, by kind and outcome.",
	}, []string{"kind", "outcome"})

	ClaimBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chang",
		Name:      "claim_batch_size",
		Help:      "Number of rows returned by a single claim query.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// Periodic scheduler metrics

	PeriodicBootstrapTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chang",
		Name:      "periodic_bootstrap_total",
		Help:      "Total periodic-task insertions performed by the scheduler, by outcome.",
	}, []string{"outcome"})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chang",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chang",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times a worker has shut down.",
	})

	// Event collector metrics

	EventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chang",
		Name:      "events_dropped_total",
		Help:      "Events dropped because the collector's channel was full.",
	})

	// HTTP metrics (admin API)

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chang",
		Name:      "http_request_duration_seconds",
		Help:      "Admin API request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chang",
		Name:      "http_requests_total",
		Help:      "Total admin API requests.",
	}, []string{"method", "path", "status"})
)

// Register registers every collector above with the default registry. Called
// once at process startup before the metrics server starts listening.
func Register() {
	prometheus.MustRegister(
		TaskPickupLatency,
		TaskExecutionDuration,
		TasksInFlight,
		TasksCompletedTotal,
		ClaimBatchSize,
		PeriodicBootstrapTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		EventsDroppedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer returns an HTTP server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
