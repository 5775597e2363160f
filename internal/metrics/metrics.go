// Package metrics defines the Prometheus collectors for process
// invocations, retries and operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProcessInvocations counts child processes by outcome
	// (success, spawn, exit, overflow, timeout).
	ProcessInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptmcp_process_invocations_total",
			Help: "Total number of package manager processes run",
		},
		[]string{"outcome"},
	)

	// ProcessDuration tracks child process wall time in seconds.
	ProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aptmcp_process_duration_seconds",
			Help:    "Package manager process duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
		[]string{"outcome"},
	)

	// Retries counts retries caused by package database lock contention.
	Retries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aptmcp_retries_total",
			Help: "Total number of retried commands",
		},
	)

	// Operations counts caller-visible operations by name and result.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptmcp_operations_total",
			Help: "Total number of operations handled",
		},
		[]string{"operation", "result"},
	)

	// OperationsInProgress tracks the number of running operations.
	OperationsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aptmcp_operations_in_progress",
			Help: "Number of operations currently running",
		},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
