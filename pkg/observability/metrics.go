// Package observability exposes a Prometheus registry of run-level gauges
// and counters, grounded on the teacher's pkg/engine/metrics.go pattern of
// package-level GaugeVec/CounterVec values registered in init().
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stresslab_runs_total",
			Help: "Total number of scenario runs executed, by status.",
		},
		[]string{"scenario", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stresslab_requests_total",
			Help: "Total number of dispatched requests, by scenario, step and outcome.",
		},
		[]string{"scenario", "step", "outcome"},
	)

	RunAverageLatencyMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stresslab_run_average_latency_ms",
			Help: "Average latency of the most recently completed run.",
		},
		[]string{"scenario"},
	)

	RunP95LatencyMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stresslab_run_p95_latency_ms",
			Help: "P95 latency of the most recently completed run.",
		},
		[]string{"scenario"},
	)

	RunErrorRatePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stresslab_run_error_rate_percent",
			Help: "Error rate of the most recently completed run.",
		},
		[]string{"scenario"},
	)

	RunRequestsPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stresslab_run_requests_per_second",
			Help: "Observed throughput of the most recently completed run.",
		},
		[]string{"scenario"},
	)

	DeviationScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stresslab_deviation_score",
			Help: "Most recent overall deviation score (variant B, absolute) against baseline.",
		},
		[]string{"scenario"},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RequestsTotal,
		RunAverageLatencyMs,
		RunP95LatencyMs,
		RunErrorRatePercent,
		RunRequestsPerSecond,
		DeviationScore,
	)
}
