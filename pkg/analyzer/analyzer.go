// Package analyzer computes deviation of a fresh run against a historical
// baseline, per spec.md §4.7. Grounded on the teacher's
// pkg/engine/forecast package's approach of deriving a scored signal from
// a handful of independently-weighted inputs, adapted here to latency/
// error-rate/throughput deviation instead of budget forecasting.
package analyzer

import (
	"math"

	"github.com/stresslab-project/stresslab/pkg/history"
)

// Metrics is the subset of a RunResult the analyzer compares against a
// baseline. Kept separate from history.HistoryRecord / RunResult so this
// package has no dependency on the orchestrator.
type Metrics struct {
	AverageResponseTimeMs float64
	ErrorRatePercent      float64
	RequestsPerSecond     float64
	CPUUsagePercent       float64
	MemoryUsagePercent    float64
}

// TrendDirection classifies the last K records' movement.
type TrendDirection int

const (
	TrendStable TrendDirection = iota
	TrendImproving
	TrendDegrading
)

// DeviationReport is the full output of Analyze, per spec.md §4.7.
type DeviationReport struct {
	LatencyDeviationPercent    float64
	ErrorRateDeviationPercent  float64
	ThroughputDeviationPercent float64
	CPUDeviationPercent        float64
	MemoryDeviationPercent     float64

	// OverallDeviationScore is variant (B): absolute weights, the primary
	// score per spec.md §4.7.
	OverallDeviationScore float64
	// SignedScore is variant (A): signed weights, exposed for reporting
	// only per spec.md §4.7's explicit instruction to keep both.
	SignedScore float64

	Trend           TrendDirection
	ConfidenceLevel int
	Recommendations []string
}

// Deviation implements `(x-b)/b*100`, 0 when b == 0, per spec.md §4.7 and
// testable property 9 in spec.md §8.
func Deviation(x, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (x - b) / b * 100
}

// Analyze computes a DeviationReport from a fresh run's metrics against a
// baseline record. Returns nil if baseline is nil — an absent baseline
// yields an absent report, not an error, per spec.md §7.
func Analyze(current Metrics, baseline *history.HistoryRecord, recentTrend []history.HistoryRecord) *DeviationReport {
	if baseline == nil {
		return nil
	}

	r := &DeviationReport{
		LatencyDeviationPercent:    Deviation(current.AverageResponseTimeMs, baseline.AverageResponseTimeMs),
		ErrorRateDeviationPercent:  Deviation(current.ErrorRatePercent, baseline.ErrorRatePercent),
		ThroughputDeviationPercent: Deviation(current.RequestsPerSecond, baseline.RequestsPerSecond),
		CPUDeviationPercent:        Deviation(current.CPUUsagePercent, baseline.CPUUsagePercent),
		MemoryDeviationPercent:     Deviation(current.MemoryUsagePercent, baseline.MemoryUsagePercent),
	}

	r.SignedScore = 0.5*r.LatencyDeviationPercent + 0.3*r.ErrorRateDeviationPercent + 0.2*r.ThroughputDeviationPercent
	r.OverallDeviationScore = 0.3*math.Abs(r.LatencyDeviationPercent) +
		0.25*math.Abs(r.ErrorRateDeviationPercent) +
		0.25*math.Abs(r.ThroughputDeviationPercent) +
		0.1*math.Abs(r.CPUDeviationPercent) +
		0.1*math.Abs(r.MemoryDeviationPercent)

	r.Trend = Trend(recentTrend)
	r.ConfidenceLevel = Confidence(r.LatencyDeviationPercent)
	r.Recommendations = Recommendations(r)
	return r
}

// Confidence is the step function on |latency-deviation %| from spec.md
// §4.7.
func Confidence(latencyDeviationPercent float64) int {
	abs := math.Abs(latencyDeviationPercent)
	switch {
	case abs < 5:
		return 95
	case abs < 10:
		return 85
	case abs < 20:
		return 75
	case abs < 50:
		return 60
	default:
		return 50
	}
}

// Trend splits the given K (K>=3) records, whatever their status, into halves and
// compares mean latency and error rate, per spec.md §4.7. records must be
// newest-first; fewer than 3 records yields Stable (insufficient data).
//
// Per spec.md §9 open question 3, this spec keeps the source's semantics:
// both latency and error rate must move together to leave Stable.
func Trend(records []history.HistoryRecord) TrendDirection {
	if len(records) < 3 {
		return TrendStable
	}
	// records are newest-first; reverse to oldest-first for halving.
	ordered := make([]history.HistoryRecord, len(records))
	for i, r := range records {
		ordered[len(records)-1-i] = r
	}

	mid := len(ordered) / 2
	firstHalf := ordered[:mid]
	secondHalf := ordered[mid:]
	if len(firstHalf) == 0 || len(secondHalf) == 0 {
		return TrendStable
	}

	firstLatency := meanLatency(firstHalf)
	secondLatency := meanLatency(secondHalf)
	firstErr := meanErrorRate(firstHalf)
	secondErr := meanErrorRate(secondHalf)

	latencyImproved := firstLatency > 0 && (firstLatency-secondLatency)/firstLatency > 0.10
	latencyDegraded := firstLatency > 0 && (secondLatency-firstLatency)/firstLatency > 0.10
	errImproved := firstErr > 0 && (firstErr-secondErr)/firstErr > 0.10
	errDegraded := firstErr > 0 && (secondErr-firstErr)/firstErr > 0.10

	switch {
	case latencyImproved && errImproved:
		return TrendImproving
	case latencyDegraded && errDegraded:
		return TrendDegrading
	default:
		return TrendStable
	}
}

func meanLatency(records []history.HistoryRecord) float64 {
	var sum float64
	for _, r := range records {
		sum += r.AverageResponseTimeMs
	}
	return sum / float64(len(records))
}

func meanErrorRate(records []history.HistoryRecord) float64 {
	var sum float64
	for _, r := range records {
		sum += r.ErrorRatePercent
	}
	return sum / float64(len(records))
}

// Recommendations derives a deterministic string set from the deviation
// thresholds in spec.md §4.7.
func Recommendations(r *DeviationReport) []string {
	var out []string
	if r.LatencyDeviationPercent > 20 {
		out = append(out, "Response time degraded; investigate queries/caching/scaling.")
	}
	if r.LatencyDeviationPercent < -20 {
		out = append(out, "Response time improved significantly; consider this configuration a new baseline.")
	}
	if r.ErrorRateDeviationPercent > 10 {
		out = append(out, "Error rate rose; inspect logs and stability.")
	}
	if r.ThroughputDeviationPercent < -20 {
		out = append(out, "Throughput dropped; consider load-balancing/scale-out.")
	}
	if len(out) == 0 {
		out = append(out, "Within normal range; continue monitoring.")
	}
	return out
}
