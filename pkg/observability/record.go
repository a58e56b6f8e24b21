package observability

import (
	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/history"
)

// RunObservation is the minimal projection of a RunResult this package
// needs, kept dependency-free of pkg/orchestrator so this package stays a
// leaf; the callers of the orchestrator (cmd/stresslab, pkg/api) build it.
type RunObservation struct {
	ScenarioName      string
	Status            history.Status
	AverageLatencyMs  float64
	P95LatencyMs      float64
	ErrorRatePercent  float64
	RequestsPerSecond float64
	StepOutcomes      map[string]map[string]uint64 // step -> outcome label -> count
}

// StepOutcomes projects per-step aggregator summaries into the label shape
// RecordRun expects, kept as a free function (rather than a method on
// orchestrator.RunResult) for the same reason as RunObservation.
func StepOutcomes(summaries map[string]aggregator.Summary) map[string]map[string]uint64 {
	outcomes := make(map[string]map[string]uint64, len(summaries))
	for step, s := range summaries {
		outcomes[step] = map[string]uint64{
			"ok":             s.Successful,
			"fail_request":   s.FailRequest,
			"fail_transport": s.FailTransport,
		}
	}
	return outcomes
}

func statusLabel(s history.Status) string {
	switch s {
	case history.StatusCompleted:
		return "completed"
	case history.StatusFailed:
		return "failed"
	case history.StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RecordRun updates every run-level gauge/counter from a finished run.
func RecordRun(obs RunObservation) {
	RunsTotal.WithLabelValues(obs.ScenarioName, statusLabel(obs.Status)).Inc()
	RunAverageLatencyMs.WithLabelValues(obs.ScenarioName).Set(obs.AverageLatencyMs)
	RunP95LatencyMs.WithLabelValues(obs.ScenarioName).Set(obs.P95LatencyMs)
	RunErrorRatePercent.WithLabelValues(obs.ScenarioName).Set(obs.ErrorRatePercent)
	RunRequestsPerSecond.WithLabelValues(obs.ScenarioName).Set(obs.RequestsPerSecond)

	for step, outcomes := range obs.StepOutcomes {
		for outcome, count := range outcomes {
			RequestsTotal.WithLabelValues(obs.ScenarioName, step, outcome).Add(float64(count))
		}
	}
}

// RecordDeviation records the most recent overall deviation score.
func RecordDeviation(scenarioName string, score float64) {
	DeviationScore.WithLabelValues(scenarioName).Set(score)
}
