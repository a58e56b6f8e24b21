package analyzer

import (
	"testing"
	"time"

	"github.com/stresslab-project/stresslab/pkg/history"
)

func TestDeviation_FormulaAndZeroBaseline(t *testing.T) {
	if got := Deviation(150, 100); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := Deviation(150, 0); got != 0 {
		t.Fatalf("expected 0 for zero baseline, got %v", got)
	}
}

func TestAnalyze_NilBaselineYieldsNilReport(t *testing.T) {
	if got := Analyze(Metrics{}, nil, nil); got != nil {
		t.Fatalf("expected nil report for nil baseline, got %+v", got)
	}
}

// Scenario S5 from spec.md §8: baseline avg=100 err=1% rps=50; fresh run
// avg=150 err=1% rps=50. Expect overall score (variant B) = 15, confidence
// = 50 (|dev|=50, falls into the "else" bucket).
func TestAnalyze_S5BaselineAndDeviationScenario(t *testing.T) {
	baseline := &history.HistoryRecord{
		AverageResponseTimeMs: 100,
		ErrorRatePercent:      1,
		RequestsPerSecond:     50,
	}
	current := Metrics{AverageResponseTimeMs: 150, ErrorRatePercent: 1, RequestsPerSecond: 50}

	report := Analyze(current, baseline, nil)
	if report == nil {
		t.Fatalf("expected non-nil report")
	}
	if report.LatencyDeviationPercent != 50 {
		t.Fatalf("expected latency deviation 50, got %v", report.LatencyDeviationPercent)
	}
	if report.ErrorRateDeviationPercent != 0 {
		t.Fatalf("expected error rate deviation 0, got %v", report.ErrorRateDeviationPercent)
	}
	if report.ThroughputDeviationPercent != 0 {
		t.Fatalf("expected throughput deviation 0, got %v", report.ThroughputDeviationPercent)
	}
	if report.OverallDeviationScore != 15 {
		t.Fatalf("expected overall score 15, got %v", report.OverallDeviationScore)
	}
	if report.ConfidenceLevel != 50 {
		t.Fatalf("expected confidence 50, got %v", report.ConfidenceLevel)
	}
}

func TestConfidence_StepFunction(t *testing.T) {
	cases := []struct {
		dev  float64
		want int
	}{
		{4, 95}, {9, 85}, {19, 75}, {49, 60}, {51, 50}, {-51, 50},
	}
	for _, c := range cases {
		if got := Confidence(c.dev); got != c.want {
			t.Fatalf("Confidence(%v) = %v, want %v", c.dev, got, c.want)
		}
	}
}

func TestTrend_RequiresBothMetricsToMoveTogether(t *testing.T) {
	now := time.Now()
	mk := func(avg, errRate float64, offset int) history.HistoryRecord {
		return history.HistoryRecord{ExecutionDate: now.Add(time.Duration(offset) * time.Minute), AverageResponseTimeMs: avg, ErrorRatePercent: errRate}
	}

	// newest-first input; both metrics improve by >10% from first half to second half.
	improving := []history.HistoryRecord{
		mk(80, 1, 5), mk(80, 1, 4), mk(80, 1, 3),
		mk(100, 2, 2), mk(100, 2, 1), mk(100, 2, 0),
	}
	if got := Trend(improving); got != TrendImproving {
		t.Fatalf("expected Improving, got %v", got)
	}

	// only latency improves, error rate stays flat -> Stable (source semantics).
	mixed := []history.HistoryRecord{
		mk(80, 2, 5), mk(80, 2, 4), mk(80, 2, 3),
		mk(100, 2, 2), mk(100, 2, 1), mk(100, 2, 0),
	}
	if got := Trend(mixed); got != TrendStable {
		t.Fatalf("expected Stable when only one metric moves, got %v", got)
	}
}

func TestTrend_InsufficientRecordsIsStable(t *testing.T) {
	if got := Trend(nil); got != TrendStable {
		t.Fatalf("expected Stable for no records, got %v", got)
	}
}

func TestRecommendations_EmptyCaseIsNormalRange(t *testing.T) {
	r := &DeviationReport{}
	got := Recommendations(r)
	if len(got) != 1 || got[0] != "Within normal range; continue monitoring." {
		t.Fatalf("unexpected recommendations: %v", got)
	}
}

func TestRecommendations_LatencyDegraded(t *testing.T) {
	r := &DeviationReport{LatencyDeviationPercent: 25}
	got := Recommendations(r)
	if len(got) != 1 || got[0] != "Response time degraded; investigate queries/caching/scaling." {
		t.Fatalf("unexpected recommendations: %v", got)
	}
}
