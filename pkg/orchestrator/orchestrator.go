// Package orchestrator wires the load driver, metrics sampler and aggregator
// into the single Execute operation from spec.md §4.5.
// Grounded on the teacher's cmd/ratelord-sim/main.go run loop: start a
// sampler, run the workload under a derived deadline, assemble a result.
// Execute does not persist; callers append RunResult.ToHistoryRecord() to a
// history backend themselves.
package orchestrator

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/loadtest"
	"github.com/stresslab-project/stresslab/pkg/metrics"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// RunResult is the output of Execute, carrying everything the CI emitter,
// history store and deviation analyzer need. Status/JudgedPassed/Impact are
// kept as three independent fields per spec.md §9's open-question decision
// 2 (recorded in DESIGN.md): Status tracks completion mechanics, JudgedPassed
// tracks the threshold verdict, and Impact is derived from the threshold
// comparison regardless of Status.
type RunResult struct {
	ID           uuid.UUID
	ScenarioName string
	StartedAt    time.Time
	Duration     time.Duration

	Total, Successful, Failed, FailRequest, FailTransport uint64
	ErrorRatePercent                                      float64
	AverageLatencyMs, MinLatencyMs, MaxLatencyMs           float64
	P50LatencyMs, P95LatencyMs, P99LatencyMs               float64
	RequestsPerSecond                                      float64

	CPUUsagePercent    float64
	MemoryUsagePercent float64

	StepSummaries map[string]aggregator.Summary

	Status       history.Status
	JudgedPassed bool
	Impact       history.Impact
	EngineError  string
}

// Orchestrator owns the adapter dispatcher shared by every run it executes.
type Orchestrator struct {
	loader     *scenario.Loader
	dispatcher *adapter.Dispatcher
}

func New(loader *scenario.Loader, dispatcher *adapter.Dispatcher) *Orchestrator {
	return &Orchestrator{loader: loader, dispatcher: dispatcher}
}

// Execute runs a single scenario end to end: start sampler, start timer, run
// the driver under a derived deadline, stop the sampler, assemble the
// RunResult, per spec.md §4.5.
func (o *Orchestrator) Execute(ctx context.Context, sc *scenario.Scenario) (*RunResult, error) {
	start := time.Now()
	deadline := start.Add(runDuration(sc))

	sampler := metrics.New()
	sampler.Start(ctx)

	driver := loadtest.NewDriver(sc, o.dispatcher)

	var cancelledEarly atomic.Bool
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			if time.Now().Before(deadline) {
				cancelledEarly.Store(true)
			}
		case <-time.After(time.Until(deadline) + loadtest.GraceWindow):
		}
	}()

	runErr := driver.Run(ctx, deadline)
	sampler.Stop()
	<-watchDone

	result := &RunResult{
		ID:            uuid.New(),
		ScenarioName:  sc.Name,
		StartedAt:     start,
		Duration:      time.Since(start),
		StepSummaries: make(map[string]aggregator.Summary, len(driver.Aggregators())),
	}

	rollUp(result, driver.Aggregators())
	sampSnap := sampler.Snapshot()
	result.CPUUsagePercent = sampSnap.CPUPercent
	result.MemoryUsagePercent = sampSnap.MemPercent

	switch {
	case runErr != nil:
		result.Status = history.StatusFailed
		result.EngineError = runErr.Error()
		log.Printf(`{"level":"error","msg":"run_engine_fatal","scenario":%q,"error":%q}`, sc.Name, runErr.Error())
	case cancelledEarly.Load():
		result.Status = history.StatusCancelled
	default:
		result.Status = history.StatusCompleted
	}

	result.JudgedPassed, result.Impact = judge(sc, result)
	return result, nil
}

// ExecuteByName resolves a scenario by name via the loader, per spec.md
// §4.5, and returns ConfigurationNotFoundError if it is missing.
func (o *Orchestrator) ExecuteByName(ctx context.Context, name string) (*RunResult, error) {
	sc, err := o.loader.Get(name)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, &sc)
}

func runDuration(sc *scenario.Scenario) time.Duration {
	profileDuration := sc.LoadProfile.Duration
	scenarioDuration := time.Duration(sc.Settings.DurationSeconds) * time.Second
	if scenarioDuration > profileDuration {
		return scenarioDuration
	}
	if profileDuration > 0 {
		return profileDuration
	}
	return scenarioDuration
}

// rollUp aggregates per-step summaries into the scenario-level RunResult
// fields per spec.md §4.5: counters sum, average is a weighted mean,
// percentiles are the max over steps (the default, simpler of the two
// permitted strategies per spec.md §9).
func rollUp(result *RunResult, perStep map[string]*aggregator.Aggregator) {
	var weightedAvgSum float64
	for name, agg := range perStep {
		snap := agg.Snapshot()
		result.StepSummaries[name] = snap

		result.Total += snap.Total
		result.Successful += snap.Successful
		result.Failed += snap.Failed
		result.FailRequest += snap.FailRequest
		result.FailTransport += snap.FailTransport
		weightedAvgSum += snap.Average * float64(snap.Total)

		if snap.Min > 0 && (result.MinLatencyMs == 0 || snap.Min < result.MinLatencyMs) {
			result.MinLatencyMs = snap.Min
		}
		if snap.Max > result.MaxLatencyMs {
			result.MaxLatencyMs = snap.Max
		}
		if snap.P50 > result.P50LatencyMs {
			result.P50LatencyMs = snap.P50
		}
		if snap.P95 > result.P95LatencyMs {
			result.P95LatencyMs = snap.P95
		}
		if snap.P99 > result.P99LatencyMs {
			result.P99LatencyMs = snap.P99
		}
	}

	if result.Total > 0 {
		result.ErrorRatePercent = float64(result.Failed) / float64(result.Total) * 100
		result.AverageLatencyMs = weightedAvgSum / float64(result.Total)
	}
	if result.Duration.Seconds() > 0 {
		result.RequestsPerSecond = float64(result.Total) / result.Duration.Seconds()
	}
}

// resolvedThresholds fills in the defaults from spec.md §4.5.1 for any
// threshold left unset by the scenario file.
type resolvedThresholds struct {
	maxErrorRatePercent float64
	maxAverageMs        float64
	maxP95Ms            float64
	maxP99Ms            float64
	minRPS              *float64
}

func resolveThresholds(sc *scenario.Scenario) resolvedThresholds {
	t := sc.Thresholds
	out := resolvedThresholds{
		maxErrorRatePercent: sc.Settings.MaxErrorRatePercent,
		maxAverageMs:        sc.Settings.ExpectedResponseTimeMs,
	}
	if t.MaxErrorRatePercent != nil {
		out.maxErrorRatePercent = *t.MaxErrorRatePercent
	}
	if t.MaxAverageMs != nil {
		out.maxAverageMs = *t.MaxAverageMs
	}
	out.maxP95Ms = 1.5 * out.maxAverageMs
	if t.MaxP95Ms != nil {
		out.maxP95Ms = *t.MaxP95Ms
	}
	out.maxP99Ms = 2.0 * out.maxAverageMs
	if t.MaxP99Ms != nil {
		out.maxP99Ms = *t.MaxP99Ms
	}
	out.minRPS = t.MinRPS
	return out
}

// judge computes JudgedPassed and Impact from the resolved thresholds, per
// spec.md §4.5.1. Both are derived regardless of Status.
func judge(sc *scenario.Scenario, r *RunResult) (bool, history.Impact) {
	t := resolveThresholds(sc)

	passed := true
	if t.maxErrorRatePercent > 0 && r.ErrorRatePercent > t.maxErrorRatePercent {
		passed = false
	}
	if t.maxAverageMs > 0 && r.AverageLatencyMs > t.maxAverageMs {
		passed = false
	}
	if t.maxP95Ms > 0 && r.P95LatencyMs > t.maxP95Ms {
		passed = false
	}
	if t.maxP99Ms > 0 && r.P99LatencyMs > t.maxP99Ms {
		passed = false
	}
	if t.minRPS != nil && r.RequestsPerSecond < *t.minRPS {
		passed = false
	}

	// Impact buckets are defined against the scenario's expected response
	// time (spec.md §4.5.1), not the possibly-overridden maxAverageMs
	// threshold used for pass/fail above — the two diverge whenever a
	// scenario sets an explicit Thresholds.MaxAverageMs.
	expected := sc.Settings.ExpectedResponseTimeMs
	impact := history.ImpactNone
	switch {
	case r.ErrorRatePercent > 10:
		impact = history.ImpactCritical
	case expected > 0 && r.AverageLatencyMs > 2*expected:
		impact = history.ImpactMajor
	case expected > 0 && r.AverageLatencyMs > 1.5*expected:
		impact = history.ImpactModerate
	case expected > 0 && r.AverageLatencyMs > expected:
		impact = history.ImpactMinor
	}
	return passed, impact
}

// ToHistoryRecord projects a RunResult into the persisted shape from
// spec.md §6.2.
func (r *RunResult) ToHistoryRecord() history.HistoryRecord {
	return history.HistoryRecord{
		ID:                    r.ID,
		TestName:              r.ScenarioName,
		ExecutionDate:         r.StartedAt,
		DurationSeconds:       r.Duration.Seconds(),
		TotalRequests:         int64(r.Total),
		SuccessfulRequests:    int64(r.Successful),
		FailedRequests:        int64(r.Failed),
		ErrorRatePercent:      r.ErrorRatePercent,
		AverageResponseTimeMs: r.AverageLatencyMs,
		MinResponseTimeMs:     r.MinLatencyMs,
		MaxResponseTimeMs:     r.MaxLatencyMs,
		P95ResponseTimeMs:     r.P95LatencyMs,
		P99ResponseTimeMs:     r.P99LatencyMs,
		RequestsPerSecond:     r.RequestsPerSecond,
		CPUUsagePercent:       r.CPUUsagePercent,
		MemoryUsagePercent:    r.MemoryUsagePercent,
		PerformanceImpact:     r.Impact,
		Status:                r.Status,
	}
}
