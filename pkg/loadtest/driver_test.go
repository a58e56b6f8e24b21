package loadtest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

type countingHTTP struct{ calls int64 }

func (c *countingHTTP) Send(ctx context.Context, cfg *scenario.HTTPStepConfig) (aggregator.Outcome, error) {
	atomic.AddInt64(&c.calls, 1)
	return aggregator.OutcomeOK, nil
}

type noopSQL struct{}

func (noopSQL) Execute(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	return aggregator.OutcomeOK, nil
}
func (noopSQL) OpenClose(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	return aggregator.OutcomeOK, nil
}

func baseScenario(mode scenario.ExecutionMode) *scenario.Scenario {
	return &scenario.Scenario{
		Name:          "smoke",
		ExecutionMode: mode,
		LoadProfile: scenario.LoadProfile{
			Type:     scenario.ProfileConstantRate,
			RPS:      50,
			Duration: 500 * time.Millisecond,
		},
		Steps: []scenario.Step{
			{Name: "a", Type: scenario.StepHttpApi, Enabled: true, Weight: 3, HTTP: &scenario.HTTPStepConfig{Method: "GET", URL: "http://example.test/a"}},
			{Name: "b", Type: scenario.StepHttpApi, Enabled: true, Weight: 1, HTTP: &scenario.HTTPStepConfig{Method: "GET", URL: "http://example.test/b"}},
		},
		Settings: scenario.Settings{ConcurrentUsers: 4},
	}
}

func TestDriver_Run_ParallelIssuesRequestsAndStopsAtDeadline(t *testing.T) {
	sc := baseScenario(scenario.ModeParallel)
	http := &countingHTTP{}
	d := NewDriver(sc, adapter.NewDispatcher(http, noopSQL{}, 1))

	deadline := time.Now().Add(150 * time.Millisecond)
	if err := d.Run(context.Background(), deadline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := uint64(0)
	for _, agg := range d.Aggregators() {
		total += agg.Snapshot().Total
	}
	if total == 0 {
		t.Fatalf("expected some observations, got 0")
	}
}

func TestDriver_Run_SequentialEvenlyDistributesAcrossSteps(t *testing.T) {
	sc := baseScenario(scenario.ModeSequential)
	sc.Settings.ConcurrentUsers = 2
	http := &countingHTTP{}
	d := NewDriver(sc, adapter.NewDispatcher(http, noopSQL{}, 1))

	deadline := time.Now().Add(200 * time.Millisecond)
	if err := d.Run(context.Background(), deadline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	countA := d.Aggregators()["a"].Snapshot().Total
	countB := d.Aggregators()["b"].Snapshot().Total
	diff := int64(countA) - int64(countB)
	if diff > 2*int64(sc.Settings.ConcurrentUsers) || diff < -2*int64(sc.Settings.ConcurrentUsers) {
		t.Fatalf("expected roughly even distribution, got a=%d b=%d", countA, countB)
	}
}

func TestDriver_Run_CancellationStopsNewWorkWithinGraceWindow(t *testing.T) {
	sc := baseScenario(scenario.ModeParallel)
	sc.LoadProfile.Duration = 5 * time.Second
	http := &countingHTTP{}
	d := NewDriver(sc, adapter.NewDispatcher(http, noopSQL{}, 1))

	ctx, cancel := context.WithCancel(context.Background())
	deadline := time.Now().Add(5 * time.Second)

	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx, deadline)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(GraceWindow + 2*time.Second):
		t.Fatalf("driver did not return within grace window")
	}
}

func TestWorkerCount_StressUsesMaxConcurrency(t *testing.T) {
	sc := &scenario.Scenario{
		LoadProfile: scenario.LoadProfile{Type: scenario.ProfileStress, MaxConcurrency: 25},
		Settings:    scenario.Settings{ConcurrentUsers: 4},
	}
	if got := WorkerCount(sc); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestWorkerCount_CappedByMaxUsers(t *testing.T) {
	sc := &scenario.Scenario{
		LoadProfile: scenario.LoadProfile{MaxUsers: 3},
		Settings:    scenario.Settings{ConcurrentUsers: 10},
	}
	if got := WorkerCount(sc); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}
