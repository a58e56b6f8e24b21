package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

type stubHTTP struct {
	outcome aggregator.Outcome
	err     error
}

func (s stubHTTP) Send(ctx context.Context, cfg *scenario.HTTPStepConfig) (aggregator.Outcome, error) {
	return s.outcome, s.err
}

type stubSQL struct{}

func (stubSQL) Execute(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	return aggregator.OutcomeOK, nil
}
func (stubSQL) OpenClose(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	return aggregator.OutcomeOK, nil
}

func TestDispatch_HTTPStep(t *testing.T) {
	d := NewDispatcher(stubHTTP{outcome: aggregator.OutcomeOK}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepHttpApi, HTTP: &scenario.HTTPStepConfig{Method: "GET", URL: "http://example.test"}}
	outcome, err := d.Dispatch(context.Background(), step)
	if err != nil || outcome != aggregator.OutcomeOK {
		t.Fatalf("unexpected result: %v %v", outcome, err)
	}
}

func TestDispatch_Wait(t *testing.T) {
	d := NewDispatcher(stubHTTP{}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepWait, Wait: &scenario.WaitStepConfig{DurationMs: 5}}
	start := time.Now()
	outcome, err := d.Dispatch(context.Background(), step)
	if err != nil || outcome != aggregator.OutcomeOK {
		t.Fatalf("unexpected result: %v %v", outcome, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("expected wait to block at least 5ms")
	}
}

func TestDispatch_Wait_CancelledContext(t *testing.T) {
	d := NewDispatcher(stubHTTP{}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepWait, Wait: &scenario.WaitStepConfig{DurationMs: 1000}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, err := d.Dispatch(ctx, step)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if outcome != aggregator.OutcomeFailTransport {
		t.Fatalf("expected OutcomeFailTransport, got %v", outcome)
	}
}

func TestDispatch_Wait_ConcurrentRandomVariation(t *testing.T) {
	d := NewDispatcher(stubHTTP{}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepWait, Wait: &scenario.WaitStepConfig{DurationMs: 1, RandomVariationMs: 1}}

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if _, err := d.Dispatch(context.Background(), step); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}

func TestDispatch_DatabaseConnection(t *testing.T) {
	d := NewDispatcher(stubHTTP{}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepDatabaseConn, SQL: &scenario.SQLStepConfig{ConnectionString: "file::memory:?cache=shared", Driver: "sqlite3"}}
	outcome, err := d.Dispatch(context.Background(), step)
	if err != nil || outcome != aggregator.OutcomeOK {
		t.Fatalf("unexpected result: %v %v", outcome, err)
	}
}

func TestDispatch_UnsupportedStepType(t *testing.T) {
	d := NewDispatcher(stubHTTP{}, stubSQL{}, 1)
	step := &scenario.Step{Type: scenario.StepCustomScript}
	outcome, err := d.Dispatch(context.Background(), step)
	if err != ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if outcome != aggregator.OutcomeFailRequest {
		t.Fatalf("expected OutcomeFailRequest, got %v", outcome)
	}
}
