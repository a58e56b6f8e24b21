package adapter

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// ErrNotSupported marks a step type that spec.md §4.4 lists as optional and
// that this implementation does not execute. Dispatch returns it alongside
// OutcomeFailRequest rather than panicking, so an unsupported step degrades
// a single sample instead of the whole run.
var ErrNotSupported = errors.New("step type not supported")

// Dispatcher is the single entry point the load driver calls per step. It
// fans a Step out to the protocol adapter matching its Type, mirroring the
// teacher's pkg/simulation/runner.go switch over behavior kind.
type Dispatcher struct {
	HTTP HTTPAdapter
	SQL  SQLAdapter

	randMu sync.Mutex
	Rand   *rand.Rand
}

func NewDispatcher(http HTTPAdapter, sql SQLAdapter, seed int64) *Dispatcher {
	return &Dispatcher{HTTP: http, SQL: sql, Rand: rand.New(rand.NewSource(seed))}
}

// Dispatch executes one step and returns the outcome to record. The caller
// is responsible for timing the call: Dispatch does not report latency
// itself so that wall-clock time includes whatever this function does, not
// a self-reported figure.
func (d *Dispatcher) Dispatch(ctx context.Context, step *scenario.Step) (aggregator.Outcome, error) {
	switch step.Type {
	case scenario.StepHttpApi:
		return d.HTTP.Send(ctx, step.HTTP)
	case scenario.StepSqlProcedure, scenario.StepSqlQuery:
		return d.SQL.Execute(ctx, step.SQL)
	case scenario.StepDatabaseConn:
		return d.SQL.OpenClose(ctx, step.SQL)
	case scenario.StepWait:
		return d.wait(ctx, step.Wait)
	case scenario.StepCustomScript, scenario.StepFileOperation:
		return aggregator.OutcomeFailRequest, ErrNotSupported
	default:
		return aggregator.OutcomeFailRequest, ErrNotSupported
	}
}

func (d *Dispatcher) wait(ctx context.Context, cfg *scenario.WaitStepConfig) (aggregator.Outcome, error) {
	delay := time.Duration(cfg.DurationMs) * time.Millisecond
	if cfg.RandomVariationMs > 0 {
		d.randMu.Lock()
		jitter := d.Rand.Int63n(cfg.RandomVariationMs*2 + 1)
		d.randMu.Unlock()
		delay += time.Duration(jitter-cfg.RandomVariationMs) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
	}
	select {
	case <-ctx.Done():
		return aggregator.OutcomeFailTransport, ctx.Err()
	case <-time.After(delay):
		return aggregator.OutcomeOK, nil
	}
}
