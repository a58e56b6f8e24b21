// Package loadtest is the worker pool that issues steps against a running
// scenario and paces them by load profile. Grounded on the teacher's
// pkg/simulation/runner.go: a fixed pool of goroutines each running an
// independent behavior loop, observing into shared atomic counters, and
// respecting ctx.Done() at every suspension point.
package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// GraceWindow is how long an in-flight dispatch may continue after
// cancellation before it is force-timed-out and counted as a transport
// failure, per spec.md §4.4's "Cancellation" rule.
const GraceWindow = 5 * time.Second

// Driver runs one scenario's worker pool for the duration of a run.
type Driver struct {
	scenario   *scenario.Scenario
	dispatcher *adapter.Dispatcher
	rampUp     int

	aggregators map[string]*aggregator.Aggregator
	graceEnd    atomic.Value // time.Time
}

// NewDriver builds a Driver with one Aggregator per enabled step, so the
// orchestrator can roll per-step summaries up into a scenario-level
// RunResult per spec.md §4.5.
func NewDriver(sc *scenario.Scenario, dispatcher *adapter.Dispatcher) *Driver {
	aggs := make(map[string]*aggregator.Aggregator, len(sc.Steps))
	for i, st := range sc.Steps {
		if st.Enabled {
			aggs[st.Name] = aggregator.New(int64(i) + 1)
		}
	}
	return &Driver{
		scenario:    sc,
		dispatcher:  dispatcher,
		rampUp:      sc.Settings.RampUpSeconds,
		aggregators: aggs,
	}
}

// Aggregators exposes the per-step aggregators for the orchestrator to
// snapshot after Run returns.
func (d *Driver) Aggregators() map[string]*aggregator.Aggregator {
	return d.aggregators
}

// WorkerCount derives W per spec.md §4.4: MaxConcurrency for Stress,
// otherwise the scenario's configured concurrent-user count capped by
// maxConcurrentUsers when set. This takes the simpler of the two permitted
// derivations ("implementers MAY start with W = scenario.concurrentUsers").
func WorkerCount(sc *scenario.Scenario) int {
	if sc.LoadProfile.Type == scenario.ProfileStress && sc.LoadProfile.MaxConcurrency > 0 {
		return sc.LoadProfile.MaxConcurrency
	}
	w := sc.Settings.ConcurrentUsers
	if w <= 0 {
		w = 1
	}
	if sc.LoadProfile.MaxUsers > 0 && w > sc.LoadProfile.MaxUsers {
		w = sc.LoadProfile.MaxUsers
	}
	return w
}

// Run drives the worker pool until deadline elapses or ctx is cancelled
// (plus the grace window for in-flight dispatches), then returns once every
// worker has drained.
func (d *Driver) Run(ctx context.Context, deadline time.Time) error {
	enabled := enabledIndices(d.scenario.Steps)
	if len(enabled) == 0 {
		return fmt.Errorf("loadtest: scenario %q has no enabled steps", d.scenario.Name)
	}

	d.graceEnd.Store(deadline)
	go d.watchCancellation(ctx)

	workers := WorkerCount(d.scenario)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			selector := d.selectorFor(workerIdx, enabled, start, deadline)
			d.runLoop(ctx, workerIdx, workers, start, deadline, selector)
		}(i)
	}
	wg.Wait()
	return nil
}

// watchCancellation shrinks the effective dispatch deadline to "now + grace"
// the moment the root context is cancelled before the scheduled deadline.
func (d *Driver) watchCancellation(ctx context.Context) {
	<-ctx.Done()
	graced := time.Now().Add(GraceWindow)
	if cur, ok := d.graceEnd.Load().(time.Time); !ok || graced.Before(cur) {
		d.graceEnd.Store(graced)
	}
}

// stepSelector returns the index (into d.scenario.Steps) of the next step a
// worker should issue, given a 0-based iteration counter.
type stepSelector func(iteration int) int

func (d *Driver) selectorFor(workerIdx int, enabled []int, start time.Time, deadline time.Time) stepSelector {
	steps := d.scenario.Steps
	switch d.scenario.ExecutionMode {
	case scenario.ModeSequential:
		return func(iteration int) int {
			return enabled[iteration%len(enabled)]
		}
	case scenario.ModeWeighted:
		rng := rand.New(rand.NewSource(int64(workerIdx) + 1))
		weights := make([]int, len(enabled))
		total := 0
		for i, idx := range enabled {
			w := steps[idx].Weight
			if w <= 0 {
				w = 1
			}
			weights[i] = w
			total += w
		}
		return func(iteration int) int {
			target := rng.Intn(total)
			cum := 0
			for i, w := range weights {
				cum += w
				if target < cum {
					return enabled[i]
				}
			}
			return enabled[len(enabled)-1]
		}
	case scenario.ModeGrouped:
		buckets := groupByType(steps, enabled)
		windowDur := time.Until(deadline)
		if windowDur <= 0 {
			windowDur = time.Second
		}
		bucketWindow := windowDur / time.Duration(len(buckets))
		return func(iteration int) int {
			elapsed := time.Since(start)
			b := int(elapsed / bucketWindow)
			if b >= len(buckets) {
				b = len(buckets) - 1
			}
			bucket := buckets[b]
			return bucket[(workerIdx+iteration)%len(bucket)]
		}
	default: // Parallel
		pinned := enabled[workerIdx%len(enabled)]
		return func(iteration int) int { return pinned }
	}
}

// groupByType buckets enabled step indices by StepType, in order of first
// appearance, per spec.md §4.4's Grouped execution mode.
func groupByType(steps []scenario.Step, enabled []int) [][]int {
	order := make([]scenario.StepType, 0)
	buckets := make(map[scenario.StepType][]int)
	for _, idx := range enabled {
		t := steps[idx].Type
		if _, ok := buckets[t]; !ok {
			order = append(order, t)
		}
		buckets[t] = append(buckets[t], idx)
	}
	out := make([][]int, 0, len(order))
	for _, t := range order {
		out = append(out, buckets[t])
	}
	return out
}

func enabledIndices(steps []scenario.Step) []int {
	out := make([]int, 0, len(steps))
	for i, s := range steps {
		if s.Enabled {
			out = append(out, i)
		}
	}
	return out
}

// runLoop is the inner worker loop from spec.md §4.4: choose a step, dispatch
// it (handling combinedWithPrevious), observe the outcome, then pace.
func (d *Driver) runLoop(ctx context.Context, workerIdx, workers int, start time.Time, deadline time.Time, next stepSelector) {
	nextIssue := time.Now()
	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return
		}
		now := time.Now()
		if !now.Before(deadline) {
			return
		}

		idx := next(iteration)
		d.issueStep(ctx, idx)

		elapsed := time.Since(start)
		rps := targetRPS(d.scenario.LoadProfile, d.rampUp, elapsed)
		interval := issueInterval(rps, workers)
		if interval <= 0 {
			continue
		}
		nextIssue = nextIssue.Add(interval)
		if sleep := time.Until(nextIssue); sleep > 0 {
			if remaining := time.Until(deadline); sleep > remaining {
				sleep = remaining
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		} else {
			nextIssue = time.Now()
		}
	}
}

// issueStep dispatches the step at idx, combining it with its predecessor
// when combinedWithPrevious is set, and observes the outcome into that
// step's aggregator.
func (d *Driver) issueStep(ctx context.Context, idx int) {
	steps := d.scenario.Steps
	step := &steps[idx]

	if step.CombinedWithPrevious && idx > 0 {
		prev := &steps[idx-1]
		start := time.Now()
		prevOutcome := d.dispatch(ctx, prev)
		curOutcome := d.dispatch(ctx, step)
		latency := time.Since(start)

		anyFailed := prevOutcome != aggregator.OutcomeOK || curOutcome != aggregator.OutcomeOK
		transportFailed := prevOutcome == aggregator.OutcomeFailTransport || curOutcome == aggregator.OutcomeFailTransport
		if agg, ok := d.aggregators[step.Name]; ok {
			agg.ObserveCombined(latency, anyFailed, transportFailed)
		}
		return
	}

	start := time.Now()
	outcome := d.dispatch(ctx, step)
	latency := time.Since(start)
	if agg, ok := d.aggregators[step.Name]; ok {
		agg.Observe(latency, outcome)
	}
}

// dispatch builds a detached context bounded by the current grace deadline
// (not the caller's possibly-already-cancelled ctx) so an in-flight request
// is allowed to finish within the grace window instead of being aborted the
// instant cancellation fires.
func (d *Driver) dispatch(ctx context.Context, step *scenario.Step) aggregator.Outcome {
	deadline, _ := d.graceEnd.Load().(time.Time)
	dispatchCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	outcome, _ := d.dispatcher.Dispatch(dispatchCtx, step)
	return outcome
}
