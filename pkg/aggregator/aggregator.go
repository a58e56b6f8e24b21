// Package aggregator is the multi-producer, single-consumer latency and
// outcome counter described in spec.md §4.3. It generalizes the
// atomic-counter bookkeeping in the teacher's pkg/simulation/runner.go
// (atomic.AddUint64 per-outcome counters) with a bounded reservoir for
// percentile estimation.
package aggregator

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome classifies a single dispatched request.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFailRequest
	OutcomeFailTransport
)

// ReservoirSize is the minimum retained-sample count required by spec.md
// §4.3; below this many observations every sample that reaches the
// reservoir is kept exactly. A sample whose reservoir lock is contended is
// dropped (counters are still updated), so the reservoir can hold fewer.
const ReservoirSize = 10000

// Aggregator is owned by the load driver for the duration of a run and
// snapshotted exactly once after workers drain (spec.md §3).
type Aggregator struct {
	total         uint64
	ok            uint64
	failRequest   uint64
	failTransport uint64

	mu        sync.Mutex
	reservoir []float64 // latency samples, in milliseconds
	seen      uint64    // count of latency observations considered for the reservoir
	rng       *rand.Rand
}

// New creates an empty Aggregator. seed controls the reservoir-sampling RNG;
// pass 0 to seed from the current time.
func New(seed int64) *Aggregator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Aggregator{
		reservoir: make([]float64, 0, ReservoirSize),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Observe records one (latency, outcome) pair. Safe for concurrent use by
// many worker goroutines.
func (a *Aggregator) Observe(latency time.Duration, outcome Outcome) {
	atomic.AddUint64(&a.total, 1)
	switch outcome {
	case OutcomeOK:
		atomic.AddUint64(&a.ok, 1)
	case OutcomeFailRequest:
		atomic.AddUint64(&a.failRequest, 1)
	case OutcomeFailTransport:
		atomic.AddUint64(&a.failTransport, 1)
	}
	a.addSample(float64(latency) / float64(time.Millisecond))
}

// ObserveCombined records a single failed outcome for a combinedWithPrevious
// pacing unit when either half fails, per spec.md §4.4 step 2. Counters
// still move by exactly one observation.
func (a *Aggregator) ObserveCombined(latency time.Duration, anyFailed bool, transportFailed bool) {
	outcome := OutcomeOK
	if anyFailed {
		outcome = OutcomeFailRequest
		if transportFailed {
			outcome = OutcomeFailTransport
		}
	}
	a.Observe(latency, outcome)
}

// addSample implements the backpressure policy from spec.md §5: counters
// are never dropped, but a sample may be dropped under reservoir lock
// contention via a bounded try-lock with a counter-only fallback.
func (a *Aggregator) addSample(ms float64) {
	if !a.tryLock() {
		return
	}
	defer a.mu.Unlock()

	n := atomic.AddUint64(&a.seen, 1)
	if uint64(len(a.reservoir)) < ReservoirSize {
		a.reservoir = append(a.reservoir, ms)
		return
	}
	// Reservoir sampling (Algorithm R): once full, replace a uniformly
	// random existing sample with decreasing probability.
	j := a.rng.Int63n(int64(n))
	if j < ReservoirSize {
		a.reservoir[j] = ms
	}
}

// tryLock is a short-critical-section bounded try-lock. Plain sync.Mutex has
// no non-blocking TryLock prior to Go 1.18's sync.Mutex.TryLock, which is
// used directly here to avoid stalling a worker unboundedly under
// contention.
func (a *Aggregator) tryLock() bool {
	return a.mu.TryLock()
}

// Snapshot freezes the current state into an immutable Summary. Must be
// called exactly once after all producer goroutines have drained.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	samples := make([]float64, len(a.reservoir))
	copy(samples, a.reservoir)
	a.mu.Unlock()

	sort.Float64s(samples)

	total := atomic.LoadUint64(&a.total)
	ok := atomic.LoadUint64(&a.ok)
	failReq := atomic.LoadUint64(&a.failRequest)
	failTransport := atomic.LoadUint64(&a.failTransport)

	s := Summary{
		Total:         total,
		Successful:    ok,
		FailRequest:   failReq,
		FailTransport: failTransport,
		Failed:        failReq + failTransport,
	}
	if total > 0 {
		s.ErrorRatePercent = float64(s.Failed) / float64(total) * 100
	}
	if len(samples) == 0 {
		return s
	}
	s.Min = samples[0]
	s.Max = samples[len(samples)-1]
	s.Average = mean(samples)
	s.P50 = percentile(samples, 0.50)
	s.P95 = percentile(samples, 0.95)
	s.P99 = percentile(samples, 0.99)
	return s
}

// Summary is the frozen, immutable view produced by Snapshot.
type Summary struct {
	Total            uint64
	Successful       uint64
	Failed           uint64
	FailRequest      uint64
	FailTransport    uint64
	ErrorRatePercent float64
	Average          float64
	Min              float64
	Max              float64
	P50              float64
	P95              float64
	P99              float64
}

func mean(sorted []float64) float64 {
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// percentile implements linear interpolation at position (n-1)*p over a
// pre-sorted sample set, per spec.md §4.3.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
