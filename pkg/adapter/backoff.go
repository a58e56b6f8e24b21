package adapter

import (
	"math/rand"
	"time"
)

// ExponentialBackoff generalizes the teacher's pkg/client/backoff.go
// strategy (exponential delay with symmetric jitter) for the adapters'
// connection-establishment retries. It is not used to retry a failed
// request dispatch itself — spec.md §4.4 requires the worker to continue to
// the next iteration on any single dispatch failure, not retry in place.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff mirrors the teacher's defaults: 100ms base, 5s cap, factor
// 2.0, 20% jitter.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next computes the wait duration for the given 0-based attempt.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}
	delay := float64(b.Base)
	for i := 0; i < attempt; i++ {
		delay *= b.Factor
	}
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += delay * (rand.Float64()*2 - 1) * b.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
