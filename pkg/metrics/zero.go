package metrics

import (
	"log"
	"sync"
)

// zeroSampler degrades to all-zero samples, logging once, per spec.md §4.2's
// "must never propagate exceptions to the orchestrator" rule.
type zeroSampler struct {
	reason string
	once   sync.Once
}

func (z *zeroSampler) Sample() (PointSample, error) {
	z.once.Do(func() {
		log.Printf(`{"level":"info","msg":"metrics_sampler_unavailable","reason":%q}`, z.reason)
	})
	return PointSample{}, nil
}
