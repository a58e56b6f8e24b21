// Package metrics is the OS-portable host resource sampler described in
// spec.md §4.2. It generalizes the cadence-driven background loop shape of
// the teacher's pkg/engine/poller.go (a single-goroutine ticker writing
// shared state that readers snapshot) to CPU/memory/disk/network sampling.
package metrics

import (
	"context"
	"log"
	"sync"
	"time"
)

// PointSample is a single host-resource reading.
type PointSample struct {
	CPUPercent       float64
	MemPercent       float64
	MemAvailableByte uint64
	MemTotalByte     uint64
	DiskBusyPercent  float64
	NetBytesSent     uint64
	NetBytesRecv     uint64
}

// pointSampler is implemented per-OS. On failure it returns a non-nil error
// alongside a PointSample whose unreadable fields are left at zero (readings
// that did succeed are kept); Sampler degrades that into a
// single warning log rather than propagating to the orchestrator, per
// spec.md §4.2.
type pointSampler interface {
	Sample() (PointSample, error)
}

// Sampler exposes Start/Stop/Snapshot over a fixed-cadence background
// goroutine. State is written by that single goroutine; Snapshot callers
// receive a copy, matching the single-writer/snapshot-reader policy in
// spec.md §5.
type Sampler struct {
	cadence time.Duration
	source  pointSampler

	mu       sync.Mutex
	samples  []PointSample
	warned   bool
	stopped  chan struct{}
	cancel   context.CancelFunc
	running  bool
}

// New builds a Sampler with the default 1s cadence and the OS-appropriate
// point sampler.
func New() *Sampler {
	return NewWithCadence(time.Second)
}

// NewWithCadence builds a Sampler with an explicit cadence, primarily for
// tests.
func NewWithCadence(cadence time.Duration) *Sampler {
	if cadence <= 0 {
		cadence = time.Second
	}
	return &Sampler{cadence: cadence, source: newPlatformSampler()}
}

// Start begins periodic sampling. It captures a baseline sample immediately,
// then continues at the configured cadence until Stop is called or ctx is
// cancelled.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		s.takeSample()
		ticker := time.NewTicker(s.cadence)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.takeSample()
			}
		}
	}()
}

// Stop halts sampling and blocks until the background goroutine has
// returned.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	stopped := s.stopped
	s.running = false
	s.mu.Unlock()

	cancel()
	<-stopped
}

func (s *Sampler) takeSample() {
	p, err := s.source.Sample()
	if err != nil {
		s.mu.Lock()
		warn := !s.warned
		s.warned = true
		s.mu.Unlock()
		if warn {
			log.Printf(`{"level":"warn","msg":"metrics_sample_degraded","error":%q}`, err.Error())
		}
	}
	s.mu.Lock()
	s.samples = append(s.samples, p)
	s.mu.Unlock()
}

// Snapshot returns the arithmetic mean over active samples per spec.md
// §4.2, plus the minimum and maximum CPU percentage. Memory byte totals are
// taken from the latest sample rather than averaged; min/max of the other
// readings are not computed.
func (s *Sampler) Snapshot() Snapshot {
	s.mu.Lock()
	samples := make([]PointSample, len(s.samples))
	copy(samples, s.samples)
	s.mu.Unlock()

	if len(samples) == 0 {
		return Snapshot{}
	}

	var out Snapshot
	minCPU, maxCPU := samples[0].CPUPercent, samples[0].CPUPercent
	for _, p := range samples {
		out.CPUPercent += p.CPUPercent
		out.MemPercent += p.MemPercent
		out.DiskBusyPercent += p.DiskBusyPercent
		out.NetBytesSent += p.NetBytesSent
		out.NetBytesRecv += p.NetBytesRecv
		if p.CPUPercent < minCPU {
			minCPU = p.CPUPercent
		}
		if p.CPUPercent > maxCPU {
			maxCPU = p.CPUPercent
		}
	}
	n := float64(len(samples))
	out.CPUPercent /= n
	out.MemPercent /= n
	out.DiskBusyPercent /= n
	out.NetBytesSent /= uint64(len(samples))
	out.NetBytesRecv /= uint64(len(samples))
	out.MinCPUPercent = minCPU
	out.MaxCPUPercent = maxCPU
	out.SampleCount = len(samples)
	out.MemAvailableByte = samples[len(samples)-1].MemAvailableByte
	out.MemTotalByte = samples[len(samples)-1].MemTotalByte
	return out
}

// Snapshot is the aggregated view over the active sampling window.
type Snapshot struct {
	CPUPercent       float64
	MinCPUPercent    float64
	MaxCPUPercent    float64
	MemPercent       float64
	MemAvailableByte uint64
	MemTotalByte     uint64
	DiskBusyPercent  float64
	NetBytesSent     uint64
	NetBytesRecv     uint64
	SampleCount      int
}
