package metrics

import (
	"context"
	"testing"
	"time"
)

type fakeSampler struct{ n int }

func (f *fakeSampler) Sample() (PointSample, error) {
	f.n++
	return PointSample{CPUPercent: float64(f.n), MemPercent: 50}, nil
}

func TestSampler_StartStopSnapshot(t *testing.T) {
	s := NewWithCadence(10 * time.Millisecond)
	s.source = &fakeSampler{}

	ctx := context.Background()
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	snap := s.Snapshot()
	if snap.SampleCount < 2 {
		t.Fatalf("expected multiple samples, got %d", snap.SampleCount)
	}
	if snap.MemPercent != 50 {
		t.Fatalf("expected mean mem percent 50, got %v", snap.MemPercent)
	}
}

func TestSampler_SnapshotEmptyBeforeStart(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	if snap.SampleCount != 0 {
		t.Fatalf("expected empty snapshot before Start, got %+v", snap)
	}
}

func TestSampler_DegradedSourceNeverPanics(t *testing.T) {
	s := NewWithCadence(5 * time.Millisecond)
	s.source = erroringSampler{}
	ctx := context.Background()
	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	snap := s.Snapshot()
	if snap.CPUPercent != 0 {
		t.Fatalf("expected zero-valued degraded samples, got %+v", snap)
	}
}

type erroringSampler struct{}

func (erroringSampler) Sample() (PointSample, error) {
	return PointSample{}, errSampleFailed
}

var errSampleFailed = sampleError("boom")

type sampleError string

func (e sampleError) Error() string { return string(e) }
