// Package history persists RunResults as HistoryRecords and serves the
// baseline/range queries the deviation analyzer depends on. Grounded on the
// teacher's pkg/store package: a small Backend interface with an in-memory
// implementation and a SQL-backed one sharing the same contract.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Status mirrors spec.md §9's decision to separate run completion from
// threshold judgement: Status records whether the run itself finished
// without an engine error; judgedPassed (carried on RunResult, not here)
// records whether it met its thresholds.
type Status int

const (
	StatusCompleted Status = iota
	StatusFailed
	StatusCancelled
)

// Impact is the five-bucket qualitative degradation rating from spec.md
// §4.5.1.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactMinor
	ImpactModerate
	ImpactMajor
	ImpactCritical
)

// HistoryRecord is the persisted shape of a RunResult, matching the column
// set required by spec.md §6.2 for portability across backends.
type HistoryRecord struct {
	ID                    uuid.UUID
	TestName              string
	ExecutionDate         time.Time
	DurationSeconds       float64
	TotalRequests         int64
	SuccessfulRequests    int64
	FailedRequests        int64
	ErrorRatePercent      float64
	AverageResponseTimeMs float64
	MinResponseTimeMs     float64
	MaxResponseTimeMs     float64
	P95ResponseTimeMs     float64
	P99ResponseTimeMs     float64
	RequestsPerSecond     float64
	CPUUsagePercent       float64
	MemoryUsagePercent    float64
	PerformanceImpact     Impact
	Status                Status
	TestConfigurationID   *uuid.UUID
	TestResultID          *uuid.UUID
}

// Backend is the storage contract both the in-memory and SQL
// implementations satisfy, per spec.md §4.6.
type Backend interface {
	Append(rec HistoryRecord) (HistoryRecord, error)
	ListByTest(testName string) ([]HistoryRecord, error)
	Recent(testName string, n int) ([]HistoryRecord, error)
	ByRange(testName string, from, to time.Time) ([]HistoryRecord, error)
	Baseline(testName string, sampleSize int) (*HistoryRecord, error)
	Cleanup(retentionDays int) (int, error)
	Close() error
}

// Baseline synthesizes a reference record: arithmetic means of numeric
// fields and the modal impact value, over the most recent sampleSize
// Completed records. Shared by every Backend implementation so the
// synthesis rule in spec.md §4.6 only lives in one place.
func Baseline(records []HistoryRecord, sampleSize int) *HistoryRecord {
	completed := make([]HistoryRecord, 0, len(records))
	for _, r := range records {
		if r.Status == StatusCompleted {
			completed = append(completed, r)
		}
	}
	if len(completed) < 3 {
		return nil
	}
	if sampleSize > 0 && sampleSize < len(completed) {
		completed = completed[:sampleSize]
	}

	var sum HistoryRecord
	impactCounts := make(map[Impact]int)
	for _, r := range completed {
		sum.DurationSeconds += r.DurationSeconds
		sum.TotalRequests += r.TotalRequests
		sum.SuccessfulRequests += r.SuccessfulRequests
		sum.FailedRequests += r.FailedRequests
		sum.ErrorRatePercent += r.ErrorRatePercent
		sum.AverageResponseTimeMs += r.AverageResponseTimeMs
		sum.MinResponseTimeMs += r.MinResponseTimeMs
		sum.MaxResponseTimeMs += r.MaxResponseTimeMs
		sum.P95ResponseTimeMs += r.P95ResponseTimeMs
		sum.P99ResponseTimeMs += r.P99ResponseTimeMs
		sum.RequestsPerSecond += r.RequestsPerSecond
		sum.CPUUsagePercent += r.CPUUsagePercent
		sum.MemoryUsagePercent += r.MemoryUsagePercent
		impactCounts[r.PerformanceImpact]++
	}

	n := float64(len(completed))
	out := HistoryRecord{
		TestName:              completed[0].TestName,
		ExecutionDate:         completed[0].ExecutionDate,
		DurationSeconds:       sum.DurationSeconds / n,
		TotalRequests:         sum.TotalRequests / int64(len(completed)),
		SuccessfulRequests:    sum.SuccessfulRequests / int64(len(completed)),
		FailedRequests:        sum.FailedRequests / int64(len(completed)),
		ErrorRatePercent:      sum.ErrorRatePercent / n,
		AverageResponseTimeMs: sum.AverageResponseTimeMs / n,
		MinResponseTimeMs:     sum.MinResponseTimeMs / n,
		MaxResponseTimeMs:     sum.MaxResponseTimeMs / n,
		P95ResponseTimeMs:     sum.P95ResponseTimeMs / n,
		P99ResponseTimeMs:     sum.P99ResponseTimeMs / n,
		RequestsPerSecond:     sum.RequestsPerSecond / n,
		CPUUsagePercent:       sum.CPUUsagePercent / n,
		MemoryUsagePercent:    sum.MemoryUsagePercent / n,
		Status:                StatusCompleted,
		PerformanceImpact:     modalImpact(impactCounts),
	}
	return &out
}

func modalImpact(counts map[Impact]int) Impact {
	var best Impact
	bestCount := -1
	for impact, c := range counts {
		if c > bestCount || (c == bestCount && impact < best) {
			best = impact
			bestCount = c
		}
	}
	return best
}
