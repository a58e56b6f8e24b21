package history

import (
	"testing"
	"time"
)

func recordAt(testName string, when time.Time, avg float64, impact Impact) HistoryRecord {
	return HistoryRecord{
		TestName:              testName,
		ExecutionDate:         when,
		Status:                StatusCompleted,
		AverageResponseTimeMs: avg,
		PerformanceImpact:     impact,
	}
}

func TestBaseline_NoneIffFewerThanThreeCompleted(t *testing.T) {
	now := time.Now()
	two := []HistoryRecord{
		recordAt("t", now, 100, ImpactNone),
		recordAt("t", now, 100, ImpactNone),
	}
	if got := Baseline(two, 10); got != nil {
		t.Fatalf("expected nil baseline with only 2 completed records, got %+v", got)
	}

	three := append(two, recordAt("t", now, 100, ImpactNone))
	if got := Baseline(three, 10); got == nil {
		t.Fatalf("expected non-nil baseline with 3 completed records")
	}
}

func TestBaseline_IgnoresNonCompletedRecords(t *testing.T) {
	now := time.Now()
	records := []HistoryRecord{
		recordAt("t", now, 100, ImpactNone),
		recordAt("t", now, 100, ImpactNone),
		{TestName: "t", ExecutionDate: now, Status: StatusFailed, AverageResponseTimeMs: 9999},
	}
	if got := Baseline(records, 10); got != nil {
		t.Fatalf("expected nil baseline (only 2 Completed records), got %+v", got)
	}
}

func TestBaseline_IsArithmeticMean(t *testing.T) {
	now := time.Now()
	records := []HistoryRecord{
		recordAt("t", now, 100, ImpactNone),
		recordAt("t", now, 200, ImpactNone),
		recordAt("t", now, 300, ImpactNone),
	}
	got := Baseline(records, 10)
	if got == nil {
		t.Fatalf("expected non-nil baseline")
	}
	if got.AverageResponseTimeMs != 200 {
		t.Fatalf("expected mean 200, got %v", got.AverageResponseTimeMs)
	}
}

func TestMemoryBackend_AppendAndRecent(t *testing.T) {
	b := NewMemoryBackend()
	now := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := b.Append(recordAt("t", now.Add(time.Duration(i)*time.Minute), 100, ImpactNone)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	recent, err := b.Recent("t", 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if !recent[0].ExecutionDate.After(recent[1].ExecutionDate) {
		t.Fatalf("expected newest-first ordering")
	}
}

func TestMemoryBackend_Cleanup(t *testing.T) {
	b := NewMemoryBackend()
	old := recordAt("t", time.Now().AddDate(0, 0, -100), 100, ImpactNone)
	fresh := recordAt("t", time.Now(), 100, ImpactNone)
	b.Append(old)
	b.Append(fresh)

	deleted, err := b.Cleanup(30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}
	remaining, _ := b.ListByTest("t")
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining record, got %d", len(remaining))
	}
}

func TestMemoryBackend_ByRange(t *testing.T) {
	b := NewMemoryBackend()
	base := time.Now()
	b.Append(recordAt("t", base.Add(-48*time.Hour), 100, ImpactNone))
	b.Append(recordAt("t", base.Add(-1*time.Hour), 100, ImpactNone))
	b.Append(recordAt("t", base, 100, ImpactNone))

	got, err := b.ByRange("t", base.Add(-2*time.Hour), base)
	if err != nil {
		t.Fatalf("byRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(got))
	}
}
