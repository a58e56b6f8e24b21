package history

import (
	"testing"
	"time"
)

func TestSQLiteBackend_AppendAndBaseline(t *testing.T) {
	b, err := NewSQLiteBackend("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	now := time.Now()
	for i := 0; i < 3; i++ {
		rec := recordAt("api-smoke", now.Add(time.Duration(i)*time.Minute), 100+float64(i)*10, ImpactNone)
		if _, err := b.Append(rec); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	baseline, err := b.Baseline("api-smoke", 10)
	if err != nil {
		t.Fatalf("baseline failed: %v", err)
	}
	if baseline == nil {
		t.Fatalf("expected non-nil baseline")
	}
	if baseline.AverageResponseTimeMs != 110 {
		t.Fatalf("expected mean avg 110, got %v", baseline.AverageResponseTimeMs)
	}
}

func TestSQLiteBackend_CleanupDeletesOldRows(t *testing.T) {
	b, err := NewSQLiteBackend("file::memory:?cache=shared&mode=memory&_cleanup=1")
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	b.Append(recordAt("job", time.Now().AddDate(0, 0, -90), 100, ImpactNone))
	b.Append(recordAt("job", time.Now(), 100, ImpactNone))

	deleted, err := b.Cleanup(30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
}
