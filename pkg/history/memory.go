package history

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend is the default backend from spec.md §4.6: an in-process,
// mutex-guarded slice. Grounded on the teacher's in-memory registries (e.g.
// pkg/engine/loader.go's scenario map) generalized to append-only history.
type MemoryBackend struct {
	mu      sync.Mutex
	records []HistoryRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Append(rec HistoryRecord) (HistoryRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ExecutionDate.IsZero() {
		rec.ExecutionDate = time.Now()
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return rec, nil
}

func (m *MemoryBackend) ListByTest(testName string) ([]HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryRecord, 0)
	for _, r := range m.records {
		if r.TestName == testName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Recent(testName string, n int) ([]HistoryRecord, error) {
	all, _ := m.ListByTest(testName)
	sort.Slice(all, func(i, j int) bool { return all[i].ExecutionDate.After(all[j].ExecutionDate) })
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (m *MemoryBackend) ByRange(testName string, from, to time.Time) ([]HistoryRecord, error) {
	all, _ := m.ListByTest(testName)
	out := make([]HistoryRecord, 0, len(all))
	for _, r := range all {
		if !r.ExecutionDate.Before(from) && !r.ExecutionDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Baseline(testName string, sampleSize int) (*HistoryRecord, error) {
	recent, _ := m.Recent(testName, 0)
	return Baseline(recent, sampleSize), nil
}

func (m *MemoryBackend) Cleanup(retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]HistoryRecord, 0, len(m.records))
	deleted := 0
	for _, r := range m.records {
		if r.ExecutionDate.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *MemoryBackend) Close() error { return nil }
