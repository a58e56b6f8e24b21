// Package ciemit emits the machine-readable stdout lines from spec.md §6.4
// and the CSV history export supplementing the out-of-scope HTML/JSON/CSV
// report-rendering collaborator, generalizing the teacher's
// pkg/reports/csv.go encoding/csv-over-bytes.Buffer shape from a placeholder
// into an actual row writer.
package ciemit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
)

// Emit writes the CI-readable lines for one scenario result to w, per
// spec.md §6.4. The exact prefix/format is explicitly a collaborator
// concern; this implementation picks one stable, greppable shape.
func Emit(w io.Writer, result *orchestrator.RunResult) {
	outcome := "FAILURE"
	if result.Status == history.StatusCompleted && result.JudgedPassed {
		outcome = "SUCCESS"
	}
	fmt.Fprintf(w, "STRESSLAB_RESULT test=%s outcome=%s status=%s\n", result.ScenarioName, outcome, statusName(result.Status))

	stats := map[string]string{
		"TotalRequests":         strconv.FormatUint(result.Total, 10),
		"SuccessfulRequests":    strconv.FormatUint(result.Successful, 10),
		"FailedRequests":        strconv.FormatUint(result.Failed, 10),
		"ErrorRatePercent":      strconv.FormatFloat(result.ErrorRatePercent, 'f', 2, 64),
		"AverageResponseTimeMs": strconv.FormatFloat(result.AverageLatencyMs, 'f', 2, 64),
		"P95ResponseTimeMs":     strconv.FormatFloat(result.P95LatencyMs, 'f', 2, 64),
		"P99ResponseTimeMs":     strconv.FormatFloat(result.P99LatencyMs, 'f', 2, 64),
		"RequestsPerSecond":     strconv.FormatFloat(result.RequestsPerSecond, 'f', 2, 64),
		"CpuUsagePercent":       strconv.FormatFloat(result.CPUUsagePercent, 'f', 2, 64),
		"MemoryUsagePercent":    strconv.FormatFloat(result.MemoryUsagePercent, 'f', 2, 64),
		"PerformanceImpact":     strconv.Itoa(int(result.Impact)),
	}
	for _, key := range statKeyOrder {
		fmt.Fprintf(w, "STRESSLAB_STAT test=%s key=%s value=%s\n", result.ScenarioName, key, stats[key])
	}
}

var statKeyOrder = []string{
	"TotalRequests", "SuccessfulRequests", "FailedRequests", "ErrorRatePercent",
	"AverageResponseTimeMs", "P95ResponseTimeMs", "P99ResponseTimeMs",
	"RequestsPerSecond", "CpuUsagePercent", "MemoryUsagePercent", "PerformanceImpact",
}

func statusName(s history.Status) string {
	switch s {
	case history.StatusCompleted:
		return "Completed"
	case history.StatusFailed:
		return "Failed"
	case history.StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// WriteCSV writes HistoryRecords to a CSV document with the §6.2 column
// names as the header row.
func WriteCSV(records []history.HistoryRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := []string{
		"Id", "TestName", "ExecutionDate", "DurationSeconds", "TotalRequests",
		"SuccessfulRequests", "FailedRequests", "ErrorRatePercent", "AverageResponseTimeMs",
		"MinResponseTimeMs", "MaxResponseTimeMs", "P95ResponseTimeMs", "P99ResponseTimeMs",
		"RequestsPerSecond", "CpuUsagePercent", "MemoryUsagePercent", "PerformanceImpact", "Status",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.ID.String(),
			r.TestName,
			r.ExecutionDate.UTC().Format("2006-01-02T15:04:05Z"),
			strconv.FormatFloat(r.DurationSeconds, 'f', 3, 64),
			strconv.FormatInt(r.TotalRequests, 10),
			strconv.FormatInt(r.SuccessfulRequests, 10),
			strconv.FormatInt(r.FailedRequests, 10),
			strconv.FormatFloat(r.ErrorRatePercent, 'f', 2, 64),
			strconv.FormatFloat(r.AverageResponseTimeMs, 'f', 2, 64),
			strconv.FormatFloat(r.MinResponseTimeMs, 'f', 2, 64),
			strconv.FormatFloat(r.MaxResponseTimeMs, 'f', 2, 64),
			strconv.FormatFloat(r.P95ResponseTimeMs, 'f', 2, 64),
			strconv.FormatFloat(r.P99ResponseTimeMs, 'f', 2, 64),
			strconv.FormatFloat(r.RequestsPerSecond, 'f', 2, 64),
			strconv.FormatFloat(r.CPUUsagePercent, 'f', 2, 64),
			strconv.FormatFloat(r.MemoryUsagePercent, 'f', 2, 64),
			strconv.Itoa(int(r.PerformanceImpact)),
			strconv.Itoa(int(r.Status)),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
