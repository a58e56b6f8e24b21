package ciemit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
)

func TestEmit_SuccessWhenCompletedAndJudgedPassed(t *testing.T) {
	result := &orchestrator.RunResult{
		ScenarioName:      "smoke",
		Status:            history.StatusCompleted,
		JudgedPassed:      true,
		Total:             100,
		Successful:        100,
		AverageLatencyMs:  12.5,
		RequestsPerSecond: 50,
		Impact:            history.ImpactNone,
	}

	var buf bytes.Buffer
	Emit(&buf, result)
	out := buf.String()

	if !strings.Contains(out, "outcome=SUCCESS") {
		t.Fatalf("expected SUCCESS outcome, got:\n%s", out)
	}
	if !strings.Contains(out, "key=TotalRequests value=100") {
		t.Fatalf("expected TotalRequests stat line, got:\n%s", out)
	}
}

func TestEmit_FailureWhenJudgedFailedDespiteCompleted(t *testing.T) {
	result := &orchestrator.RunResult{
		ScenarioName: "smoke",
		Status:       history.StatusCompleted,
		JudgedPassed: false,
	}

	var buf bytes.Buffer
	Emit(&buf, result)

	if !strings.Contains(buf.String(), "outcome=FAILURE") {
		t.Fatalf("expected FAILURE outcome when thresholds were not met")
	}
}

func TestWriteCSV_WritesHeaderAndRows(t *testing.T) {
	records := []history.HistoryRecord{
		{
			ID:                    uuid.New(),
			TestName:              "smoke",
			ExecutionDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			TotalRequests:         10,
			SuccessfulRequests:    10,
			AverageResponseTimeMs: 5,
			Status:                history.StatusCompleted,
			PerformanceImpact:     history.ImpactNone,
		},
	}

	out, err := WriteCSV(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Id,TestName,ExecutionDate") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "smoke") {
		t.Fatalf("expected row to contain test name, got: %s", lines[1])
	}
}

func TestWriteCSV_EmptyRecordsStillWritesHeader(t *testing.T) {
	out, err := WriteCSV(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(out), "Id,TestName") {
		t.Fatalf("expected header-only csv, got: %s", out)
	}
}
