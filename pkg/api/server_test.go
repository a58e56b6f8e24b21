package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

const testScenarioJSON = `{
  "testScenarios": [
    {
      "name": "smoke",
      "executionMode": "Parallel",
      "loadSimulation": {"type": "ConstantRate", "rate": 10, "durationSeconds": 1, "maxConcurrentUsers": 2},
      "steps": [
        {"name": "ping", "type": "HttpApi", "configuration": {"url": "%s", "method": "GET"}, "weight": 1, "enabled": true}
      ],
      "settings": {"concurrentUsers": 2, "maxErrorRatePercent": 50, "expectedResponseTimeMs": 1000}
    }
  ]
}`

func buildServer(t *testing.T, upstream string) *Server {
	t.Helper()
	loader, err := scenario.LoadBytes([]byte(fmt.Sprintf(testScenarioJSON, upstream)))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	dispatcher := adapter.NewDispatcher(adapter.NewHTTPAdapter(nil), adapter.NewSQLAdapter(), 1)
	orch := orchestrator.New(loader, dispatcher)
	hist := history.NewMemoryBackend()
	return NewServer(loader, orch, hist, "")
}

func TestHandleScenarios_ListsLoadedScenarios(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := buildServer(t, upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/v1/scenarios", nil)
	w := httptest.NewRecorder()
	s.handleScenarios(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var scenarios []scenario.Scenario
	if err := json.NewDecoder(w.Body).Decode(&scenarios); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "smoke" {
		t.Fatalf("expected one scenario named smoke, got %+v", scenarios)
	}
}

func TestHandleRun_ExecutesAndPersistsHistory(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := buildServer(t, upstream.URL)
	req := httptest.NewRequest(http.MethodPost, "/v1/run?name=smoke", nil)
	w := httptest.NewRecorder()
	s.handleRun(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	records, err := s.history.Recent("smoke", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected run to be persisted, got %d records", len(records))
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/run/status?name=smoke", nil)
	statusW := httptest.NewRecorder()
	s.handleRunStatus(statusW, statusReq)
	if statusW.Code != http.StatusOK {
		t.Fatalf("expected 200 from status, got %d", statusW.Code)
	}
}

func TestHandleRun_UnknownScenarioReturns404(t *testing.T) {
	s := buildServer(t, "http://example.invalid")
	req := httptest.NewRequest(http.MethodPost, "/v1/run?name=nonexistent", nil)
	w := httptest.NewRecorder()
	s.handleRun(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleRunStatus_UnknownScenarioReturns404(t *testing.T) {
	s := buildServer(t, "http://example.invalid")
	req := httptest.NewRequest(http.MethodGet, "/v1/run/status?name=never-run", nil)
	w := httptest.NewRecorder()
	s.handleRunStatus(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestWithSecureHeaders_SetsExpectedHeaders(t *testing.T) {
	handler := withSecureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
}

func TestHandleHistoryExport_ReturnsCSV(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := buildServer(t, upstream.URL)
	s.history.Append(history.HistoryRecord{
		TestName:      "smoke",
		ExecutionDate: time.Now(),
		Status:        history.StatusCompleted,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/history/export?test=smoke", nil)
	w := httptest.NewRecorder()
	s.handleHistoryExport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
}
