// Package api exposes the management HTTP surface a CI pipeline or
// dashboard drives StressLab through: listing scenarios, triggering runs,
// reading history and requesting a deviation report. Grounded on the
// teacher's pkg/api/server.go: a plain net/http.ServeMux behind a small
// logging/recovery/secure-headers middleware chain, with promhttp mounted
// at /metrics.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stresslab-project/stresslab/pkg/analyzer"
	"github.com/stresslab-project/stresslab/pkg/ciemit"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/observability"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Server encapsulates the HTTP management API.
type Server struct {
	loader       *scenario.Loader
	orchestrator *orchestrator.Orchestrator
	history      history.Backend
	server       *http.Server

	statusMu sync.RWMutex
	status   map[string]*orchestrator.RunResult // last RunResult per scenario, for /v1/run/status polling
}

// NewServer wires the management API over an already-built loader,
// orchestrator and history backend.
func NewServer(loader *scenario.Loader, orch *orchestrator.Orchestrator, hist history.Backend, addr string) *Server {
	s := &Server{loader: loader, orchestrator: orch, history: hist, status: make(map[string]*orchestrator.RunResult)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/scenarios", s.handleScenarios)
	mux.HandleFunc("/v1/run", s.handleRun)
	mux.HandleFunc("/v1/run/status", s.handleRunStatus)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/history/export", s.handleHistoryExport)
	mux.HandleFunc("/v1/deviation", s.handleDeviation)

	handler := withLogging(withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = ":8090"
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// Start runs the HTTP server, blocking until it is stopped.
func (s *Server) Start() error {
	fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, r, s.loader.List())
}

// handleRun triggers one scenario execution end to end and persists the
// resulting HistoryRecord, per spec.md §4.5/§6.2. It also emits the
// machine-readable CI lines to stdout, same as the CLI path. The name is a
// query parameter rather than a JSON body since there is nothing else to
// configure per request — the scenario file already carries the settings.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, `{"error":"missing_name"}`, http.StatusBadRequest)
		return
	}

	result, err := s.orchestrator.ExecuteByName(r.Context(), name)
	if err != nil {
		if _, ok := err.(*scenario.ConfigurationNotFoundError); ok {
			http.Error(w, fmt.Sprintf(`{"error":"scenario_not_found","name":%q}`, name), http.StatusNotFound)
			return
		}
		fmt.Printf(`{"level":"error","msg":"run_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	s.statusMu.Lock()
	s.status[name] = result
	s.statusMu.Unlock()

	if s.history != nil {
		if _, err := s.history.Append(result.ToHistoryRecord()); err != nil {
			fmt.Printf(`{"level":"error","msg":"history_append_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		}
	}

	observability.RecordRun(observability.RunObservation{
		ScenarioName:      result.ScenarioName,
		Status:            result.Status,
		AverageLatencyMs:  result.AverageLatencyMs,
		P95LatencyMs:      result.P95LatencyMs,
		ErrorRatePercent:  result.ErrorRatePercent,
		RequestsPerSecond: result.RequestsPerSecond,
		StepOutcomes:      observability.StepOutcomes(result.StepSummaries),
	})
	ciemit.Emit(os.Stdout, result)

	writeJSON(w, r, result)
}

// handleRunStatus serves the last known RunResult for a scenario, for the
// TUI dashboard (cmd/stresslab-tui) to poll. Execute runs a scenario to
// completion rather than streaming partial progress, so "status" here means
// the most recently finished run, not an in-flight snapshot.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, `{"error":"missing_name"}`, http.StatusBadRequest)
		return
	}

	s.statusMu.RLock()
	result, ok := s.status[name]
	s.statusMu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf(`{"error":"no_run_recorded","name":%q}`, name), http.StatusNotFound)
		return
	}
	writeJSON(w, r, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	testName := r.URL.Query().Get("test")
	if testName == "" {
		http.Error(w, `{"error":"missing_test"}`, http.StatusBadRequest)
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := s.history.Recent(testName, limit)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"history_read_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, records)
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	testName := r.URL.Query().Get("test")
	if testName == "" {
		http.Error(w, `{"error":"missing_test"}`, http.StatusBadRequest)
		return
	}

	records, err := s.history.ListByTest(testName)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"history_read_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	csv, err := ciemit.WriteCSV(records)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"csv_export_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_history.csv", testName))
	w.Write(csv)
}

// handleDeviation compares freshly supplied metrics against the stored
// baseline, per spec.md §4.7.
func (s *Server) handleDeviation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req DeviationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.TestName == "" {
		http.Error(w, `{"error":"missing_test_name"}`, http.StatusBadRequest)
		return
	}
	sampleSize := req.SampleSize
	if sampleSize <= 0 {
		sampleSize = 10
	}

	baseline, err := s.history.Baseline(req.TestName, sampleSize)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"baseline_read_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	recent, err := s.history.Recent(req.TestName, sampleSize)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"history_read_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	report := analyzer.Analyze(analyzer.Metrics{
		AverageResponseTimeMs: req.AverageResponseMs,
		ErrorRatePercent:      req.ErrorRatePercent,
		RequestsPerSecond:     req.RequestsPerSecond,
		CPUUsagePercent:       req.CPUUsagePercent,
		MemoryUsagePercent:    req.MemoryUsagePercent,
	}, baseline, recent)

	if report != nil {
		report.Recommendations = analyzer.Recommendations(report)
		observability.RecordDeviation(req.TestName, report.OverallDeviationScore)
	}

	writeJSON(w, r, DeviationResponse{Report: report})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
