// Command stresslab is the CLI entry point from spec.md §6.3: load a
// scenario document, run one scenario (or all of them) to completion, emit
// the CI-readable result lines, and persist history. With --serve it
// instead runs the management HTTP surface and retention worker
// indefinitely, grounded on cmd/ratelord-d/main.go's signal-handling shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/api"
	"github.com/stresslab-project/stresslab/pkg/ciemit"
	"github.com/stresslab-project/stresslab/pkg/config"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/observability"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"config_invalid","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	loader, err := scenario.LoadFile(cfg.ScenarioPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"scenario_load_failed","path":"%s","error":"%v"}`+"\n", cfg.ScenarioPath, err)
		os.Exit(1)
	}

	if cfg.ListScenarios {
		for _, sc := range loader.List() {
			fmt.Println(sc.Name)
		}
		return
	}

	hist, err := buildHistoryBackend(cfg)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"history_backend_init_failed","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	dispatcher := adapter.NewDispatcher(adapter.NewHTTPAdapter(nil), adapter.NewSQLAdapter(), time.Now().UnixNano())
	orch := orchestrator.New(loader, dispatcher)

	if cfg.Serve {
		runServer(cfg, loader, orch, hist)
		hist.Close()
		return
	}

	code := runOnce(cfg, loader, orch, hist)
	hist.Close()
	os.Exit(code)
}

func buildHistoryBackend(cfg config.Config) (history.Backend, error) {
	var backend history.Backend
	switch cfg.HistoryDriver {
	case "sqlite":
		b, err := history.NewSQLiteBackend(cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history backend: %w", err)
		}
		backend = b
	default:
		backend = history.NewMemoryBackend()
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend = history.NewCachedBackend(backend, client, 5*time.Minute)
	}
	return backend, nil
}

// runOnce executes either the named scenario or every loaded scenario,
// persists results, emits CI lines, and sweeps retention once before
// exiting, per SPEC_FULL.md supplement 3's one-shot Cleanup call.
func runOnce(cfg config.Config, loader *scenario.Loader, orch *orchestrator.Orchestrator, hist history.Backend) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var names []string
	if cfg.ScenarioName != "" {
		names = []string{cfg.ScenarioName}
	} else {
		for _, sc := range loader.List() {
			names = append(names, sc.Name)
		}
	}

	exitCode := 0
	for _, name := range names {
		sc, err := loader.Get(name)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"run_failed","scenario":"%s","error":"%v"}`+"\n", name, err)
			exitCode = 1
			continue
		}
		applyOverrides(&sc, cfg)

		result, err := orch.Execute(ctx, &sc)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"run_failed","scenario":"%s","error":"%v"}`+"\n", name, err)
			exitCode = 1
			continue
		}

		if _, err := hist.Append(result.ToHistoryRecord()); err != nil {
			fmt.Printf(`{"level":"error","msg":"history_append_failed","scenario":"%s","error":"%v"}`+"\n", name, err)
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
	}

	if n, err := hist.Cleanup(cfg.RetentionDays); err != nil {
		fmt.Printf(`{"level":"error","msg":"retention_cleanup_failed","error":"%v"}`+"\n", err)
	} else if n > 0 {
		fmt.Printf(`{"level":"info","msg":"retention_cleanup","records_removed":%d}`+"\n", n)
	}

	return exitCode
}

// applyOverrides layers the --duration/--users/--endpoint/--method/
// --sql-connection/--sql-procedure flags from spec.md §6.3 onto the loaded
// scenario. Endpoint/method only apply together since a bare --method with
// no --endpoint has nothing to target; the same holds for the SQL pair.
func applyOverrides(sc *scenario.Scenario, cfg config.Config) {
	if cfg.DurationSec > 0 {
		sc.Settings.DurationSeconds = cfg.DurationSec
	}
	if cfg.Users > 0 {
		sc.Settings.ConcurrentUsers = cfg.Users
	}
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if cfg.Endpoint != "" && step.Type == scenario.StepHttpApi && step.HTTP != nil {
			step.HTTP.URL = cfg.Endpoint
			step.HTTP.Method = cfg.Method
		}
		if cfg.SQLConnection != "" && step.SQL != nil {
			step.SQL.ConnectionString = cfg.SQLConnection
			if cfg.SQLProcedure != "" {
				step.SQL.Procedure = cfg.SQLProcedure
			}
		}
	}
}

// runServer runs the management HTTP API and the retention sweep worker
// until SIGINT/SIGTERM, grounded on cmd/ratelord-d/main.go's shutdown loop.
func runServer(cfg config.Config, loader *scenario.Loader, orch *orchestrator.Orchestrator, hist history.Backend) {
	fmt.Println(`{"level":"info","msg":"system_started","component":"stresslab"}`)

	server := api.NewServer(loader, orch, hist, cfg.Addr)

	retention := history.NewRetentionWorker(hist, history.RetentionConfig{
		Enabled:       true,
		RetentionDays: cfg.RetentionDays,
		CheckInterval: time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go retention.Run(ctx)

	go func() {
		if err := server.Start(); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"server_stop_failed","error":"%v"}`+"\n", err)
	}
	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
