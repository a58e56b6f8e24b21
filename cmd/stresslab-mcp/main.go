// Command stresslab-mcp serves the scenario runner over the Model Context
// Protocol on stdio, wiring the same loader/orchestrator/history stack as
// cmd/stresslab but handing control to an MCP client (an AI agent) instead
// of a human driving flags.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stresslab-project/stresslab/pkg/adapter"
	"github.com/stresslab-project/stresslab/pkg/config"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/mcp"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "stresslab-mcp: config invalid: %v\n", err)
		os.Exit(1)
	}

	loader, err := scenario.LoadFile(cfg.ScenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stresslab-mcp: scenario load failed: %v\n", err)
		os.Exit(1)
	}

	var backend history.Backend
	if cfg.HistoryDriver == "sqlite" {
		backend, err = history.NewSQLiteBackend(cfg.HistoryDBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stresslab-mcp: history backend init failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		backend = history.NewMemoryBackend()
	}
	if cfg.RedisAddr != "" {
		backend = history.NewCachedBackend(backend, redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), 5*time.Minute)
	}
	defer backend.Close()

	dispatcher := adapter.NewDispatcher(adapter.NewHTTPAdapter(nil), adapter.NewSQLAdapter(), time.Now().UnixNano())
	orch := orchestrator.New(loader, dispatcher)

	server := mcp.NewServer(loader, orch, backend)
	if err := server.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "stresslab-mcp: serve failed: %v\n", err)
		os.Exit(1)
	}
}
