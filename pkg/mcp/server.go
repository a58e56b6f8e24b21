// Package mcp exposes StressLab's scenario runner over the Model Context
// Protocol, so an AI agent can list scenarios, trigger a run, and read back
// history or a deviation report as tools/resources rather than a human
// driving the CLI or dashboard. Grounded on the teacher's pkg/mcp/server.go:
// the same mark3labs/mcp-go resource/tool/prompt registration shape, rewired
// from ratelord's identity/intent domain to scenarios/runs/history.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stresslab-project/stresslab/pkg/analyzer"
	"github.com/stresslab-project/stresslab/pkg/history"
	"github.com/stresslab-project/stresslab/pkg/orchestrator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// Server adapts a stresslab orchestrator and history backend to the Model
// Context Protocol.
type Server struct {
	mcpServer    *server.MCPServer
	loader       *scenario.Loader
	orchestrator *orchestrator.Orchestrator
	history      history.Backend
}

// NewServer creates a new MCP server instance over an already-built loader,
// orchestrator and history backend.
func NewServer(loader *scenario.Loader, orch *orchestrator.Orchestrator, hist history.Backend) *Server {
	s := &Server{
		mcpServer:    server.NewMCPServer("stresslab", "1.0.0"),
		loader:       loader,
		orchestrator: orch,
		history:      hist,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"stresslab://scenarios",
		"Loaded Scenarios",
		mcp.WithResourceDescription("All scenarios loaded from the scenario document"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadScenarios)
}

func (s *Server) handleReadScenarios(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.loader.List(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenarios: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: request.Params.URI, MIMEType: "application/json", Text: string(data)},
	}, nil
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"run_scenario",
		mcp.WithDescription("Execute a loaded scenario to completion and persist the result to history."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The scenario name to run")),
	), s.handleRunScenario)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_history",
		mcp.WithDescription("Fetch recent run history for a test."),
		mcp.WithString("test", mcp.Required(), mcp.Description("The test name")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 10)")),
	), s.handleGetHistory)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_deviation",
		mcp.WithDescription("Compare the most recent run for a test against its historical baseline."),
		mcp.WithString("test", mcp.Required(), mcp.Description("The test name")),
		mcp.WithNumber("sample_size", mcp.Description("Baseline sample size (default 10)")),
	), s.handleGetDeviation)
}

func (s *Server) handleRunScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	result, err := s.orchestrator.ExecuteByName(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	if s.history != nil {
		if _, err := s.history.Append(result.ToHistoryRecord()); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run completed but history append failed: %v", err)), nil
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	test := mcp.ParseString(request, "test", "")
	if test == "" {
		return mcp.NewToolResultError("test is required"), nil
	}
	limit := int(mcp.ParseFloat64(request, "limit", 10))

	records, err := s.history.Recent(test, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history lookup failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetDeviation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	test := mcp.ParseString(request, "test", "")
	if test == "" {
		return mcp.NewToolResultError("test is required"), nil
	}
	sampleSize := int(mcp.ParseFloat64(request, "sample_size", 10))

	baseline, err := s.history.Baseline(test, sampleSize)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("baseline lookup failed: %v", err)), nil
	}
	recent, err := s.history.Recent(test, sampleSize)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recent lookup failed: %v", err)), nil
	}
	if baseline == nil || len(recent) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no history recorded for %q yet", test)), nil
	}

	latest := recent[0]
	report := analyzer.Analyze(analyzer.Metrics{
		AverageResponseTimeMs: latest.AverageResponseTimeMs,
		ErrorRatePercent:      latest.ErrorRatePercent,
		RequestsPerSecond:     latest.RequestsPerSecond,
		CPUUsagePercent:       latest.CPUUsagePercent,
		MemoryUsagePercent:    latest.MemoryUsagePercent,
	}, baseline, recent)
	report.Recommendations = analyzer.Recommendations(report)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"stresslab-aware",
		mcp.WithPromptDescription("Provides context about StressLab concepts (scenarios, steps, runs, baselines)"),
	), s.handleGetPrompt)
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != "stresslab-aware" {
		return nil, fmt.Errorf("prompt not found: %s", request.Params.Name)
	}

	promptText := `You are interacting with StressLab, a performance and load testing engine.

Concepts:
- Scenario: a named document of load profile, steps and pass/fail thresholds.
- Step: one HTTP or SQL action dispatched repeatedly during a run.
- Run: one execution of a scenario, producing a HistoryRecord.
- Baseline: a rolling average over recent runs of the same test, used to detect regressions.

Use 'run_scenario' to execute a scenario, 'get_history' to inspect past runs, and
'get_deviation' to compare the latest run against its baseline.
`

	return mcp.NewGetPromptResult(
		"stresslab-aware",
		[]mcp.PromptMessage{mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText))},
	), nil
}
