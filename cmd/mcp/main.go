// Package mcp implements the `sockreport mcp` subcommand: an MCP (Model Context
// Protocol) server over stdio transport. Agents can spawn this process and
// parse, analyse and compare sockperf reports directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/saveenergy/sockreport/internal/comparison"
	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/internal/render"
	"github.com/saveenergy/sockreport/pkg/grade"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

// Run starts the MCP stdio server. Blocks until stdin closes or signal received.
func Run(version string) int {
	s := server.NewMCPServer(
		"sockreport",
		version,
		server.WithToolCapabilities(true),
	)

	handlers := map[string]server.ToolHandlerFunc{
		"parse_report":    handleParseReport,
		"analyze_reports": handleAnalyzeReports,
		"compare_reports": handleCompareReports,
	}
	for _, tool := range ToolDefinitions() {
		s.AddTool(tool, handlers[tool.Name])
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "sockreport mcp: error: %v\n", err)
		return 1
	}
	return 0
}

// ToolDefinitions lists the tools served by Run.
func ToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("parse_report",
			mcp.WithDescription("Extract the metrics record of one sockperf report: average latency, jitter (std-dev), percentiles, min/max, observations, bandwidth, message rate and packet loss. Only fields present in the report are returned. Pass either the report text or a file path."),
			mcp.WithString("text",
				mcp.Description("Report text"),
			),
			mcp.WithString("path",
				mcp.Description("Path to a report file (used when text is empty)"),
			),
		),
		mcp.NewTool("analyze_reports",
			mcp.WithDescription("Load one suite of sockperf reports (ping-pong default/64B/512B/1472B, under load, throughput) from a directory. Returns each test's metrics with a grade, plus the tests whose report file is missing."),
			mcp.WithString("dir",
				mcp.Description("Directory holding the report files (default: suite config)"),
			),
			mcp.WithString("suite",
				mcp.Description("Suite: dual or single (default: dual)"),
			),
			mcp.WithString("config",
				mcp.Description("Suite config file (YAML); optional"),
			),
		),
		mcp.NewTool("compare_reports",
			mcp.WithDescription("Compare the dual board suite against the single board suite test by test: latency, jitter, min/max and bandwidth with improvement percentage and absolute difference, plus headline findings."),
			mcp.WithString("dual_dir",
				mcp.Description("Directory holding the dual board reports (default: suite config)"),
			),
			mcp.WithString("single_dir",
				mcp.Description("Directory holding the single board reports (default: suite config)"),
			),
			mcp.WithString("config",
				mcp.Description("Suite config file (YAML); optional"),
			),
		),
	}
}

// --- Tool Handlers ---

type parseResult struct {
	Metrics        sockperf.Metrics      `json:"metrics"`
	Interpretation *grade.Interpretation `json:"interpretation,omitempty"`
}

func handleParseReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	path := strings.TrimSpace(req.GetString("path", ""))

	var m sockperf.Metrics
	switch {
	case text != "":
		m = sockperf.Extract(text)
	case path != "":
		var err error
		if m, err = loader.LoadFile(path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Parse failed: %v", err)), nil
		}
	default:
		return mcp.NewToolResultError("Either text or path is required"), nil
	}

	result := parseResult{Metrics: m}
	if !m.IsEmpty() {
		result.Interpretation = grade.Interpret(m)
	}
	return jsonResult(result)
}

func handleAnalyzeReports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := loadConfig(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid configuration: %v", err)), nil
	}
	suite := cfg.Dual
	switch req.GetString("suite", "dual") {
	case "dual":
	case "single":
		suite = cfg.Single
	default:
		return mcp.NewToolResultError("suite must be dual or single"), nil
	}
	if dir := strings.TrimSpace(req.GetString("dir", "")); dir != "" {
		suite.Dir = dir
	}

	run, err := loader.Load(ctx, suite, loader.Options{Concurrency: cfg.Concurrency})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	return jsonResult(render.NewSummaryDocument(run))
}

func handleCompareReports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := loadConfig(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid configuration: %v", err)), nil
	}
	if dir := strings.TrimSpace(req.GetString("dual_dir", "")); dir != "" {
		cfg.Dual.Dir = dir
	}
	if dir := strings.TrimSpace(req.GetString("single_dir", "")); dir != "" {
		cfg.Single.Dir = dir
	}

	opts := loader.Options{Concurrency: cfg.Concurrency}
	dual, err := loader.Load(ctx, cfg.Dual, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Loading dual suite failed: %v", err)), nil
	}
	single, err := loader.Load(ctx, cfg.Single, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Loading single suite failed: %v", err)), nil
	}

	report := comparison.Compare(dual, single, cfg.Dual.Tests)
	return jsonResult(render.ComparisonDocument{SchemaVersion: "1.0", Report: report})
}

func loadConfig(req mcp.CallToolRequest) (*config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(req.GetString("config", "")))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
