package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

const pingPongReport = `sockperf: [Total Run] RunTime=10.000 sec; SentMessages=100; ReceivedMessages=95
sockperf: ====> avg-latency=40.000 (std-dev=8.000)
sockperf: ---> percentile 99.000 =   70.000
`

func request(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"SOCKREPORT_DIR", "SOCKREPORT_DUAL_DIR", "SOCKREPORT_SINGLE_DIR"} {
		t.Setenv(key, "")
	}
}

func TestHandleParseReportText(t *testing.T) {
	res, err := handleParseReport(context.Background(), request(map[string]any{"text": pingPongReport}))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var got parseResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Metrics.PacketLossPct == nil || *got.Metrics.PacketLossPct != 5 {
		t.Fatalf("packet loss = %v, want 5", got.Metrics.PacketLossPct)
	}
	if got.Interpretation == nil || got.Interpretation.Grade == "" {
		t.Fatalf("interpretation = %+v", got.Interpretation)
	}
}

func TestHandleParseReportRequiresInput(t *testing.T) {
	res, err := handleParseReport(context.Background(), request(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error without text or path")
	}

	res, _ = handleParseReport(context.Background(), request(map[string]any{"path": filepath.Join(t.TempDir(), "none.txt")}))
	if !res.IsError {
		t.Fatal("expected tool error for a missing file")
	}
}

func TestHandleAnalyzeReports(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sockperf_single_pingpong_udp.txt"), []byte(pingPongReport), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := handleAnalyzeReports(context.Background(), request(map[string]any{"dir": dir, "suite": "single"}))
	if err != nil || res.IsError {
		t.Fatalf("analyze failed: err=%v res=%+v", err, res)
	}
	text := resultText(t, res)
	var doc struct {
		Label   string `json:"label"`
		Results []struct {
			Test string `json:"test"`
		} `json:"results"`
		Missing []struct {
			Test string `json:"test"`
		} `json:"missing"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Label != "Single Board" || len(doc.Results) != 1 || len(doc.Missing) != 5 {
		t.Fatalf("doc = %+v", doc)
	}

	res, _ = handleAnalyzeReports(context.Background(), request(map[string]any{"suite": "triple"}))
	if !res.IsError {
		t.Fatal("expected tool error for unknown suite")
	}
}

func TestHandleCompareReports(t *testing.T) {
	isolate(t)
	dual, single := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(dual, "sockperf_pingpong_udp.txt"), []byte(pingPongReport), 0o644); err != nil {
		t.Fatal(err)
	}
	faster := strings.Replace(pingPongReport, "avg-latency=40.000", "avg-latency=30.000", 1)
	if err := os.WriteFile(filepath.Join(single, "sockperf_single_pingpong_udp.txt"), []byte(faster), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := handleCompareReports(context.Background(), request(map[string]any{"dual_dir": dual, "single_dir": single}))
	if err != nil || res.IsError {
		t.Fatalf("compare failed: err=%v res=%+v", err, res)
	}
	var doc struct {
		Findings struct {
			PairedTests    int `json:"paired_tests"`
			DefaultLatency struct {
				ImprovementPct *float64 `json:"improvement_pct"`
			} `json:"default_latency_us"`
		} `json:"findings"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Findings.PairedTests != 1 {
		t.Fatalf("paired = %d", doc.Findings.PairedTests)
	}
	if p := doc.Findings.DefaultLatency.ImprovementPct; p == nil || *p != 25 {
		t.Fatalf("improvement = %v, want 25", p)
	}
}

func TestToolDefinitionsHaveDescriptions(t *testing.T) {
	want := map[string]string{
		"parse_report":    "text",
		"analyze_reports": "dir",
		"compare_reports": "dual_dir",
	}
	tools := ToolDefinitions()
	if len(tools) != len(want) {
		t.Fatalf("tools = %d, want %d", len(tools), len(want))
	}
	for _, tool := range tools {
		prop, ok := want[tool.Name]
		if !ok {
			t.Fatalf("unexpected tool %s", tool.Name)
		}
		if _, ok := tool.InputSchema.Properties[prop]; !ok {
			t.Fatalf("tool %s missing %s property", tool.Name, prop)
		}
		if strings.TrimSpace(tool.Description) == "" {
			t.Fatalf("tool %s missing description", tool.Name)
		}
	}
}
