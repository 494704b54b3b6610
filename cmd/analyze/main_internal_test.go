package analyze

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const pingPongReport = `sockperf: [Total Run] RunTime=10.000 sec; SentMessages=1000; ReceivedMessages=1000
sockperf: ====> avg-latency=22.125 (std-dev=4.500)
sockperf: ---> percentile 99.000 =   40.000
sockperf: ---> <MIN> observation =   15.000
`

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"SOCKREPORT_DIR", "SOCKREPORT_DUAL_DIR", "SOCKREPORT_SINGLE_DIR", "SOCKREPORT_OUTPUT", "SOCKREPORT_ARCHIVE", "SOCKREPORT_DATA_DIR"} {
		t.Setenv(key, "")
	}
}

func TestRunWritesSummaryAndDashboard(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sockperf_pingpong_udp.txt"), []byte(pingPongReport), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "dash.png")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-d", dir, "-o", out, "--format", "plain"}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "ping_pong_default.avg_latency_us=22.125") {
		t.Fatalf("stdout:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "ping_pong_64b.missing=") {
		t.Fatalf("missing tests not reported:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "✓ Parsed Ping-Pong (Default)") || !strings.Contains(stderr.String(), "✗ Missing") {
		t.Fatalf("stderr notices:\n%s", stderr.String())
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("dashboard not written: %v", err)
	}
}

func TestRunWithArchive(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sockperf_pingpong_udp.txt"), []byte(pingPongReport), 0o644); err != nil {
		t.Fatal(err)
	}
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("SOCKREPORT_DATA_DIR", dataDir)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-d", dir, "--no-image", "--archive", "--json"}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Run archived as ") {
		t.Fatalf("stderr:\n%s", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dataDir, "runs.db")); err != nil {
		t.Fatalf("archive not created: %v", err)
	}
}

func TestRunNoReportsFails(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-d", t.TempDir(), "--no-image", "--json"}, &stdout, &stderr); code != exitFailure {
		t.Fatalf("exit = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stdout.String(), `"missing"`) {
		t.Fatalf("JSON summary should still list missing tests:\n%s", stdout.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)
	tests := [][]string{
		{"--suite", "triple"},
		{"--format", "xml"},
		{"--bogus"},
		{"extra"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		if code := run(args, &stdout, &stderr); code != exitUsage {
			t.Fatalf("run(%v) = %d, want %d", args, code, exitUsage)
		}
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-h"}, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "Usage: sockreport analyze") {
		t.Fatalf("usage:\n%s", stdout.String())
	}
}
