package parse

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const throughput = `sockperf: Summary: Message Rate is 132774 [msg/sec]
sockperf: Summary: BandWidth is 186.389 MBps (1491.110 Mbps)
`

func TestParseStdinJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--interpret"}, strings.NewReader(throughput), &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	var got ParseResult
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != "-" || got.Metrics.MsgRate == nil || *got.Metrics.MsgRate != 132774 {
		t.Fatalf("result = %+v", got)
	}
	if got.Interpretation == nil || got.Interpretation.ThroughputRating != "line_rate" {
		t.Fatalf("interpretation = %+v", got.Interpretation)
	}
	if strings.Contains(stdout.String(), "avg_latency_us") {
		t.Fatal("absent field encoded")
	}
}

func TestParseFilePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pp.txt")
	body := "sockperf: ====> avg-latency=12.000 (std-dev=2.500)\nsockperf: ---> percentile 99.9 = 30.000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--plain", path}, nil, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	want := "source=" + path + "\navg_latency_us=12.000\nstd_dev_us=2.500\njitter_us=2.500\npercentile_99.9=30.000\n"
	if stdout.String() != want {
		t.Fatalf("plain output:\n%s\nwant:\n%s", stdout.String(), want)
	}
}

func TestParseEmptyAndMissing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, strings.NewReader("nothing useful"), &stdout, &stderr); code != exitFailure {
		t.Fatalf("empty record exit = %d, want %d", code, exitFailure)
	}
	stdout.Reset()
	if code := run([]string{filepath.Join(t.TempDir(), "nope.txt")}, nil, &stdout, &stderr); code != exitFailure {
		t.Fatalf("missing file exit = %d, want %d", code, exitFailure)
	}
	if code := run([]string{"a", "b"}, nil, &stdout, &stderr); code != exitUsage {
		t.Fatalf("two files exit = %d, want %d", code, exitUsage)
	}
}
