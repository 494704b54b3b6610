// Package parse implements the `sockreport parse` subcommand: extract the
// metrics record of a single report file, or of stdin.
package parse

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/grade"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

var (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

// ParseResult is the JSON output of sockreport parse.
type ParseResult struct {
	SchemaVersion  string                `json:"schema_version"`
	Source         string                `json:"source"`
	Metrics        sockperf.Metrics      `json:"metrics"`
	Interpretation *grade.Interpretation `json:"interpretation,omitempty"`
}

func Run(args []string, version string) int {
	return run(args, os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("sockreport parse", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var (
		plain     bool
		interpret bool
	)
	flagSet.BoolVar(&plain, "plain", false, "key=value output instead of JSON")
	flagSet.BoolVar(&interpret, "interpret", false, "Include grade and ratings")
	help := flagSet.Bool("help", false, "Show help")
	flagSet.BoolVar(help, "h", false, "Show help (short)")

	if err := flagSet.Parse(args); err != nil {
		return exitUsage
	}
	if *help {
		printUsage(stdout)
		return exitSuccess
	}

	rest := flagSet.Args()
	if len(rest) > 1 {
		fmt.Fprintln(stderr, "sockreport parse: expected at most one report file")
		return exitUsage
	}
	source := "-"
	if len(rest) == 1 {
		source = rest[0]
	}

	var (
		m   sockperf.Metrics
		err error
	)
	if source == "-" {
		m, err = sockperf.ExtractReader(stdin)
	} else {
		m, err = loader.LoadFile(source)
	}
	if err != nil {
		fmt.Fprintf(stderr, "sockreport parse: %v\n", err)
		return exitFailure
	}

	result := ParseResult{SchemaVersion: "1.0", Source: source, Metrics: m}
	if interpret && !m.IsEmpty() {
		result.Interpretation = grade.Interpret(m)
	}

	if plain {
		printPlain(stdout, result)
	} else {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "sockreport parse: json encode error: %v\n", err)
			return exitFailure
		}
	}

	if m.IsEmpty() {
		fmt.Fprintf(stderr, "sockreport parse: no recognizable metrics in %s\n", source)
		return exitFailure
	}
	return exitSuccess
}

func printPlain(w io.Writer, r ParseResult) {
	m := r.Metrics
	float := func(key string, v *float64) {
		if v != nil {
			fmt.Fprintf(w, "%s=%.3f\n", key, *v)
		}
	}
	integer := func(key string, v *int64) {
		if v != nil {
			fmt.Fprintf(w, "%s=%d\n", key, *v)
		}
	}
	fmt.Fprintf(w, "source=%s\n", r.Source)
	float("avg_latency_us", m.AvgLatencyUs)
	float("std_dev_us", m.StdDevUs)
	float("jitter_us", m.JitterUs)
	float("min_latency_us", m.MinLatencyUs)
	float("max_latency_us", m.MaxLatencyUs)
	for _, k := range m.PercentileKeys() {
		fmt.Fprintf(w, "percentile_%s=%.3f\n", sockperf.FormatMarker(k), m.Percentiles[k])
	}
	integer("total_observations", m.TotalObservations)
	float("bandwidth_mbps", m.BandwidthMbps)
	float("bandwidth_MBps", m.BandwidthMBps)
	integer("msg_rate", m.MsgRate)
	integer("sent_messages", m.SentMessages)
	integer("received_messages", m.ReceivedMessages)
	float("packet_loss_pct", m.PacketLossPct)
	if r.Interpretation != nil {
		fmt.Fprintf(w, "grade=%s\n", r.Interpretation.Grade)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: sockreport parse [flags] [file|-]

Extract the metrics record of one sockperf report. Reads stdin when no file
is given or the file is "-". Only fields found in the report are printed.

Flags:
  -h, --help              Show help
  --plain                 key=value output instead of JSON
  --interpret             Include grade and ratings

Exit codes:
  0   Success
  1   Unreadable report or no recognizable metrics
  2   Usage error

Examples:
  sockreport parse sockperf_pingpong_udp.txt
  sockperf ping-pong -i 192.168.1.3 | sockreport parse --plain
`)
}
