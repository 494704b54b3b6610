// Package comparison pairs two suite runs test by test and derives the
// deltas the comparison report prints. Every figure is guarded: a delta is
// only produced when both sides carry the underlying field.
package comparison

import (
	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

// Improvement is (baseline - candidate) / baseline * 100: positive when the
// candidate is lower (better for latency and jitter). ok is false when either
// side is absent or the baseline is zero.
func Improvement(baseline, candidate *float64) (float64, bool) {
	if baseline == nil || candidate == nil || *baseline == 0 {
		return 0, false
	}
	return (*baseline - *candidate) / *baseline * 100, true
}

// Difference is baseline - candidate.
func Difference(baseline, candidate *float64) (float64, bool) {
	if baseline == nil || candidate == nil {
		return 0, false
	}
	return *baseline - *candidate, true
}

// Delta is one metric compared across the two runs. A nil pointer marks a
// value that could not be derived.
type Delta struct {
	Baseline       *float64 `json:"baseline,omitempty"`
	Candidate      *float64 `json:"candidate,omitempty"`
	ImprovementPct *float64 `json:"improvement_pct,omitempty"`
	Difference     *float64 `json:"difference,omitempty"`
}

func newDelta(baseline, candidate *float64) Delta {
	d := Delta{Baseline: baseline, Candidate: candidate}
	if v, ok := Improvement(baseline, candidate); ok {
		d.ImprovementPct = &v
	}
	if v, ok := Difference(baseline, candidate); ok {
		d.Difference = &v
	}
	return d
}

// newGainDelta is newDelta for metrics where higher is better: the
// improvement is (candidate - baseline) / baseline * 100 and the difference is
// candidate - baseline, so positive still favours the candidate.
func newGainDelta(baseline, candidate *float64) Delta {
	d := Delta{Baseline: baseline, Candidate: candidate}
	if v, ok := Improvement(baseline, candidate); ok {
		v = -v
		d.ImprovementPct = &v
	}
	if v, ok := Difference(candidate, baseline); ok {
		d.Difference = &v
	}
	return d
}

// Complete reports whether both sides were present.
func (d Delta) Complete() bool {
	return d.Baseline != nil && d.Candidate != nil
}

// Row compares one test name. Latency figures are lower-is-better, Bandwidth
// is higher-is-better; in both a positive ImprovementPct favours the candidate.
type Row struct {
	Test         config.Test `json:"test"`
	HasBaseline  bool        `json:"has_baseline"`
	HasCandidate bool        `json:"has_candidate"`
	Latency      Delta       `json:"latency_us"`
	Jitter       Delta       `json:"jitter_us"`
	MinLatency   Delta       `json:"min_latency_us"`
	MaxLatency   Delta       `json:"max_latency_us"`
	Bandwidth    Delta       `json:"bandwidth_mbps"`
}

// Paired reports whether both runs produced a record for the test.
func (r Row) Paired() bool {
	return r.HasBaseline && r.HasCandidate
}

// Report is the full comparison of a baseline run (dual board) against a
// candidate run (single board).
type Report struct {
	BaselineLabel  string   `json:"baseline_label"`
	CandidateLabel string   `json:"candidate_label"`
	Rows           []Row    `json:"rows"`
	Findings       Findings `json:"findings"`
}

// Findings are the headline numbers of the comparison. MeanImprovementTests
// counts the ping-pong rows averaged into MeanImprovement; PairedTests counts
// every row loaded on both sides.
type Findings struct {
	DefaultTest          string   `json:"default_test,omitempty"`
	DefaultLatency       Delta    `json:"default_latency_us"`
	ThroughputTest       string   `json:"throughput_test,omitempty"`
	ThroughputMbps       Delta    `json:"throughput_mbps"`
	MeanImprovement      *float64 `json:"mean_latency_improvement_pct,omitempty"`
	MeanImprovementTests int      `json:"mean_latency_improvement_tests"`
	PairedTests          int      `json:"paired_tests"`
}

// Compare pairs the runs by test name in the order of tests.
func Compare(baseline, candidate *loader.Run, tests []config.Test) Report {
	report := Report{
		BaselineLabel:  runLabel(baseline),
		CandidateLabel: runLabel(candidate),
		Rows:           make([]Row, 0, len(tests)),
	}

	var improvementSum float64
	var improvementN int
	for _, test := range tests {
		b, hasB := baseline.Get(test.Name)
		c, hasC := candidate.Get(test.Name)
		row := Row{
			Test:         test,
			HasBaseline:  hasB,
			HasCandidate: hasC,
			Latency:      newDelta(b.AvgLatencyUs, c.AvgLatencyUs),
			Jitter:       newDelta(b.JitterUs, c.JitterUs),
			MinLatency:   newDelta(b.MinLatencyUs, c.MinLatencyUs),
			MaxLatency:   newDelta(b.MaxLatencyUs, c.MaxLatencyUs),
			Bandwidth:    newGainDelta(b.BandwidthMbps, c.BandwidthMbps),
		}
		report.Rows = append(report.Rows, row)
		if row.Paired() {
			report.Findings.PairedTests++
		}
		if test.Kind == config.KindPingPong && row.Latency.ImprovementPct != nil {
			improvementSum += *row.Latency.ImprovementPct
			improvementN++
		}
	}
	if improvementN > 0 {
		mean := improvementSum / float64(improvementN)
		report.Findings.MeanImprovement = &mean
		report.Findings.MeanImprovementTests = improvementN
	}

	if test, ok := firstOfKind(tests, config.KindPingPong); ok {
		report.Findings.DefaultTest = test.Name
		report.Findings.DefaultLatency = report.row(test.Name).Latency
	}
	if test, ok := firstOfKind(tests, config.KindThroughput); ok {
		report.Findings.ThroughputTest = test.Name
		report.Findings.ThroughputMbps = report.row(test.Name).Bandwidth
	}
	return report
}

// Row returns the row for a test name.
func (r Report) Row(name string) (Row, bool) {
	for _, row := range r.Rows {
		if row.Test.Name == name {
			return row, true
		}
	}
	return Row{}, false
}

func (r Report) row(name string) Row {
	row, _ := r.Row(name)
	return row
}

// PingPongRows returns the rows of ping-pong tests, in suite order.
func (r Report) PingPongRows() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Test.Kind == config.KindPingPong {
			out = append(out, row)
		}
	}
	return out
}

func firstOfKind(tests []config.Test, kind string) (config.Test, bool) {
	for _, t := range tests {
		if t.Kind == kind {
			return t, true
		}
	}
	return config.Test{}, false
}

func runLabel(r *loader.Run) string {
	if r == nil {
		return ""
	}
	return r.Label
}

// Metrics returns the two records of a test; absent sides are empty records.
func Metrics(baseline, candidate *loader.Run, name string) (sockperf.Metrics, sockperf.Metrics) {
	b, _ := baseline.Get(name)
	c, _ := candidate.Get(name)
	return b, c
}
