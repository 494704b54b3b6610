package comparison_test

import (
	"math"
	"testing"

	"github.com/samber/lo"
	"github.com/saveenergy/sockreport/internal/comparison"
	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

func TestImprovement(t *testing.T) {
	tests := []struct {
		name      string
		baseline  *float64
		candidate *float64
		want      float64
		wantOK    bool
	}{
		{name: "lower is better", baseline: lo.ToPtr(50.0), candidate: lo.ToPtr(40.0), want: 20, wantOK: true},
		{name: "regression", baseline: lo.ToPtr(40.0), candidate: lo.ToPtr(50.0), want: -25, wantOK: true},
		{name: "zero baseline", baseline: lo.ToPtr(0.0), candidate: lo.ToPtr(5.0)},
		{name: "missing baseline", candidate: lo.ToPtr(5.0)},
		{name: "missing candidate", baseline: lo.ToPtr(5.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := comparison.Improvement(tt.baseline, tt.candidate)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("improvement = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifference(t *testing.T) {
	if d, ok := comparison.Difference(lo.ToPtr(50.5), lo.ToPtr(40.25)); !ok || d != 10.25 {
		t.Fatalf("Difference = %v ok=%v", d, ok)
	}
	if _, ok := comparison.Difference(nil, lo.ToPtr(1.0)); ok {
		t.Fatal("expected missing baseline to be guarded")
	}
}

func pingPong(name string, payload int) config.Test {
	return config.Test{Name: name, File: name + ".txt", Kind: config.KindPingPong, PayloadBytes: payload}
}

func TestCompareGuardsMissingCounterparts(t *testing.T) {
	tests := []config.Test{
		pingPong(config.TestPingPongDefault, 14),
		pingPong(config.TestPingPong64, 64),
		{Name: config.TestThroughput, File: "tp.txt", Kind: config.KindThroughput},
	}
	dual := &loader.Run{Label: "Dual Board", Results: []loader.Result{
		{Test: tests[0], Metrics: sockperf.Metrics{AvgLatencyUs: lo.ToPtr(50.0), JitterUs: lo.ToPtr(20.0)}},
		{Test: tests[1], Metrics: sockperf.Metrics{AvgLatencyUs: lo.ToPtr(60.0), JitterUs: lo.ToPtr(18.0)}},
		{Test: tests[2], Metrics: sockperf.Metrics{BandwidthMbps: lo.ToPtr(900.0)}},
	}}
	single := &loader.Run{Label: "Single Board", Results: []loader.Result{
		{Test: tests[0], Metrics: sockperf.Metrics{AvgLatencyUs: lo.ToPtr(40.0), JitterUs: lo.ToPtr(15.0)}},
		{Test: tests[2], Metrics: sockperf.Metrics{BandwidthMbps: lo.ToPtr(950.0)}},
	}}

	report := comparison.Compare(dual, single, tests)
	if report.BaselineLabel != "Dual Board" || report.CandidateLabel != "Single Board" {
		t.Fatalf("labels = %q/%q", report.BaselineLabel, report.CandidateLabel)
	}
	if len(report.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(report.Rows))
	}

	def := report.Rows[0]
	if !def.Paired() || def.Latency.ImprovementPct == nil || *def.Latency.ImprovementPct != 20 {
		t.Fatalf("default row = %+v", def.Latency)
	}
	if def.Jitter.ImprovementPct == nil || *def.Jitter.ImprovementPct != 25 {
		t.Fatalf("default jitter improvement = %v", def.Jitter.ImprovementPct)
	}
	if def.MinLatency.Complete() {
		t.Fatal("min latency absent on both sides must not be complete")
	}

	row64, ok := report.Row(config.TestPingPong64)
	if !ok || row64.Paired() || row64.Latency.ImprovementPct != nil || row64.Latency.Difference != nil {
		t.Fatalf("unpaired row produced deltas: %+v", row64)
	}
	if row64.Latency.Baseline == nil || *row64.Latency.Baseline != 60 {
		t.Fatal("baseline side should still be reported")
	}

	f := report.Findings
	if f.PairedTests != 2 {
		t.Fatalf("paired = %d, want 2", f.PairedTests)
	}
	if f.DefaultTest != config.TestPingPongDefault || f.DefaultLatency.Difference == nil || *f.DefaultLatency.Difference != 10 {
		t.Fatalf("default finding = %+v", f.DefaultLatency)
	}
	if f.ThroughputMbps.Difference == nil || *f.ThroughputMbps.Difference != 50 {
		t.Fatalf("throughput difference = %v, want +50 (candidate - baseline)", f.ThroughputMbps.Difference)
	}
	if f.MeanImprovement == nil || *f.MeanImprovement != 20 || f.MeanImprovementTests != 1 {
		t.Fatalf("mean improvement = %v over %d, want 20 over 1 (only paired ping-pong rows)", f.MeanImprovement, f.MeanImprovementTests)
	}
	if len(report.PingPongRows()) != 2 {
		t.Fatalf("ping-pong rows = %d, want 2", len(report.PingPongRows()))
	}
}

func TestCompareBandwidthHigherIsBetter(t *testing.T) {
	tests := []config.Test{{Name: config.TestThroughput, File: "tp.txt", Kind: config.KindThroughput}}
	dual := &loader.Run{Results: []loader.Result{{Test: tests[0], Metrics: sockperf.Metrics{BandwidthMbps: lo.ToPtr(800.0)}}}}
	single := &loader.Run{Results: []loader.Result{{Test: tests[0], Metrics: sockperf.Metrics{BandwidthMbps: lo.ToPtr(960.0)}}}}

	bw := comparison.Compare(dual, single, tests).Rows[0].Bandwidth
	if bw.ImprovementPct == nil || math.Abs(*bw.ImprovementPct-20) > 1e-9 {
		t.Fatalf("bandwidth improvement = %v, want +20", bw.ImprovementPct)
	}
	if bw.Difference == nil || *bw.Difference != 160 {
		t.Fatalf("bandwidth difference = %v, want +160", bw.Difference)
	}

	bw = comparison.Compare(single, dual, tests).Rows[0].Bandwidth
	if bw.ImprovementPct == nil || *bw.ImprovementPct >= 0 || *bw.Difference != -160 {
		t.Fatalf("lower candidate bandwidth = %+v, want negative figures", bw)
	}
}

func TestMeanImprovementCountsOnlyPingPong(t *testing.T) {
	tests := []config.Test{
		pingPong(config.TestPingPongDefault, 14),
		{Name: config.TestUnderLoad, File: "ul.txt", Kind: config.KindUnderLoad},
		{Name: config.TestThroughput, File: "tp.txt", Kind: config.KindThroughput},
	}
	record := func(avg, mbps float64) sockperf.Metrics {
		return sockperf.Metrics{AvgLatencyUs: lo.ToPtr(avg), BandwidthMbps: lo.ToPtr(mbps)}
	}
	dual := &loader.Run{Results: []loader.Result{
		{Test: tests[0], Metrics: record(50, 0)},
		{Test: tests[1], Metrics: record(100, 0)},
		{Test: tests[2], Metrics: record(30, 900)},
	}}
	single := &loader.Run{Results: []loader.Result{
		{Test: tests[0], Metrics: record(40, 0)},
		{Test: tests[1], Metrics: record(50, 0)},
		{Test: tests[2], Metrics: record(15, 950)},
	}}

	f := comparison.Compare(dual, single, tests).Findings
	if f.PairedTests != 3 {
		t.Fatalf("paired = %d, want 3", f.PairedTests)
	}
	if f.MeanImprovementTests != 1 || f.MeanImprovement == nil || *f.MeanImprovement != 20 {
		t.Fatalf("mean = %v over %d, want 20 over 1", f.MeanImprovement, f.MeanImprovementTests)
	}
}

func TestCompareNilRuns(t *testing.T) {
	report := comparison.Compare(nil, nil, []config.Test{pingPong(config.TestPingPongDefault, 14)})
	if report.Rows[0].Paired() || report.Findings.MeanImprovement != nil {
		t.Fatalf("nil runs produced data: %+v", report)
	}
	b, c := comparison.Metrics(nil, nil, config.TestPingPongDefault)
	if !b.IsEmpty() || !c.IsEmpty() {
		t.Fatal("expected empty records for nil runs")
	}
}
