package grade_test

import (
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/saveenergy/sockreport/pkg/grade"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

func TestJitterBand(t *testing.T) {
	tests := []struct {
		jitter float64
		want   grade.Band
	}{
		{jitter: 0, want: grade.BandGood},
		{jitter: 19.99, want: grade.BandGood},
		{jitter: 20, want: grade.BandWarn},
		{jitter: 24.9, want: grade.BandWarn},
		{jitter: 25, want: grade.BandBad},
		{jitter: 300, want: grade.BandBad},
	}
	for _, tt := range tests {
		if got := grade.JitterBand(tt.jitter); got != tt.want {
			t.Errorf("JitterBand(%v) = %v, want %v", tt.jitter, got, tt.want)
		}
	}
}

func TestBandHex(t *testing.T) {
	if grade.BandGood.Hex() != "2ecc71" || grade.BandWarn.Hex() != "f39c12" || grade.BandBad.Hex() != "e74c3c" {
		t.Fatal("unexpected band colours")
	}
}

func TestDeltaBand(t *testing.T) {
	if grade.DeltaBand(3.2) != grade.BandGood {
		t.Error("positive improvement should be good")
	}
	if grade.DeltaBand(0) != grade.BandBad || grade.DeltaBand(-1) != grade.BandBad {
		t.Error("non-positive improvement should be bad")
	}
}

func TestSignBand(t *testing.T) {
	tests := []struct {
		v    float64
		want grade.Band
	}{
		{12.5, grade.BandGood},
		{0, grade.BandWarn},
		{-0.25, grade.BandBad},
	}
	for _, tt := range tests {
		if got := grade.SignBand(tt.v); got != tt.want {
			t.Fatalf("SignBand(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestInterpretEmptyRecordIsNeutral(t *testing.T) {
	interp := grade.Interpret(sockperf.Metrics{})
	if interp.LatencyRating != "unknown" || interp.StabilityRating != "unknown" || interp.ThroughputRating != "unknown" {
		t.Fatalf("ratings = %+v, want all unknown", interp)
	}
	if interp.Grade != "C" {
		t.Errorf("grade = %s, want C for all-unknown", interp.Grade)
	}
	if len(interp.Concerns) != 0 {
		t.Errorf("concerns = %v, want none", interp.Concerns)
	}
	if interp.Summary != "Fair link" {
		t.Errorf("summary = %q", interp.Summary)
	}
}

func TestInterpretFastStableLink(t *testing.T) {
	m := sockperf.Metrics{
		AvgLatencyUs:  lo.ToPtr(12.0),
		StdDevUs:      lo.ToPtr(2.0),
		JitterUs:      lo.ToPtr(2.0),
		BandwidthMbps: lo.ToPtr(950.0),
		PacketLossPct: lo.ToPtr(0.0),
	}
	interp := grade.Interpret(m)
	if interp.Grade != "A" {
		t.Fatalf("grade = %s, want A (%+v)", interp.Grade, interp)
	}
	if !strings.Contains(interp.Summary, "12.0µs latency") || !strings.Contains(interp.Summary, "950 Mbps") {
		t.Errorf("summary = %q", interp.Summary)
	}
}

func TestInterpretConcerns(t *testing.T) {
	m := sockperf.Metrics{
		AvgLatencyUs:  lo.ToPtr(600.0),
		JitterUs:      lo.ToPtr(40.0),
		MaxLatencyUs:  lo.ToPtr(9000.0),
		PacketLossPct: lo.ToPtr(2.5),
	}
	interp := grade.Interpret(m)
	want := []string{"high_latency", "high_jitter", "latency_spikes", "packet_loss"}
	if strings.Join(interp.Concerns, ",") != strings.Join(want, ",") {
		t.Fatalf("concerns = %v, want %v", interp.Concerns, want)
	}
	if interp.StabilityRating != "unstable" {
		t.Errorf("stability = %s, want unstable", interp.StabilityRating)
	}
	if interp.Grade != "F" && interp.Grade != "D" {
		t.Errorf("grade = %s, want D or F", interp.Grade)
	}
}

func TestInterpretStabilityFromJitterOnly(t *testing.T) {
	tests := []struct {
		jitter float64
		want   string
	}{
		{jitter: 5, want: "stable"},
		{jitter: 22, want: "fair"},
		{jitter: 30, want: "degraded"},
	}
	for _, tt := range tests {
		interp := grade.Interpret(sockperf.Metrics{JitterUs: lo.ToPtr(tt.jitter)})
		if interp.StabilityRating != tt.want {
			t.Errorf("jitter %v: stability = %s, want %s", tt.jitter, interp.StabilityRating, tt.want)
		}
	}
}
