// Package grade rates sockperf metrics against fixed thresholds. The console
// report prints the ratings and the charts colour bars by Band.
package grade

import (
	"fmt"
	"strings"

	"github.com/saveenergy/sockreport/pkg/sockperf"
)

// Band is a traffic-light classification.
type Band int

const (
	BandGood Band = iota
	BandWarn
	BandBad
)

func (b Band) String() string {
	switch b {
	case BandGood:
		return "good"
	case BandWarn:
		return "warn"
	default:
		return "bad"
	}
}

// Hex returns the colour used for the band in charts and tables.
func (b Band) Hex() string {
	switch b {
	case BandGood:
		return "2ecc71"
	case BandWarn:
		return "f39c12"
	default:
		return "e74c3c"
	}
}

const (
	jitterGoodUs = 20.0
	jitterWarnUs = 25.0
)

// JitterBand classifies a jitter value in microseconds.
func JitterBand(jitterUs float64) Band {
	switch {
	case jitterUs < jitterGoodUs:
		return BandGood
	case jitterUs < jitterWarnUs:
		return BandWarn
	default:
		return BandBad
	}
}

// DeltaBand classifies a percentage improvement: positive is good.
func DeltaBand(improvementPct float64) Band {
	if improvementPct > 0 {
		return BandGood
	}
	return BandBad
}

// SignBand classifies a signed difference in any unit: positive is good, zero
// is neutral.
func SignBand(v float64) Band {
	switch {
	case v > 0:
		return BandGood
	case v == 0:
		return BandWarn
	default:
		return BandBad
	}
}

// Interpretation is the human/agent-readable reading of one record.
type Interpretation struct {
	Grade            string   `json:"grade"`
	Summary          string   `json:"summary"`
	LatencyRating    string   `json:"latency_rating"`
	StabilityRating  string   `json:"stability_rating"`
	ThroughputRating string   `json:"throughput_rating"`
	Concerns         []string `json:"concerns"`
}

// Interpret rates the fields present in m. Absent fields rate "unknown" and
// count as neutral in the grade.
func Interpret(m sockperf.Metrics) *Interpretation {
	interp := &Interpretation{
		LatencyRating:    rateLatency(m.AvgLatencyUs),
		StabilityRating:  rateStability(m.JitterUs, m.PacketLossPct),
		ThroughputRating: rateThroughput(m.BandwidthMbps),
		Concerns:         concerns(m),
	}
	interp.Grade = computeGrade(interp.LatencyRating, interp.StabilityRating, interp.ThroughputRating)
	interp.Summary = buildSummary(interp.Grade, m)
	return interp
}

func rateLatency(avgUs *float64) string {
	switch {
	case avgUs == nil:
		return "unknown"
	case *avgUs <= 50:
		return "excellent"
	case *avgUs <= 100:
		return "good"
	case *avgUs <= 500:
		return "fair"
	default:
		return "poor"
	}
}

func rateStability(jitterUs, lossPct *float64) string {
	if jitterUs == nil && lossPct == nil {
		return "unknown"
	}
	if lossPct != nil && *lossPct > 1 {
		return "unstable"
	}
	if jitterUs == nil {
		return "stable"
	}
	switch JitterBand(*jitterUs) {
	case BandGood:
		return "stable"
	case BandWarn:
		return "fair"
	default:
		return "degraded"
	}
}

func rateThroughput(mbps *float64) string {
	switch {
	case mbps == nil:
		return "unknown"
	case *mbps >= 900:
		return "line_rate"
	case *mbps >= 100:
		return "good"
	case *mbps >= 10:
		return "moderate"
	default:
		return "slow"
	}
}

func concerns(m sockperf.Metrics) []string {
	c := []string{}
	if m.AvgLatencyUs != nil && *m.AvgLatencyUs > 500 {
		c = append(c, "high_latency")
	}
	if m.JitterUs != nil && JitterBand(*m.JitterUs) == BandBad {
		c = append(c, "high_jitter")
	}
	if m.MaxLatencyUs != nil && m.AvgLatencyUs != nil && *m.AvgLatencyUs > 0 && *m.MaxLatencyUs > 10*(*m.AvgLatencyUs) {
		c = append(c, "latency_spikes")
	}
	if m.PacketLossPct != nil && *m.PacketLossPct > 0.1 {
		c = append(c, "packet_loss")
	}
	return c
}

var ratingScore = map[string]int{
	"excellent": 4,
	"line_rate": 4,
	"stable":    4,
	"good":      3,
	"fair":      2,
	"moderate":  2,
	"degraded":  1,
	"poor":      0,
	"slow":      0,
	"unstable":  0,
	"unknown":   2,
}

func computeGrade(latency, stability, throughput string) string {
	score := ratingScore[latency] + ratingScore[stability] + ratingScore[throughput]
	switch {
	case score >= 11:
		return "A"
	case score >= 9:
		return "B"
	case score >= 6:
		return "C"
	case score >= 3:
		return "D"
	default:
		return "F"
	}
}

var gradeDesc = map[string]string{
	"A": "Excellent",
	"B": "Good",
	"C": "Fair",
	"D": "Poor",
	"F": "Very poor",
}

func buildSummary(grade string, m sockperf.Metrics) string {
	parts := []string{}
	if m.AvgLatencyUs != nil {
		parts = append(parts, fmt.Sprintf("%.1fµs latency", *m.AvgLatencyUs))
	}
	if m.JitterUs != nil {
		parts = append(parts, fmt.Sprintf("%.1fµs jitter", *m.JitterUs))
	}
	if m.BandwidthMbps != nil {
		parts = append(parts, fmt.Sprintf("%.0f Mbps", *m.BandwidthMbps))
	}
	if m.PacketLossPct != nil {
		parts = append(parts, fmt.Sprintf("%.3f%% loss", *m.PacketLossPct))
	}

	summary := gradeDesc[grade] + " link"
	if len(parts) > 0 {
		summary += ": " + strings.Join(parts, ", ")
	}
	return summary
}
