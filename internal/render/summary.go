package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/grade"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

// Summary builds the 2×3 single-run dashboard.
func Summary(run *loader.Run, title, subtitle string) Dashboard {
	pingPong := run.OfKind(config.KindPingPong)
	return Dashboard{
		Title:    title,
		Subtitle: subtitle,
		Cols:     3,
		Panels: []Panel{
			latencyBySizePanel(pingPong),
			percentilePanel("Latency Percentiles", percentileSources(pingPong)),
			jitterPanel(run),
			rangePanel(pingPong),
			throughputPanel(run),
			summaryTable(run),
		},
	}
}

func latencyBySizePanel(results []loader.Result) Panel {
	sized := lo.Filter(results, func(r loader.Result, _ int) bool {
		return r.Test.PayloadBytes > 0 && r.Metrics.AvgLatencyUs != nil
	})
	sort.SliceStable(sized, func(i, j int) bool { return sized[i].Test.PayloadBytes < sized[j].Test.PayloadBytes })

	p := linePanel{title: "Latency vs Message Size", xName: "Message size", yName: "Latency (µs)"}
	var avg, upper, lower seriesLine
	avg = seriesLine{name: "Avg", style: lineStyle(colorAccent)}
	upper = seriesLine{name: "Avg + jitter", style: dashed(colorBaseline)}
	lower = seriesLine{name: "Avg - jitter", style: dashed(colorCandidate)}
	for i, r := range sized {
		p.xLabels = append(p.xLabels, strconv.Itoa(r.Test.PayloadBytes)+"B")
		x := float64(i)
		a := *r.Metrics.AvgLatencyUs
		avg.xs, avg.ys = append(avg.xs, x), append(avg.ys, a)
		if r.Metrics.JitterUs != nil {
			j := *r.Metrics.JitterUs
			upper.xs, upper.ys = append(upper.xs, x), append(upper.ys, a+j)
			lower.xs, lower.ys = append(lower.xs, x), append(lower.ys, a-j)
		}
	}
	p.series = []seriesLine{avg, upper, lower}
	return p
}

// percentileSource is one named percentile distribution.
type percentileSource struct {
	name  string
	p     sockperf.Percentiles
	color drawing.Color
}

// percentileSources picks the default test and the largest payload test.
func percentileSources(results []loader.Result) []percentileSource {
	withP := lo.Filter(results, func(r loader.Result, _ int) bool { return len(r.Metrics.Percentiles) > 0 })
	if len(withP) == 0 {
		return nil
	}
	out := []percentileSource{{name: shortLabel(withP[0].Test.Name), p: withP[0].Metrics.Percentiles, color: colorAccent}}
	largest := lo.MaxBy(withP, func(a, b loader.Result) bool { return a.Test.PayloadBytes > b.Test.PayloadBytes })
	if largest.Test.Name != withP[0].Test.Name {
		out = append(out, percentileSource{name: shortLabel(largest.Test.Name), p: largest.Metrics.Percentiles, color: colorPurple})
	}
	return out
}

// percentilePanel plots distributions over the union of their markers.
func percentilePanel(title string, sources []percentileSource) Panel {
	keySet := map[float64]struct{}{}
	for _, s := range sources {
		for k := range s.p {
			keySet[k] = struct{}{}
		}
	}
	keys := lo.Keys(keySet)
	sort.Float64s(keys)
	index := make(map[float64]int, len(keys))
	labels := make([]string, len(keys))
	for i, k := range keys {
		index[k] = i
		labels[i] = "p" + sockperf.FormatMarker(k)
	}

	p := linePanel{title: title, xName: "Percentile", yName: "Latency (µs)", xLabels: labels}
	for _, s := range sources {
		line := seriesLine{name: s.name, style: lineStyle(s.color)}
		for _, k := range s.p.Keys() {
			line.xs = append(line.xs, float64(index[k]))
			line.ys = append(line.ys, s.p[k])
		}
		p.series = append(p.series, line)
	}
	return p
}

func jitterPanel(run *loader.Run) Panel {
	p := barPanel{title: "Jitter by Test", yName: "Jitter (µs)", format: "%.2f"}
	if run == nil {
		return p
	}
	for _, r := range run.Results {
		if r.Metrics.JitterUs == nil {
			continue
		}
		j := *r.Metrics.JitterUs
		p.bars = append(p.bars, bar{
			label: shortLabel(r.Test.Name),
			value: j,
			color: drawing.ColorFromHex(grade.JitterBand(j).Hex()),
		})
	}
	return p
}

// rangePanel plots min, avg and max latency per ping-pong test; each series
// carries only the tests where that field is present.
func rangePanel(results []loader.Result) Panel {
	p := linePanel{title: "Min / Avg / Max Latency", yName: "Latency (µs)"}
	minL := seriesLine{name: "Min", style: pointStyle(colorCandidate)}
	avgL := seriesLine{name: "Avg", style: lineStyle(colorAccent)}
	maxL := seriesLine{name: "Max", style: pointStyle(colorBaseline)}
	for i, r := range results {
		p.xLabels = append(p.xLabels, shortLabel(r.Test.Name))
		x := float64(i)
		appendPoint(&minL, x, r.Metrics.MinLatencyUs)
		appendPoint(&avgL, x, r.Metrics.AvgLatencyUs)
		appendPoint(&maxL, x, r.Metrics.MaxLatencyUs)
	}
	p.series = []seriesLine{minL, avgL, maxL}
	return p
}

func throughputPanel(run *loader.Run) Panel {
	p := barPanel{title: "Throughput", yName: "Mbps / k msg/s", format: "%.1f"}
	for _, r := range run.OfKind(config.KindThroughput) {
		if r.Metrics.BandwidthMbps != nil {
			p.bars = append(p.bars, bar{label: "Bandwidth (Mbps)", value: *r.Metrics.BandwidthMbps, color: colorAccent})
		}
		if r.Metrics.MsgRate != nil {
			p.bars = append(p.bars, bar{label: "Rate (k msg/s)", value: float64(*r.Metrics.MsgRate) / 1000, color: colorTeal})
		}
	}
	return p
}

func summaryTable(run *loader.Run) Panel {
	p := tablePanel{
		title:   "Summary",
		headers: []string{"Test", "Avg µs", "Jitter µs", "p99 µs", "Loss %", "Grade"},
	}
	if run == nil {
		return p
	}
	for _, r := range run.Results {
		m := r.Metrics
		g := "-"
		if !m.IsEmpty() {
			g = grade.Interpret(m).Grade
		}
		p.rows = append(p.rows, []string{
			shortLabel(r.Test.Name),
			formatFloat(m.AvgLatencyUs, 2),
			formatFloat(m.JitterUs, 2),
			formatFloat(percentile(m.Percentiles, 99), 2),
			formatFloat(m.PacketLossPct, 3),
			g,
		})
	}
	for _, miss := range run.Missing {
		p.rows = append(p.rows, []string{shortLabel(miss.Test.Name), "missing", "", "", "", ""})
	}
	return p
}

func appendPoint(s *seriesLine, x float64, v *float64) {
	if v == nil {
		return
	}
	s.xs = append(s.xs, x)
	s.ys = append(s.ys, *v)
}

func dashed(col drawing.Color) chart.Style {
	s := lineStyle(col)
	s.StrokeDashArray = []float64{5, 5}
	s.DotWidth = 3
	return s
}

// shortLabel trims "Ping-Pong (64B)" to "64B" so axis labels fit a tile.
func shortLabel(name string) string {
	if rest, ok := strings.CutPrefix(name, "Ping-Pong ("); ok {
		return strings.TrimSuffix(rest, ")")
	}
	return name
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func percentile(p sockperf.Percentiles, k float64) *float64 {
	v, ok := p[k]
	if !ok {
		return nil
	}
	return &v
}

func formatPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}
