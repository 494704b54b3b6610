package render

import (
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/saveenergy/sockreport/internal/comparison"
	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/grade"
)

// Comparison builds the 3×3 dashboard of a baseline run against a candidate.
// The runs supply the percentile distributions the report does not carry.
func Comparison(report comparison.Report, baseline, candidate *loader.Run, title, subtitle string) Dashboard {
	b, c := labelOr(report.BaselineLabel, "Dual"), labelOr(report.CandidateLabel, "Single")
	rows := report.PingPongRows()

	var underLoad comparison.Row
	for _, row := range report.Rows {
		if row.Test.Kind == config.KindUnderLoad {
			underLoad = row
			break
		}
	}

	var sources []percentileSource
	if name := report.Findings.DefaultTest; name != "" {
		bm, cm := comparison.Metrics(baseline, candidate, name)
		if len(bm.Percentiles) > 0 {
			sources = append(sources, percentileSource{name: b, p: bm.Percentiles, color: colorBaseline})
		}
		if len(cm.Percentiles) > 0 {
			sources = append(sources, percentileSource{name: c, p: cm.Percentiles, color: colorCandidate})
		}
	}

	return Dashboard{
		Title:    title,
		Subtitle: subtitle,
		Cols:     3,
		Panels: []Panel{
			pairedLinePanel("Average Latency: "+b+" vs "+c, "Latency (µs)", rows, b, c, func(r comparison.Row) comparison.Delta { return r.Latency }),
			pairedLinePanel("Jitter: "+b+" vs "+c, "Jitter (µs)", rows, b, c, func(r comparison.Row) comparison.Delta { return r.Jitter }),
			improvementPanel(rows),
			sideBySidePanel(report.Rows, b, c),
			rangeComparePanel(rows, b, c),
			percentilePanel("Percentiles: "+shortLabel(report.Findings.DefaultTest), sources),
			underLoadPanel(underLoad, b, c),
			differencePanel(rows),
			comparisonTable(report, b, c),
		},
	}
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func pairedLinePanel(title, yName string, rows []comparison.Row, b, c string, pick func(comparison.Row) comparison.Delta) Panel {
	p := linePanel{title: title, yName: yName}
	base := seriesLine{name: b, style: lineStyle(colorBaseline)}
	cand := seriesLine{name: c, style: lineStyle(colorCandidate)}
	for i, row := range rows {
		p.xLabels = append(p.xLabels, shortLabel(row.Test.Name))
		d := pick(row)
		appendPoint(&base, float64(i), d.Baseline)
		appendPoint(&cand, float64(i), d.Candidate)
	}
	p.series = []seriesLine{base, cand}
	return p
}

func improvementPanel(rows []comparison.Row) Panel {
	p := barPanel{title: "Latency Improvement (%)", yName: "Improvement (%)", format: "%+.1f%%"}
	for _, row := range rows {
		if row.Latency.ImprovementPct == nil {
			continue
		}
		v := *row.Latency.ImprovementPct
		p.bars = append(p.bars, bar{
			label: shortLabel(row.Test.Name),
			value: v,
			color: drawing.ColorFromHex(grade.DeltaBand(v).Hex()),
		})
	}
	return p
}

// sideBySidePanel interleaves baseline and candidate bars per test.
func sideBySidePanel(rows []comparison.Row, b, c string) Panel {
	p := barPanel{title: "Side-by-Side Latency", yName: "Latency (µs)", format: "%.1f"}
	for _, row := range rows {
		name := shortLabel(row.Test.Name)
		if row.Latency.Baseline != nil {
			p.bars = append(p.bars, bar{label: name + " " + initial(b), value: *row.Latency.Baseline, color: colorBaseline})
		}
		if row.Latency.Candidate != nil {
			p.bars = append(p.bars, bar{label: name + " " + initial(c), value: *row.Latency.Candidate, color: colorCandidate})
		}
	}
	return p
}

func rangeComparePanel(rows []comparison.Row, b, c string) Panel {
	p := linePanel{title: "Latency Range (Min / Avg / Max)", yName: "Latency (µs)"}
	bMin := seriesLine{name: b + " min", style: pointStyle(colorBaseline)}
	bAvg := seriesLine{name: b + " avg", style: lineStyle(colorBaseline)}
	bMax := seriesLine{name: b + " max", style: dashed(colorBaseline)}
	cMin := seriesLine{name: c + " min", style: pointStyle(colorCandidate)}
	cAvg := seriesLine{name: c + " avg", style: lineStyle(colorCandidate)}
	cMax := seriesLine{name: c + " max", style: dashed(colorCandidate)}
	for i, row := range rows {
		p.xLabels = append(p.xLabels, shortLabel(row.Test.Name))
		x := float64(i)
		appendPoint(&bMin, x, row.MinLatency.Baseline)
		appendPoint(&bAvg, x, row.Latency.Baseline)
		appendPoint(&bMax, x, row.MaxLatency.Baseline)
		appendPoint(&cMin, x, row.MinLatency.Candidate)
		appendPoint(&cAvg, x, row.Latency.Candidate)
		appendPoint(&cMax, x, row.MaxLatency.Candidate)
	}
	p.series = []seriesLine{bMin, bAvg, bMax, cMin, cAvg, cMax}
	return p
}

func underLoadPanel(row comparison.Row, b, c string) Panel {
	p := barPanel{title: "Under Load", yName: "µs", format: "%.1f"}
	metrics := []struct {
		name string
		d    comparison.Delta
	}{
		{"Avg", row.Latency},
		{"Jitter", row.Jitter},
		{"Min", row.MinLatency},
		{"Max", row.MaxLatency},
	}
	for _, m := range metrics {
		if m.d.Baseline != nil {
			p.bars = append(p.bars, bar{label: m.name + " " + initial(b), value: *m.d.Baseline, color: colorBaseline})
		}
		if m.d.Candidate != nil {
			p.bars = append(p.bars, bar{label: m.name + " " + initial(c), value: *m.d.Candidate, color: colorCandidate})
		}
	}
	return p
}

func differencePanel(rows []comparison.Row) Panel {
	p := barPanel{title: "Latency Difference (µs)", yName: "Baseline - candidate (µs)", format: "%+.2f"}
	for _, row := range rows {
		if row.Latency.Difference == nil {
			continue
		}
		v := *row.Latency.Difference
		p.bars = append(p.bars, bar{
			label: shortLabel(row.Test.Name),
			value: v,
			color: drawing.ColorFromHex(grade.SignBand(v).Hex()),
		})
	}
	return p
}

func comparisonTable(report comparison.Report, b, c string) Panel {
	p := tablePanel{
		title:        "Comparison Summary (µs, throughput Mbps)",
		headers:      []string{"Test", b, c, "Diff %", "Diff"},
		highlightCol: 3,
	}
	for _, row := range report.Rows {
		if !row.HasBaseline && !row.HasCandidate {
			continue
		}
		d := row.Latency
		if row.Test.Kind == config.KindThroughput {
			d = row.Bandwidth
		}
		p.rows = append(p.rows, []string{
			shortLabel(row.Test.Name),
			formatFloat(d.Baseline, 2),
			formatFloat(d.Candidate, 2),
			formatPct(d.ImprovementPct),
			formatFloat(d.Difference, 2),
		})
	}
	return p
}

// initial is the first letter of a run label, used to tag interleaved bars.
func initial(label string) string {
	for _, r := range label {
		return string(r)
	}
	return ""
}
