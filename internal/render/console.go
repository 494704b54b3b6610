package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/saveenergy/sockreport/internal/comparison"
	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/grade"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

const schemaVersion = "1.0"

// Formatter writes console reports. Only present fields are printed.
type Formatter interface {
	FormatSummary(run *loader.Run) error
	FormatComparison(report comparison.Report) error
}

type JSONFormatter struct {
	writer io.Writer
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

type PlainFormatter struct {
	writer io.Writer
}

func NewPlainFormatter(w io.Writer) *PlainFormatter {
	return &PlainFormatter{writer: w}
}

type InteractiveFormatter struct {
	writer  io.Writer
	noColor bool
}

func NewInteractiveFormatter(w io.Writer, noColor bool) *InteractiveFormatter {
	return &InteractiveFormatter{writer: w, noColor: noColor}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewFormatter picks a formatter by name ("json", "plain" or "interactive").
// Interactive output falls back to plain when w is not a terminal.
func NewFormatter(format string, w io.Writer, isTTY, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONFormatter(w), nil
	case "plain":
		return NewPlainFormatter(w), nil
	case "interactive", "":
		if !isTTY {
			return NewPlainFormatter(w), nil
		}
		return NewInteractiveFormatter(w, noColor), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want interactive, plain or json)", format)
	}
}

// SummaryResult is one test of the JSON summary.
type SummaryResult struct {
	Test           string                `json:"test"`
	Kind           string                `json:"kind"`
	Path           string                `json:"path"`
	Metrics        sockperf.Metrics      `json:"metrics"`
	Interpretation *grade.Interpretation `json:"interpretation,omitempty"`
}

// MissingReport names a test whose report file was absent.
type MissingReport struct {
	Test string `json:"test"`
	Path string `json:"path"`
}

// SummaryDocument is the JSON form of an analysed run.
type SummaryDocument struct {
	SchemaVersion string          `json:"schema_version"`
	Label         string          `json:"label"`
	Results       []SummaryResult `json:"results"`
	Missing       []MissingReport `json:"missing"`
}

// NewSummaryDocument converts a run for JSON output.
func NewSummaryDocument(run *loader.Run) SummaryDocument {
	doc := SummaryDocument{SchemaVersion: schemaVersion, Results: []SummaryResult{}, Missing: []MissingReport{}}
	if run == nil {
		return doc
	}
	doc.Label = run.Label
	for _, r := range run.Results {
		res := SummaryResult{Test: r.Test.Name, Kind: r.Test.Kind, Path: r.Path, Metrics: r.Metrics}
		if !r.Empty() {
			res.Interpretation = grade.Interpret(r.Metrics)
		}
		doc.Results = append(doc.Results, res)
	}
	for _, m := range run.Missing {
		doc.Missing = append(doc.Missing, MissingReport{Test: m.Test.Name, Path: m.Path})
	}
	return doc
}

// ComparisonDocument is the JSON form of a comparison.
type ComparisonDocument struct {
	SchemaVersion string `json:"schema_version"`
	comparison.Report
}

func (f *JSONFormatter) FormatSummary(run *loader.Run) error {
	return encodeJSON(f.writer, NewSummaryDocument(run))
}

func (f *JSONFormatter) FormatComparison(report comparison.Report) error {
	return encodeJSON(f.writer, ComparisonDocument{SchemaVersion: schemaVersion, Report: report})
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// metricLine is one printable field of a record.
type metricLine struct {
	key   string
	label string
	value string
}

// metricLines lists the present fields of m in report order.
func metricLines(m sockperf.Metrics) []metricLine {
	var lines []metricLine
	addF := func(key, label string, v *float64, format string) {
		if v != nil {
			lines = append(lines, metricLine{key, label, fmt.Sprintf(format, *v)})
		}
	}
	addI := func(key, label string, v *int64) {
		if v != nil {
			lines = append(lines, metricLine{key, label, formatNumber(*v)})
		}
	}
	addF("avg_latency_us", "Avg latency", m.AvgLatencyUs, "%.3f µs")
	addF("jitter_us", "Jitter (std-dev)", m.JitterUs, "%.3f µs")
	addF("min_latency_us", "Min latency", m.MinLatencyUs, "%.3f µs")
	addF("max_latency_us", "Max latency", m.MaxLatencyUs, "%.3f µs")
	for _, k := range m.PercentileKeys() {
		v := m.Percentiles[k]
		marker := sockperf.FormatMarker(k)
		lines = append(lines, metricLine{"p" + marker + "_us", "p" + marker, fmt.Sprintf("%.3f µs", v)})
	}
	addI("total_observations", "Observations", m.TotalObservations)
	addF("bandwidth_mbps", "Bandwidth", m.BandwidthMbps, "%.3f Mbps")
	addF("bandwidth_MBps", "Bandwidth", m.BandwidthMBps, "%.3f MBps")
	addI("msg_rate", "Message rate", m.MsgRate)
	addI("sent_messages", "Sent", m.SentMessages)
	addI("received_messages", "Received", m.ReceivedMessages)
	addF("packet_loss_pct", "Packet loss", m.PacketLossPct, "%.3f%%")
	return lines
}

// plainValue drops the unit suffix for key=value output.
func plainValue(v string) string {
	v = strings.ReplaceAll(v, ",", "")
	if i := strings.IndexByte(v, ' '); i >= 0 {
		return v[:i]
	}
	return strings.TrimSuffix(v, "%")
}

func plainKey(test string) string {
	r := strings.NewReplacer(" ", "_", "(", "", ")", "", "-", "_")
	return strings.ToLower(r.Replace(test))
}

func (f *PlainFormatter) FormatSummary(run *loader.Run) error {
	if run == nil {
		return nil
	}
	fmt.Fprintf(f.writer, "label=%s\n", plainKey(run.Label))
	for _, r := range run.Results {
		prefix := plainKey(r.Test.Name)
		if r.Empty() {
			fmt.Fprintf(f.writer, "%s.empty=true\n", prefix)
			continue
		}
		for _, l := range metricLines(r.Metrics) {
			fmt.Fprintf(f.writer, "%s.%s=%s\n", prefix, l.key, plainValue(l.value))
		}
		fmt.Fprintf(f.writer, "%s.grade=%s\n", prefix, grade.Interpret(r.Metrics).Grade)
	}
	for _, m := range run.Missing {
		fmt.Fprintf(f.writer, "%s.missing=%s\n", plainKey(m.Test.Name), m.Path)
	}
	return nil
}

func (f *PlainFormatter) FormatComparison(report comparison.Report) error {
	for _, row := range report.Rows {
		prefix := plainKey(row.Test.Name)
		if !row.Paired() {
			fmt.Fprintf(f.writer, "%s.paired=false\n", prefix)
			continue
		}
		writeDelta(f.writer, prefix+".latency", row.Latency)
		writeDelta(f.writer, prefix+".jitter", row.Jitter)
		writeDelta(f.writer, prefix+".bandwidth", row.Bandwidth)
	}
	fmt.Fprintf(f.writer, "paired_tests=%d\n", report.Findings.PairedTests)
	if v := report.Findings.MeanImprovement; v != nil {
		fmt.Fprintf(f.writer, "mean_latency_improvement_pct=%.2f\n", *v)
		fmt.Fprintf(f.writer, "mean_latency_improvement_tests=%d\n", report.Findings.MeanImprovementTests)
	}
	return nil
}

func writeDelta(w io.Writer, prefix string, d comparison.Delta) {
	if !d.Complete() {
		return
	}
	fmt.Fprintf(w, "%s.baseline=%.3f\n", prefix, *d.Baseline)
	fmt.Fprintf(w, "%s.candidate=%.3f\n", prefix, *d.Candidate)
	if d.ImprovementPct != nil {
		fmt.Fprintf(w, "%s.improvement_pct=%.2f\n", prefix, *d.ImprovementPct)
	}
	fmt.Fprintf(w, "%s.difference=%.3f\n", prefix, *d.Difference)
}

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func (f *InteractiveFormatter) paint(code, s string) string {
	if f.noColor {
		return s
	}
	return code + s + ansiReset
}

func bandColor(b grade.Band) string {
	switch b {
	case grade.BandGood:
		return ansiGreen
	case grade.BandWarn:
		return ansiYellow
	default:
		return ansiRed
	}
}

func (f *InteractiveFormatter) FormatSummary(run *loader.Run) error {
	if run == nil {
		return nil
	}
	fmt.Fprintf(f.writer, "\n%s\n", f.paint(ansiBold, run.Label+" results"))
	for _, r := range run.Results {
		fmt.Fprintf(f.writer, "\n %s\n", f.paint(ansiCyan, r.Test.Name))
		if r.Empty() {
			fmt.Fprintln(f.writer, "  no recognizable metrics")
			continue
		}
		for _, l := range metricLines(r.Metrics) {
			value := l.value
			if l.key == "jitter_us" {
				value = f.paint(bandColor(grade.JitterBand(*r.Metrics.JitterUs)), value)
			}
			fmt.Fprintf(f.writer, "  %-17s %s\n", l.label+":", value)
		}
		interp := grade.Interpret(r.Metrics)
		fmt.Fprintf(f.writer, "  %-17s %s (%s)\n", "Grade:", f.paint(ansiBold, interp.Grade), interp.Summary)
		if len(interp.Concerns) > 0 {
			fmt.Fprintf(f.writer, "  %-17s %s\n", "Concerns:", f.paint(ansiYellow, strings.Join(interp.Concerns, ", ")))
		}
	}
	for _, m := range run.Missing {
		fmt.Fprintf(f.writer, "\n %s %s (%s)\n", f.paint(ansiRed, "✗ Missing"), m.Test.Name, m.Path)
	}
	return nil
}

func (f *InteractiveFormatter) FormatComparison(report comparison.Report) error {
	b, c := labelOr(report.BaselineLabel, "Dual"), labelOr(report.CandidateLabel, "Single")
	fmt.Fprintf(f.writer, "\n%s\n", f.paint(ansiBold, b+" vs "+c))

	f.deltaHeader("Latency (µs)", b, c)
	for _, row := range report.Rows {
		if row.Test.Kind != config.KindThroughput {
			f.deltaRow(row.Test.Name, row.Latency, "µs")
		}
	}
	f.deltaHeader("Jitter (µs)", b, c)
	for _, row := range report.PingPongRows() {
		f.deltaRow(row.Test.Name, row.Jitter, "µs")
	}
	var throughput []comparison.Row
	for _, row := range report.Rows {
		if row.Test.Kind == config.KindThroughput {
			throughput = append(throughput, row)
		}
	}
	if len(throughput) > 0 {
		f.deltaHeader("Throughput (Mbps)", b, c)
		for _, row := range throughput {
			f.deltaRow(row.Test.Name, row.Bandwidth, "Mbps")
		}
	}

	fd := report.Findings
	fmt.Fprintln(f.writer)
	if fd.DefaultLatency.ImprovementPct != nil {
		fmt.Fprintf(f.writer, " %s latency: %s is %.1f%% %s than %s\n", fd.DefaultTest, c,
			math.Abs(*fd.DefaultLatency.ImprovementPct), lowerOrHigher(*fd.DefaultLatency.ImprovementPct), b)
	}
	if d := fd.ThroughputMbps; d.Difference != nil {
		pct := ""
		if d.ImprovementPct != nil {
			pct = fmt.Sprintf(" (%+.1f%%)", *d.ImprovementPct)
		}
		fmt.Fprintf(f.writer, " %s: %s is %+.1f Mbps%s vs %s\n", labelOr(fd.ThroughputTest, "Throughput"), c, *d.Difference, pct, b)
	}
	if fd.MeanImprovement != nil {
		noun := "tests"
		if fd.MeanImprovementTests == 1 {
			noun = "test"
		}
		fmt.Fprintf(f.writer, " Mean ping-pong improvement: %+.1f%% over %d ping-pong %s\n", *fd.MeanImprovement, fd.MeanImprovementTests, noun)
	}
	return nil
}

func (f *InteractiveFormatter) deltaHeader(title, b, c string) {
	fmt.Fprintf(f.writer, "\n %-20s %12s %12s %12s %14s\n", title, b, c, "Improvement", "Difference")
}

// deltaRow prints one compared metric. The difference is printed as stored:
// baseline - candidate for latency, candidate - baseline for bandwidth.
func (f *InteractiveFormatter) deltaRow(name string, d comparison.Delta, unit string) {
	if !d.Complete() {
		fmt.Fprintf(f.writer, " %-20s %12s %12s\n", name, present(d.Baseline, unit), present(d.Candidate, unit))
		return
	}
	pct := "-"
	if d.ImprovementPct != nil {
		pct = f.paint(bandColor(grade.DeltaBand(*d.ImprovementPct)), fmt.Sprintf("%+11.1f%%", *d.ImprovementPct))
	}
	fmt.Fprintf(f.writer, " %-20s %12s %12s %12s %14s\n", name,
		present(d.Baseline, unit), present(d.Candidate, unit), pct, fmt.Sprintf("%+.2f %s", *d.Difference, unit))
}

func present(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", *v, unit)
}

func lowerOrHigher(improvementPct float64) string {
	if improvementPct >= 0 {
		return "lower"
	}
	return "higher"
}

func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	var out strings.Builder
	if n < 0 {
		out.WriteByte('-')
		s = s[1:]
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(r)
	}
	return out.String()
}
