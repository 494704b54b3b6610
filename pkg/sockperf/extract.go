// Package sockperf turns the human-readable output of a sockperf run into a
// Metrics record. Extraction is pure: the same text always yields the same
// record, and text that matches nothing yields an empty one.
package sockperf

import (
	"io"
	"regexp"
	"strconv"
)

// Number grammar shared by every pattern. Floats are digits with an optional
// fractional part, so integer-valued figures such as "avg-latency=12" match
// as well; exponents are not part of sockperf output.
const (
	floatPat = `(\d+(?:\.\d+)?)`
	intPat   = `(\d+)`
)

var (
	// The std-dev value may be followed by ")" or by the extra dispersion
	// figures newer sockperf builds append (", mean-ad=...").
	avgLatencyRe  = regexp.MustCompile(`avg-latency\s*=\s*` + floatPat + `\s*\(\s*std-dev\s*=\s*` + floatPat + `\s*[),]`)
	percentileRe  = regexp.MustCompile(`percentile\s+` + floatPat + `\s*=\s*` + floatPat)
	minObsRe      = regexp.MustCompile(`<MIN>\s+observation\s*=\s*` + floatPat)
	maxObsRe      = regexp.MustCompile(`<MAX>\s+observation\s*=\s*` + floatPat)
	totalObsRe    = regexp.MustCompile(`Total\s+` + intPat + `\s+observations`)
	bandwidthRe   = regexp.MustCompile(`BandWidth\s+is\s+` + floatPat + `\s+MBps\s*\(\s*` + floatPat + `\s+Mbps\s*\)`)
	msgRateRe     = regexp.MustCompile(`Message\s+Rate\s+is\s+` + intPat)
	sentMsgsRe    = regexp.MustCompile(`SentMessages\s*=\s*` + intPat)
	receivedMsgRe = regexp.MustCompile(`ReceivedMessages\s*=\s*` + intPat)
)

// Extract scans a complete report and returns every metric it recognizes.
//
// Single-valued lines use their first occurrence. Percentile lines are
// accumulated in text order, so when the same marker appears twice the later
// value wins.
func Extract(text string) Metrics {
	var m Metrics
	extractLatency(text, &m)
	extractPercentiles(text, &m)
	extractRange(text, &m)
	extractThroughput(text, &m)
	extractMessages(text, &m)
	return m
}

// ExtractReader reads r to the end and extracts it. The only error returned
// is the reader's.
func ExtractReader(r io.Reader) (Metrics, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Metrics{}, err
	}
	return Extract(string(data)), nil
}

func extractLatency(text string, m *Metrics) {
	match := avgLatencyRe.FindStringSubmatch(text)
	if match == nil {
		return
	}
	avg, okAvg := parseFloat(match[1])
	std, okStd := parseFloat(match[2])
	if !okAvg || !okStd {
		return
	}
	m.AvgLatencyUs = &avg
	m.StdDevUs = &std
	jitter := std
	m.JitterUs = &jitter
}

func extractPercentiles(text string, m *Metrics) {
	matches := percentileRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return
	}
	pcts := make(Percentiles, len(matches))
	for _, match := range matches {
		marker, ok := parseFloat(match[1])
		if !ok {
			continue
		}
		val, ok := parseFloat(match[2])
		if !ok {
			continue
		}
		pcts[marker] = val
	}
	if len(pcts) > 0 {
		m.Percentiles = pcts
	}
}

func extractRange(text string, m *Metrics) {
	m.MinLatencyUs = findFloat(minObsRe, text)
	m.MaxLatencyUs = findFloat(maxObsRe, text)
	m.TotalObservations = findInt(totalObsRe, text)
}

func extractThroughput(text string, m *Metrics) {
	if match := bandwidthRe.FindStringSubmatch(text); match != nil {
		mbytes, okBytes := parseFloat(match[1])
		mbits, okBits := parseFloat(match[2])
		if okBytes && okBits {
			m.BandwidthMBps = &mbytes
			m.BandwidthMbps = &mbits
		}
	}
	m.MsgRate = findInt(msgRateRe, text)
}

func extractMessages(text string, m *Metrics) {
	m.SentMessages = findInt(sentMsgsRe, text)
	m.ReceivedMessages = findInt(receivedMsgRe, text)
	if m.SentMessages == nil || m.ReceivedMessages == nil {
		return
	}
	sent, received := *m.SentMessages, *m.ReceivedMessages
	if sent <= 0 {
		return
	}
	// (1 - received/sent) * 100, arranged so whole-number losses stay exact.
	loss := float64(sent-received) * 100 / float64(sent)
	m.PacketLossPct = &loss
}

func findFloat(re *regexp.Regexp, text string) *float64 {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	v, ok := parseFloat(match[1])
	if !ok {
		return nil
	}
	return &v
}

func findInt(re *regexp.Regexp, text string) *int64 {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	v, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
