package sockperf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Metrics is the normalized view of a single sockperf report. Every field is
// optional: a nil pointer (or an empty Percentiles map) means the report did
// not contain the corresponding line.
type Metrics struct {
	AvgLatencyUs *float64 `json:"avg_latency_us,omitempty"`
	StdDevUs     *float64 `json:"std_dev_us,omitempty"`
	// JitterUs always equals StdDevUs; sockperf does not report inter-arrival jitter.
	JitterUs *float64 `json:"jitter_us,omitempty"`

	Percentiles Percentiles `json:"percentiles,omitempty"`

	MinLatencyUs      *float64 `json:"min_latency_us,omitempty"`
	MaxLatencyUs      *float64 `json:"max_latency_us,omitempty"`
	TotalObservations *int64   `json:"total_observations,omitempty"`

	BandwidthMbps *float64 `json:"bandwidth_mbps,omitempty"`
	BandwidthMBps *float64 `json:"bandwidth_MBps,omitempty"`
	MsgRate       *int64   `json:"msg_rate,omitempty"`

	SentMessages     *int64   `json:"sent_messages,omitempty"`
	ReceivedMessages *int64   `json:"received_messages,omitempty"`
	PacketLossPct    *float64 `json:"packet_loss_pct,omitempty"`
}

// IsEmpty reports whether no pattern matched at all.
func (m Metrics) IsEmpty() bool {
	return m.AvgLatencyUs == nil &&
		m.StdDevUs == nil &&
		m.JitterUs == nil &&
		len(m.Percentiles) == 0 &&
		m.MinLatencyUs == nil &&
		m.MaxLatencyUs == nil &&
		m.TotalObservations == nil &&
		m.BandwidthMbps == nil &&
		m.BandwidthMBps == nil &&
		m.MsgRate == nil &&
		m.SentMessages == nil &&
		m.ReceivedMessages == nil &&
		m.PacketLossPct == nil
}

// HasLatency reports whether the ping-pong latency summary line was found.
func (m Metrics) HasLatency() bool {
	return m.AvgLatencyUs != nil
}

// HasThroughput reports whether any throughput figure was found.
func (m Metrics) HasThroughput() bool {
	return m.BandwidthMbps != nil || m.MsgRate != nil
}

// PercentileKeys returns the percentile markers in ascending order.
func (m Metrics) PercentileKeys() []float64 {
	return m.Percentiles.Keys()
}

// Percentiles maps a percentile marker (50, 99, 99.9, ...) to the latency
// observed at that percentile, in microseconds.
type Percentiles map[float64]float64

// Keys returns the markers sorted ascending. Consumers must iterate through
// Keys rather than ranging over the map.
func (p Percentiles) Keys() []float64 {
	keys := make([]float64, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

// Values returns the latencies in the order of Keys.
func (p Percentiles) Values() []float64 {
	keys := p.Keys()
	vals := make([]float64, len(keys))
	for i, k := range keys {
		vals[i] = p[k]
	}
	return vals
}

// MarshalJSON encodes the map as an object keyed by the shortest decimal form
// of each marker, ordered numerically.
func (p Percentiles) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(FormatMarker(k)))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(p[k], 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Percentiles) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = nil
		return nil
	}
	out := make(Percentiles, len(raw))
	for k, v := range raw {
		marker, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return fmt.Errorf("percentile marker %q: %w", k, err)
		}
		out[marker] = v
	}
	*p = out
	return nil
}

// FormatMarker renders a percentile marker the way reports print it (99.9, 50).
func FormatMarker(k float64) string {
	return strconv.FormatFloat(k, 'f', -1, 64)
}
