package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity ranks how urgent a finding is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity converts a severity name back to its value.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// MarshalJSON encodes the severity as its name so serialized results stay
// readable and stable across releases.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AnomalyRecord is the anomaly scorer's verdict for a single flow. Score
// follows the score_samples convention: lower means more anomalous. Records
// are aligned 1:1 with the flow table by FlowIndex.
type AnomalyRecord struct {
	FlowIndex int     `json:"flow_index"`
	Score     float64 `json:"score"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// Finding is one behavioral detection emitted by a detector. Findings are
// immutable once created.
type Finding struct {
	Detector    string             `json:"detector"`
	Severity    Severity           `json:"severity"`
	SrcAddr     string             `json:"src_addr,omitempty"`
	DstAddr     string             `json:"dst_addr,omitempty"`
	FlowIndexes []int              `json:"flow_indexes,omitempty"`
	FirstSeen   time.Time          `json:"first_seen"`
	Description string             `json:"description"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// ClusterSummary describes one behavior cluster: a dense group of flows with
// similar volume and timing characteristics. Noise flows belong to no cluster
// and are not summarized.
type ClusterSummary struct {
	ID               int             `json:"id"`
	Size             int             `json:"size"`
	AvgDurationSec   float64         `json:"avg_duration_seconds"`
	AvgBytes         float64         `json:"avg_bytes"`
	DominantProtocol Protocol        `json:"dominant_protocol"`
	LabelCounts      map[Label]int64 `json:"label_counts,omitempty"`
}

// AddrCount pairs an address with its flow count.
type AddrCount struct {
	Addr  string `json:"addr"`
	Flows int64  `json:"flows"`
}

// PortCount pairs a port with its flow count.
type PortCount struct {
	Port  uint16 `json:"port"`
	Flows int64  `json:"flows"`
}

// PairCount pairs a src->dst conversation with its flow count.
type PairCount struct {
	SrcAddr string `json:"src_addr"`
	DstAddr string `json:"dst_addr"`
	Flows   int64  `json:"flows"`
}

// TimelineBucket aggregates labeled malicious activity over one hour of the
// capture.
type TimelineBucket struct {
	Hour          time.Time `json:"hour"`
	Flows         int64     `json:"flows"`
	Bytes         int64     `json:"bytes"`
	UniqueSources int       `json:"unique_sources"`
}

// HourTraffic aggregates all traffic falling on one hour of the day,
// regardless of date.
type HourTraffic struct {
	Hour  int   `json:"hour"`
	Flows int64 `json:"flows"`
	Bytes int64 `json:"bytes"`
}

// ThreatIntel is the label-driven intelligence extracted from a scenario:
// which endpoints and ports the ground-truth labels implicate, when the
// labeled activity happened, and how traffic distributes over the day. The
// malicious sections are empty when the corpus carries no botnet/C&C labels.
type ThreatIntel struct {
	MaliciousSources      []AddrCount       `json:"malicious_sources,omitempty"`
	MaliciousDestinations []AddrCount       `json:"malicious_destinations,omitempty"`
	MaliciousDstPorts     []PortCount       `json:"malicious_dst_ports,omitempty"`
	MaliciousSrcPorts     []PortCount       `json:"malicious_src_ports,omitempty"`
	AttackTimeline        []TimelineBucket  `json:"attack_timeline,omitempty"`
	TopPairs              []PairCount       `json:"top_pairs,omitempty"`
	AvgBytesByLabel       map[Label]float64 `json:"avg_bytes_by_label,omitempty"`
	HourlyTraffic         []HourTraffic     `json:"hourly_traffic,omitempty"`
	PeakHours             []int             `json:"peak_hours,omitempty"`
}

// ComponentStatus records whether a sub-analysis ran.
type ComponentStatus string

const (
	StatusOK      ComponentStatus = "ok"
	StatusSkipped ComponentStatus = "skipped"
	StatusFailed  ComponentStatus = "failed"
)

// ComponentReport is the per-component outcome carried on every
// AnalysisResult, so callers can tell "no findings" apart from
// "detector did not run".
type ComponentReport struct {
	Status   ComponentStatus `json:"status"`
	Findings int             `json:"findings"`
	Detail   string          `json:"detail,omitempty"`
}

// Summary holds scenario-wide statistics computed directly from the flow
// table. It is always present, even when sub-analyses fail.
type Summary struct {
	FlowCount      int                `json:"flow_count"`
	TotalBytes     int64              `json:"total_bytes"`
	TotalPackets   int64              `json:"total_packets"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        time.Time          `json:"end_time"`
	DurationSec    float64            `json:"duration_seconds"`
	ProtocolCounts map[Protocol]int64 `json:"protocol_counts"`
	LabelCounts    map[Label]int64    `json:"label_counts,omitempty"`
	UniqueSrcAddrs int                `json:"unique_src_addrs"`
	UniqueDstAddrs int                `json:"unique_dst_addrs"`
	AvgDurationSec float64            `json:"avg_duration_seconds"`
	AvgPacketSize  float64            `json:"avg_packet_size"`
}

// AnalysisResult aggregates everything one analysis run produced for a
// scenario. It is owned by the orchestrator that created it and read-only
// to every consumer.
type AnalysisResult struct {
	Scenario    string                     `json:"scenario"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Summary     Summary                    `json:"summary"`
	Anomalies   []AnomalyRecord            `json:"anomalies"`
	Findings    []Finding                  `json:"findings"`
	Clusters    []ClusterSummary           `json:"clusters,omitempty"`
	ThreatIntel *ThreatIntel               `json:"threat_intel,omitempty"`
	Components  map[string]ComponentReport `json:"components"`
}

// AnomalyCount returns the number of flows flagged anomalous.
func (r *AnalysisResult) AnomalyCount() int {
	count := 0
	for _, rec := range r.Anomalies {
		if rec.IsAnomaly {
			count++
		}
	}
	return count
}

// FindingCounts returns the number of findings per detector.
func (r *AnalysisResult) FindingCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[f.Detector]++
	}
	return counts
}
