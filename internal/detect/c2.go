package detect

import (
	"fmt"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

func init() {
	Register("c2", func(cfg *config.AnalysisConfig) model.Detector {
		return &c2Detector{cfg: cfg.C2, ranges: cfg.InternalRanges}
	})
}

// c2Detector flags external destinations receiving frequent, small
// conversations: the shape of a control channel, not a payload transfer.
type c2Detector struct {
	cfg    config.C2Config
	ranges []string
}

type c2Candidate struct {
	dst        string
	firstSeen  time.Time
	totalBytes int64
	indexes    []int
	sources    map[string]struct{}
}

func (d *c2Detector) Name() string { return "c2" }

func (d *c2Detector) Detect(table *model.FlowTable, _ []model.FeatureVector) ([]model.Finding, error) {
	if d.cfg.MinConversations < 1 || d.cfg.MaxAvgBytes <= 0 {
		return nil, fmt.Errorf("invalid thresholds: min_conversations %d, max_avg_bytes %v",
			d.cfg.MinConversations, d.cfg.MaxAvgBytes)
	}
	prefixes, err := parsePrefixes(d.ranges)
	if err != nil {
		return nil, err
	}

	// Small external conversations grouped by destination. The 1000-byte
	// pre-filter keeps ordinary bulk downloads out of the candidate set.
	candidates := make(map[string]*c2Candidate)
	for i := range table.Flows {
		flow := &table.Flows[i]
		if flow.Bytes >= 1000 || !isExternal(flow.DstAddr, prefixes) {
			continue
		}
		cand, ok := candidates[flow.DstAddr]
		if !ok {
			cand = &c2Candidate{dst: flow.DstAddr, firstSeen: flow.StartTime, sources: make(map[string]struct{})}
			candidates[flow.DstAddr] = cand
		}
		cand.totalBytes += flow.Bytes
		cand.indexes = append(cand.indexes, i)
		cand.sources[flow.SrcAddr] = struct{}{}
		if flow.StartTime.Before(cand.firstSeen) {
			cand.firstSeen = flow.StartTime
		}
	}

	var findings []model.Finding
	for _, cand := range candidates {
		count := len(cand.indexes)
		if count <= d.cfg.MinConversations {
			continue
		}
		avgBytes := float64(cand.totalBytes) / float64(count)
		if avgBytes >= d.cfg.MaxAvgBytes {
			continue
		}

		findings = append(findings, model.Finding{
			Detector:    d.Name(),
			Severity:    d.severity(count),
			DstAddr:     cand.dst,
			FlowIndexes: cand.indexes,
			FirstSeen:   cand.firstSeen,
			Description: fmt.Sprintf("potential C2 server %s: %d small conversations (avg %.0f bytes) from %d hosts",
				cand.dst, count, avgBytes, len(cand.sources)),
			Metrics: map[string]float64{
				"conversations": float64(count),
				"avg_bytes":     avgBytes,
				"client_hosts":  float64(len(cand.sources)),
			},
		})
	}

	return findings, nil
}

// severity scales with how far the conversation count exceeds the floor.
func (d *c2Detector) severity(count int) model.Severity {
	switch {
	case count >= 10*d.cfg.MinConversations:
		return model.SeverityCritical
	case count >= 4*d.cfg.MinConversations:
		return model.SeverityHigh
	case count >= 2*d.cfg.MinConversations:
		return model.SeverityMedium
	}
	return model.SeverityLow
}
