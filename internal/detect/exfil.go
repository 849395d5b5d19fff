package detect

import (
	"fmt"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

func init() {
	Register("exfiltration", func(cfg *config.AnalysisConfig) model.Detector {
		return &exfilDetector{cfg: cfg.Exfil, ranges: cfg.InternalRanges}
	})
}

// exfilDetector flags source->destination pairs whose outbound byte volume
// sits above a percentile of the scenario's outbound-byte distribution AND
// whose destination is external. Internal/external classification comes
// from configuration, never inference.
type exfilDetector struct {
	cfg    config.ExfilConfig
	ranges []string
}

type exfilPair struct {
	src, dst  string
	firstSeen time.Time
	bytes     int64
	maxFlow   int64
	indexes   []int
}

func (d *exfilDetector) Name() string { return "exfiltration" }

func (d *exfilDetector) Detect(table *model.FlowTable, _ []model.FeatureVector) ([]model.Finding, error) {
	if d.cfg.Percentile <= 0 || d.cfg.Percentile >= 100 {
		return nil, fmt.Errorf("percentile %v outside (0, 100)", d.cfg.Percentile)
	}
	prefixes, err := parsePrefixes(d.ranges)
	if err != nil {
		return nil, err
	}

	outbound := make([]float64, table.Len())
	for i := range table.Flows {
		outbound[i] = float64(table.Flows[i].SrcBytes)
	}
	cutoff := percentile(outbound, d.cfg.Percentile)
	if cutoff <= 0 {
		// A scenario of empty flows has no meaningful volume baseline.
		return nil, nil
	}

	pairs := make(map[string]*exfilPair)
	for i := range table.Flows {
		flow := &table.Flows[i]
		// Volume exactly at the cutoff counts: a flow sitting on the
		// percentile value must not slip under it in tie-heavy data.
		if float64(flow.SrcBytes) < cutoff || !isExternal(flow.DstAddr, prefixes) {
			continue
		}
		key := flow.SrcAddr + "->" + flow.DstAddr
		pair, ok := pairs[key]
		if !ok {
			pair = &exfilPair{src: flow.SrcAddr, dst: flow.DstAddr, firstSeen: flow.StartTime}
			pairs[key] = pair
		}
		pair.bytes += flow.SrcBytes
		if flow.SrcBytes > pair.maxFlow {
			pair.maxFlow = flow.SrcBytes
		}
		pair.indexes = append(pair.indexes, i)
		if flow.StartTime.Before(pair.firstSeen) {
			pair.firstSeen = flow.StartTime
		}
	}

	var findings []model.Finding
	for _, pair := range pairs {
		ratio := float64(pair.maxFlow) / cutoff
		findings = append(findings, model.Finding{
			Detector:    d.Name(),
			Severity:    d.severity(ratio),
			SrcAddr:     pair.src,
			DstAddr:     pair.dst,
			FlowIndexes: pair.indexes,
			FirstSeen:   pair.firstSeen,
			Description: fmt.Sprintf("possible exfiltration from %s to external %s: %d bytes outbound over %d flows (%.1fx the p%.0f volume)",
				pair.src, pair.dst, pair.bytes, len(pair.indexes), ratio, d.cfg.Percentile),
			Metrics: map[string]float64{
				"outbound_bytes":   float64(pair.bytes),
				"flows":            float64(len(pair.indexes)),
				"cutoff_bytes":     cutoff,
				"volume_ratio":     ratio,
				"percentile_level": d.cfg.Percentile,
			},
		})
	}

	return findings, nil
}

// severity scales with how far outbound volume exceeds the percentile cutoff.
func (d *exfilDetector) severity(ratio float64) model.Severity {
	switch {
	case ratio >= 10:
		return model.SeverityCritical
	case ratio >= 4:
		return model.SeverityHigh
	case ratio >= 2:
		return model.SeverityMedium
	}
	return model.SeverityLow
}
