package detect

import (
	"fmt"
	"sort"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

func init() {
	Register("beaconing", func(cfg *config.AnalysisConfig) model.Detector {
		return &beaconDetector{cfg: cfg.Beacon}
	})
}

// beaconDetector flags (src, dst) pairs whose inter-flow gaps are unusually
// regular. Periodic check-ins to a controller have low timing variance,
// where human or application-driven traffic does not; the coefficient of
// variation of the gaps is the regularity measure.
type beaconDetector struct {
	cfg config.BeaconConfig
}

type conversation struct {
	src, dst string
	times    []time.Time
	indexes  []int
}

func (d *beaconDetector) Name() string { return "beaconing" }

func (d *beaconDetector) Detect(table *model.FlowTable, _ []model.FeatureVector) ([]model.Finding, error) {
	if d.cfg.MinRepeats < 2 {
		return nil, fmt.Errorf("min_repeats %d must be at least 2", d.cfg.MinRepeats)
	}
	if d.cfg.CVThreshold <= 0 || d.cfg.CVThreshold > 1 {
		return nil, fmt.Errorf("cv_threshold %v outside (0, 1]", d.cfg.CVThreshold)
	}

	pairs := make(map[string]*conversation)
	for i := range table.Flows {
		flow := &table.Flows[i]
		key := flow.SrcAddr + "->" + flow.DstAddr
		conv, ok := pairs[key]
		if !ok {
			conv = &conversation{src: flow.SrcAddr, dst: flow.DstAddr}
			pairs[key] = conv
		}
		conv.times = append(conv.times, flow.StartTime)
		conv.indexes = append(conv.indexes, i)
	}

	var findings []model.Finding
	for _, conv := range pairs {
		if len(conv.times) < d.cfg.MinRepeats {
			continue
		}

		times := make([]time.Time, len(conv.times))
		copy(times, conv.times)
		sort.Slice(times, func(a, b int) bool { return times[a].Before(times[b]) })

		gaps := make([]float64, len(times)-1)
		for i := 1; i < len(times); i++ {
			gaps[i-1] = times[i].Sub(times[i-1]).Seconds()
		}

		mean, std := meanStd(gaps)
		if mean <= 0 {
			// All flows at the same instant is a burst, not a beacon.
			continue
		}

		cv := std / mean
		if cv >= d.cfg.CVThreshold {
			continue
		}

		findings = append(findings, model.Finding{
			Detector:    d.Name(),
			Severity:    d.severity(cv, len(conv.times)),
			SrcAddr:     conv.src,
			DstAddr:     conv.dst,
			FlowIndexes: conv.indexes,
			FirstSeen:   times[0],
			Description: fmt.Sprintf("beaconing from %s to %s: %d connections every %.1fs (cv %.3f)",
				conv.src, conv.dst, len(conv.times), mean, cv),
			Metrics: map[string]float64{
				"connections":  float64(len(conv.times)),
				"mean_gap_sec": mean,
				"gap_cv":       cv,
			},
		})
	}

	return findings, nil
}

// severity scales with regularity (lower cv) and with conversation count.
func (d *beaconDetector) severity(cv float64, count int) model.Severity {
	switch {
	case cv <= 0.05 && count >= 2*d.cfg.MinRepeats:
		return model.SeverityCritical
	case cv <= d.cfg.CVThreshold/3:
		return model.SeverityHigh
	case cv <= 2*d.cfg.CVThreshold/3:
		return model.SeverityMedium
	}
	return model.SeverityLow
}
