package detect

import (
	"fmt"
	"sort"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

func init() {
	Register("portscan", func(cfg *config.AnalysisConfig) model.Detector {
		return &portScanDetector{cfg: cfg.PortScan}
	})
}

// portScanDetector flags sources that fan out to many distinct destination
// ports or hosts inside a bounded time window. Mostly very short flows
// corroborate the verdict; scanners rarely hold connections open.
type portScanDetector struct {
	cfg config.PortScanConfig
}

type scanProbe struct {
	at       time.Time
	dstAddr  string
	dstPort  uint16
	duration float64
	index    int
}

func (d *portScanDetector) Name() string { return "portscan" }

func (d *portScanDetector) Detect(table *model.FlowTable, _ []model.FeatureVector) ([]model.Finding, error) {
	if d.cfg.PortThreshold < 1 || d.cfg.AddrThreshold < 1 || d.cfg.WindowSeconds < 1 {
		return nil, fmt.Errorf("invalid thresholds: ports %d, addrs %d, window %ds",
			d.cfg.PortThreshold, d.cfg.AddrThreshold, d.cfg.WindowSeconds)
	}

	bySource := make(map[string][]scanProbe)
	for i := range table.Flows {
		flow := &table.Flows[i]
		bySource[flow.SrcAddr] = append(bySource[flow.SrcAddr], scanProbe{
			at:       flow.StartTime,
			dstAddr:  flow.DstAddr,
			dstPort:  flow.DstPort,
			duration: flow.Duration,
			index:    i,
		})
	}

	window := time.Duration(d.cfg.WindowSeconds) * time.Second
	var findings []model.Finding
	for src, probes := range bySource {
		if len(probes) <= d.cfg.PortThreshold && len(probes) <= d.cfg.AddrThreshold {
			continue
		}
		sort.Slice(probes, func(a, b int) bool { return probes[a].at.Before(probes[b].at) })

		ports, addrs, indexes, firstSeen := d.widestBurst(probes, window)
		if ports <= d.cfg.PortThreshold && addrs <= d.cfg.AddrThreshold {
			continue
		}

		shortFlows := 0
		for _, p := range probes {
			if p.duration < 1.0 {
				shortFlows++
			}
		}
		shortFrac := float64(shortFlows) / float64(len(probes))

		findings = append(findings, model.Finding{
			Detector:    d.Name(),
			Severity:    d.severity(ports, addrs, shortFrac),
			SrcAddr:     src,
			FlowIndexes: indexes,
			FirstSeen:   firstSeen,
			Description: fmt.Sprintf("port scan from %s: %d distinct ports on %d hosts within %ds (%.0f%% sub-second flows)",
				src, ports, addrs, d.cfg.WindowSeconds, shortFrac*100),
			Metrics: map[string]float64{
				"distinct_ports": float64(ports),
				"distinct_hosts": float64(addrs),
				"window_seconds": float64(d.cfg.WindowSeconds),
				"short_fraction": shortFrac,
			},
		})
	}

	return findings, nil
}

// widestBurst slides a window over the source's time-ordered probes and
// returns the stretch with the most distinct ports, together with its
// distinct host count, flow indexes, and start time.
func (d *portScanDetector) widestBurst(probes []scanProbe, window time.Duration) (ports, addrs int, indexes []int, firstSeen time.Time) {
	portSet := make(map[uint16]int)
	addrSet := make(map[string]int)
	left := 0
	bestLeft, bestRight := 0, 0

	for right := range probes {
		portSet[probes[right].dstPort]++
		addrSet[probes[right].dstAddr]++

		for probes[right].at.Sub(probes[left].at) > window {
			if portSet[probes[left].dstPort]--; portSet[probes[left].dstPort] == 0 {
				delete(portSet, probes[left].dstPort)
			}
			if addrSet[probes[left].dstAddr]--; addrSet[probes[left].dstAddr] == 0 {
				delete(addrSet, probes[left].dstAddr)
			}
			left++
		}

		if len(portSet) > ports {
			ports = len(portSet)
			addrs = len(addrSet)
			bestLeft, bestRight = left, right
		} else if len(portSet) == ports && len(addrSet) > addrs {
			addrs = len(addrSet)
			bestLeft, bestRight = left, right
		}
	}

	for _, p := range probes[bestLeft : bestRight+1] {
		indexes = append(indexes, p.index)
	}
	sort.Ints(indexes)
	firstSeen = probes[bestLeft].at
	return ports, addrs, indexes, firstSeen
}

// severity scales with the breadth of the burst and the share of
// short-lived flows backing it.
func (d *portScanDetector) severity(ports, addrs int, shortFrac float64) model.Severity {
	breadth := ports
	if addrs > breadth {
		breadth = addrs
	}
	threshold := d.cfg.PortThreshold
	if d.cfg.AddrThreshold < threshold {
		threshold = d.cfg.AddrThreshold
	}

	switch {
	case breadth >= 3*threshold && shortFrac >= 0.5:
		return model.SeverityCritical
	case breadth >= 3*threshold || (breadth >= 2*threshold && shortFrac >= 0.5):
		return model.SeverityHigh
	case breadth >= 2*threshold:
		return model.SeverityMedium
	}
	return model.SeverityLow
}
