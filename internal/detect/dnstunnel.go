package detect

import (
	"fmt"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

func init() {
	Register("dnstunnel", func(cfg *config.AnalysisConfig) model.Detector {
		return &dnsTunnelDetector{cfg: cfg.DNS}
	})
}

// dnsTunnelDetector restricts to flows on the DNS port and flags sources
// whose query volume or mean payload size is far above the scenario's DNS
// baseline, or who hammer a single resolver with high volume. Ordinary
// resolution traffic is small, bursty, and spread across few-but-plural
// resolvers; tunnels are big, sustained, and single-homed.
type dnsTunnelDetector struct {
	cfg config.DNSConfig
}

type dnsClient struct {
	src        string
	firstSeen  time.Time
	queries    int
	totalBytes int64
	resolvers  map[string]struct{}
	indexes    []int
}

func (d *dnsTunnelDetector) Name() string { return "dnstunnel" }

func (d *dnsTunnelDetector) Detect(table *model.FlowTable, _ []model.FeatureVector) ([]model.Finding, error) {
	if d.cfg.Port == 0 || d.cfg.MaxAvgBytes <= 0 || d.cfg.MaxQueries < 1 {
		return nil, fmt.Errorf("invalid thresholds: port %d, max_avg_bytes %v, max_queries %d",
			d.cfg.Port, d.cfg.MaxAvgBytes, d.cfg.MaxQueries)
	}

	clients := make(map[string]*dnsClient)
	var dnsFlows, dnsBytes int64
	for i := range table.Flows {
		flow := &table.Flows[i]
		if flow.DstPort != d.cfg.Port {
			continue
		}
		dnsFlows++
		dnsBytes += flow.Bytes

		client, ok := clients[flow.SrcAddr]
		if !ok {
			client = &dnsClient{src: flow.SrcAddr, firstSeen: flow.StartTime, resolvers: make(map[string]struct{})}
			clients[flow.SrcAddr] = client
		}
		client.queries++
		client.totalBytes += flow.Bytes
		client.resolvers[flow.DstAddr] = struct{}{}
		client.indexes = append(client.indexes, i)
		if flow.StartTime.Before(client.firstSeen) {
			client.firstSeen = flow.StartTime
		}
	}
	if dnsFlows == 0 {
		return nil, nil
	}

	baseline := float64(dnsBytes) / float64(dnsFlows)

	var findings []model.Finding
	for _, client := range clients {
		avgBytes := float64(client.totalBytes) / float64(client.queries)

		bigPayloads := avgBytes > d.cfg.MaxAvgBytes
		floodQueries := client.queries > d.cfg.MaxQueries
		lowDiversity := client.queries >= d.cfg.LowDiversityQueries &&
			len(client.resolvers) == 1 && avgBytes > baseline

		if !bigPayloads && !floodQueries && !lowDiversity {
			continue
		}

		findings = append(findings, model.Finding{
			Detector:    d.Name(),
			Severity:    d.severity(avgBytes, client.queries, lowDiversity),
			SrcAddr:     client.src,
			FlowIndexes: client.indexes,
			FirstSeen:   client.firstSeen,
			Description: fmt.Sprintf("suspicious DNS traffic from %s: %d queries averaging %.0f bytes across %d resolvers (scenario baseline %.0f bytes)",
				client.src, client.queries, avgBytes, len(client.resolvers), baseline),
			Metrics: map[string]float64{
				"queries":       float64(client.queries),
				"avg_bytes":     avgBytes,
				"resolvers":     float64(len(client.resolvers)),
				"baseline_avg":  baseline,
				"low_diversity": boolMetric(lowDiversity),
			},
		})
	}

	return findings, nil
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// severity scales with how far the client sits above the volume thresholds;
// single-resolver tunneling shape bumps it one tier.
func (d *dnsTunnelDetector) severity(avgBytes float64, queries int, lowDiversity bool) model.Severity {
	sev := model.SeverityLow
	switch {
	case avgBytes > 3*d.cfg.MaxAvgBytes || queries > 3*d.cfg.MaxQueries:
		sev = model.SeverityHigh
	case avgBytes > d.cfg.MaxAvgBytes || queries > d.cfg.MaxQueries:
		sev = model.SeverityMedium
	}
	if lowDiversity && sev < model.SeverityCritical {
		sev++
	}
	return sev
}
