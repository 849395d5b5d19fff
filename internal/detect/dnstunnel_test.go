package detect

import (
	"fmt"
	"testing"
	"time"

	"FlowTriage/internal/model"
)

func dnsFlow(src, dst string, at time.Time, bytes int64) model.Flow {
	return model.Flow{
		StartTime: at,
		Duration:  0.05,
		Protocol:  model.ProtocolUDP,
		SrcAddr:   src,
		DstAddr:   dst,
		DstPort:   53,
		Packets:   2,
		Bytes:     bytes,
	}
}

func TestDNSTunnel_FlagsOversizedPayloads(t *testing.T) {
	d := newDetector(t, "dnstunnel")

	table := &model.FlowTable{Scenario: "tunnel"}
	// Ordinary resolution traffic across several resolvers.
	for i := 0; i < 50; i++ {
		table.Flows = append(table.Flows,
			dnsFlow("192.168.1.10", fmt.Sprintf("10.0.0.%d", 1+i%3), testBase.Add(time.Duration(i)*time.Minute), 70))
	}
	// One client averaging far over the 100-byte threshold.
	for i := 0; i < 60; i++ {
		table.Flows = append(table.Flows,
			dnsFlow("192.168.1.104", "203.0.113.53", testBase.Add(time.Duration(i)*3*time.Second), 450))
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if f.SrcAddr != "192.168.1.104" {
		t.Errorf("Unexpected tunneling source: %s", f.SrcAddr)
	}
	if f.Metrics["queries"] != 60 {
		t.Errorf("Expected 60 queries, got %v", f.Metrics["queries"])
	}
	// 450 bytes is over 3x the threshold, and the single-resolver shape
	// bumps severity another tier.
	if f.Severity != model.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", f.Severity)
	}
	if f.Metrics["low_diversity"] != 1 {
		t.Errorf("Expected low diversity marker, got %v", f.Metrics["low_diversity"])
	}
}

func TestDNSTunnel_OrdinaryResolutionNotFlagged(t *testing.T) {
	d := newDetector(t, "dnstunnel")

	table := &model.FlowTable{Scenario: "benign-dns"}
	for i := 0; i < 200; i++ {
		table.Flows = append(table.Flows,
			dnsFlow(fmt.Sprintf("192.168.1.%d", 10+i%10), fmt.Sprintf("10.0.0.%d", 1+i%2),
				testBase.Add(time.Duration(i)*30*time.Second), 60+int64(i%20)))
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Expected no findings for ordinary DNS, got %d: %+v", len(findings), findings)
	}
}

func TestDNSTunnel_NoDNSTraffic(t *testing.T) {
	d := newDetector(t, "dnstunnel")

	table := &model.FlowTable{Scenario: "no-dns", Flows: []model.Flow{
		{StartTime: testBase, Protocol: model.ProtocolTCP, SrcAddr: "a", DstAddr: "b", DstPort: 443, Bytes: 5000},
	}}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if findings != nil {
		t.Fatalf("Expected nil findings without DNS flows, got %v", findings)
	}
}
