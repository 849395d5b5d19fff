package detect

import (
	"fmt"
	"testing"
	"time"

	"FlowTriage/internal/model"
)

func TestC2_FlagsChattyExternalDestination(t *testing.T) {
	d := newDetector(t, "c2")

	table := &model.FlowTable{Scenario: "c2"}
	// 25 small conversations from three internal hosts to one external addr.
	for i := 0; i < 25; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * time.Minute),
			Protocol:  model.ProtocolTCP,
			SrcAddr:   fmt.Sprintf("192.168.1.%d", 10+i%3),
			DstAddr:   "203.0.113.77",
			DstPort:   443,
			Bytes:     300,
			SrcBytes:  150,
		})
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if f.DstAddr != "203.0.113.77" {
		t.Errorf("Unexpected C2 destination: %s", f.DstAddr)
	}
	if f.Metrics["conversations"] != 25 || f.Metrics["client_hosts"] != 3 {
		t.Errorf("Unexpected metrics: %v", f.Metrics)
	}
	// 25 conversations sits past 2x the floor of 10 but under 4x.
	if f.Severity != model.SeverityMedium {
		t.Errorf("Expected medium severity, got %s", f.Severity)
	}
}

func TestC2_BulkDownloadsNotFlagged(t *testing.T) {
	d := newDetector(t, "c2")

	// Frequent but large conversations: a CDN, not a control channel.
	table := &model.FlowTable{Scenario: "cdn"}
	for i := 0; i < 25; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * time.Minute),
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.10",
			DstAddr:   "203.0.113.88",
			Bytes:     50000,
		})
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Expected no findings for large conversations, got %d", len(findings))
	}
}

func TestC2_InternalDestinationNotFlagged(t *testing.T) {
	d := newDetector(t, "c2")

	table := &model.FlowTable{Scenario: "internal"}
	for i := 0; i < 25; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * time.Minute),
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.10",
			DstAddr:   "192.168.1.1",
			Bytes:     300,
		})
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Expected no findings for internal destination, got %d", len(findings))
	}
}

func TestRegistry_AllDetectorsRegistered(t *testing.T) {
	want := []string{"beaconing", "c2", "dnstunnel", "exfiltration", "portscan"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Expected %d detectors, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("Expected detector %q at position %d, got %q", name, i, got[i])
		}
	}
}
