package detect

import (
	"testing"
	"time"

	"FlowTriage/internal/model"
)

func TestPortScan_FlagsFastSweep(t *testing.T) {
	d := newDetector(t, "portscan")

	// 50 distinct ports on one host inside 10 seconds.
	table := &model.FlowTable{Scenario: "scan"}
	for i := 0; i < 50; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * 200 * time.Millisecond),
			Duration:  0.01,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.102",
			DstAddr:   "192.168.1.200",
			DstPort:   uint16(1 + i),
			Packets:   1,
			Bytes:     60,
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
	if f.SrcAddr != "192.168.1.102" {
		t.Errorf("Unexpected scan source: %s", f.SrcAddr)
	}
	if f.Metrics["distinct_ports"] != 50 {
		t.Errorf("Expected 50 distinct ports, got %v", f.Metrics["distinct_ports"])
	}
	// 50 ports is over 3x the 15-port threshold and every flow is sub-second.
	if f.Severity != model.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", f.Severity)
	}
}

func TestPortScan_SlowProbesOutsideWindow(t *testing.T) {
	d := newDetector(t, "portscan")

	// 30 ports spread one hour apart never share a 60s window.
	table := &model.FlowTable{Scenario: "slow"}
	for i := 0; i < 30; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * time.Hour),
			Duration:  0.01,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.102",
			DstAddr:   "192.168.1.200",
			DstPort:   uint16(1 + i),
		})
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Expected no findings for slow probing, got %d", len(findings))
	}
}

func TestPortScan_FewPortsNotFlagged(t *testing.T) {
	d := newDetector(t, "portscan")

	table := &model.FlowTable{Scenario: "benign"}
	for i := 0; i < 10; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: testBase.Add(time.Duration(i) * time.Second),
			Duration:  5,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.10",
			DstAddr:   "192.168.1.200",
			DstPort:   443,
		})
	}

	findings, err := d.Detect(table, nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Expected no findings for repeated single port, got %d", len(findings))
	}
}
