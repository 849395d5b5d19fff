package netflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowTriage/internal/model"
)

const sampleData = `StartTime,Dur,Proto,SrcAddr,Sport,Dir,DstAddr,Dport,State,sTos,dTos,TotPkts,TotBytes,SrcBytes,Label
2011/08/10 09:46:53.047277,1.026539,tcp,192.168.1.101,1025,->,203.0.113.77,443,CON,0,0,12,1840,920,flow=From-Botnet-V42-TCP-CC
2011/08/10 09:46:59.000000,0.000000,udp,192.168.1.102,dns,->,10.0.0.2,53,CON,0,0,2,130,70,flow=To-Background-UDP-DNS
2011/08/10 09:47:10.500000,3.5,icmp,192.168.1.103,0x0008,<->,10.0.0.3,*,ECO,0,0,2,196,98,flow=Normal-ICMP
this line is garbage
2011/08/10 09:47:20.000000,*,tcp,192.168.1.104,40001,<-,10.0.0.4,80,CON,0,0,*,*,*,flow=Background
`

func writeSample(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(sampleData), 0644); err != nil {
		t.Fatalf("Failed to write sample file: %v", err)
	}
	return path
}

func TestParseFile(t *testing.T) {
	table, err := ParseFile(writeSample(t, "capture20110810.binetflow"))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if table.Scenario != "capture20110810" {
		t.Errorf("Expected scenario from file stem, got %q", table.Scenario)
	}
	// Header and garbage line are skipped, four flows survive.
	if table.Len() != 4 {
		t.Fatalf("Expected 4 flows, got %d", table.Len())
	}

	first := table.Flows[0]
	wantStart := time.Date(2011, 8, 10, 9, 46, 53, 47277000, time.UTC)
	if !first.StartTime.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, first.StartTime)
	}
	if first.Protocol != model.ProtocolTCP || first.SrcPort != 1025 || first.DstPort != 443 {
		t.Errorf("Unexpected first flow: %+v", first)
	}
	if first.Direction != model.DirectionOutbound {
		t.Errorf("Expected outbound direction, got %s", first.Direction)
	}
	if first.Bytes != 1840 || first.SrcBytes != 920 || first.Packets != 12 {
		t.Errorf("Unexpected counters: %+v", first)
	}
	// The return-path volume is derived, not carried in the record.
	if first.DstBytes != 920 {
		t.Errorf("Expected 920 derived return bytes, got %d", first.DstBytes)
	}
	if first.Label != model.LabelBotnet {
		t.Errorf("Expected botnet label, got %q", first.Label)
	}

	// Service name resolves to its well-known port.
	if table.Flows[1].SrcPort != 53 {
		t.Errorf("Expected dns service name to resolve to 53, got %d", table.Flows[1].SrcPort)
	}
	if table.Flows[1].Label != model.LabelBackground {
		t.Errorf("Expected background label, got %q", table.Flows[1].Label)
	}

	// Hex port, bidirectional marker, absent dst port.
	icmp := table.Flows[2]
	if icmp.Protocol != model.ProtocolICMP || icmp.SrcPort != 8 || icmp.DstPort != 0 {
		t.Errorf("Unexpected icmp flow: %+v", icmp)
	}
	if icmp.Direction != model.DirectionUnknown {
		t.Errorf("Expected unknown direction for <->, got %s", icmp.Direction)
	}
	if icmp.Label != model.LabelNormal {
		t.Errorf("Expected normal label, got %q", icmp.Label)
	}

	// Starred counters parse as zero, direction <- is inbound.
	last := table.Flows[3]
	if last.Duration != 0 || last.Packets != 0 || last.Bytes != 0 {
		t.Errorf("Expected zeros for starred fields: %+v", last)
	}
	if last.Direction != model.DirectionInbound {
		t.Errorf("Expected inbound direction, got %s", last.Direction)
	}
}

func TestParseFile_NoValidFlows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.binetflow")
	if err := os.WriteFile(path, []byte("# just a comment\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := ParseFile(path); err == nil {
		t.Fatal("Expected error for file without flows, got nil")
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scenario1.binetflow", "scenario2.binetflow"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleData), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	tables, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("Expected 2 scenarios, got %d", len(tables))
	}
	if _, ok := tables["scenario1"]; !ok {
		t.Errorf("Missing scenario1 in %v", tables)
	}
}
