package analysis

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// scenarioTable builds 90 irregular benign flows plus a 10-flow beacon with
// a fixed 45s interval.
func scenarioTable() *model.FlowTable {
	base := time.Date(2011, 8, 10, 9, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(11))
	table := &model.FlowTable{Scenario: "capture20110810"}

	for i := 0; i < 90; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(rng.Int63n(int64(2 * time.Hour)))),
			Duration:  0.5 + rng.Float64()*20,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   fmt.Sprintf("192.168.1.%d", 10+rng.Intn(40)),
			SrcPort:   uint16(1024 + rng.Intn(60000)),
			DstAddr:   fmt.Sprintf("10.0.%d.%d", rng.Intn(4), 1+rng.Intn(250)),
			DstPort:   443,
			Packets:   int64(5 + rng.Intn(100)),
			Bytes:     int64(500 + rng.Intn(20000)),
			SrcBytes:  int64(200 + rng.Intn(5000)),
			Label:     model.LabelBackground,
		})
	}
	for i := 0; i < 10; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(i) * 45 * time.Second),
			Duration:  0.2,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.101",
			SrcPort:   uint16(40000 + i),
			DstAddr:   "203.0.113.77",
			DstPort:   443,
			Packets:   6,
			Bytes:     320,
			SrcBytes:  180,
			Label:     model.LabelBotnet,
		})
	}
	return table
}

func TestAnalyze_EndToEnd(t *testing.T) {
	analyzer := NewAnalyzer(config.DefaultAnalysis())
	table := scenarioTable()

	result, err := analyzer.Analyze(table)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Scenario != "capture20110810" {
		t.Errorf("Unexpected scenario: %s", result.Scenario)
	}
	if result.Summary.FlowCount != 100 {
		t.Errorf("Expected 100 flows in summary, got %d", result.Summary.FlowCount)
	}

	// Every component ran.
	for _, component := range []string{"features", "anomaly", "clusters", "threat_intel", "beaconing", "c2", "dnstunnel", "exfiltration", "portscan"} {
		report, ok := result.Components[component]
		if !ok {
			t.Fatalf("Missing component report for %q", component)
		}
		if report.Status != model.StatusOK {
			t.Errorf("Component %q status %q, detail: %s", component, report.Status, report.Detail)
		}
	}

	// The identical beacon flows form a dense behavior cluster.
	var beaconCluster *model.ClusterSummary
	for i := range result.Clusters {
		if result.Clusters[i].LabelCounts[model.LabelBotnet] > 0 {
			beaconCluster = &result.Clusters[i]
		}
	}
	if beaconCluster == nil || beaconCluster.LabelCounts[model.LabelBotnet] != 10 {
		t.Errorf("Expected a cluster holding the 10 botnet flows, got %+v", result.Clusters)
	}

	// Labels drive the threat intelligence section.
	if result.ThreatIntel == nil {
		t.Fatal("Expected threat intelligence on the result")
	}
	if len(result.ThreatIntel.MaliciousSources) == 0 || result.ThreatIntel.MaliciousSources[0].Addr != "192.168.1.101" {
		t.Errorf("Expected the beacon source atop the malicious ranking, got %+v", result.ThreatIntel.MaliciousSources)
	}
	if len(result.ThreatIntel.AttackTimeline) == 0 {
		t.Error("Expected a non-empty attack timeline")
	}

	// Contamination 0.1 over 100 flows flags about 10.
	if got := result.AnomalyCount(); got < 9 || got > 11 {
		t.Errorf("Expected about 10 anomalies, got %d", got)
	}
	if len(result.Anomalies) != 100 {
		t.Errorf("Expected a record per flow, got %d", len(result.Anomalies))
	}

	// The planted beacon must surface.
	if result.FindingCounts()["beaconing"] < 1 {
		t.Fatalf("Expected at least one beaconing finding, got %v", result.FindingCounts())
	}

	// Findings come out ordered by severity, then first-seen time.
	for i := 1; i < len(result.Findings); i++ {
		prev, cur := result.Findings[i-1], result.Findings[i]
		if prev.Severity < cur.Severity {
			t.Fatalf("Findings out of severity order at %d: %s before %s", i, prev.Severity, cur.Severity)
		}
		if prev.Severity == cur.Severity && prev.FirstSeen.After(cur.FirstSeen) {
			t.Fatalf("Findings out of time order at %d", i)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	analyzer := NewAnalyzer(config.DefaultAnalysis())
	table := scenarioTable()

	first, err := analyzer.Analyze(table)
	if err != nil {
		t.Fatalf("First Analyze failed: %v", err)
	}
	second, err := analyzer.Analyze(table)
	if err != nil {
		t.Fatalf("Second Analyze failed: %v", err)
	}

	if len(first.Findings) != len(second.Findings) {
		t.Fatalf("Finding counts differ: %d vs %d", len(first.Findings), len(second.Findings))
	}
	for i := range first.Findings {
		fa, fb := first.Findings[i], second.Findings[i]
		if fa.Detector != fb.Detector || fa.Severity != fb.Severity || fa.SrcAddr != fb.SrcAddr || fa.DstAddr != fb.DstAddr {
			t.Fatalf("Finding %d differs between runs: %+v vs %+v", i, fa, fb)
		}
	}
	for i := range first.Anomalies {
		if first.Anomalies[i] != second.Anomalies[i] {
			t.Fatalf("Anomaly record %d differs between runs", i)
		}
	}
}

func TestAnalyze_SmallTableSkipsAnomaly(t *testing.T) {
	analyzer := NewAnalyzer(config.DefaultAnalysis())

	table := &model.FlowTable{Scenario: "tiny"}
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Duration:  1,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.1",
			DstAddr:   "10.0.0.1",
			Packets:   10,
			Bytes:     1000,
		})
	}

	result, err := analyzer.Analyze(table)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	report := result.Components["anomaly"]
	if report.Status != model.StatusSkipped {
		t.Errorf("Expected anomaly component skipped, got %q", report.Status)
	}
	if len(result.Anomalies) != 0 {
		t.Errorf("Expected no anomaly records, got %d", len(result.Anomalies))
	}
}

func TestAnalyze_DetectorFailureIsPartial(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Beacon.CVThreshold = 2 // outside (0, 1], fails inside the detector
	analyzer := NewAnalyzer(cfg)

	result, err := analyzer.Analyze(scenarioTable())
	if err == nil {
		t.Fatal("Expected partial failure error, got nil")
	}

	var partial *model.PartialAnalysisError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialAnalysisError, got %T: %v", err, err)
	}
	if _, ok := partial.Failed["beaconing"]; !ok {
		t.Errorf("Expected beaconing among failed components, got %v", partial.Failed)
	}

	// The rest of the pipeline still produced its output.
	if result.Components["beaconing"].Status != model.StatusFailed {
		t.Errorf("Expected beaconing marked failed, got %q", result.Components["beaconing"].Status)
	}
	if result.Components["anomaly"].Status != model.StatusOK {
		t.Errorf("Expected anomaly component ok, got %q", result.Components["anomaly"].Status)
	}
	if result.Summary.FlowCount != 100 {
		t.Errorf("Expected summary despite partial failure, got %d flows", result.Summary.FlowCount)
	}
}

func TestAnalyze_FeatureFailureAborts(t *testing.T) {
	analyzer := NewAnalyzer(config.DefaultAnalysis())

	table := scenarioTable()
	table.Flows[3].Bytes = -1

	result, err := analyzer.Analyze(table)
	if err == nil {
		t.Fatal("Expected error for malformed flow, got nil")
	}
	var partial *model.PartialAnalysisError
	if errors.As(err, &partial) {
		t.Fatalf("Feature failure should abort, not degrade: %v", err)
	}

	if result.Components["features"].Status != model.StatusFailed {
		t.Errorf("Expected features marked failed, got %q", result.Components["features"].Status)
	}
	if result.Summary.FlowCount != 100 {
		t.Errorf("Expected summary on aborted result, got %d flows", result.Summary.FlowCount)
	}
}
