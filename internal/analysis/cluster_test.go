package analysis

import (
	"testing"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// clusterTable builds two dense behavior groups plus one flow sitting
// between them in feature space.
func clusterTable() *model.FlowTable {
	base := time.Date(2011, 8, 10, 9, 0, 0, 0, time.UTC)
	table := &model.FlowTable{Scenario: "clusters"}

	// 1. 20 short, light conversations.
	for i := 0; i < 20; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Duration:  1,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.10",
			DstAddr:   "10.0.0.1",
			Packets:   10,
			Bytes:     500,
			SrcBytes:  250,
		})
	}
	// 2. 15 long, heavy transfers.
	for i := 0; i < 15; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Duration:  30,
			Protocol:  model.ProtocolUDP,
			SrcAddr:   "192.168.1.20",
			DstAddr:   "10.0.0.2",
			Packets:   1000,
			Bytes:     900_000,
			SrcBytes:  600_000,
			Label:     model.LabelBotnet,
		})
	}
	// 3. One flow halfway between the groups, dense nowhere.
	table.Flows = append(table.Flows, model.Flow{
		StartTime: base.Add(time.Hour),
		Duration:  15,
		Protocol:  model.ProtocolTCP,
		SrcAddr:   "192.168.1.30",
		DstAddr:   "10.0.0.3",
		Packets:   500,
		Bytes:     450_000,
		SrcBytes:  300_000,
	})
	return table
}

func TestClusterBehavior_GroupsByDensity(t *testing.T) {
	clusters := ClusterBehavior(clusterTable(), config.DefaultAnalysis().Cluster)

	if len(clusters) != 2 {
		t.Fatalf("Expected 2 clusters, got %d: %+v", len(clusters), clusters)
	}

	// Cluster IDs follow first appearance in the table.
	light, heavy := clusters[0], clusters[1]
	if light.Size != 20 || heavy.Size != 15 {
		t.Errorf("Unexpected cluster sizes: %d and %d", light.Size, heavy.Size)
	}
	if light.DominantProtocol != model.ProtocolTCP || heavy.DominantProtocol != model.ProtocolUDP {
		t.Errorf("Unexpected dominant protocols: %s and %s", light.DominantProtocol, heavy.DominantProtocol)
	}
	if light.AvgBytes != 500 || heavy.AvgBytes != 900_000 {
		t.Errorf("Unexpected average bytes: %v and %v", light.AvgBytes, heavy.AvgBytes)
	}
	if light.LabelCounts != nil {
		t.Errorf("Expected no labels on the light cluster, got %v", light.LabelCounts)
	}
	if heavy.LabelCounts[model.LabelBotnet] != 15 {
		t.Errorf("Expected 15 botnet flows in the heavy cluster, got %v", heavy.LabelCounts)
	}
}

func TestClusterBehavior_SparseFlowsAreNoise(t *testing.T) {
	base := time.Now().UTC()
	table := &model.FlowTable{Scenario: "sparse"}

	// Five flows spread evenly through feature space; nobody has a dense
	// neighborhood, so nobody clusters.
	for i := 0; i < 5; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Duration:  float64(i) * 10,
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.1",
			DstAddr:   "10.0.0.1",
			Packets:   int64(i+1) * 100,
			Bytes:     int64(i+1) * 1000,
			SrcBytes:  int64(i+1) * 500,
		})
	}

	clusters := ClusterBehavior(table, config.DefaultAnalysis().Cluster)
	if clusters != nil {
		t.Fatalf("Expected no clusters, got %+v", clusters)
	}
}

func TestClusterBehavior_TablesBelowMinPointsSkipped(t *testing.T) {
	table := &model.FlowTable{Scenario: "tiny"}
	for i := 0; i < 3; i++ {
		table.Flows = append(table.Flows, model.Flow{
			StartTime: time.Now().UTC(),
			Protocol:  model.ProtocolTCP,
			SrcAddr:   "192.168.1.1",
			DstAddr:   "10.0.0.1",
			Packets:   10,
			Bytes:     500,
		})
	}

	if clusters := ClusterBehavior(table, config.DefaultAnalysis().Cluster); clusters != nil {
		t.Fatalf("Expected nil below min_points, got %+v", clusters)
	}
}

func TestClusterBehavior_Deterministic(t *testing.T) {
	cfg := config.DefaultAnalysis().Cluster
	table := clusterTable()

	first := ClusterBehavior(table, cfg)
	second := ClusterBehavior(table, cfg)

	if len(first) != len(second) {
		t.Fatalf("Cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Size != second[i].Size || first[i].AvgBytes != second[i].AvgBytes {
			t.Fatalf("Cluster %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
