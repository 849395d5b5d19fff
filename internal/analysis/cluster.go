package analysis

import (
	"math"
	"sort"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// dbscan point states. Cluster IDs count up from 0.
const (
	pointUnvisited = -2
	pointNoise     = -1
)

// ClusterBehavior groups the table's flows into behavior clusters with
// density-based clustering over standardized volume and timing columns
// (duration, packets, bytes, source bytes, mean packet size). Flows in
// sparse neighborhoods are noise and belong to no cluster.
//
// The pass is fully deterministic: flows are visited in table order, so
// cluster IDs follow first appearance and repeated runs over the same table
// produce identical summaries.
func ClusterBehavior(table *model.FlowTable, cfg config.ClusterConfig) []model.ClusterSummary {
	if table.Len() < cfg.MinPoints {
		return nil
	}

	points := behaviorMatrix(table)
	assignments := dbscan(points, cfg.Eps, cfg.MinPoints)
	return summarizeClusters(table, assignments)
}

// behaviorMatrix builds the standardized clustering matrix, one row per flow.
func behaviorMatrix(table *model.FlowTable) [][]float64 {
	const columns = 5

	points := make([][]float64, table.Len())
	for i := range table.Flows {
		flow := &table.Flows[i]
		pktSize := 0.0
		if flow.Packets > 0 {
			pktSize = float64(flow.Bytes) / float64(flow.Packets)
		}
		points[i] = []float64{
			flow.Duration,
			float64(flow.Packets),
			float64(flow.Bytes),
			float64(flow.SrcBytes),
			pktSize,
		}
	}

	// z-score each column; a constant column stays at 0 so it cannot
	// dominate the distance.
	column := make([]float64, len(points))
	for c := 0; c < columns; c++ {
		for i := range points {
			column[i] = points[i][c]
		}
		mean, std := meanStdDev(column)
		for i := range points {
			if std > 0 {
				points[i][c] = (points[i][c] - mean) / std
			} else {
				points[i][c] = 0
			}
		}
	}
	return points
}

// dbscan assigns every point a cluster ID or marks it noise. Points are
// expanded in index order.
func dbscan(points [][]float64, eps float64, minPoints int) []int {
	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = pointUnvisited
	}

	epsSq := eps * eps
	cluster := 0
	for i := range points {
		if assignments[i] != pointUnvisited {
			continue
		}
		neighbors := neighborsOf(points, i, epsSq)
		if len(neighbors) < minPoints {
			assignments[i] = pointNoise
			continue
		}

		assignments[i] = cluster
		queue := append([]int(nil), neighbors...)
		for head := 0; head < len(queue); head++ {
			j := queue[head]
			if assignments[j] == pointNoise {
				// Border point: reachable from a core, so it joins.
				assignments[j] = cluster
			}
			if assignments[j] != pointUnvisited {
				continue
			}
			assignments[j] = cluster
			expanded := neighborsOf(points, j, epsSq)
			if len(expanded) >= minPoints {
				queue = append(queue, expanded...)
			}
		}
		cluster++
	}
	return assignments
}

// neighborsOf returns every point within eps of points[i], itself included.
func neighborsOf(points [][]float64, i int, epsSq float64) []int {
	var neighbors []int
	for j := range points {
		var distSq float64
		for c := range points[i] {
			d := points[i][c] - points[j][c]
			distSq += d * d
		}
		if distSq <= epsSq {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// summarizeClusters reduces the per-flow assignments to one summary per
// cluster, ordered by cluster ID.
func summarizeClusters(table *model.FlowTable, assignments []int) []model.ClusterSummary {
	type accumulator struct {
		size          int
		totalDuration float64
		totalBytes    int64
		protocols     map[model.Protocol]int
		labels        map[model.Label]int64
	}

	accs := make(map[int]*accumulator)
	for i, cluster := range assignments {
		if cluster == pointNoise {
			continue
		}
		acc, ok := accs[cluster]
		if !ok {
			acc = &accumulator{
				protocols: make(map[model.Protocol]int),
				labels:    make(map[model.Label]int64),
			}
			accs[cluster] = acc
		}
		flow := &table.Flows[i]
		acc.size++
		acc.totalDuration += flow.Duration
		acc.totalBytes += flow.Bytes
		acc.protocols[flow.Protocol]++
		if flow.Label != "" {
			acc.labels[flow.Label]++
		}
	}
	if len(accs) == 0 {
		return nil
	}

	ids := make([]int, 0, len(accs))
	for id := range accs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make([]model.ClusterSummary, 0, len(ids))
	for _, id := range ids {
		acc := accs[id]
		summary := model.ClusterSummary{
			ID:               id,
			Size:             acc.size,
			AvgDurationSec:   acc.totalDuration / float64(acc.size),
			AvgBytes:         float64(acc.totalBytes) / float64(acc.size),
			DominantProtocol: dominantProtocol(acc.protocols),
		}
		if len(acc.labels) > 0 {
			summary.LabelCounts = acc.labels
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// dominantProtocol picks the most frequent protocol, name order breaking ties.
func dominantProtocol(counts map[model.Protocol]int) model.Protocol {
	var best model.Protocol
	bestCount := -1
	for _, p := range []model.Protocol{model.ProtocolICMP, model.ProtocolOther, model.ProtocolTCP, model.ProtocolUDP} {
		if counts[p] > bestCount {
			best = p
			bestCount = counts[p]
		}
	}
	return best
}

// meanStdDev returns the mean and population standard deviation of vals.
func meanStdDev(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / float64(len(vals)))
}
