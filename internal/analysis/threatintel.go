package analysis

import (
	"sort"
	"time"

	"FlowTriage/internal/model"
)

const (
	topEndpoints = 20
	topPorts     = 20
	topPairs     = 10
	peakHours    = 3
)

// BuildThreatIntel extracts the label-driven intelligence from a scenario:
// the endpoints and ports that ground-truth botnet/C&C labels implicate, an
// hourly timeline of the labeled activity, the busiest conversation pairs,
// per-label payload averages, and the hour-of-day traffic profile. Tables
// without malicious labels yield only the label-independent sections.
func BuildThreatIntel(table *model.FlowTable) *model.ThreatIntel {
	if table.Len() == 0 {
		return &model.ThreatIntel{}
	}

	intel := &model.ThreatIntel{}

	maliciousSrc := make(map[string]int64)
	maliciousDst := make(map[string]int64)
	maliciousSrcPorts := make(map[uint16]int64)
	maliciousDstPorts := make(map[uint16]int64)
	timeline := make(map[time.Time]*model.TimelineBucket)
	timelineSources := make(map[time.Time]map[string]struct{})
	pairs := make(map[model.PairCount]int64)
	labelBytes := make(map[model.Label]int64)
	labelFlows := make(map[model.Label]int64)
	hourFlows := make(map[int]int64)
	hourBytes := make(map[int]int64)

	for i := range table.Flows {
		flow := &table.Flows[i]

		hour := flow.StartTime.UTC().Hour()
		hourFlows[hour]++
		hourBytes[hour] += flow.Bytes

		pairs[model.PairCount{SrcAddr: flow.SrcAddr, DstAddr: flow.DstAddr}]++

		if flow.Label != "" {
			labelBytes[flow.Label] += flow.Bytes
			labelFlows[flow.Label]++
		}
		if flow.Label != model.LabelBotnet && flow.Label != model.LabelCAndC {
			continue
		}

		maliciousSrc[flow.SrcAddr]++
		maliciousDst[flow.DstAddr]++
		if flow.SrcPort != 0 {
			maliciousSrcPorts[flow.SrcPort]++
		}
		if flow.DstPort != 0 {
			maliciousDstPorts[flow.DstPort]++
		}

		bucketHour := flow.StartTime.UTC().Truncate(time.Hour)
		bucket, ok := timeline[bucketHour]
		if !ok {
			bucket = &model.TimelineBucket{Hour: bucketHour}
			timeline[bucketHour] = bucket
			timelineSources[bucketHour] = make(map[string]struct{})
		}
		bucket.Flows++
		bucket.Bytes += flow.Bytes
		timelineSources[bucketHour][flow.SrcAddr] = struct{}{}
	}

	intel.MaliciousSources = topAddrCounts(maliciousSrc, topEndpoints)
	intel.MaliciousDestinations = topAddrCounts(maliciousDst, topEndpoints)
	intel.MaliciousSrcPorts = topPortCounts(maliciousSrcPorts, topPorts)
	intel.MaliciousDstPorts = topPortCounts(maliciousDstPorts, topPorts)
	intel.AttackTimeline = sortTimeline(timeline, timelineSources)
	intel.TopPairs = topPairCounts(pairs, topPairs)
	intel.HourlyTraffic, intel.PeakHours = hourlyProfile(hourFlows, hourBytes)

	if len(labelFlows) > 0 {
		intel.AvgBytesByLabel = make(map[model.Label]float64, len(labelFlows))
		for label, flows := range labelFlows {
			intel.AvgBytesByLabel[label] = float64(labelBytes[label]) / float64(flows)
		}
	}

	return intel
}

// topAddrCounts ranks addresses by flow count descending, address ascending
// on ties, truncated to limit.
func topAddrCounts(counts map[string]int64, limit int) []model.AddrCount {
	if len(counts) == 0 {
		return nil
	}
	ranked := make([]model.AddrCount, 0, len(counts))
	for addr, flows := range counts {
		ranked = append(ranked, model.AddrCount{Addr: addr, Flows: flows})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Flows != ranked[b].Flows {
			return ranked[a].Flows > ranked[b].Flows
		}
		return ranked[a].Addr < ranked[b].Addr
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func topPortCounts(counts map[uint16]int64, limit int) []model.PortCount {
	if len(counts) == 0 {
		return nil
	}
	ranked := make([]model.PortCount, 0, len(counts))
	for port, flows := range counts {
		ranked = append(ranked, model.PortCount{Port: port, Flows: flows})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Flows != ranked[b].Flows {
			return ranked[a].Flows > ranked[b].Flows
		}
		return ranked[a].Port < ranked[b].Port
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func topPairCounts(counts map[model.PairCount]int64, limit int) []model.PairCount {
	ranked := make([]model.PairCount, 0, len(counts))
	for pair, flows := range counts {
		pair.Flows = flows
		ranked = append(ranked, pair)
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Flows != ranked[b].Flows {
			return ranked[a].Flows > ranked[b].Flows
		}
		if ranked[a].SrcAddr != ranked[b].SrcAddr {
			return ranked[a].SrcAddr < ranked[b].SrcAddr
		}
		return ranked[a].DstAddr < ranked[b].DstAddr
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sortTimeline(timeline map[time.Time]*model.TimelineBucket, sources map[time.Time]map[string]struct{}) []model.TimelineBucket {
	if len(timeline) == 0 {
		return nil
	}
	buckets := make([]model.TimelineBucket, 0, len(timeline))
	for hour, bucket := range timeline {
		bucket.UniqueSources = len(sources[hour])
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(a, b int) bool {
		return buckets[a].Hour.Before(buckets[b].Hour)
	})
	return buckets
}

// hourlyProfile flattens the hour-of-day aggregates into an ordered profile
// plus the heaviest hours by byte volume.
func hourlyProfile(flows, bytes map[int]int64) ([]model.HourTraffic, []int) {
	profile := make([]model.HourTraffic, 0, len(flows))
	for hour := 0; hour < 24; hour++ {
		if flows[hour] == 0 {
			continue
		}
		profile = append(profile, model.HourTraffic{Hour: hour, Flows: flows[hour], Bytes: bytes[hour]})
	}
	if len(profile) == 0 {
		return nil, nil
	}

	byVolume := append([]model.HourTraffic(nil), profile...)
	sort.Slice(byVolume, func(a, b int) bool {
		if byVolume[a].Bytes != byVolume[b].Bytes {
			return byVolume[a].Bytes > byVolume[b].Bytes
		}
		return byVolume[a].Hour < byVolume[b].Hour
	})
	peaks := make([]int, 0, peakHours)
	for i := 0; i < len(byVolume) && i < peakHours; i++ {
		peaks = append(peaks, byVolume[i].Hour)
	}
	return profile, peaks
}
