package analysis

import (
	"FlowTriage/internal/model"
)

// Summarize computes the scenario-wide summary statistics directly from the
// flow table. It has no dependency on the other pipeline stages and is
// always run, even when they fail.
func Summarize(table *model.FlowTable) model.Summary {
	s := model.Summary{
		FlowCount:      table.Len(),
		ProtocolCounts: make(map[model.Protocol]int64),
	}
	if table.Len() == 0 {
		return s
	}

	srcAddrs := make(map[string]struct{})
	dstAddrs := make(map[string]struct{})
	labels := make(map[model.Label]int64)

	s.StartTime = table.Flows[0].StartTime
	s.EndTime = table.Flows[0].StartTime

	var totalDuration float64
	for i := range table.Flows {
		flow := &table.Flows[i]

		s.TotalBytes += flow.Bytes
		s.TotalPackets += flow.Packets
		totalDuration += flow.Duration
		s.ProtocolCounts[flow.Protocol]++
		if flow.Label != "" {
			labels[flow.Label]++
		}
		srcAddrs[flow.SrcAddr] = struct{}{}
		dstAddrs[flow.DstAddr] = struct{}{}

		if flow.StartTime.Before(s.StartTime) {
			s.StartTime = flow.StartTime
		}
		if flow.StartTime.After(s.EndTime) {
			s.EndTime = flow.StartTime
		}
	}

	s.DurationSec = s.EndTime.Sub(s.StartTime).Seconds()
	s.UniqueSrcAddrs = len(srcAddrs)
	s.UniqueDstAddrs = len(dstAddrs)
	s.AvgDurationSec = totalDuration / float64(table.Len())
	if s.TotalPackets > 0 {
		s.AvgPacketSize = float64(s.TotalBytes) / float64(s.TotalPackets)
	}
	if len(labels) > 0 {
		s.LabelCounts = labels
	}

	return s
}
