// Package analysis contains the scenario-scoped flow analysis pipeline:
// feature construction, summary statistics, and the orchestrator that runs
// the anomaly scorer and behavior detectors over a flow table.
package analysis

import (
	"fmt"
	"math"

	"FlowTriage/internal/model"
)

// protocolCode maps the protocol enum to a small stable numeric code for the
// feature matrix.
func protocolCode(p model.Protocol) float64 {
	switch p {
	case model.ProtocolTCP:
		return 1
	case model.ProtocolUDP:
		return 2
	case model.ProtocolICMP:
		return 3
	}
	return 0
}

// BuildFeatures derives one feature vector per flow, aligned 1:1 with the
// table and in the same order.
//
// Rates use the flow duration; a zero duration is treated as an
// instantaneous burst (rate = raw count) rather than a division by zero.
// The inter-arrival gap is the time since the previous flow from the same
// source address; the first flow of a source gets 0, a sentinel meaning
// "no prior observation". Counts, rates and gaps are log1p-transformed so
// the anomaly scorer sees comparable magnitudes.
//
// Any malformed flow (negative duration, negative counts, out-of-enum
// protocol) fails the whole batch with an InvalidFlowError: anomaly scoring
// over a partially-featured table would be meaningless.
func BuildFeatures(table *model.FlowTable) ([]model.FeatureVector, error) {
	if table.Len() == 0 {
		return nil, fmt.Errorf("empty flow table for scenario %q", table.Scenario)
	}

	features := make([]model.FeatureVector, table.Len())
	lastSeen := make(map[string]int64) // src addr -> previous start time, unix nanos

	for i := range table.Flows {
		flow := &table.Flows[i]

		if err := validateFlow(i, flow); err != nil {
			return nil, err
		}

		byteRate := float64(flow.Bytes)
		pktRate := float64(flow.Packets)
		if flow.Duration > 0 {
			byteRate = float64(flow.Bytes) / flow.Duration
			pktRate = float64(flow.Packets) / flow.Duration
		}

		gap := 0.0
		if prev, ok := lastSeen[flow.SrcAddr]; ok {
			gap = float64(flow.StartTime.UnixNano()-prev) / 1e9
			if gap < 0 {
				gap = 0
			}
		}
		lastSeen[flow.SrcAddr] = flow.StartTime.UnixNano()

		features[i] = model.FeatureVector{
			LogBytes:            math.Log1p(float64(flow.Bytes)),
			LogPackets:          math.Log1p(float64(flow.Packets)),
			LogBytesPerSecond:   math.Log1p(byteRate),
			LogPacketsPerSecond: math.Log1p(pktRate),
			LogSrcGapSeconds:    math.Log1p(gap),
			ProtocolCode:        protocolCode(flow.Protocol),
			DstPortClass:        float64(model.ClassifyPort(flow.DstPort)),
		}
	}

	return features, nil
}

func validateFlow(index int, flow *model.Flow) error {
	switch {
	case flow.Duration < 0:
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("negative duration %v", flow.Duration)}
	case flow.Bytes < 0:
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("negative byte count %d", flow.Bytes)}
	case flow.Packets < 0:
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("negative packet count %d", flow.Packets)}
	case flow.SrcBytes < 0:
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("negative source byte count %d", flow.SrcBytes)}
	case !flow.Protocol.Valid():
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("unknown protocol %q", flow.Protocol)}
	case flow.Label != "" && !flow.Label.Valid():
		return &model.InvalidFlowError{Index: index, Reason: fmt.Sprintf("unknown label %q", flow.Label)}
	}
	return nil
}
