package pcap

import (
	"fmt"
	"sort"
	"time"

	"FlowTriage/internal/model"

	"github.com/google/gopacket/layers"
)

// DefaultIdleTimeout is how long a conversation may stay silent before a
// later packet on the same tuple opens a new flow.
const DefaultIdleTimeout = 5 * time.Minute

// flowKey identifies one bidirectional conversation. Both directions of a
// conversation share a key because the endpoints are ordered canonically.
type flowKey struct {
	addrA, addrB string
	portA, portB uint16
	protocol     layers.IPProtocol
}

// canonicalKey orders the endpoints so that packets in either direction land
// on the same flow. reversed reports whether the packet travels against the
// canonical order.
func canonicalKey(p *packetInfo) (key flowKey, reversed bool) {
	key = flowKey{
		addrA:    p.SrcAddr,
		addrB:    p.DstAddr,
		portA:    p.SrcPort,
		portB:    p.DstPort,
		protocol: p.Protocol,
	}
	if p.SrcAddr > p.DstAddr || (p.SrcAddr == p.DstAddr && p.SrcPort > p.DstPort) {
		key.addrA, key.addrB = key.addrB, key.addrA
		key.portA, key.portB = key.portB, key.portA
		return key, true
	}
	return key, false
}

// flowState accumulates one conversation while packets arrive.
type flowState struct {
	first         *packetInfo // the packet that opened the flow
	firstReversed bool
	start, end    int64 // unix nanos
	packets       int64
	bytes         int64
	initiatorSent int64
}

// Assembler folds decoded packets into bidirectional flows keyed by the
// canonical five-tuple. The first packet seen on a key marks the initiator,
// so SrcBytes counts the initiator's transmit volume. A tuple silent for
// longer than idleTimeout is closed; the next packet on it opens a new flow.
type Assembler struct {
	idleTimeout int64 // nanos, 0 disables idle splitting
	active      map[flowKey]*flowState
	states      []*flowState // every flow ever opened, in open order
}

// NewAssembler creates an empty flow assembler. Pass 0 to keep each tuple on
// a single flow regardless of gaps.
func NewAssembler(idleTimeout time.Duration) *Assembler {
	return &Assembler{
		idleTimeout: int64(idleTimeout),
		active:      make(map[flowKey]*flowState),
	}
}

// Add folds one packet into its flow.
func (a *Assembler) Add(p *packetInfo) {
	key, reversed := canonicalKey(p)
	ts := p.Timestamp.UnixNano()

	state, ok := a.active[key]
	if ok && a.idleTimeout > 0 && ts-state.end > a.idleTimeout {
		delete(a.active, key)
		ok = false
	}
	if !ok {
		state = &flowState{
			first:         p,
			firstReversed: reversed,
			start:         ts,
			end:           ts,
		}
		a.active[key] = state
		a.states = append(a.states, state)
	}

	if ts < state.start {
		state.start = ts
	}
	if ts > state.end {
		state.end = ts
	}
	state.packets++
	state.bytes += int64(p.Length)
	if reversed == state.firstReversed {
		state.initiatorSent += int64(p.Length)
	}
}

// Flows returns the assembled table for one capture, ordered by start time.
func (a *Assembler) Flows(scenario string) *model.FlowTable {
	table := &model.FlowTable{Scenario: scenario}
	for _, state := range a.states {
		first := state.first
		table.Flows = append(table.Flows, model.Flow{
			StartTime: time.Unix(0, state.start).UTC(),
			Duration:  float64(state.end-state.start) / 1e9,
			Protocol:  protocolOf(first.Protocol),
			SrcAddr:   first.SrcAddr,
			SrcPort:   first.SrcPort,
			DstAddr:   first.DstAddr,
			DstPort:   first.DstPort,
			Direction: model.DirectionUnknown,
			Packets:   state.packets,
			Bytes:     state.bytes,
			SrcBytes:  state.initiatorSent,
			DstBytes:  state.bytes - state.initiatorSent,
		})
	}

	sort.SliceStable(table.Flows, func(i, j int) bool {
		return table.Flows[i].StartTime.Before(table.Flows[j].StartTime)
	})
	return table
}

func protocolOf(p layers.IPProtocol) model.Protocol {
	switch p {
	case layers.IPProtocolTCP:
		return model.ProtocolTCP
	case layers.IPProtocolUDP:
		return model.ProtocolUDP
	case layers.IPProtocolICMPv4:
		return model.ProtocolICMP
	default:
		return model.ProtocolOther
	}
}

// LoadFile reads a full capture into a flow table. The scenario names the
// resulting table; pass the capture file stem when no better name exists.
func LoadFile(path, scenario string) (*model.FlowTable, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file: %w", err)
	}
	defer reader.Close()

	assembler := NewAssembler(DefaultIdleTimeout)
	packets := make(chan *packetInfo, 1024)
	go reader.ReadPackets(packets)
	for p := range packets {
		assembler.Add(p)
	}

	table := assembler.Flows(scenario)
	if table.Len() == 0 {
		return nil, fmt.Errorf("no flows assembled from %s", path)
	}
	return table, nil
}
