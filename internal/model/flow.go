package model

import "time"

// Protocol is the transport protocol category of a flow.
type Protocol string

const (
	ProtocolTCP   Protocol = "tcp"
	ProtocolUDP   Protocol = "udp"
	ProtocolICMP  Protocol = "icmp"
	ProtocolOther Protocol = "other"
)

// Valid reports whether p is a member of the closed protocol set.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP, ProtocolOther:
		return true
	}
	return false
}

// Direction indicates which endpoint initiated the conversation.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
	DirectionUnknown  Direction = "unknown"
)

// Label is the optional ground-truth category attached to a flow by the
// capture corpus. An empty Label means the flow is unlabeled.
type Label string

const (
	LabelNormal     Label = "normal"
	LabelBotnet     Label = "botnet"
	LabelBackground Label = "background"
	LabelCAndC      Label = "c&c"
)

// Valid reports whether l is a member of the closed label set.
// The empty label (absent) is not a member.
func (l Label) Valid() bool {
	switch l {
	case LabelNormal, LabelBotnet, LabelBackground, LabelCAndC:
		return true
	}
	return false
}

// Flow is one bidirectional NetFlow conversation record. Port 0 means the
// port is absent (protocols without ports, or stripped by the exporter).
// SrcBytes is the byte volume sent by the source endpoint, DstBytes the
// volume sent back; Bytes is the total for both directions.
type Flow struct {
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"` // seconds
	Protocol  Protocol  `json:"protocol"`
	SrcAddr   string    `json:"src_addr"`
	SrcPort   uint16    `json:"src_port"`
	DstAddr   string    `json:"dst_addr"`
	DstPort   uint16    `json:"dst_port"`
	Direction Direction `json:"direction"`
	Packets   int64     `json:"packets"`
	Bytes     int64     `json:"bytes"`
	SrcBytes  int64     `json:"src_bytes"`
	DstBytes  int64     `json:"dst_bytes"`
	Label     Label     `json:"label,omitempty"`
}

// FlowTable is the ordered set of flows for one capture scenario. It is
// produced by a parsing collaborator and treated as immutable by the
// analysis core: components read it and emit derived data, never mutate it.
type FlowTable struct {
	Scenario string `json:"scenario"`
	Flows    []Flow `json:"flows"`
}

// Len returns the number of flows in the table.
func (t *FlowTable) Len() int {
	return len(t.Flows)
}
