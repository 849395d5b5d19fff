// Package pcap turns raw packet captures into flow tables so capture files
// can be analyzed alongside NetFlow exports.
package pcap

import (
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// packetInfo is the decoded subset of one packet the flow assembler needs.
type packetInfo struct {
	Timestamp time.Time
	SrcAddr   string
	DstAddr   string
	SrcPort   uint16
	DstPort   uint16
	Protocol  layers.IPProtocol
	Length    int
}

// Reader reads packets from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadPackets decodes every packet in the capture and sends the parsed
// packetInfo to the provided channel. It closes the channel when done.
func (r *Reader) ReadPackets(out chan<- *packetInfo) {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		info, err := parsePacket(packet)
		if err != nil {
			// Unsupported packet types and corrupt data are skipped, not fatal.
			log.Printf("Error parsing packet: %v", err)
			continue
		}
		out <- info
	}
}

func parsePacket(packet gopacket.Packet) (*packetInfo, error) {
	info := &packetInfo{
		Timestamp: time.Now(),
		Length:    len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil {
		info.Timestamp = meta.Timestamp
	}

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := l.(*layers.IPv4)
	info.SrcAddr = ip.SrcIP.String()
	info.DstAddr = ip.DstIP.String()
	info.Protocol = ip.Protocol

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		info.SrcPort = uint16(tcp.SrcPort)
		info.DstPort = uint16(tcp.DstPort)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		info.SrcPort = uint16(udp.SrcPort)
		info.DstPort = uint16(udp.DstPort)
	case ip.Protocol == layers.IPProtocolICMPv4:
		// ICMP flows carry no ports.
	default:
		return nil, fmt.Errorf("unsupported transport protocol %s", ip.Protocol)
	}

	return info, nil
}
