// flowgen writes a synthetic labeled binetflow file containing benign
// background traffic plus planted beaconing, port scan, exfiltration, and
// DNS tunneling patterns, for exercising the analysis pipeline end to end.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"
)

const timeLayout = "2006/01/02 15:04:05.000000"

type flowLine struct {
	start    time.Time
	dur      float64
	proto    string
	srcAddr  string
	srcPort  uint16
	dir      string
	dstAddr  string
	dstPort  uint16
	packets  int
	bytes    int
	srcBytes int
	label    string
}

func main() {
	outputFile := flag.String("o", "data/synthetic.binetflow", "Output binetflow file path")
	flowCount := flag.Int("flows", 2000, "Number of benign background flows to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	base := time.Date(2011, 8, 10, 9, 0, 0, 0, time.UTC)

	var flows []flowLine
	flows = append(flows, benignFlows(rng, base, *flowCount)...)
	flows = append(flows, beaconFlows(base)...)
	flows = append(flows, scanFlows(base)...)
	flows = append(flows, exfilFlows(rng, base)...)
	flows = append(flows, tunnelFlows(rng, base)...)

	sort.Slice(flows, func(i, j int) bool { return flows[i].start.Before(flows[j].start) })

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "StartTime,Dur,Proto,SrcAddr,Sport,Dir,DstAddr,Dport,State,sTos,dTos,TotPkts,TotBytes,SrcBytes,Label")
	for _, fl := range flows {
		fmt.Fprintf(w, "%s,%.6f,%s,%s,%d,%s,%s,%d,CON,0,0,%d,%d,%d,%s\n",
			fl.start.Format(timeLayout), fl.dur, fl.proto, fl.srcAddr, fl.srcPort,
			fl.dir, fl.dstAddr, fl.dstPort, fl.packets, fl.bytes, fl.srcBytes, fl.label)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to flush output: %v", err)
	}

	log.Printf("Wrote %d flows to %s", len(flows), *outputFile)
}

// benignFlows spreads ordinary client traffic over two hours with jittered
// timing and sizes.
func benignFlows(rng *rand.Rand, base time.Time, count int) []flowLine {
	var flows []flowLine
	for i := 0; i < count; i++ {
		src := fmt.Sprintf("192.168.1.%d", 10+rng.Intn(50))
		dst := fmt.Sprintf("10.0.%d.%d", rng.Intn(256), 1+rng.Intn(254))
		bytes := 500 + rng.Intn(20000)
		flows = append(flows, flowLine{
			start:    base.Add(time.Duration(rng.Int63n(int64(2 * time.Hour)))),
			dur:      0.5 + rng.Float64()*30,
			proto:    "tcp",
			srcAddr:  src,
			srcPort:  uint16(1024 + rng.Intn(60000)),
			dir:      "->",
			dstAddr:  dst,
			dstPort:  [4]uint16{80, 443, 8080, 22}[rng.Intn(4)],
			packets:  5 + rng.Intn(100),
			bytes:    bytes,
			srcBytes: bytes / 3,
			label:    "flow=Background",
		})
	}
	return flows
}

// beaconFlows plants a 45-second fixed-interval callback from one host to an
// external address.
func beaconFlows(base time.Time) []flowLine {
	var flows []flowLine
	for i := 0; i < 40; i++ {
		flows = append(flows, flowLine{
			start:    base.Add(time.Duration(i) * 45 * time.Second),
			dur:      0.2,
			proto:    "tcp",
			srcAddr:  "192.168.1.101",
			srcPort:  uint16(40000 + i),
			dir:      "->",
			dstAddr:  "203.0.113.77",
			dstPort:  443,
			packets:  6,
			bytes:    320,
			srcBytes: 180,
			label:    "flow=From-Botnet-V1-TCP-CC",
		})
	}
	return flows
}

// scanFlows plants a 50-port sweep inside a ten second window.
func scanFlows(base time.Time) []flowLine {
	start := base.Add(30 * time.Minute)
	var flows []flowLine
	for i := 0; i < 50; i++ {
		flows = append(flows, flowLine{
			start:    start.Add(time.Duration(i) * 200 * time.Millisecond),
			dur:      0.01,
			proto:    "tcp",
			srcAddr:  "192.168.1.102",
			srcPort:  uint16(50000 + i),
			dir:      "->",
			dstAddr:  "192.168.1.200",
			dstPort:  uint16(1 + i),
			packets:  1,
			bytes:    60,
			srcBytes: 60,
			label:    "flow=From-Botnet-V1-TCP-Attempt",
		})
	}
	return flows
}

// exfilFlows plants a handful of outsized outbound transfers to an external
// host.
func exfilFlows(rng *rand.Rand, base time.Time) []flowLine {
	start := base.Add(time.Hour)
	var flows []flowLine
	for i := 0; i < 5; i++ {
		bytes := 5_000_000 + rng.Intn(2_000_000)
		flows = append(flows, flowLine{
			start:    start.Add(time.Duration(i) * 2 * time.Minute),
			dur:      45,
			proto:    "tcp",
			srcAddr:  "192.168.1.103",
			srcPort:  uint16(42000 + i),
			dir:      "->",
			dstAddr:  "198.51.100.9",
			dstPort:  443,
			packets:  4000,
			bytes:    bytes + bytes/10,
			srcBytes: bytes,
			label:    "flow=From-Botnet-V1-TCP-HTTP",
		})
	}
	return flows
}

// tunnelFlows plants a chatty single-resolver DNS client with oversized
// queries.
func tunnelFlows(rng *rand.Rand, base time.Time) []flowLine {
	start := base.Add(90 * time.Minute)
	var flows []flowLine
	for i := 0; i < 120; i++ {
		flows = append(flows, flowLine{
			start:    start.Add(time.Duration(i) * 3 * time.Second),
			dur:      0.05,
			proto:    "udp",
			srcAddr:  "192.168.1.104",
			srcPort:  uint16(30000 + rng.Intn(10000)),
			dir:      "->",
			dstAddr:  "203.0.113.53",
			dstPort:  53,
			packets:  2,
			bytes:    400 + rng.Intn(200),
			srcBytes: 300 + rng.Intn(150),
			label:    "flow=From-Botnet-V1-UDP-DNS",
		})
	}
	return flows
}
