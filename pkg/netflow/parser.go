// Package netflow parses Argus-style binetflow capture files into flow
// tables.
package netflow

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"FlowTriage/internal/model"
)

// Column order of the Argus binetflow export:
// StartTime,Dur,Proto,SrcAddr,Sport,Dir,DstAddr,Dport,State,sTos,dTos,TotPkts,TotBytes,SrcBytes,Label
const minFields = 14

var (
	whitespaceSplit = regexp.MustCompile(`\s+`)

	timeLayouts = []string{
		"2006/01/02 15:04:05.000000",
		"2006/01/02 15:04:05.000",
		"2006/01/02 15:04:05",
	}

	// Argus sometimes exports well-known ports as service names.
	servicePorts = map[string]uint16{
		"http": 80, "https": 443, "ftp": 21, "ssh": 22, "telnet": 23,
		"smtp": 25, "dns": 53, "pop3": 110, "imap": 143, "snmp": 161,
	}
)

// ParseFile reads one binetflow file into a flow table. The scenario name is
// the file name without its extension. Malformed lines are logged and
// skipped rather than failing the whole file.
func ParseFile(path string) (*model.FlowTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open netflow file: %w", err)
	}
	defer file.Close()

	scenario := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	table := &model.FlowTable{Scenario: scenario}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "StartTime,") {
			continue
		}

		flow, err := parseLine(line)
		if err != nil {
			skipped++
			log.Printf("WARN: %s line %d: %v", scenario, lineNum, err)
			continue
		}
		table.Flows = append(table.Flows, flow)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read netflow file: %w", err)
	}

	if table.Len() == 0 {
		return nil, fmt.Errorf("no valid flows in %s", path)
	}
	if skipped > 0 {
		log.Printf("Parsed %d flows from %s (%d malformed lines skipped)", table.Len(), scenario, skipped)
	}
	return table, nil
}

func parseLine(line string) (model.Flow, error) {
	var fields []string
	if strings.Contains(line, ",") {
		fields = strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
	} else {
		fields = whitespaceSplit.Split(line, -1)
	}

	if len(fields) < minFields {
		return model.Flow{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}

	startTime, err := parseTime(fields[0])
	if err != nil {
		return model.Flow{}, err
	}

	duration, err := parseFloat(fields[1])
	if err != nil {
		return model.Flow{}, fmt.Errorf("bad duration %q: %w", fields[1], err)
	}

	packets, err := parseInt(fields[11])
	if err != nil {
		return model.Flow{}, fmt.Errorf("bad packet count %q: %w", fields[11], err)
	}
	bytes, err := parseInt(fields[12])
	if err != nil {
		return model.Flow{}, fmt.Errorf("bad byte count %q: %w", fields[12], err)
	}
	srcBytes, err := parseInt(fields[13])
	if err != nil {
		return model.Flow{}, fmt.Errorf("bad source byte count %q: %w", fields[13], err)
	}

	label := model.Label("")
	if len(fields) > 14 {
		label = categorizeLabel(fields[14])
	}

	return model.Flow{
		StartTime: startTime,
		Duration:  duration,
		Protocol:  categorizeProtocol(fields[2]),
		SrcAddr:   fields[3],
		SrcPort:   parsePort(fields[4]),
		Direction: parseDirection(fields[5]),
		DstAddr:   fields[6],
		DstPort:   parsePort(fields[7]),
		Packets:   packets,
		Bytes:     bytes,
		SrcBytes:  srcBytes,
		DstBytes:  bytes - srcBytes,
		Label:     label,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

// Argus writes '*' for fields it could not measure.
func parseFloat(s string) (float64, error) {
	if s == "*" || s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	if s == "*" || s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// parsePort resolves a port field to a number. Service names map to their
// well-known ports; anything unresolvable becomes 0 (absent).
func parsePort(s string) uint16 {
	if s == "" || s == "*" {
		return 0
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(n)
	}
	// Some exporters write hexadecimal ports for non-TCP/UDP protocols.
	if strings.HasPrefix(s, "0x") {
		if n, err := strconv.ParseUint(s[2:], 16, 16); err == nil {
			return uint16(n)
		}
	}
	if port, ok := servicePorts[strings.ToLower(s)]; ok {
		return port
	}
	return 0
}

func parseDirection(s string) model.Direction {
	switch {
	case strings.Contains(s, "<") && strings.Contains(s, ">"):
		return model.DirectionUnknown // bidirectional or unconfirmed
	case strings.Contains(s, "->"):
		return model.DirectionOutbound
	case strings.Contains(s, "<-"):
		return model.DirectionInbound
	default:
		return model.DirectionUnknown
	}
}

func categorizeProtocol(s string) model.Protocol {
	switch strings.ToLower(s) {
	case "tcp":
		return model.ProtocolTCP
	case "udp":
		return model.ProtocolUDP
	case "icmp":
		return model.ProtocolICMP
	default:
		return model.ProtocolOther
	}
}

// categorizeLabel maps the free-text corpus label onto the closed label set.
// Botnet wins over C&C when both substrings appear, matching how the CTU
// labels nest ("From-Botnet-V50-1-CC74"). Unrecognized labels stay empty.
func categorizeLabel(s string) model.Label {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "botnet"):
		return model.LabelBotnet
	case strings.Contains(lower, "c&c") || strings.Contains(lower, "cc"):
		return model.LabelCAndC
	case strings.Contains(lower, "normal"):
		return model.LabelNormal
	case strings.Contains(lower, "background"):
		return model.LabelBackground
	default:
		return ""
	}
}

// ParseDir parses every *.binetflow file under dir, keyed by scenario name.
func ParseDir(dir string) (map[string]*model.FlowTable, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.binetflow"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .binetflow files found in %s", dir)
	}

	tables := make(map[string]*model.FlowTable, len(paths))
	for _, path := range paths {
		table, err := ParseFile(path)
		if err != nil {
			log.Printf("WARN: skipping %s: %v", path, err)
			continue
		}
		tables[table.Scenario] = table
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no parsable .binetflow files in %s", dir)
	}
	return tables, nil
}
