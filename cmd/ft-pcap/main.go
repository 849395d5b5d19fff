package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"FlowTriage/internal/analysis"
	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
	"FlowTriage/internal/report"
	"FlowTriage/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	outDir := flag.String("o", "results", "output directory for JSON results")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: ft-pcap [flags] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 3. Assemble flows from the capture
	scenario := strings.TrimSuffix(filepath.Base(pcapFilePath), filepath.Ext(pcapFilePath))
	log.Printf("Reading packets from '%s'...", pcapFilePath)
	table, err := pcap.LoadFile(pcapFilePath, scenario)
	if err != nil {
		log.Fatalf("Failed to assemble flows: %v", err)
	}
	log.Printf("Assembled %d flows from capture.", table.Len())

	// 4. Run the analysis pipeline
	analyzer := analysis.NewAnalyzer(cfg.Analysis)
	result, err := analyzer.Analyze(table)
	if err != nil {
		var partial *model.PartialAnalysisError
		if !errors.As(err, &partial) {
			log.Fatalf("Analysis failed: %v", err)
		}
		log.Printf("WARN: %v", partial)
	}

	log.Printf("Scenario '%s': %d anomalies, %d findings",
		result.Scenario, result.AnomalyCount(), len(result.Findings))

	// 5. Write the result to disk
	writer := report.NewJSONWriter(config.JSONWriterConfig{RootPath: *outDir})
	if err := writer.Write(result); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
	log.Printf("Result written under %s/%s", *outDir, result.Scenario)
}
