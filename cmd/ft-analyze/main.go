package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"sort"
	"sync"

	"FlowTriage/internal/alerter"
	"FlowTriage/internal/analysis"
	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
	"FlowTriage/internal/notification"
	"FlowTriage/internal/report"
	"FlowTriage/pkg/netflow"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	dataDir := flag.String("data", "data", "directory containing *.binetflow capture files")
	flag.Parse()

	log.Println("Starting ft-analyze...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Expose prometheus metrics if configured
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics endpoint listening on %s", cfg.Metrics.ListenAddr)
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// 3. Build the result writers from config
	writers, closers := buildWriters(cfg.Writers)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if len(writers) == 0 {
		log.Println("No writers enabled, results will only be logged.")
	}

	// 4. Optional alerting and publishing
	var dispatcher *alerter.Alerter
	if cfg.Alerter.Enabled {
		dispatcher, err = alerter.NewAlerter(cfg.Alerter, notification.NewEmailNotifier(cfg.SMTP))
		if err != nil {
			log.Fatalf("Failed to create alerter: %v", err)
		}
	}

	var publisher *notification.Publisher
	if cfg.NATS.Enabled {
		publisher, err = notification.NewPublisher(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to create NATS publisher: %v", err)
		}
		defer publisher.Close()
	}

	// 5. Parse every scenario in the data directory
	tables, err := netflow.ParseDir(*dataDir)
	if err != nil {
		log.Fatalf("Failed to load capture files: %v", err)
	}
	log.Printf("Loaded %d scenario(s) from %s", len(tables), *dataDir)

	scenarios := make([]string, 0, len(tables))
	for name := range tables {
		scenarios = append(scenarios, name)
	}
	sort.Strings(scenarios)

	// 6. Analyze scenarios on a bounded worker pool
	analyzer := analysis.NewAnalyzer(cfg.Analysis)
	jobs := make(chan string, len(scenarios))
	var wg sync.WaitGroup

	for i := 0; i < cfg.Analysis.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scenario := range jobs {
				runScenario(analyzer, tables[scenario], writers, dispatcher, publisher)
			}
		}()
	}

	for _, scenario := range scenarios {
		jobs <- scenario
	}
	close(jobs)
	wg.Wait()

	log.Println("All scenarios analyzed.")
}

func runScenario(analyzer *analysis.Analyzer, table *model.FlowTable, writers []model.Writer,
	dispatcher *alerter.Alerter, publisher *notification.Publisher) {

	result, err := analyzer.Analyze(table)
	if err != nil {
		var partial *model.PartialAnalysisError
		if !errors.As(err, &partial) {
			log.Printf("ERROR: analysis of scenario '%s' failed: %v", table.Scenario, err)
			return
		}
		// Partial results are still worth persisting.
		log.Printf("WARN: %v", partial)
	}

	log.Printf("Scenario '%s': %d flows, %d anomalies, %d findings",
		result.Scenario, result.Summary.FlowCount, result.AnomalyCount(), len(result.Findings))

	for _, w := range writers {
		if err := w.Write(result); err != nil {
			log.Printf("ERROR: failed to write result for scenario '%s': %v", result.Scenario, err)
		}
	}

	if publisher != nil {
		if err := publisher.Publish(result); err != nil {
			log.Printf("ERROR: failed to publish findings for scenario '%s': %v", result.Scenario, err)
		}
	}

	if dispatcher != nil {
		if err := dispatcher.Dispatch(result); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
}

// buildWriters instantiates every enabled writer definition. The returned
// closers release writer connections at shutdown.
func buildWriters(defs []config.WriterDef) ([]model.Writer, []func()) {
	var writers []model.Writer
	var closers []func()

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		switch def.Type {
		case "clickhouse":
			w, err := report.NewClickHouseWriter(def.ClickHouse)
			if err != nil {
				log.Fatalf("Failed to create clickhouse writer: %v", err)
			}
			writers = append(writers, w)
			closers = append(closers, func() { w.Close() })
		case "json":
			writers = append(writers, report.NewJSONWriter(def.JSON))
		default:
			log.Fatalf("Unknown writer type: %s", def.Type)
		}
	}
	return writers, closers
}
