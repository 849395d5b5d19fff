package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/metrics"
	"FlowTriage/internal/query"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type apiServer struct {
	querier query.Querier
}

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Create the querier from the first enabled ClickHouse writer
	var querier query.Querier
	for _, writerDef := range cfg.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			log.Println("Found enabled ClickHouse writer configuration.")
			querier, err = query.NewClickHouseQuerier(writerDef.ClickHouse)
			if err != nil {
				log.Fatalf("Failed to create querier: %v", err)
			}
			break
		}
	}
	if querier == nil {
		log.Fatalf("No enabled ClickHouse writer found in config. API server cannot start.")
	}
	defer querier.Close()

	// 3. Run the HTTP server
	server := &apiServer{querier: querier}
	httpServer := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: server.routes(),
	}

	go func() {
		log.Printf("HTTP API server starting on %s", cfg.API.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 4. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)

	log.Println("Server exited.")
}

func (s *apiServer) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/scenarios/{scenario}/summary", s.handleSummary).Methods("GET")
	r.HandleFunc("/api/v1/scenarios/{scenario}/findings", s.handleFindings).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	scenario := mux.Vars(r)["scenario"]

	summary, err := s.querier.ScenarioSummary(r.Context(), scenario)
	if err != nil {
		writeError(w, "summary", http.StatusNotFound, err)
		return
	}

	writeJSON(w, "summary", summary)
}

func (s *apiServer) handleFindings(w http.ResponseWriter, r *http.Request) {
	scenario := mux.Vars(r)["scenario"]
	detector := r.URL.Query().Get("detector")
	severity := r.URL.Query().Get("severity")

	findings, err := s.querier.Findings(r.Context(), scenario, detector, severity)
	if err != nil {
		writeError(w, "findings", http.StatusInternalServerError, err)
		return
	}
	if findings == nil {
		findings = []query.StoredFinding{}
	}

	writeJSON(w, "findings", findings)
}

func writeJSON(w http.ResponseWriter, route string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
		return
	}
	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(http.StatusOK)).Inc()
}

func writeError(w http.ResponseWriter, route string, code int, err error) {
	log.Printf("Request on route '%s' failed: %v", route, err)
	http.Error(w, err.Error(), code)
	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
