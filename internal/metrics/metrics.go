// Package metrics exposes prometheus instrumentation for the analysis
// pipeline and the query API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScenariosAnalyzed counts completed analysis runs by outcome.
	ScenariosAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtriage_scenarios_analyzed_total",
		Help: "Completed scenario analyses, by outcome (ok, partial, failed).",
	}, []string{"outcome"})

	// FindingsTotal counts emitted findings by detector and severity.
	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtriage_findings_total",
		Help: "Findings emitted by the behavior detectors.",
	}, []string{"detector", "severity"})

	// AnomaliesFlagged counts flows flagged by the anomaly scorer.
	AnomaliesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowtriage_anomalies_flagged_total",
		Help: "Flows flagged anomalous by the isolation forest.",
	})

	// AnalysisDuration observes wall-clock time per scenario analysis.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowtriage_analysis_duration_seconds",
		Help:    "Wall-clock duration of one scenario analysis.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// APIRequests counts query API requests by route and status code.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtriage_api_requests_total",
		Help: "Query API requests.",
	}, []string{"route", "code"})
)
