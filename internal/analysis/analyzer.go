package analysis

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FlowTriage/internal/anomaly"
	"FlowTriage/internal/config"
	"FlowTriage/internal/detect"
	"FlowTriage/internal/metrics"
	"FlowTriage/internal/model"
)

// Component names used in AnalysisResult.Components alongside the
// detector names.
const (
	componentFeatures    = "features"
	componentAnomaly     = "anomaly"
	componentClusters    = "clusters"
	componentThreatIntel = "threat_intel"
)

// Analyzer orchestrates one scenario's analysis: feature construction,
// anomaly scoring, behavior clustering, threat intelligence, and the
// behavior detectors, merged into a single AnalysisResult. Analyzers hold no per-scenario state, so one Analyzer may
// serve concurrent analyses of different scenarios.
type Analyzer struct {
	cfg       config.AnalysisConfig
	scorer    *anomaly.Scorer
	detectors []model.Detector
}

// NewAnalyzer creates an analyzer with every registered detector.
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		scorer:    anomaly.NewScorer(cfg.Anomaly),
		detectors: detect.CreateAll(&cfg),
	}
}

// subResult carries one concurrent sub-analysis outcome back to the
// orchestrator goroutine.
type subResult struct {
	component string
	findings  []model.Finding
	anomalies []model.AnomalyRecord
	clusters  []model.ClusterSummary
	intel     *model.ThreatIntel
	report    model.ComponentReport
	err       error
}

// Analyze runs the full pipeline over one flow table.
//
// The feature builder gates everything: its failure aborts the scenario and
// is returned wrapped with the scenario identity. The anomaly scorer, the
// behavior clustering, the threat intelligence pass and the detectors then
// run concurrently and independently; a failure in one is recorded on the
// result and surfaced through a PartialAnalysisError while the rest proceed.
// Summary statistics are computed directly from the table and are present
// even under partial failure.
func (a *Analyzer) Analyze(table *model.FlowTable) (*model.AnalysisResult, error) {
	started := time.Now()

	result := &model.AnalysisResult{
		Scenario:    table.Scenario,
		GeneratedAt: started.UTC(),
		Components:  make(map[string]model.ComponentReport),
	}
	result.Summary = Summarize(table)

	features, err := BuildFeatures(table)
	if err != nil {
		result.Components[componentFeatures] = model.ComponentReport{Status: model.StatusFailed, Detail: err.Error()}
		metrics.ScenariosAnalyzed.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("scenario %q: %w", table.Scenario, err)
	}
	result.Components[componentFeatures] = model.ComponentReport{Status: model.StatusOK}

	resultsChan := make(chan subResult, len(a.detectors)+3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		resultsChan <- a.runScorer(features)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		resultsChan <- a.runClustering(table)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		resultsChan <- subResult{
			component: componentThreatIntel,
			intel:     BuildThreatIntel(table),
			report:    model.ComponentReport{Status: model.StatusOK},
		}
	}()

	for _, detector := range a.detectors {
		wg.Add(1)
		go func(d model.Detector) {
			defer wg.Done()
			resultsChan <- a.runDetector(d, table, features)
		}(detector)
	}

	wg.Wait()
	close(resultsChan)

	failed := make(map[string]error)
	for sub := range resultsChan {
		result.Components[sub.component] = sub.report
		result.Findings = append(result.Findings, sub.findings...)
		if sub.anomalies != nil {
			result.Anomalies = sub.anomalies
		}
		if sub.clusters != nil {
			result.Clusters = sub.clusters
		}
		if sub.intel != nil {
			result.ThreatIntel = sub.intel
		}
		if sub.err != nil {
			failed[sub.component] = sub.err
		}
	}

	sortFindings(result.Findings)
	observe(result)
	metrics.AnalysisDuration.Observe(time.Since(started).Seconds())

	if len(failed) > 0 {
		metrics.ScenariosAnalyzed.WithLabelValues("partial").Inc()
		return result, &model.PartialAnalysisError{Scenario: table.Scenario, Failed: failed}
	}
	metrics.ScenariosAnalyzed.WithLabelValues("ok").Inc()
	return result, nil
}

func (a *Analyzer) runScorer(features []model.FeatureVector) subResult {
	records, err := a.scorer.Score(features)
	if err != nil {
		var insufficient *model.InsufficientDataError
		if errors.As(err, &insufficient) {
			// Too few flows is a documented skip, not a failure: the result
			// carries an empty record sequence plus the warning marker.
			return subResult{
				component: componentAnomaly,
				report:    model.ComponentReport{Status: model.StatusSkipped, Detail: err.Error()},
			}
		}
		return subResult{
			component: componentAnomaly,
			report:    model.ComponentReport{Status: model.StatusFailed, Detail: err.Error()},
			err:       err,
		}
	}
	return subResult{
		component: componentAnomaly,
		anomalies: records,
		report:    model.ComponentReport{Status: model.StatusOK},
	}
}

func (a *Analyzer) runClustering(table *model.FlowTable) subResult {
	if table.Len() < a.cfg.Cluster.MinPoints {
		return subResult{
			component: componentClusters,
			report: model.ComponentReport{
				Status: model.StatusSkipped,
				Detail: fmt.Sprintf("%d flows, need at least %d", table.Len(), a.cfg.Cluster.MinPoints),
			},
		}
	}
	clusters := ClusterBehavior(table, a.cfg.Cluster)
	return subResult{
		component: componentClusters,
		clusters:  clusters,
		report:    model.ComponentReport{Status: model.StatusOK},
	}
}

func (a *Analyzer) runDetector(d model.Detector, table *model.FlowTable, features []model.FeatureVector) subResult {
	findings, err := d.Detect(table, features)
	if err != nil {
		failure := &model.DetectorFailure{Detector: d.Name(), Err: err}
		return subResult{
			component: d.Name(),
			report:    model.ComponentReport{Status: model.StatusFailed, Detail: err.Error()},
			err:       failure,
		}
	}
	return subResult{
		component: d.Name(),
		findings:  findings,
		report:    model.ComponentReport{Status: model.StatusOK, Findings: len(findings)},
	}
}

// sortFindings fixes the result order: severity descending, then
// first-observed timestamp ascending, then detector name, then endpoints.
// Given identical inputs and configuration the sequence is identical.
func sortFindings(findings []model.Finding) {
	sort.Slice(findings, func(a, b int) bool {
		fa, fb := &findings[a], &findings[b]
		if fa.Severity != fb.Severity {
			return fa.Severity > fb.Severity
		}
		if !fa.FirstSeen.Equal(fb.FirstSeen) {
			return fa.FirstSeen.Before(fb.FirstSeen)
		}
		if fa.Detector != fb.Detector {
			return fa.Detector < fb.Detector
		}
		if fa.SrcAddr != fb.SrcAddr {
			return fa.SrcAddr < fb.SrcAddr
		}
		return fa.DstAddr < fb.DstAddr
	})
}

func observe(result *model.AnalysisResult) {
	for _, f := range result.Findings {
		metrics.FindingsTotal.WithLabelValues(f.Detector, f.Severity.String()).Inc()
	}
	metrics.AnomaliesFlagged.Add(float64(result.AnomalyCount()))
}
