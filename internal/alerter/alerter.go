// Package alerter turns analysis findings into operator notifications.
package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// Alerter evaluates analysis results against the severity floor and sends a
// consolidated digest through every configured notifier.
type Alerter struct {
	notifiers   []model.Notifier
	minSeverity model.Severity
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg config.AlerterConfig, notifiers ...model.Notifier) (*Alerter, error) {
	minSeverity, err := model.ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return nil, fmt.Errorf("invalid min_severity for alerter: %w", err)
	}

	return &Alerter{notifiers: notifiers, minSeverity: minSeverity}, nil
}

// Dispatch sends one digest covering every finding at or above the severity
// floor. Results with nothing above the floor produce no notification.
func (a *Alerter) Dispatch(result *model.AnalysisResult) error {
	var qualifying []model.Finding
	for _, f := range result.Findings {
		if f.Severity >= a.minSeverity {
			qualifying = append(qualifying, f)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	subject := fmt.Sprintf("FlowTriage Alert Summary: %s (%d Triggered)", result.Scenario, len(qualifying))
	body := buildDigest(result, qualifying)

	log.Printf("Alerter dispatching %d finding(s) for scenario '%s'", len(qualifying), result.Scenario)

	// Fan out to all notifiers concurrently and collect failures.
	var wg sync.WaitGroup
	errChan := make(chan error, len(a.notifiers))
	for _, notifier := range a.notifiers {
		wg.Add(1)
		go func(n model.Notifier) {
			defer wg.Done()
			if err := n.Send(subject, body); err != nil {
				errChan <- err
			}
		}(notifier)
	}
	wg.Wait()
	close(errChan)

	var errs []string
	for err := range errChan {
		log.Printf("ERROR: Failed to send alert notification: %v", err)
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("alert dispatch failed for %d notifier(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// buildDigest renders the consolidated notification body.
func buildDigest(result *model.AnalysisResult, findings []model.Finding) string {
	var b strings.Builder
	b.WriteString("<h1>FlowTriage Alert Summary</h1>")
	b.WriteString(fmt.Sprintf("<p>Scenario <b>%s</b>: %d finding(s) at or above the alert threshold.</p><hr>",
		result.Scenario, len(findings)))

	for _, f := range findings {
		b.WriteString(fmt.Sprintf(
			"<p><b>[%s] %s</b><br>%s -&gt; %s<br>First seen: %s<br>%s</p>",
			strings.ToUpper(f.Severity.String()),
			f.Detector,
			f.SrcAddr,
			f.DstAddr,
			f.FirstSeen.UTC().Format("2006-01-02 15:04:05"),
			f.Description,
		))
	}

	b.WriteString(fmt.Sprintf("<hr><p>Flows analyzed: %d, anomalies flagged: %d.</p>",
		result.Summary.FlowCount, result.AnomalyCount()))
	return b.String()
}
