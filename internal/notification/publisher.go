package notification

import (
	"encoding/json"
	"log"
	"time"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"

	"github.com/nats-io/nats.go"
)

// FindingEvent is the JSON payload published for each qualifying finding.
type FindingEvent struct {
	Scenario    string        `json:"scenario"`
	GeneratedAt time.Time     `json:"generated_at"`
	Finding     model.Finding `json:"finding"`
}

// Publisher pushes findings onto a NATS subject for downstream consumers.
type Publisher struct {
	nc          *nats.Conn
	subject     string
	minSeverity model.Severity
}

// NewPublisher creates a new NATS publisher. Findings below the configured
// minimum severity are dropped silently.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	minSeverity, err := model.ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject, minSeverity: minSeverity}, nil
}

// Publish sends every finding at or above the severity floor.
func (p *Publisher) Publish(result *model.AnalysisResult) error {
	for _, finding := range result.Findings {
		if finding.Severity < p.minSeverity {
			continue
		}

		event := FindingEvent{
			Scenario:    result.Scenario,
			GeneratedAt: result.GeneratedAt,
			Finding:     finding,
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		if err := p.nc.Publish(p.subject, data); err != nil {
			return err
		}
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
