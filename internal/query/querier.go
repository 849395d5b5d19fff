// Package query reads stored analysis results back out of ClickHouse for the
// HTTP API.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FlowTriage/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ScenarioSummary is the latest stored summary row for one scenario.
type ScenarioSummary struct {
	Scenario     string    `json:"scenario"`
	GeneratedAt  time.Time `json:"generated_at"`
	FlowCount    uint64    `json:"flow_count"`
	TotalBytes   uint64    `json:"total_bytes"`
	TotalPackets uint64    `json:"total_packets"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Anomalies    uint64    `json:"anomalies"`
	Findings     uint64    `json:"findings"`
}

// StoredFinding is one finding row as persisted by the ClickHouse writer.
type StoredFinding struct {
	GeneratedAt time.Time `json:"generated_at"`
	Scenario    string    `json:"scenario"`
	Detector    string    `json:"detector"`
	Severity    string    `json:"severity"`
	SrcAddr     string    `json:"src_addr"`
	DstAddr     string    `json:"dst_addr"`
	FirstSeen   time.Time `json:"first_seen"`
	FlowCount   uint32    `json:"flow_count"`
	Description string    `json:"description"`
}

// Querier defines the interface for reading analysis results.
type Querier interface {
	ScenarioSummary(ctx context.Context, scenario string) (*ScenarioSummary, error)
	Findings(ctx context.Context, scenario, detector, severity string) ([]StoredFinding, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// ScenarioSummary returns the most recent summary for one scenario.
func (q *clickhouseQuerier) ScenarioSummary(ctx context.Context, scenario string) (*ScenarioSummary, error) {
	query := `
		SELECT
			Scenario,
			GeneratedAt,
			FlowCount,
			TotalBytes,
			TotalPackets,
			StartTime,
			EndTime,
			Anomalies,
			Findings
		FROM flow_summaries
		WHERE Scenario = ?
		ORDER BY GeneratedAt DESC
		LIMIT 1
	`

	var s ScenarioSummary
	row := q.conn.QueryRow(ctx, query, scenario)
	err := row.Scan(
		&s.Scenario,
		&s.GeneratedAt,
		&s.FlowCount,
		&s.TotalBytes,
		&s.TotalPackets,
		&s.StartTime,
		&s.EndTime,
		&s.Anomalies,
		&s.Findings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenario summary: %w", err)
	}

	return &s, nil
}

// Findings returns the stored findings for one scenario, optionally filtered
// by detector and severity.
func (q *clickhouseQuerier) Findings(ctx context.Context, scenario, detector, severity string) ([]StoredFinding, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			GeneratedAt,
			Scenario,
			Detector,
			Severity,
			SrcAddr,
			DstAddr,
			FirstSeen,
			FlowCount,
			Description
		FROM flow_findings
	`)

	whereClauses := []string{"Scenario = ?"}
	args := []interface{}{scenario}

	if detector != "" {
		whereClauses = append(whereClauses, "Detector = ?")
		args = append(args, detector)
	}
	if severity != "" {
		whereClauses = append(whereClauses, "Severity = ?")
		args = append(args, severity)
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(" ORDER BY GeneratedAt DESC, FirstSeen ASC")

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var findings []StoredFinding
	for rows.Next() {
		var f StoredFinding
		err := rows.Scan(
			&f.GeneratedAt,
			&f.Scenario,
			&f.Detector,
			&f.Severity,
			&f.SrcAddr,
			&f.DstAddr,
			&f.FirstSeen,
			&f.FlowCount,
			&f.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}

	return findings, nil
}

// Close releases the underlying ClickHouse connection.
func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
