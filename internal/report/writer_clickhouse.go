// Package report persists analysis results to their configured sinks.
package report

import (
	"context"
	"fmt"
	"log"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createFindingsTable = `
CREATE TABLE IF NOT EXISTS flow_findings (
    GeneratedAt DateTime,
    Scenario    String,
    Detector    String,
    Severity    String,
    SrcAddr     String,
    DstAddr     String,
    FirstSeen   DateTime,
    FlowCount   UInt32,
    Description String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Scenario, GeneratedAt);
`

const createSummariesTable = `
CREATE TABLE IF NOT EXISTS flow_summaries (
    GeneratedAt  DateTime,
    Scenario     String,
    FlowCount    UInt64,
    TotalBytes   UInt64,
    TotalPackets UInt64,
    StartTime    DateTime,
    EndTime      DateTime,
    Anomalies    UInt64,
    Findings     UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Scenario, GeneratedAt);
`

const createAnomaliesTable = `
CREATE TABLE IF NOT EXISTS flow_anomalies (
    GeneratedAt DateTime,
    Scenario    String,
    FlowIndex   UInt32,
    Score       Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Scenario, GeneratedAt, FlowIndex);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures both result tables
// exist before returning a usable writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createFindingsTable, createSummariesTable, createAnomaliesTable} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
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

// Write inserts the scenario summary row, one row per flagged anomaly, and
// one row per finding.
func (w *ClickHouseWriter) Write(result *model.AnalysisResult) error {
	if err := w.writeSummary(result); err != nil {
		return err
	}
	if err := w.writeAnomalies(result); err != nil {
		return err
	}
	if len(result.Findings) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_findings")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, f := range result.Findings {
		err = batch.Append(
			result.GeneratedAt,
			result.Scenario,
			f.Detector,
			f.Severity.String(),
			f.SrcAddr,
			f.DstAddr,
			f.FirstSeen,
			uint32(len(f.FlowIndexes)),
			f.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to append finding to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d findings to ClickHouse for scenario '%s'", len(result.Findings), result.Scenario)
	return nil
}

func (w *ClickHouseWriter) writeSummary(result *model.AnalysisResult) error {
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	err = batch.Append(
		result.GeneratedAt,
		result.Scenario,
		uint64(result.Summary.FlowCount),
		uint64(result.Summary.TotalBytes),
		uint64(result.Summary.TotalPackets),
		result.Summary.StartTime,
		result.Summary.EndTime,
		uint64(result.AnomalyCount()),
		uint64(len(result.Findings)),
	)
	if err != nil {
		return fmt.Errorf("failed to append summary to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (w *ClickHouseWriter) writeAnomalies(result *model.AnalysisResult) error {
	if result.AnomalyCount() == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_anomalies")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, rec := range result.Anomalies {
		if !rec.IsAnomaly {
			continue
		}
		err = batch.Append(
			result.GeneratedAt,
			result.Scenario,
			uint32(rec.FlowIndex),
			rec.Score,
		)
		if err != nil {
			return fmt.Errorf("failed to append anomaly to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close releases the underlying ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
