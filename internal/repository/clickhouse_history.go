package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgch "RiskPulse/pkg/clickhouse"
	applogger "RiskPulse/pkg/logger"
)

const (
	PayloadTable  = "intelligence_payloads"
	DecisionTable = "execution_decisions"
)

// HistorySchema returns the idempotent DDL for the history tables in database.
func HistorySchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id String,
    ts DateTime64(3, 'UTC'),
    score Float64,
    classification LowCardinality(String),
    confidence Float64,
    trend LowCardinality(String),
    health LowCardinality(String),
    cycle_ms Float64,
    destabilizing_links UInt32,
    payload String
) ENGINE = MergeTree ORDER BY ts`, database, PayloadTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts DateTime64(3, 'UTC'),
    should_execute UInt8,
    should_cancel UInt8,
    emergency_abort UInt8,
    passed_count UInt32,
    confidence Float64,
    consensus LowCardinality(String),
    conflict_level Float64,
    reason String,
    decision String,
    matrix String
) ENGINE = MergeTree ORDER BY ts`, database, DecisionTable),
	}
}

// CHHistoryStore implements HistoryStore backed by ClickHouse.
type CHHistoryStore struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
	now      func() time.Time
	l        *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, l *applogger.Logger) *CHHistoryStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHHistoryStore{client: ch, db: ch.DB(), database: ch.Database(), now: time.Now, l: l}
}

func (s *CHHistoryStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, HistorySchema(s.database))
}

type payloadRow struct {
	ID                 string
	TS                 time.Time
	Score              float64
	Classification     string
	Confidence         float64
	Trend              string
	Health             string
	CycleMs            float64
	DestabilizingLinks uint32
	Payload            string
}

func toPayloadRow(p *models.IntelligencePayload) (payloadRow, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return payloadRow{}, fmt.Errorf("encode payload: %w", err)
	}
	return payloadRow{
		ID:                 p.ID,
		TS:                 p.Timestamp.UTC(),
		Score:              p.Risk.Score,
		Classification:     string(p.Risk.Classification),
		Confidence:         p.Risk.Confidence,
		Trend:              string(p.Risk.Trend),
		Health:             string(p.Performance.Health),
		CycleMs:            p.Performance.CycleTimeMs,
		DestabilizingLinks: uint32(max(p.Correlation.DestabilizingLinks, 0)),
		Payload:            string(raw),
	}, nil
}

func (s *CHHistoryStore) StorePayload(ctx context.Context, p *models.IntelligencePayload) error {
	if p == nil {
		return fmt.Errorf("store payload: nil payload")
	}
	row, err := toPayloadRow(p)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s.%s (id, ts, score, classification, confidence, trend, health, cycle_ms, destabilizing_links, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database, PayloadTable)
	if _, err := s.db.ExecContext(ctx, q,
		row.ID, row.TS, row.Score, row.Classification, row.Confidence,
		row.Trend, row.Health, row.CycleMs, row.DestabilizingLinks, row.Payload,
	); err != nil {
		s.l.Error("clickhouse store_payload error", applogger.String("id", row.ID), applogger.Error(err))
		return fmt.Errorf("store payload: %w", err)
	}
	return nil
}

type decisionRow struct {
	TS             time.Time
	ShouldExecute  uint8
	ShouldCancel   uint8
	EmergencyAbort uint8
	PassedCount    uint32
	Confidence     float64
	Consensus      string
	ConflictLevel  float64
	Reason         string
	Decision       string
	Matrix         string
}

func toDecisionRow(now time.Time, d *models.ExecutionDecision, m *models.FusionMatrix) (decisionRow, error) {
	rawD, err := json.Marshal(d)
	if err != nil {
		return decisionRow{}, fmt.Errorf("encode decision: %w", err)
	}
	row := decisionRow{
		TS:             now.UTC(),
		ShouldExecute:  boolToUint8(d.ShouldExecute),
		ShouldCancel:   boolToUint8(d.ShouldCancel),
		EmergencyAbort: boolToUint8(d.EmergencyAbort),
		PassedCount:    uint32(max(d.PassedCount, 0)),
		Confidence:     d.Confidence,
		Reason:         d.Reason,
		Decision:       string(rawD),
	}
	if m != nil {
		rawM, err := json.Marshal(m)
		if err != nil {
			return decisionRow{}, fmt.Errorf("encode matrix: %w", err)
		}
		row.Consensus = string(m.ConsensusAction)
		row.ConflictLevel = m.ConflictLevel
		row.Matrix = string(rawM)
		if !m.BuiltAt.IsZero() {
			row.TS = m.BuiltAt.UTC()
		}
	}
	return row, nil
}

func (s *CHHistoryStore) StoreDecision(ctx context.Context, d *models.ExecutionDecision, m *models.FusionMatrix) error {
	if d == nil {
		return fmt.Errorf("store decision: nil decision")
	}
	row, err := toDecisionRow(s.now(), d, m)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s.%s (ts, should_execute, should_cancel, emergency_abort, passed_count, confidence, consensus, conflict_level, reason, decision, matrix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database, DecisionTable)
	if _, err := s.db.ExecContext(ctx, q,
		row.TS, row.ShouldExecute, row.ShouldCancel, row.EmergencyAbort, row.PassedCount,
		row.Confidence, row.Consensus, row.ConflictLevel, row.Reason, row.Decision, row.Matrix,
	); err != nil {
		s.l.Error("clickhouse store_decision error", applogger.Error(err))
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

// RecentPayloads returns up to limit payloads, newest first.
func (s *CHHistoryStore) RecentPayloads(ctx context.Context, limit int) ([]*models.IntelligencePayload, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT payload FROM %s.%s ORDER BY ts DESC LIMIT ?", s.database, PayloadTable)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent payloads: %w", err)
	}
	defer rows.Close()

	out := make([]*models.IntelligencePayload, 0, limit)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		var p models.IntelligencePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.l.Warn("skipping undecodable payload row", applogger.Error(err))
			continue
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Prune deletes payload and decision rows older than olderThan.
func (s *CHHistoryStore) Prune(ctx context.Context, olderThan time.Time) error {
	for _, table := range []string{PayloadTable, DecisionTable} {
		q := fmt.Sprintf("ALTER TABLE %s.%s DELETE WHERE ts < ?", s.database, table)
		if _, err := s.db.ExecContext(ctx, q, olderThan.UTC()); err != nil {
			return fmt.Errorf("prune %s: %w", table, err)
		}
	}
	return nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *CHHistoryStore) Close() error { return nil }

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)
