package repository

import (
	"context"
	"time"

	"RiskPulse/internal/domain/models"
)

// PayloadPublisher pushes intelligence payloads and events to downstream consumers.
type PayloadPublisher interface {
	PublishPayload(ctx context.Context, p *models.IntelligencePayload) error
	PublishEvent(ctx context.Context, eventType string, p *models.IntelligencePayload) error
	Close() error
}

// SnapshotCache holds the latest payload for readers outside this process.
type SnapshotCache interface {
	StoreSnapshot(ctx context.Context, p *models.IntelligencePayload) error
	LatestSnapshot(ctx context.Context) (*models.IntelligencePayload, error)
}

// HistoryStore is the write-mostly audit trail of payloads and decisions.
type HistoryStore interface {
	Init(ctx context.Context) error // ensure tables
	StorePayload(ctx context.Context, p *models.IntelligencePayload) error
	StoreDecision(ctx context.Context, d *models.ExecutionDecision, m *models.FusionMatrix) error
	RecentPayloads(ctx context.Context, limit int) ([]*models.IntelligencePayload, error)
	Prune(ctx context.Context, olderThan time.Time) error
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64, health models.Health)
	RecordRiskScore(score float64)
	RecordEvent(eventType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
