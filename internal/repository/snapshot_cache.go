package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/service/cache"
)

// ErrNoSnapshot is returned when no payload has been cached yet or it expired.
var ErrNoSnapshot = errors.New("no intelligence snapshot cached")

// SnapshotStore keeps the latest payload as JSON under a single key.
type SnapshotStore struct {
	cache cache.BytesCache
	key   string
	ttl   time.Duration
}

func NewSnapshotStore(c cache.BytesCache, key string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{cache: c, key: key, ttl: ttl}
}

func (s *SnapshotStore) StoreSnapshot(ctx context.Context, p *models.IntelligencePayload) error {
	if p == nil {
		return fmt.Errorf("store snapshot: nil payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.cache.SetBytes(ctx, s.key, raw, s.ttl)
}

func (s *SnapshotStore) LatestSnapshot(ctx context.Context) (*models.IntelligencePayload, error) {
	raw, ok, err := s.cache.GetBytes(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		return nil, ErrNoSnapshot
	}
	var p models.IntelligencePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &p, nil
}

var _ domrepo.SnapshotCache = (*SnapshotStore)(nil)
