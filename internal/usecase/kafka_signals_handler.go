package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
	"RiskPulse/pkg/logger"
)

// SignalIngester accepts decoded signal records.
type SignalIngester interface {
	ProcessBatch(ctx context.Context, records []models.SignalRecord) (int, error)
}

// KafkaSignalsHandler consumes signal records from Kafka into the ingest pipeline.
type KafkaSignalsHandler struct {
	topic    string
	ingester SignalIngester
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewKafkaSignalsHandler(topic string, ingester SignalIngester, metrics domrepo.Metrics, log *logger.Logger) *KafkaSignalsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaSignalsHandler{topic: topic, ingester: ingester, metrics: metrics, log: log, now: time.Now}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle accepts either one record or a JSON array of records.
// Only undecodable messages are returned as errors; rejected records are
// logged and counted so the consumer does not redeliver them.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	records, err := decodeSignals(b)
	if err != nil {
		h.recordError("consumer_unmarshal")
		return err
	}
	if len(records) == 0 {
		return nil
	}

	start := h.now()
	var newest time.Time
	for _, r := range records {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	if !newest.IsZero() && h.metrics != nil {
		h.metrics.RecordLatency("ingest_e2e_seconds", start.Sub(newest).Seconds())
	}

	n, err := h.ingester.ProcessBatch(ctx, records)
	if h.metrics != nil {
		h.metrics.RecordLatency("ingest_batch_seconds", h.now().Sub(start).Seconds())
	}
	if err != nil {
		h.recordError("consumer_ingest")
		h.log.Warn("signal batch partially rejected",
			logger.String("topic", h.topic),
			logger.Int("records", len(records)),
			logger.Int("accepted", n),
			logger.Error(err),
		)
	}
	return nil
}

func (h *KafkaSignalsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

func decodeSignals(b []byte) ([]models.SignalRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("decode signals: empty message")
	}
	if b[0] == '[' {
		var rs []models.SignalRecord
		if err := json.Unmarshal(b, &rs); err != nil {
			return nil, fmt.Errorf("decode signals: %w", err)
		}
		return rs, nil
	}
	var r models.SignalRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}
	return []models.SignalRecord{r}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
