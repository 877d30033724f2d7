package repository

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
)

// MessageProducer is the part of pkg/kafka.Producer the publisher uses.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// EventMessage is the envelope written to the events topic.
type EventMessage struct {
	Type      string                      `json:"type"`
	Timestamp time.Time                   `json:"timestamp"`
	Payload   *models.IntelligencePayload `json:"payload"`
}

// KafkaPayloadPublisher implements PayloadPublisher on Kafka. Messages are
// keyed by payload id so an update and its events share a partition.
type KafkaPayloadPublisher struct {
	producer     MessageProducer
	payloadTopic string
	eventsTopic  string
	now          func() time.Time
}

func NewKafkaPayloadPublisher(producer MessageProducer, payloadTopic, eventsTopic string) *KafkaPayloadPublisher {
	return &KafkaPayloadPublisher{producer: producer, payloadTopic: payloadTopic, eventsTopic: eventsTopic, now: time.Now}
}

func (p *KafkaPayloadPublisher) PublishPayload(ctx context.Context, pl *models.IntelligencePayload) error {
	if pl == nil {
		return fmt.Errorf("publish payload: nil payload")
	}
	if err := p.producer.Publish(ctx, p.payloadTopic, []byte(pl.ID), pl); err != nil {
		return fmt.Errorf("publish payload to %s: %w", p.payloadTopic, err)
	}
	return nil
}

func (p *KafkaPayloadPublisher) PublishEvent(ctx context.Context, eventType string, pl *models.IntelligencePayload) error {
	var key []byte
	if pl != nil {
		key = []byte(pl.ID)
	}
	msg := EventMessage{Type: eventType, Timestamp: p.now(), Payload: pl}
	if err := p.producer.Publish(ctx, p.eventsTopic, key, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, p.eventsTopic, err)
	}
	return nil
}

func (p *KafkaPayloadPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ domrepo.PayloadPublisher = (*KafkaPayloadPublisher)(nil)
	_ MessageProducer          = (*pkgkafka.Producer)(nil)
)
