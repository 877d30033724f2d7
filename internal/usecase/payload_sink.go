package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/pkg/logger"
)

// PayloadSink forwards orchestrator output to the configured stores:
// every payload to the snapshot cache, the publisher and the history store,
// and every conditional event to the publisher's event stream.
type PayloadSink struct {
	cache     domrepo.SnapshotCache
	publisher domrepo.PayloadPublisher
	history   domrepo.HistoryStore
	metrics   domrepo.Metrics
	log       *logger.Logger
	timeout   time.Duration

	subs []*Subscription
}

type PayloadSinkOption func(*PayloadSink)

func WithSnapshotCache(c domrepo.SnapshotCache) PayloadSinkOption {
	return func(s *PayloadSink) { s.cache = c }
}

func WithPublisher(p domrepo.PayloadPublisher) PayloadSinkOption {
	return func(s *PayloadSink) { s.publisher = p }
}

func WithHistory(h domrepo.HistoryStore) PayloadSinkOption {
	return func(s *PayloadSink) { s.history = h }
}

func WithSinkMetrics(m domrepo.Metrics) PayloadSinkOption {
	return func(s *PayloadSink) { s.metrics = m }
}

// WithSinkTimeout bounds each event's writes.
func WithSinkTimeout(d time.Duration) PayloadSinkOption {
	return func(s *PayloadSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewPayloadSink(log *logger.Logger, opts ...PayloadSinkOption) *PayloadSink {
	if log == nil {
		log = logger.NewNop()
	}
	s := &PayloadSink{log: log, timeout: 2 * time.Second}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Attach subscribes the sink to every event type on bus.
func (s *PayloadSink) Attach(bus *EventBus) {
	for _, t := range EventTypes {
		s.subs = append(s.subs, bus.Subscribe(t, s.Handle))
	}
}

func (s *PayloadSink) Detach() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// Handle writes one event to every configured store. All stores are tried;
// the failures are joined.
func (s *PayloadSink) Handle(ctx context.Context, e Event) error {
	if e.Payload == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var errs []error
	if e.Type == EventIntelligenceUpdate {
		if s.cache != nil {
			errs = append(errs, s.write(ctx, "sink_redis", func(ctx context.Context) error { return s.cache.StoreSnapshot(ctx, e.Payload) }))
		}
		if s.publisher != nil {
			errs = append(errs, s.write(ctx, "sink_kafka", func(ctx context.Context) error { return s.publisher.PublishPayload(ctx, e.Payload) }))
		}
		if s.history != nil {
			errs = append(errs, s.write(ctx, "sink_clickhouse", func(ctx context.Context) error { return s.history.StorePayload(ctx, e.Payload) }))
		}
	} else if s.publisher != nil {
		errs = append(errs, s.write(ctx, "sink_kafka_event", func(ctx context.Context) error {
			return s.publisher.PublishEvent(ctx, string(e.Type), e.Payload)
		}))
	}
	return errors.Join(errs...)
}

func (s *PayloadSink) write(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordLatency(op, time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordError(op)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
