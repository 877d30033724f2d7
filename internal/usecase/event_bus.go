package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/pkg/logger"
)

type EventType string

const (
	EventIntelligenceUpdate  EventType = "intelligence-update"
	EventHighRiskDetected    EventType = "high-risk-detected"
	EventCascadeWarning      EventType = "cascade-warning"
	EventPerformanceDegraded EventType = "performance-degraded"
)

// EventTypes lists every type the orchestrator emits, in emission order.
var EventTypes = []EventType{EventIntelligenceUpdate, EventHighRiskDetected, EventCascadeWarning, EventPerformanceDegraded}

type HighRiskDetail struct {
	Score          float64          `json:"score"`
	Threshold      float64          `json:"threshold"`
	Classification models.RiskClass `json:"classification"`
}

type CascadeDetail struct {
	DestabilizingLinks int `json:"destabilizing_links"`
	CascadesDetected   int `json:"cascades_detected"`
}

type PerformanceDetail struct {
	CycleTimeMs float64       `json:"cycle_time_ms"`
	ThresholdMs float64       `json:"threshold_ms"`
	Health      models.Health `json:"health"`
}

// Event is one typed notification. Exactly one detail field is set for the
// conditional types; intelligence-update carries only the payload.
type Event struct {
	ID          string                      `json:"id"`
	Type        EventType                   `json:"type"`
	Timestamp   time.Time                   `json:"timestamp"`
	Payload     *models.IntelligencePayload `json:"payload"`
	HighRisk    *HighRiskDetail             `json:"high_risk,omitempty"`
	Cascade     *CascadeDetail              `json:"cascade,omitempty"`
	Performance *PerformanceDetail          `json:"performance,omitempty"`
}

// Handler reacts to an event. Returned errors and panics are logged and
// never reach the emitter or other handlers.
type Handler func(ctx context.Context, e Event) error

type subscriber struct {
	id uint64
	fn Handler
}

type chanSubscriber struct {
	ch    chan Event
	types map[EventType]struct{}
}

// EventBus fans typed events out to callback and channel subscribers.
type EventBus struct {
	log     *logger.Logger
	metrics domrepo.Metrics

	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]subscriber
	chans    map[uint64]*chanSubscriber
}

type EventBusOption func(*EventBus)

func WithBusMetrics(m domrepo.Metrics) EventBusOption {
	return func(b *EventBus) { b.metrics = m }
}

func NewEventBus(log *logger.Logger, opts ...EventBusOption) *EventBus {
	if log == nil {
		log = logger.NewNop()
	}
	b := &EventBus{
		log:      log,
		handlers: make(map[EventType][]subscriber),
		chans:    make(map[uint64]*chanSubscriber),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscription is the token returned by Subscribe. Unsubscribe is idempotent.
type Subscription struct {
	once sync.Once
	stop func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// Subscribe registers fn for one event type. Handlers run in subscription order.
func (b *EventBus) Subscribe(t EventType, fn Handler) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return &Subscription{stop: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[t]
		for i, s := range subs {
			if s.id == id {
				b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}}
}

// ChanSubscription streams events into a buffered channel.
type ChanSubscription struct {
	*Subscription
	C <-chan Event
}

// SubscribeChan delivers the given types (all when empty) into a channel of
// the given buffer. Delivery never blocks; events are dropped when the
// buffer is full. Unsubscribe closes the channel.
func (b *EventBus) SubscribeChan(buffer int, types ...EventType) *ChanSubscription {
	if buffer <= 0 {
		buffer = 1
	}
	if len(types) == 0 {
		types = EventTypes
	}
	cs := &chanSubscriber{ch: make(chan Event, buffer), types: make(map[EventType]struct{}, len(types))}
	for _, t := range types {
		cs.types[t] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.chans[id] = cs
	b.mu.Unlock()

	return &ChanSubscription{
		C: cs.ch,
		Subscription: &Subscription{stop: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.chans, id)
			close(cs.ch)
		}},
	}
}

// SubscriberCount reports callback subscribers for t.
func (b *EventBus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// StreamCount reports open channel subscriptions.
func (b *EventBus) StreamCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chans)
}

// Emit delivers e synchronously to callback subscribers, then to channels.
func (b *EventBus) Emit(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.invoke(ctx, s.fn, e); err != nil {
			b.log.Error("event handler failed",
				logger.String("event", string(e.Type)),
				logger.Int64("subscriber", int64(s.id)),
				logger.Error(err),
			)
			if b.metrics != nil {
				b.metrics.RecordError("event_handler")
			}
		}
	}

	b.mu.RLock()
	for _, cs := range b.chans {
		if _, ok := cs.types[e.Type]; !ok {
			continue
		}
		select {
		case cs.ch <- e:
		default:
			if b.metrics != nil {
				b.metrics.RecordError("event_dropped")
			}
		}
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordEvent(string(e.Type))
	}
}

func (b *EventBus) invoke(ctx context.Context, fn Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, e)
}
