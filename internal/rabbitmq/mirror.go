package rabbitmq

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chat-server/internal/events"
	"chat-server/internal/observability"
)

const mirrorPublishTimeout = 5 * time.Second

type mirrored struct {
	routingKey string
	envelope   observability.EventEnvelope
	headers    map[string]string
}

// EventMirror copies domain events to the exchange from a background goroutine.
// A full buffer drops the event; the request path never waits on the broker.
type EventMirror struct {
	publisher Publisher
	logger    *slog.Logger
	queue     chan mirrored
	done      chan struct{}
	dropped   atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewEventMirror(publisher Publisher, buffer int, logger *slog.Logger) *EventMirror {
	m := newEventMirror(publisher, buffer, logger)
	go m.run()
	return m
}

func newEventMirror(publisher Publisher, buffer int, logger *slog.Logger) *EventMirror {
	if buffer <= 0 {
		buffer = 1
	}
	return &EventMirror{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan mirrored, buffer),
		done:      make(chan struct{}),
	}
}

func (m *EventMirror) PublishToTopic(ctx context.Context, chatID uuid.UUID, ev events.Event) {
	m.enqueue(ctx, RoutingKey("chat", chatID, ev.Type), ev)
}

func (m *EventMirror) PublishToUser(ctx context.Context, userID uuid.UUID, ev events.Event) {
	m.enqueue(ctx, RoutingKey("user", userID, ev.Type), ev)
}

// RoutingKey is <scope>.<id>.<event type>, lower case.
func RoutingKey(scope string, id uuid.UUID, t events.Type) string {
	return scope + "." + id.String() + "." + strings.ToLower(string(t))
}

// Dropped reports how many events were discarded because the buffer was full.
func (m *EventMirror) Dropped() int64 {
	return m.dropped.Load()
}

func (m *EventMirror) enqueue(ctx context.Context, routingKey string, ev events.Event) {
	item := mirrored{
		routingKey: routingKey,
		envelope:   observability.NewEnvelope("chat_events", string(ev.Type), ev),
		headers:    observability.HeadersFromContext(ctx),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- item:
	default:
		m.dropped.Add(1)
		observability.IncAMQPMirrorDropped()
		m.logger.Warn("event mirror buffer full, dropping event", "routing_key", routingKey)
	}
}

func (m *EventMirror) run() {
	defer close(m.done)
	for item := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorPublishTimeout)
		if err := m.publisher.Publish(ctx, item.routingKey, item.envelope, item.headers); err != nil {
			m.logger.Warn("event mirror publish failed", "routing_key", item.routingKey, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (m *EventMirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ events.Publisher = (*EventMirror)(nil)
