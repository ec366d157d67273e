package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chat-server/internal/events"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Delivery is one event captured by EventRecorder.
type Delivery struct {
	Topic *uuid.UUID
	User  *uuid.UUID
	Event events.Event
}

// EventRecorder is an events.Publisher that keeps every delivery in order.
type EventRecorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *EventRecorder) PublishToTopic(_ context.Context, chatID uuid.UUID, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Topic: &chatID, Event: ev})
}

func (r *EventRecorder) PublishToUser(_ context.Context, userID uuid.UUID, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{User: &userID, Event: ev})
}

func (r *EventRecorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// TopicEvents returns events published to the chat topic, in order.
func (r *EventRecorder) TopicEvents(chatID uuid.UUID) []events.Event {
	var out []events.Event
	for _, d := range r.Deliveries() {
		if d.Topic != nil && *d.Topic == chatID {
			out = append(out, d.Event)
		}
	}
	return out
}

// UserEvents returns events published to the user's personal queue, in order.
func (r *EventRecorder) UserEvents(userID uuid.UUID) []events.Event {
	var out []events.Event
	for _, d := range r.Deliveries() {
		if d.User != nil && *d.User == userID {
			out = append(out, d.Event)
		}
	}
	return out
}

var _ events.Publisher = (*EventRecorder)(nil)
