package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chat-server/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter publishes audit envelopes for membership changes and authorization failures.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *slog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *uuid.UUID   `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Text   string         `json:"text"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *slog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes one audit record. Publish failures are logged, never returned.
func (e *AuditEmitter) Emit(ctx context.Context, level, action, text string, userID *uuid.UUID, attrs map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := observability.RequestIDFromContext(ctx)
	e.logger.Debug("audit emit", "level", level, "action", action, "request_id", requestID, "user_id", userID)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Action: action,
			Text:   text,
			Attrs:  attrs,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, observability.HeadersFromContext(ctx)); err != nil {
		e.logger.Warn("audit publish failed", "action", action, "error", err)
	}
}
