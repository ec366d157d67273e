package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chat-server/internal/mocks"
	"chat-server/internal/observability"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "chat-server", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	userID := uuid.New()

	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.EventType == "audit_log" &&
			env.Service == "chat-server" &&
			env.RequestID == "req-1" &&
			*env.UserID == userID &&
			env.Payload.Action == "members_added" &&
			env.Payload.Attrs["count"] == 2
	}), map[string]string{"x-request-id": "req-1"}).Return(assert.AnError).Once()

	ctx := observability.WithRequestID(context.Background(), "req-1")
	emitter.Emit(ctx, "INFO", "members_added", "members added", &userID, map[string]any{"count": 2})
	publisher.AssertExpectations(t)
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "x", "y", nil, nil)
	})
}
