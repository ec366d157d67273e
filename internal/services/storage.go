package services

import (
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-server/internal/apperr"
	"chat-server/internal/repositories"
)

var tracer = otel.Tracer("chat-server/services")

// storageErr converts a repository failure into the domain taxonomy.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrChatNotFound):
		return apperr.NotFound("chat not found")
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperr.NotFound("message not found")
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repositories.ErrContactNotFound):
		return apperr.NotFound("contact not found")
	case errors.Is(err, repositories.ErrMemberNotFound):
		return apperr.NotFound("member not found")
	case errors.Is(err, repositories.ErrDuplicate):
		return apperr.Validation("%s: already exists", op)
	case apperr.KindOf(err) != "":
		return err
	default:
		return apperr.Transient(op, err)
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// uniqueIDs drops duplicates and uuid.Nil, keeping first-seen order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
