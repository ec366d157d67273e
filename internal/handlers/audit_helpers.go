package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/middleware"
	"chat-server/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *uuid.UUID {
	if id := middleware.UserID(c); id != uuid.Nil {
		return &id
	}
	return nil
}

// auditResult records a membership mutation or an authorization failure. Other errors are not audited.
func auditResult(c *gin.Context, emitter *telemetry.AuditEmitter, action string, err error, attrs map[string]any) {
	if emitter == nil {
		return
	}
	switch {
	case err == nil:
		emitter.Emit(c.Request.Context(), "INFO", action, action+" succeeded", userIDFromContext(c), attrs)
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrUnauthorized):
		emitter.Emit(c.Request.Context(), "WARN", action, apperr.MessageOf(err), userIDFromContext(c), attrs)
	}
}
