package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"chat-server/internal/apperr"
)

const kindInternal = "INTERNAL"

// respondError renders err as {"error": KIND, "message": ..., "missing": [...]}.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = kindInternal
	}
	body := gin.H{"error": kind, "message": apperr.MessageOf(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.Missing) > 0 {
		body["missing"] = appErr.Missing
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}
