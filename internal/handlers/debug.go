package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/ratelimit"
	"chat-server/internal/telemetry"
)

// RegisterDebugRoutes wires development-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, limiter *ratelimit.Limiter, enabled bool) {
	if !enabled {
		return
	}

	// Publishes one audit envelope so the AMQP wiring can be checked end to end.
	router.POST("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "UNAVAILABLE", "message": "audit emitter not configured"})
			return
		}
		requestID := requestIDFromContext(c)
		emitter.Emit(c.Request.Context(), "INFO", "audit_test", "audit test "+requestID, userIDFromContext(c), map[string]any{"path": c.FullPath()})
		c.JSON(http.StatusAccepted, gin.H{"status": "published", "requestId": requestID})
	})

	// Shows which admission class a path falls into and how many buckets are live.
	router.GET("/debug/ratelimit", func(c *gin.Context) {
		if limiter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "UNAVAILABLE", "message": "rate limiter not configured"})
			return
		}
		path := c.Query("path")
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION", "message": "path is required"})
			return
		}
		class := limiter.Classify(path)
		c.JSON(http.StatusOK, gin.H{
			"class":         class.Name,
			"capacity":      class.Bandwidth.Capacity,
			"refill":        class.Bandwidth.Refill,
			"periodSeconds": int(class.Bandwidth.Period.Seconds()),
			"trackedKeys":   limiter.Len(),
		})
	})
}
