package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-server/internal/observability"
	"chat-server/internal/ratelimit"
)

const (
	HeaderRateLimitRemaining  = "X-Rate-Limit-Remaining"
	HeaderRateLimitRetryAfter = "X-Rate-Limit-Retry-After-Seconds"
)

var exemptPrefixes = []string{"/health", "/actuator/", "/metrics", "/ready", "/live"}

// Exempt reports whether path bypasses admission control.
func Exempt(path string) bool {
	if path == "/" || path == "" {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RateLimit admits or rejects the request before any other handler runs.
func RateLimit(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if Exempt(path) {
			c.Next()
			return
		}

		identity := observability.IPFromRequest(c.Request)
		decision := limiter.Allow(identity, path)
		observability.ObserveRateLimit(decision.Class.Name, decision.Consumed)

		if decision.Consumed {
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.WaitForRefill.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		logger.Warn("rate limit exceeded", "key", decision.Key, "path", path, "retry_after_seconds", retryAfter)
		c.Header(HeaderRateLimitRetryAfter, strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many requests",
			"message": fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", retryAfter),
		})
	}
}
