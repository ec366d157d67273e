package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/services"
)

const (
	UserIDKey   = "userID"
	IdentityKey = "identity"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (services.Identity, error)
}

// AuthMiddleware validates the bearer token and stores the caller on the gin context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := apperr.HTTPStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": string(apperr.KindOf(err)), "message": apperr.MessageOf(err)})
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserID returns the authenticated caller, or uuid.Nil outside AuthMiddleware.
func UserID(c *gin.Context) uuid.UUID {
	if val, ok := c.Get(UserIDKey); ok {
		if id, ok := val.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return services.Identity{}, false
	}
	identity, ok := val.(services.Identity)
	return identity, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": string(apperr.KindUnauthorized), "message": message})
}
