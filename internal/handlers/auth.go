package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/apperr"
	"chat-server/internal/middleware"
	"chat-server/internal/services"
)

// AuthHandler serves registration, login, logout and the caller's profile.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout revokes the token the request was authenticated with.
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, apperr.Unauthorized("not authenticated"))
		return
	}
	if err := h.auth.Logout(c.Request.Context(), identity); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	view, err := h.auth.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
