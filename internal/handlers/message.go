package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-server/internal/apperr"
	"chat-server/internal/middleware"
	"chat-server/internal/services"
)

// MessageHandler serves the message lifecycle endpoints.
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// SendMessage handles POST /api/messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req services.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.messages.SendMessage(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListMessages handles GET /api/messages/:chatId?page=&size=.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	chatID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}
	page, ok := intQuery(c, "page", 0)
	if !ok {
		return
	}
	size, ok := intQuery(c, "size", services.DefaultPageSize)
	if !ok {
		return
	}

	result, err := h.messages.ListMessages(c.Request.Context(), middleware.UserID(c), chatID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EditMessage handles PATCH /api/messages.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req services.EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.messages.EditMessage(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteMessage handles DELETE /api/messages/:messageId.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := uuidParam(c, "messageId")
	if !ok {
		return
	}
	if err := h.messages.DeleteMessage(c.Request.Context(), middleware.UserID(c), messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, apperr.Validation("%s must be an integer", name))
		return 0, false
	}
	return n, true
}
