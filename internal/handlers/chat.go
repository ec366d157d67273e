package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/middleware"
	"chat-server/internal/services"
	"chat-server/internal/telemetry"
)

// ChatHandler serves chat creation and membership endpoints.
type ChatHandler struct {
	chats *services.ChatService
	audit *telemetry.AuditEmitter
}

func NewChatHandler(chats *services.ChatService, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, audit: audit}
}

type membersRequest struct {
	ChatID        uuid.UUID   `json:"chatId"`
	MemberUserIDs []uuid.UUID `json:"memberUserIds"`
}

// CreateChat handles POST /api/chats.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req services.CreateChatRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.chats.CreateChat(c.Request.Context(), middleware.UserID(c), req)
	auditResult(c, h.audit, "chat_created", err, gin.H{"chat_type": req.ChatType, "members": len(req.MemberIDs)})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListChats handles GET /api/chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// ListMembers handles GET /api/chats/members/:chatId.
func (h *ChatHandler) ListMembers(c *gin.Context) {
	chatID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}
	members, err := h.chats.ListMembers(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMembers handles POST /api/chats/members.
func (h *ChatHandler) AddMembers(c *gin.Context) {
	var req membersRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.chats.AddMembers(c.Request.Context(), middleware.UserID(c), req.ChatID, req.MemberUserIDs)
	auditResult(c, h.audit, "members_added", err, gin.H{"chat_id": req.ChatID, "user_ids": req.MemberUserIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveMembers handles DELETE /api/chats/members.
func (h *ChatHandler) RemoveMembers(c *gin.Context) {
	var req membersRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.chats.RemoveMembers(c.Request.Context(), middleware.UserID(c), req.ChatID, req.MemberUserIDs)
	auditResult(c, h.audit, "members_removed", err, gin.H{"chat_id": req.ChatID, "user_ids": req.MemberUserIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateMemberRole handles PATCH /api/chats/members/role.
func (h *ChatHandler) UpdateMemberRole(c *gin.Context) {
	var req services.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.chats.UpdateMemberRole(c.Request.Context(), middleware.UserID(c), req)
	auditResult(c, h.audit, "role_updated", err, gin.H{"chat_id": req.ChatID, "target": req.TargetUserID, "role": req.NewRole})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// UpdateGroup handles PATCH /api/chats/group.
func (h *ChatHandler) UpdateGroup(c *gin.Context) {
	var req services.UpdateGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.chats.UpdateGroupProperties(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validation("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
