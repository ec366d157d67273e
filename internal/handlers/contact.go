package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/middleware"
	"chat-server/internal/services"
)

// ContactHandler serves the caller's address book.
type ContactHandler struct {
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	contacts, err := h.contacts.ListContacts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) AddContact(c *gin.Context) {
	var req services.AddContactRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.contacts.AddContact(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	var req services.UpdateContactRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.contacts.UpdateContact(c.Request.Context(), middleware.UserID(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteContact handles DELETE /api/contacts/delete/:userId.
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := h.contacts.DeleteContact(c.Request.Context(), middleware.UserID(c), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FindByPhone handles GET /api/contacts/phone?phone=.
func (h *ContactHandler) FindByPhone(c *gin.Context) {
	view, err := h.contacts.FindByPhone(c.Request.Context(), c.Query("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
