package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-server/internal/models"
)

// Type names an event on the wire.
type Type string

const (
	TypeMessage        Type = "MESSAGE"
	TypeMessageUpdated Type = "MESSAGE_UPDATED"
	TypeMessageDeleted Type = "MESSAGE_DELETED"
	TypeTyping         Type = "TYPING"
	TypeChatCreated    Type = "CHAT_CREATED"
	TypeChatRemoved    Type = "CHAT_REMOVED"
	TypeMembersAdded   Type = "MEMBERS_ADDED"
	TypeMembersRemoved Type = "MEMBERS_REMOVED"
	TypeRoleUpdated    Type = "ROLE_UPDATED"
	TypeGroupUpdated   Type = "GROUP_UPDATED"
	TypeError          Type = "ERROR"
)

// Event is the envelope pushed to live connections. Only the fields relevant to Type are set.
type Event struct {
	Type       Type                `json:"type"`
	ChatID     *uuid.UUID          `json:"chatId,omitempty"`
	MessageID  *uuid.UUID          `json:"messageId,omitempty"`
	UserID     *uuid.UUID          `json:"userId,omitempty"`
	Username   string              `json:"username,omitempty"`
	Message    *models.MessageView `json:"message,omitempty"`
	Chat       *models.ChatView    `json:"chat,omitempty"`
	Members    []models.MemberView `json:"members,omitempty"`
	UserIDs    []uuid.UUID         `json:"userIds,omitempty"`
	Error      string              `json:"error,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Topic returns the broadcast channel name of a chat.
func Topic(chatID uuid.UUID) string {
	return "chat/" + chatID.String()
}

// Publisher delivers events without blocking the caller. Delivery is best effort.
type Publisher interface {
	PublishToTopic(ctx context.Context, chatID uuid.UUID, ev Event)
	PublishToUser(ctx context.Context, userID uuid.UUID, ev Event)
}

// Fanout forwards each event to every wrapped publisher in order.
type Fanout []Publisher

func (f Fanout) PublishToTopic(ctx context.Context, chatID uuid.UUID, ev Event) {
	for _, p := range f {
		p.PublishToTopic(ctx, chatID, ev)
	}
}

func (f Fanout) PublishToUser(ctx context.Context, userID uuid.UUID, ev Event) {
	for _, p := range f {
		p.PublishToUser(ctx, userID, ev)
	}
}

func newEvent(t Type, chatID uuid.UUID) Event {
	return Event{Type: t, ChatID: &chatID, OccurredAt: time.Now().UTC()}
}

func MessageCreated(view models.MessageView) Event {
	ev := newEvent(TypeMessage, view.ChatID)
	ev.MessageID = &view.MessageID
	ev.Message = &view
	return ev
}

func MessageUpdated(view models.MessageView) Event {
	ev := newEvent(TypeMessageUpdated, view.ChatID)
	ev.MessageID = &view.MessageID
	ev.Message = &view
	return ev
}

func MessageDeleted(view models.MessageView) Event {
	ev := newEvent(TypeMessageDeleted, view.ChatID)
	ev.MessageID = &view.MessageID
	ev.Message = &view
	return ev
}

func Typing(chatID, userID uuid.UUID, username string) Event {
	ev := newEvent(TypeTyping, chatID)
	ev.UserID = &userID
	ev.Username = username
	return ev
}

func ChatCreated(view models.ChatView) Event {
	ev := newEvent(TypeChatCreated, view.ChatID)
	ev.Chat = &view
	return ev
}

func ChatRemoved(chatID uuid.UUID) Event {
	return newEvent(TypeChatRemoved, chatID)
}

func MembersAdded(chatID uuid.UUID, members []models.MemberView) Event {
	ev := newEvent(TypeMembersAdded, chatID)
	ev.Members = members
	return ev
}

func MembersRemoved(chatID uuid.UUID, userIDs []uuid.UUID) Event {
	ev := newEvent(TypeMembersRemoved, chatID)
	ev.UserIDs = userIDs
	return ev
}

func RoleUpdated(chatID uuid.UUID, member models.MemberView) Event {
	ev := newEvent(TypeRoleUpdated, chatID)
	ev.Members = []models.MemberView{member}
	return ev
}

func GroupUpdated(view models.ChatView) Event {
	ev := newEvent(TypeGroupUpdated, view.ChatID)
	ev.Chat = &view
	return ev
}

// ErrorFrame reports a rejected control frame back to the sender.
func ErrorFrame(chatID *uuid.UUID, message string) Event {
	return Event{Type: TypeError, ChatID: chatID, Error: message, OccurredAt: time.Now().UTC()}
}
