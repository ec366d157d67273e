package models

import (
	"time"

	"github.com/google/uuid"
)

type UserView struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
}

func NewUserView(u User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Name: u.Name, PhoneNumber: u.PhoneNumber}
}

type MemberView struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}

func NewMemberView(m Member) MemberView {
	return MemberView{UserID: m.UserID, Username: m.Username, Role: m.Role}
}

type ChatView struct {
	ChatID      uuid.UUID    `json:"chatId"`
	ChatType    ChatType     `json:"chatType"`
	GroupName   *string      `json:"groupName,omitempty"`
	GroupImage  *string      `json:"groupImage,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Members     []MemberView `json:"members"`
}

func NewChatView(chat Chat, members []Member) ChatView {
	view := ChatView{
		ChatID:     chat.ID,
		ChatType:   chat.Type,
		GroupName:  chat.GroupName,
		GroupImage: chat.GroupImage,
		CreatedAt:  chat.CreatedAt,
		Members:    make([]MemberView, 0, len(members)),
	}
	if chat.GroupName != nil {
		view.DisplayName = *chat.GroupName
	}
	for _, m := range members {
		view.Members = append(view.Members, NewMemberView(m))
	}
	return view
}

type SenderView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type MessageView struct {
	MessageID   uuid.UUID   `json:"messageId"`
	ChatID      uuid.UUID   `json:"chatId"`
	Sender      SenderView  `json:"sender"`
	MessageType MessageType `json:"messageType"`
	Content     string      `json:"content"`
	MediaURL    *string     `json:"mediaUrl,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	IsEdited    bool        `json:"isEdited"`
	IsDeleted   bool        `json:"isDeleted"`
}

// NewMessageView renders a message, redacting it when deleted.
func NewMessageView(m Message) MessageView {
	view := MessageView{
		MessageID:   m.ID,
		ChatID:      m.ChatID,
		Sender:      SenderView{ID: m.SenderID, Username: m.SenderUsername},
		MessageType: m.Type,
		Content:     m.Content,
		MediaURL:    m.MediaURL,
		Timestamp:   m.SentAt,
		IsEdited:    m.IsEdited,
		IsDeleted:   m.IsDeleted,
	}
	if m.IsDeleted {
		view.Content = DeletedPlaceholder
		view.MediaURL = nil
	}
	return view
}

type ContactView struct {
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	PhoneNumber string    `json:"phoneNumber"`
}

func NewContactView(c Contact) ContactView {
	return ContactView{UserID: c.ContactUserID, Username: c.Username, DisplayName: c.DisplayName, PhoneNumber: c.PhoneNumber}
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Content       []T  `json:"content"`
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	HasMore       bool `json:"hasMore"`
}

func NewPage[T any](content []T, page, size, total int) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
		HasMore:       page+1 < pages,
	}
}
