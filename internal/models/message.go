package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeVideo MessageType = "VIDEO"
	MessageTypeVoice MessageType = "VOICE"
)

// DeletedPlaceholder replaces the content of a deleted message on every read.
const DeletedPlaceholder = "Message has been deleted"

// Message is never physically removed; edits and deletes mutate the row.
type Message struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	ChatID         uuid.UUID   `db:"chat_id" json:"chatId"`
	SenderID       uuid.UUID   `db:"sender_id" json:"senderId"`
	SenderUsername string      `db:"sender_username" json:"senderUsername"`
	Type           MessageType `db:"message_type" json:"messageType"`
	Content        string      `db:"content" json:"content"`
	MediaURL       *string     `db:"media_url" json:"mediaUrl,omitempty"`
	SentAt         time.Time   `db:"sent_at" json:"sentAt"`
	IsEdited       bool        `db:"is_edited" json:"isEdited"`
	IsDeleted      bool        `db:"is_deleted" json:"isDeleted"`
	IsRead         bool        `db:"is_read" json:"isRead"`
}
