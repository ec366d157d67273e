package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-server/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error)
	UpdateMessage(ctx context.Context, msg models.Message) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageSelect = `SELECT m.id, m.chat_id, m.sender_id, u.username AS sender_username, m.message_type, m.content,
        m.media_url, m.sent_at, m.is_edited, m.is_deleted, m.is_read
        FROM messages m INNER JOIN users u ON u.id = m.sender_id`

// CreateMessage stores a message and returns it with the sender's username.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, message_type, content, media_url)
        VALUES ($1, $2, $3, $4, $5, $6)`, msg.ID, msg.ChatID, msg.SenderID, msg.Type, msg.Content, msg.MediaURL); err != nil {
		return models.Message{}, mapWriteError(err)
	}
	return r.GetMessage(ctx, msg.ID)
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, messageSelect+` WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns one page of a chat's messages, newest first, plus the chat's total.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE chat_id=$1`, chatID); err != nil {
		return nil, 0, err
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, messageSelect+` WHERE m.chat_id=$1 ORDER BY m.sent_at DESC, m.id DESC LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	return msgs, total, err
}

// UpdateMessage persists content and the edit/delete flags.
func (r *MessageRepo) UpdateMessage(ctx context.Context, msg models.Message) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET content=$2, is_edited=$3, is_deleted=$4, is_read=$5 WHERE id=$1`,
		msg.ID, msg.Content, msg.IsEdited, msg.IsDeleted, msg.IsRead)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
