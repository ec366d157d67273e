package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-server/internal/models"
)

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateChatWithMembers(ctx context.Context, chat models.Chat, members []models.Member) (models.Chat, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (models.Chat, error)
	UpdateChat(ctx context.Context, chat models.Chat) error
	ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, chat_type, group_name, group_image, is_deleted, deleted_at, created_at`

// CreateChatWithMembers creates a chat and its members atomically.
func (r *ChatRepo) CreateChatWithMembers(ctx context.Context, chat models.Chat, members []models.Member) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	var created models.Chat
	if err = tx.GetContext(ctx, &created, `INSERT INTO chats (id, chat_type, group_name, group_image)
        VALUES ($1, $2, $3, $4) RETURNING `+chatColumns,
		chat.ID, chat.Type, chat.GroupName, chat.GroupImage); err != nil {
		return models.Chat{}, err
	}

	for _, m := range members {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			created.ID, m.UserID, m.Role); err != nil {
			err = mapWriteError(err)
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return created, nil
}

// GetChat fetches a non-deleted chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID uuid.UUID) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1 AND is_deleted = FALSE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// UpdateChat persists group name, image and the soft-delete marker.
func (r *ChatRepo) UpdateChat(ctx context.Context, chat models.Chat) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET group_name=$2, group_image=$3, is_deleted=$4, deleted_at=$5 WHERE id=$1`,
		chat.ID, chat.GroupName, chat.GroupImage, chat.IsDeleted, chat.DeletedAt)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ListChatsForUser returns chats that include the user, newest first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, `SELECT c.id, c.chat_type, c.group_name, c.group_image, c.is_deleted, c.deleted_at, c.created_at
        FROM chats c INNER JOIN chat_members cm ON cm.chat_id = c.id
        WHERE cm.user_id=$1 AND c.is_deleted = FALSE
        ORDER BY c.created_at DESC`, userID)
	return chats, err
}
