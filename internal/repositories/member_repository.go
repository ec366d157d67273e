package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-server/internal/models"
)

// MemberRepository abstracts chat membership persistence.
type MemberRepository interface {
	GetMember(ctx context.Context, chatID, userID uuid.UUID) (models.Member, error)
	ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.Member, error)
	ListMembersIn(ctx context.Context, chatIDs []uuid.UUID) ([]models.Member, error)
	AddMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID, role models.Role) ([]models.Member, error)
	RemoveMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error)
	UpdateRole(ctx context.Context, chatID, userID uuid.UUID, role models.Role) (models.Member, error)
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

const memberSelect = `SELECT cm.chat_id, cm.user_id, u.username, cm.role, cm.joined_at
        FROM chat_members cm INNER JOIN users u ON u.id = cm.user_id`

// GetMember returns ErrMemberNotFound when the user is not in the chat.
func (r *MemberRepo) GetMember(ctx context.Context, chatID, userID uuid.UUID) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member, memberSelect+` WHERE cm.chat_id=$1 AND cm.user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

func (r *MemberRepo) ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members, memberSelect+` WHERE cm.chat_id=$1 ORDER BY cm.joined_at, u.username`, chatID)
	return members, err
}

// ListMembersIn loads members of several chats in one round trip.
func (r *MemberRepo) ListMembersIn(ctx context.Context, chatIDs []uuid.UUID) ([]models.Member, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}
	var members []models.Member
	err := r.db.SelectContext(ctx, &members, memberSelect+` WHERE cm.chat_id = ANY($1) ORDER BY cm.joined_at, u.username`,
		pq.Array(uuidStrings(chatIDs)))
	return members, err
}

// AddMembers inserts the users that are not yet members and returns only the inserted rows.
func (r *MemberRepo) AddMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID, role models.Role) ([]models.Member, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	inserted := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, $3)
            ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, id, role)
		if err != nil {
			return nil, err
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return nil, err
		}
		if n > 0 {
			inserted = append(inserted, id)
		}
	}

	var members []models.Member
	if len(inserted) > 0 {
		if err = tx.SelectContext(ctx, &members, memberSelect+` WHERE cm.chat_id=$1 AND cm.user_id = ANY($2)`,
			chatID, pq.Array(uuidStrings(inserted))); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMembers deletes the given memberships and returns the user ids actually removed.
func (r *MemberRepo) RemoveMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var removed []uuid.UUID
	err := r.db.SelectContext(ctx, &removed, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id = ANY($2) RETURNING user_id`,
		chatID, pq.Array(uuidStrings(userIDs)))
	return removed, err
}

func (r *MemberRepo) UpdateRole(ctx context.Context, chatID, userID uuid.UUID, role models.Role) (models.Member, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_members SET role=$3 WHERE chat_id=$1 AND user_id=$2`, chatID, userID, role)
	if err != nil {
		return models.Member{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Member{}, err
	}
	if count == 0 {
		return models.Member{}, ErrMemberNotFound
	}
	return r.GetMember(ctx, chatID, userID)
}
