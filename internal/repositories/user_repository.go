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

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (models.User, error)
	FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, phone_number, name, password_hash, created_at`

// CreateUser inserts the user, returning ErrDuplicate on a taken username or phone.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	var created models.User
	err := r.db.GetContext(ctx, &created, `INSERT INTO users (id, username, phone_number, name, password_hash)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		user.ID, user.Username, user.PhoneNumber, user.Name, user.PasswordHash)
	if err != nil {
		return models.User{}, mapWriteError(err)
	}
	return created, nil
}

func (r *UserRepo) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return r.getBy(ctx, `id=$1`, userID)
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getBy(ctx, `username=$1`, username)
}

func (r *UserRepo) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.getBy(ctx, `phone_number=$1`, phone)
}

func (r *UserRepo) getBy(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// FindUsersByIDs returns the subset of ids that exist; callers diff to find the missing ones.
func (r *UserRepo) FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(uuidStrings(ids)))
	return users, err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
