package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-server/internal/models"
)

// ContactRepository stores per-user display names for other users.
type ContactRepository interface {
	AddContact(ctx context.Context, contact models.Contact) error
	ListContacts(ctx context.Context, ownerID uuid.UUID) ([]models.Contact, error)
	UpdateContact(ctx context.Context, ownerID, contactUserID uuid.UUID, displayName string) error
	DeleteContact(ctx context.Context, ownerID, contactUserID uuid.UUID) error
}

type ContactRepo struct {
	db *sqlx.DB
}

func NewContactRepo(db *sqlx.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

func (r *ContactRepo) AddContact(ctx context.Context, contact models.Contact) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO contacts (owner_id, contact_user_id, display_name) VALUES ($1, $2, $3)`,
		contact.OwnerID, contact.ContactUserID, contact.DisplayName)
	return mapWriteError(err)
}

func (r *ContactRepo) ListContacts(ctx context.Context, ownerID uuid.UUID) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.SelectContext(ctx, &contacts, `SELECT c.owner_id, c.contact_user_id, c.display_name, u.username, u.phone_number, c.created_at
        FROM contacts c INNER JOIN users u ON u.id = c.contact_user_id
        WHERE c.owner_id=$1 ORDER BY c.display_name`, ownerID)
	return contacts, err
}

func (r *ContactRepo) UpdateContact(ctx context.Context, ownerID, contactUserID uuid.UUID, displayName string) error {
	return r.execOne(ctx, `UPDATE contacts SET display_name=$3 WHERE owner_id=$1 AND contact_user_id=$2`, ownerID, contactUserID, displayName)
}

func (r *ContactRepo) DeleteContact(ctx context.Context, ownerID, contactUserID uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM contacts WHERE owner_id=$1 AND contact_user_id=$2`, ownerID, contactUserID)
}

func (r *ContactRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrContactNotFound
	}
	return nil
}
