package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Contact maps a user to a locally chosen display name for another user.
type Contact struct {
	OwnerID       uuid.UUID `db:"owner_id" json:"ownerId"`
	ContactUserID uuid.UUID `db:"contact_user_id" json:"contactUserId"`
	DisplayName   string    `db:"display_name" json:"displayName"`
	Username      string    `db:"username" json:"username"`
	PhoneNumber   string    `db:"phone_number" json:"phoneNumber"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
