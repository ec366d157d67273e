package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatType string

const (
	ChatTypeP2P   ChatType = "P2P"
	ChatTypeGroup ChatType = "GROUP"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Chat is either a two-party conversation or a named group.
type Chat struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Type       ChatType   `db:"chat_type" json:"chatType"`
	GroupName  *string    `db:"group_name" json:"groupName,omitempty"`
	GroupImage *string    `db:"group_image" json:"groupImage,omitempty"`
	IsDeleted  bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Member is a (chat, user) pair with a role.
type Member struct {
	ChatID   uuid.UUID `db:"chat_id" json:"chatId"`
	UserID   uuid.UUID `db:"user_id" json:"userId"`
	Username string    `db:"username" json:"username"`
	Role     Role      `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

func (m Member) IsAdmin() bool { return m.Role == RoleAdmin }
