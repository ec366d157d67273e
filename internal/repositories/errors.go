package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrDuplicate       = errors.New("duplicate record")
)

// uniqueViolation is the postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
