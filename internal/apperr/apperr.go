package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindForbidden        Kind = "FORBIDDEN"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindRateLimited      Kind = "RATE_LIMITED"
	KindTransientStorage Kind = "TRANSIENT_STORAGE"
	KindConnection       Kind = "CONNECTION"
)

// Error carries a Kind plus a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Missing []uuid.UUID
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrTransientStorage = &Error{Kind: KindTransientStorage}
	ErrConnection       = &Error{Kind: KindConnection}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotFoundIDs reports the ids that could not be resolved.
func NotFoundIDs(message string, missing []uuid.UUID) error {
	return &Error{Kind: KindNotFound, Message: message, Missing: missing}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func RateLimited(format string, args ...any) error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps a storage failure that the caller may retry.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransientStorage, Message: op, Err: err}
}

func Connection(op string, err error) error {
	return &Error{Kind: KindConnection, Message: op, Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "internal error"
}

// HTTPStatus maps err to the status code the REST boundary answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransientStorage:
		return http.StatusServiceUnavailable
	case KindConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
