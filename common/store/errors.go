package store

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrChildNotFound = errors.New("child not found")
	ErrEventNotFound = errors.New("event not found")
	ErrLinkNotFound  = errors.New("user is not linked to this child")

	ErrEmailAlreadyRegistered = errors.New("'email_address' is already registered")
	ErrConflict               = errors.New("the request conflicts with a concurrent change")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSamePassword       = errors.New("new password must differ from the current password")

	ErrBirthDateInFuture    = errors.New("date of birth cannot be in the future")
	ErrInvalidUserId        = errors.New("not a valid user id")
	ErrInvalidChildId       = errors.New("not a valid child id")
	ErrChildWithoutUser     = errors.New("a child must keep at least one user")
	ErrEventEndsBeforeStart = errors.New("event cannot end before it starts")
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"

	emailIndex = "users_email_address_idx"
)

// translateError maps driver level constraint and concurrency failures onto
// the store sentinels. Other errors are returned untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == emailIndex {
				return ErrEmailAlreadyRegistered
			}
			return errors.Wrap(ErrConflict, pqErr.Message)
		case pqSerializationFailure, pqDeadlockDetected:
			return errors.Wrap(ErrConflict, pqErr.Message)
		}
		return err
	}

	// sqlite, used by the test suites
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.email_address"):
		return ErrEmailAlreadyRegistered
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "database is locked"):
		return errors.Wrap(ErrConflict, msg)
	}
	return err
}
