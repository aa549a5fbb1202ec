package shared

import (
	"net/http"

	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/pkg/errors"
)

var (
	ErrBadRouting     = errors.New("inconsistent mapping between route and handler (programmer error)")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidId      = errors.New("invalid id")
)

// StatusOf classifies an error returned by a service into its http status.
// Anything not recognized is a storage failure.
func StatusOf(err error) int {
	switch errors.Cause(err) {
	case ErrInvalidPayload, ErrInvalidId,
		store.ErrBirthDateInFuture,
		store.ErrInvalidUserId,
		store.ErrInvalidChildId,
		store.ErrSamePassword,
		store.ErrChildWithoutUser,
		store.ErrEventEndsBeforeStart,
		credentials.ErrPasswordTooLong:
		return http.StatusBadRequest
	case store.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case store.ErrUserNotFound, store.ErrChildNotFound, store.ErrEventNotFound, store.ErrLinkNotFound:
		return http.StatusNotFound
	case store.ErrEmailAlreadyRegistered, store.ErrConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
