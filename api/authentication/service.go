package authentication

import (
	"context"

	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Service interface {
	Login(ctx context.Context, request LoginTransport) (store.User, error)
}

type AuthenticationService struct {
	Store interface {
		GetUserByEmail(tx *gorm.DB, email string) (store.User, error)
		TouchLogin(tx *gorm.DB, userId string) (store.User, error)

		Tx(ctx context.Context) *gorm.DB
		Commit(tx *gorm.DB) error
		RollbackOnPanic(tx *gorm.DB)
	} `inject:""`
	Logger *log.Logger `inject:""`
}

// Login checks the password of the user registered under the email address
// and records the login. Unknown addresses and wrong passwords both yield
// store.ErrInvalidCredentials after the same amount of hashing work.
func (c *AuthenticationService) Login(ctx context.Context, request LoginTransport) (store.User, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.User{}, errors.Wrap(tx.Error, "failed to login")
	}
	defer c.Store.RollbackOnPanic(tx)

	user, err := c.Store.GetUserByEmail(tx, *request.EmailAddress)
	if err == store.ErrUserNotFound {
		tx.Rollback()
		credentials.VerifyAbsent(*request.Password)
		c.Logger.Info(ctx, "rejected login")
		return store.User{}, store.ErrInvalidCredentials
	}
	if err != nil {
		tx.Rollback()
		return store.User{}, errors.Wrap(err, "failed to login")
	}

	if !credentials.Verify(*request.Password, user.Password.String) {
		tx.Rollback()
		c.Logger.Info(ctx, "rejected login")
		return store.User{}, store.ErrInvalidCredentials
	}

	user, err = c.Store.TouchLogin(tx, user.UserId.String)
	if err != nil {
		tx.Rollback()
		return store.User{}, errors.Wrap(err, "failed to login")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.User{}, errors.Wrap(err, "failed to login")
	}

	c.Logger.Info(ctx, "user logged in", "userId", user.UserId.String)
	return user, nil
}
