package users

import (
	"context"

	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/messaging"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Service interface {
	AddUser(ctx context.Context, request UserTransport) (store.User, error)
	GetUser(ctx context.Context, userId string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	UpdateUser(ctx context.Context, request UpdateUserTransport) (store.User, error)
	DeleteUser(ctx context.Context, userId string) (store.DeletionReport, error)
}

type UserService struct {
	Store interface {
		AddUser(tx *gorm.DB, user store.User) (store.User, error)
		GetUser(tx *gorm.DB, userId string) (store.User, error)
		GetUserByEmail(tx *gorm.DB, email string) (store.User, error)
		ListUsers(tx *gorm.DB) ([]store.User, error)
		UpdateUser(tx *gorm.DB, user store.User) (store.User, error)
		ReplaceUserChildren(tx *gorm.DB, userId string, childIds []string) error
		DeleteUser(tx *gorm.DB, userId string) (store.DeletionReport, error)

		Tx(ctx context.Context) *gorm.DB
		Commit(tx *gorm.DB) error
		RollbackOnPanic(tx *gorm.DB)
	} `inject:""`
	Publisher interface {
		Publish(ctx context.Context, message messaging.Message) error
	} `inject:""`
	Logger *log.Logger `inject:""`
}

func (c *UserService) AddUser(ctx context.Context, request UserTransport) (store.User, error) {
	credential, err := credentials.Hash(*request.Password)
	if err != nil {
		return store.User{}, errors.Wrap(err, "failed to create user")
	}

	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.User{}, errors.Wrap(tx.Error, "failed to create user")
	}
	defer c.Store.RollbackOnPanic(tx)

	createdUser, err := c.Store.AddUser(tx, store.User{
		Password:     store.DbNullString(&credential),
		FirstName:    store.DbNullString(request.FirstName),
		LastName:     store.DbNullString(request.LastName),
		EmailAddress: store.DbNullString(request.EmailAddress),
	})
	if err != nil {
		tx.Rollback()
		return store.User{}, errors.Wrap(err, "failed to create user")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.User{}, errors.Wrap(err, "failed to create user")
	}

	c.Logger.Info(ctx, "user created", "userId", createdUser.UserId.String)
	return createdUser, nil
}

func (c *UserService) GetUser(ctx context.Context, userId string) (store.User, error) {
	user, err := c.Store.GetUser(nil, userId)
	if err != nil {
		return store.User{}, errors.Wrap(err, "failed to get user")
	}
	return user, nil
}

func (c *UserService) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, err := c.Store.GetUserByEmail(nil, email)
	if err != nil {
		return store.User{}, errors.Wrap(err, "failed to get user")
	}
	return user, nil
}

func (c *UserService) ListUsers(ctx context.Context) ([]store.User, error) {
	users, err := c.Store.ListUsers(nil)
	if err != nil {
		return []store.User{}, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}

// UpdateUser applies the request on behalf of whoever knows the user's
// current password.
func (c *UserService) UpdateUser(ctx context.Context, request UpdateUserTransport) (store.User, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.User{}, errors.Wrap(tx.Error, "failed to update user")
	}
	defer c.Store.RollbackOnPanic(tx)

	user, err := c.Store.GetUser(tx, request.Id)
	if err == store.ErrUserNotFound {
		tx.Rollback()
		credentials.VerifyAbsent(*request.Password)
		c.Logger.Warn(ctx, "rejected user update", "userId", request.Id)
		return store.User{}, store.ErrInvalidCredentials
	}
	if err != nil {
		tx.Rollback()
		return store.User{}, errors.Wrap(err, "failed to update user")
	}

	if !credentials.Verify(*request.Password, user.Password.String) {
		tx.Rollback()
		c.Logger.Warn(ctx, "rejected user update", "userId", request.Id)
		return store.User{}, store.ErrInvalidCredentials
	}

	if request.NewPassword != nil {
		if *request.NewPassword == *request.Password {
			tx.Rollback()
			return store.User{}, store.ErrSamePassword
		}
		credential, err := credentials.Hash(*request.NewPassword)
		if err != nil {
			tx.Rollback()
			return store.User{}, errors.Wrap(err, "failed to update user")
		}
		user.Password = store.DbNullString(&credential)
	}
	if request.FirstName != nil {
		user.FirstName = store.DbNullString(request.FirstName)
	}
	if request.LastName != nil {
		user.LastName = store.DbNullString(request.LastName)
	}
	if request.EmailAddress != nil {
		user.EmailAddress = store.DbNullString(request.EmailAddress)
	}

	if request.Children != nil {
		if err := c.Store.ReplaceUserChildren(tx, request.Id, request.Children); err != nil {
			tx.Rollback()
			return store.User{}, errors.Wrap(err, "failed to update user children")
		}
	}

	updatedUser, err := c.Store.UpdateUser(tx, user)
	if err != nil {
		tx.Rollback()
		return store.User{}, errors.Wrap(err, "failed to update user")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.User{}, errors.Wrap(err, "failed to update user")
	}
	return updatedUser, nil
}

// DeleteUser removes the user along with the children only they were
// responsible for, then announces it.
func (c *UserService) DeleteUser(ctx context.Context, userId string) (store.DeletionReport, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.DeletionReport{}, errors.Wrap(tx.Error, "failed to delete user")
	}
	defer c.Store.RollbackOnPanic(tx)

	report, err := c.Store.DeleteUser(tx, userId)
	if err != nil {
		tx.Rollback()
		return store.DeletionReport{}, errors.Wrap(err, "failed to delete user")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.DeletionReport{}, errors.Wrap(err, "failed to delete user")
	}

	c.Logger.Info(ctx, "user deleted",
		"userId", userId,
		"deletedChildren", len(report.ChildIds),
		"deletedEvents", report.DeletedEvents,
		"detachedEvents", report.DetachedEvents)
	c.notify(ctx, messaging.UserDeleted, report)
	return report, nil
}

// notify runs after commit: a lost notification is logged, never returned.
func (c *UserService) notify(ctx context.Context, kind string, report store.DeletionReport) {
	message, err := messaging.NewLifecycleMessage(kind, report)
	if err == nil {
		err = c.Publisher.Publish(ctx, message)
	}
	if err != nil {
		c.Logger.Warn(ctx, "failed to publish lifecycle notification", "type", kind, "err", err.Error())
	}
}
