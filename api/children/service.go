package children

import (
	"context"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/messaging"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Service interface {
	AddChild(ctx context.Context, request ChildTransport) (store.Child, error)
	GetChild(ctx context.Context, childId string) (store.Child, error)
	ListChildren(ctx context.Context, userId string) ([]store.Child, error)
	UpdateChild(ctx context.Context, request UpdateChildTransport) (store.Child, error)
	DeleteChild(ctx context.Context, childId string) (store.DeletionReport, error)

	LinkUser(ctx context.Context, childId, userId string) (store.Child, error)
	UnlinkUser(ctx context.Context, childId, userId string) error
}

type ChildService struct {
	Store interface {
		AddChild(tx *gorm.DB, child store.Child) (store.Child, error)
		GetChild(tx *gorm.DB, childId string) (store.Child, error)
		ListChildren(tx *gorm.DB, options store.ChildSearchOptions) ([]store.Child, error)
		UpdateChild(tx *gorm.DB, child store.Child) (store.Child, error)
		DeleteChild(tx *gorm.DB, childId string) (store.DeletionReport, error)

		LinkUserChild(tx *gorm.DB, userId, childId string) (bool, error)
		UnlinkUserChild(tx *gorm.DB, userId, childId string) error

		Tx(ctx context.Context) *gorm.DB
		Commit(tx *gorm.DB) error
		RollbackOnPanic(tx *gorm.DB)
	} `inject:""`
	Publisher interface {
		Publish(ctx context.Context, message messaging.Message) error
	} `inject:""`
	Logger *log.Logger `inject:""`
}

func (c *ChildService) AddChild(ctx context.Context, request ChildTransport) (store.Child, error) {
	dateOfBirth, err := shared.ParseDate(*request.DateOfBirth)
	if err != nil {
		return store.Child{}, errors.Wrap(shared.ErrInvalidPayload, err.Error())
	}

	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.Child{}, errors.Wrap(tx.Error, "failed to add child")
	}
	defer c.Store.RollbackOnPanic(tx)

	createdChild, err := c.Store.AddChild(tx, store.Child{
		FirstName:   store.DbNullString(request.FirstName),
		LastName:    store.DbNullString(request.LastName),
		DateOfBirth: dateOfBirth,
		Users:       request.Users,
	})
	if err != nil {
		tx.Rollback()
		return store.Child{}, errors.Wrap(err, "failed to add child")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.Child{}, errors.Wrap(err, "failed to add child")
	}

	c.Logger.Info(ctx, "child created", "childId", createdChild.ChildId.String)
	return createdChild, nil
}

func (c *ChildService) GetChild(ctx context.Context, childId string) (store.Child, error) {
	child, err := c.Store.GetChild(nil, childId)
	if err != nil {
		return store.Child{}, errors.Wrap(err, "failed to get child")
	}
	return child, nil
}

func (c *ChildService) ListChildren(ctx context.Context, userId string) ([]store.Child, error) {
	children, err := c.Store.ListChildren(nil, store.ChildSearchOptions{UserId: userId})
	if err != nil {
		return []store.Child{}, errors.Wrap(err, "failed to list children")
	}
	return children, nil
}

func (c *ChildService) UpdateChild(ctx context.Context, request UpdateChildTransport) (store.Child, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.Child{}, errors.Wrap(tx.Error, "failed to update child")
	}
	defer c.Store.RollbackOnPanic(tx)

	child, err := c.Store.GetChild(tx, request.Id)
	if err != nil {
		tx.Rollback()
		return store.Child{}, errors.Wrap(err, "failed to update child")
	}

	if request.FirstName != nil {
		child.FirstName = store.DbNullString(request.FirstName)
	}
	if request.LastName != nil {
		child.LastName = store.DbNullString(request.LastName)
	}
	if request.DateOfBirth != nil {
		child.DateOfBirth, err = shared.ParseDate(*request.DateOfBirth)
		if err != nil {
			tx.Rollback()
			return store.Child{}, errors.Wrap(shared.ErrInvalidPayload, err.Error())
		}
	}
	// nil keeps the current users
	child.Users = request.Users

	updatedChild, err := c.Store.UpdateChild(tx, child)
	if err != nil {
		tx.Rollback()
		return store.Child{}, errors.Wrap(err, "failed to update child")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.Child{}, errors.Wrap(err, "failed to update child")
	}
	return updatedChild, nil
}

func (c *ChildService) DeleteChild(ctx context.Context, childId string) (store.DeletionReport, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.DeletionReport{}, errors.Wrap(tx.Error, "failed to delete child")
	}
	defer c.Store.RollbackOnPanic(tx)

	report, err := c.Store.DeleteChild(tx, childId)
	if err != nil {
		tx.Rollback()
		return store.DeletionReport{}, errors.Wrap(err, "failed to delete child")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.DeletionReport{}, errors.Wrap(err, "failed to delete child")
	}

	c.Logger.Info(ctx, "child deleted", "childId", childId, "deletedEvents", report.DeletedEvents)
	c.notify(ctx, report)
	return report, nil
}

func (c *ChildService) LinkUser(ctx context.Context, childId, userId string) (store.Child, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.Child{}, errors.Wrap(tx.Error, "failed to link user")
	}
	defer c.Store.RollbackOnPanic(tx)

	created, err := c.Store.LinkUserChild(tx, userId, childId)
	if err != nil {
		tx.Rollback()
		return store.Child{}, errors.Wrap(err, "failed to link user")
	}

	child, err := c.Store.GetChild(tx, childId)
	if err != nil {
		tx.Rollback()
		return store.Child{}, errors.Wrap(err, "failed to link user")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.Child{}, errors.Wrap(err, "failed to link user")
	}

	if created {
		c.Logger.Info(ctx, "user linked to child", "childId", childId, "userId", userId)
	}
	return child, nil
}

func (c *ChildService) UnlinkUser(ctx context.Context, childId, userId string) error {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to unlink user")
	}
	defer c.Store.RollbackOnPanic(tx)

	if err := c.Store.UnlinkUserChild(tx, userId, childId); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to unlink user")
	}

	if err := c.Store.Commit(tx); err != nil {
		return errors.Wrap(err, "failed to unlink user")
	}
	return nil
}

func (c *ChildService) notify(ctx context.Context, report store.DeletionReport) {
	message, err := messaging.NewLifecycleMessage(messaging.ChildDeleted, report)
	if err == nil {
		err = c.Publisher.Publish(ctx, message)
	}
	if err != nil {
		c.Logger.Warn(ctx, "failed to publish lifecycle notification", "type", messaging.ChildDeleted, "err", err.Error())
	}
}
