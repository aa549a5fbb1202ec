package events

import (
	"context"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Service interface {
	AddEvent(ctx context.Context, request EventTransport) (store.Event, error)
	GetEvent(ctx context.Context, childId, eventId string) (store.Event, error)
	ListEvents(ctx context.Context, childId string) ([]store.Event, error)
	UpdateEvent(ctx context.Context, request EventTransport) (store.Event, error)
	DeleteEvent(ctx context.Context, childId, eventId string) error
}

type EventService struct {
	Store interface {
		AddEvent(tx *gorm.DB, event store.Event) (store.Event, error)
		GetEvent(tx *gorm.DB, childId, eventId string) (store.Event, error)
		ListEvents(tx *gorm.DB, childId string) ([]store.Event, error)
		UpdateEvent(tx *gorm.DB, event store.Event) (store.Event, error)
		DeleteEvent(tx *gorm.DB, childId, eventId string) error

		Tx(ctx context.Context) *gorm.DB
		Commit(tx *gorm.DB) error
		RollbackOnPanic(tx *gorm.DB)
	} `inject:""`
	Logger *log.Logger `inject:""`
}

func (c *EventService) AddEvent(ctx context.Context, request EventTransport) (store.Event, error) {
	event, err := applyTransport(store.Event{ChildId: store.DbNullString(request.ChildId)}, request)
	if err != nil {
		return store.Event{}, err
	}

	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.Event{}, errors.Wrap(tx.Error, "failed to add event")
	}
	defer c.Store.RollbackOnPanic(tx)

	createdEvent, err := c.Store.AddEvent(tx, event)
	if err != nil {
		tx.Rollback()
		return store.Event{}, errors.Wrap(err, "failed to add event")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.Event{}, errors.Wrap(err, "failed to add event")
	}

	c.Logger.Debug(ctx, "event recorded", "childId", createdEvent.ChildId.String, "eventId", createdEvent.EventId.String, "type", createdEvent.Type.String)
	return createdEvent, nil
}

func (c *EventService) GetEvent(ctx context.Context, childId, eventId string) (store.Event, error) {
	event, err := c.Store.GetEvent(nil, childId, eventId)
	if err != nil {
		return store.Event{}, errors.Wrap(err, "failed to get event")
	}
	return event, nil
}

func (c *EventService) ListEvents(ctx context.Context, childId string) ([]store.Event, error) {
	events, err := c.Store.ListEvents(nil, childId)
	if err != nil {
		return []store.Event{}, errors.Wrap(err, "failed to list events")
	}
	return events, nil
}

// UpdateEvent merges the fields present in the request into the stored event.
func (c *EventService) UpdateEvent(ctx context.Context, request EventTransport) (store.Event, error) {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return store.Event{}, errors.Wrap(tx.Error, "failed to update event")
	}
	defer c.Store.RollbackOnPanic(tx)

	event, err := c.Store.GetEvent(tx, *request.ChildId, *request.Id)
	if err != nil {
		tx.Rollback()
		return store.Event{}, errors.Wrap(err, "failed to update event")
	}

	event, err = applyTransport(event, request)
	if err != nil {
		tx.Rollback()
		return store.Event{}, err
	}

	updatedEvent, err := c.Store.UpdateEvent(tx, event)
	if err != nil {
		tx.Rollback()
		return store.Event{}, errors.Wrap(err, "failed to update event")
	}

	if err := c.Store.Commit(tx); err != nil {
		return store.Event{}, errors.Wrap(err, "failed to update event")
	}
	return updatedEvent, nil
}

func (c *EventService) DeleteEvent(ctx context.Context, childId, eventId string) error {
	tx := c.Store.Tx(ctx)
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to delete event")
	}
	defer c.Store.RollbackOnPanic(tx)

	if err := c.Store.DeleteEvent(tx, childId, eventId); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to delete event")
	}

	if err := c.Store.Commit(tx); err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	return nil
}

func applyTransport(event store.Event, request EventTransport) (store.Event, error) {
	if request.UserId != nil {
		event.UserId = store.DbNullString(request.UserId)
	}
	if request.Type != nil {
		event.Type = store.DbNullString(request.Type)
	}
	if request.StartedAt != nil {
		startedAt, err := shared.ParseTime(*request.StartedAt)
		if err != nil {
			return store.Event{}, errors.Wrap(shared.ErrInvalidPayload, err.Error())
		}
		event.StartedAt = startedAt
	}
	if request.EndedAt != nil {
		endedAt, err := shared.ParseTime(*request.EndedAt)
		if err != nil {
			return store.Event{}, errors.Wrap(shared.ErrInvalidPayload, err.Error())
		}
		event.EndedAt = store.DbNullTime(&endedAt)
	}
	if request.Amount != nil {
		event.Amount = store.DbNullFloat64(request.Amount)
	}
	if request.Unit != nil {
		event.Unit = store.DbNullString(request.Unit)
	}
	if request.Side != nil {
		event.Side = store.DbNullString(request.Side)
	}
	if request.FeedType != nil {
		event.FeedType = store.DbNullString(request.FeedType)
	}
	if request.ChangeType != nil {
		event.ChangeType = store.DbNullString(request.ChangeType)
	}
	if request.Notes != nil {
		event.Notes = store.DbNullString(request.Notes)
	}
	return event, nil
}
