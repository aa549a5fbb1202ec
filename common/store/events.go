package store

import (
	"database/sql"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Event struct {
	EventId    sql.NullString `gorm:"primary_key"`
	ChildId    sql.NullString
	UserId     sql.NullString
	Type       sql.NullString
	StartedAt  time.Time
	EndedAt    sql.NullTime
	Amount     sql.NullFloat64
	Unit       sql.NullString
	Side       sql.NullString
	FeedType   sql.NullString
	ChangeType sql.NullString
	Notes      sql.NullString
	CreatedAt  time.Time
	UpdatedAt  sql.NullTime
}

func (Event) TableName() string {
	return "events"
}

func (s *Store) checkEvent(db *gorm.DB, event Event) error {
	if ok, err := s.childExists(db, event.ChildId.String); err != nil {
		return err
	} else if !ok {
		return ErrChildNotFound
	}

	if event.UserId.Valid {
		if ok, err := s.userExists(db, event.UserId.String); err != nil {
			return err
		} else if !ok {
			return errors.Wrapf(ErrInvalidUserId, "'%s'", event.UserId.String)
		}
	}

	if event.EndedAt.Valid && event.EndedAt.Time.Before(event.StartedAt) {
		return ErrEventEndsBeforeStart
	}
	return nil
}

// AddEvent records an event under an existing child, optionally attributed
// to an existing user.
func (s *Store) AddEvent(tx *gorm.DB, event Event) (Event, error) {
	db := s.dbOrTx(tx)

	if err := s.checkEvent(db, event); err != nil {
		return Event{}, err
	}

	event.EventId = s.newId()
	event.StartedAt = event.StartedAt.UTC()
	event.CreatedAt = s.now()
	event.UpdatedAt = sql.NullTime{}

	if err := db.Exec("INSERT INTO events (event_id, child_id, user_id, type, started_at, ended_at, amount, unit, side, feed_type, change_type, notes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		event.EventId, event.ChildId, event.UserId, event.Type, event.StartedAt, event.EndedAt, event.Amount,
		event.Unit, event.Side, event.FeedType, event.ChangeType, event.Notes, event.CreatedAt).Error; err != nil {
		return Event{}, translateError(err)
	}

	return event, nil
}

// GetEvent returns the event only when it belongs to childId.
func (s *Store) GetEvent(tx *gorm.DB, childId, eventId string) (Event, error) {
	db := s.dbOrTx(tx)

	if ok, err := s.childExists(db, childId); err != nil {
		return Event{}, err
	} else if !ok {
		return Event{}, ErrChildNotFound
	}

	event := Event{}
	res := db.Where("child_id = ? AND event_id = ?", childId, eventId).First(&event)
	if res.RecordNotFound() {
		return Event{}, ErrEventNotFound
	}
	if res.Error != nil {
		return Event{}, res.Error
	}
	return utcEvent(event), nil
}

// ListEvents returns the child's events, most recent first.
func (s *Store) ListEvents(tx *gorm.DB, childId string) ([]Event, error) {
	db := s.dbOrTx(tx)

	if ok, err := s.childExists(db, childId); err != nil {
		return []Event{}, err
	} else if !ok {
		return []Event{}, ErrChildNotFound
	}

	events := []Event{}
	if err := db.Where("child_id = ?", childId).Order("started_at desc, created_at desc").Find(&events).Error; err != nil {
		return []Event{}, err
	}
	for i := range events {
		events[i] = utcEvent(events[i])
	}
	return events, nil
}

func (s *Store) UpdateEvent(tx *gorm.DB, event Event) (Event, error) {
	db := s.dbOrTx(tx)

	if _, err := s.GetEvent(db, event.ChildId.String, event.EventId.String); err != nil {
		return Event{}, err
	}
	if err := s.checkEvent(db, event); err != nil {
		return Event{}, err
	}

	if err := db.Model(&Event{}).Where("event_id = ?", event.EventId.String).UpdateColumns(map[string]interface{}{
		"user_id":     event.UserId,
		"type":        event.Type,
		"started_at":  event.StartedAt.UTC(),
		"ended_at":    event.EndedAt,
		"amount":      event.Amount,
		"unit":        event.Unit,
		"side":        event.Side,
		"feed_type":   event.FeedType,
		"change_type": event.ChangeType,
		"notes":       event.Notes,
		"updated_at":  s.now(),
	}).Error; err != nil {
		return Event{}, translateError(err)
	}

	return s.GetEvent(db, event.ChildId.String, event.EventId.String)
}

func (s *Store) DeleteEvent(tx *gorm.DB, childId, eventId string) error {
	db := s.dbOrTx(tx)

	if _, err := s.GetEvent(db, childId, eventId); err != nil {
		return err
	}
	if err := db.Where("event_id = ?", eventId).Delete(&Event{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	return nil
}

func utcEvent(event Event) Event {
	event.StartedAt = event.StartedAt.UTC()
	event.CreatedAt = event.CreatedAt.UTC()
	if event.EndedAt.Valid {
		event.EndedAt.Time = event.EndedAt.Time.UTC()
	}
	if event.UpdatedAt.Valid {
		event.UpdatedAt.Time = event.UpdatedAt.Time.UTC()
	}
	return event
}
