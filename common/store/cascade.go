package store

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

// DeletionReport describes what a cascading delete removed.
type DeletionReport struct {
	UserId         string   `json:"user_id,omitempty"`
	ChildIds       []string `json:"child_ids"`
	DeletedEvents  int64    `json:"deleted_events"`
	DetachedEvents int64    `json:"detached_events"`
}

// DeleteUser removes the user and every child that would be left without a
// user, with their events. Events the user recorded on surviving children
// are kept and lose their user_id. It must run inside the caller's
// transaction. Losing a race against a concurrent cascade is reported as
// ErrConflict.
func (s *Store) DeleteUser(tx *gorm.DB, userId string) (DeletionReport, error) {
	report, err := s.deleteUser(s.dbOrTx(tx), userId)
	return report, translateError(err)
}

func (s *Store) deleteUser(db *gorm.DB, userId string) (DeletionReport, error) {
	report := DeletionReport{UserId: userId, ChildIds: []string{}}

	if _, err := s.getUserRow(db, "user_id = ?", userId); err != nil {
		return report, err
	}

	childIds, err := s.childIdsOfUser(db, userId)
	if err != nil {
		return report, err
	}
	if err := s.lockChildren(db, childIds); err != nil {
		return report, err
	}

	counts, err := s.userCounts(db, childIds)
	if err != nil {
		return report, err
	}
	for _, childId := range childIds {
		if counts[childId] > 1 {
			continue
		}
		deletedEvents, err := s.deleteChildRows(db, childId)
		if err != nil {
			return report, errors.Wrapf(err, "failed to delete orphaned child %s", childId)
		}
		report.ChildIds = append(report.ChildIds, childId)
		report.DeletedEvents += deletedEvents
	}

	if err := s.deleteLinks(db, "user_id = ?", userId); err != nil {
		return report, err
	}

	res := db.Model(&Event{}).Where("user_id = ?", userId).UpdateColumn("user_id", gorm.Expr("NULL"))
	if res.Error != nil {
		return report, errors.Wrap(res.Error, "failed to detach events")
	}
	report.DetachedEvents = res.RowsAffected

	if err := db.Where("user_id = ?", userId).Delete(&User{}).Error; err != nil {
		return report, errors.Wrap(translateError(err), "failed to delete user")
	}

	return report, nil
}

// DeleteChild removes the child, its events and its links. Users are never
// touched.
func (s *Store) DeleteChild(tx *gorm.DB, childId string) (DeletionReport, error) {
	db := s.dbOrTx(tx)
	report := DeletionReport{ChildIds: []string{}}

	if err := s.lockChildren(db, []string{childId}); err != nil {
		return report, err
	}
	if _, err := s.getChildRow(db, childId); err != nil {
		return report, err
	}

	deletedEvents, err := s.deleteChildRows(db, childId)
	if err != nil {
		return report, err
	}
	report.ChildIds = append(report.ChildIds, childId)
	report.DeletedEvents = deletedEvents
	return report, nil
}

func (s *Store) deleteChildRows(db *gorm.DB, childId string) (int64, error) {
	res := db.Where("child_id = ?", childId).Delete(&Event{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete events")
	}
	if err := s.deleteLinks(db, "child_id = ?", childId); err != nil {
		return 0, err
	}
	if err := db.Where("child_id = ?", childId).Delete(&Child{}).Error; err != nil {
		return 0, errors.Wrap(translateError(err), "failed to delete child")
	}
	return res.RowsAffected, nil
}
