package store

import (
	"database/sql"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Child struct {
	ChildId     sql.NullString `gorm:"primary_key"`
	FirstName   sql.NullString
	LastName    sql.NullString
	DateOfBirth time.Time
	CreatedAt   time.Time
	UpdatedAt   sql.NullTime
	Users       []string `sql:"-"`
}

func (Child) TableName() string {
	return "children"
}

type ChildSearchOptions struct {
	UserId string
}

// AddChild stores a new child together with its links to child.Users.
func (s *Store) AddChild(tx *gorm.DB, child Child) (Child, error) {
	db := s.dbOrTx(tx)

	child.DateOfBirth = dateOnly(child.DateOfBirth)
	if child.DateOfBirth.After(Today()) {
		return Child{}, ErrBirthDateInFuture
	}

	userIds := uniqueSorted(child.Users)
	if len(userIds) == 0 {
		return Child{}, ErrChildWithoutUser
	}
	if err := s.checkUsersExist(db, userIds); err != nil {
		return Child{}, err
	}

	child.ChildId = s.newId()
	child.FirstName = normalizeNullName(child.FirstName)
	child.LastName = normalizeNullName(child.LastName)
	child.CreatedAt = s.now()
	child.UpdatedAt = sql.NullTime{}

	if err := db.Exec("INSERT INTO children (child_id, first_name, last_name, date_of_birth, created_at) VALUES (?, ?, ?, ?, ?)",
		child.ChildId, child.FirstName, child.LastName, child.DateOfBirth, child.CreatedAt).Error; err != nil {
		return Child{}, translateError(err)
	}

	for _, userId := range userIds {
		if err := s.insertLink(db, userId, child.ChildId.String); err != nil {
			return Child{}, errors.Wrap(err, "failed to link user")
		}
	}

	child.Users = userIds
	return child, nil
}

func (s *Store) GetChild(tx *gorm.DB, childId string) (Child, error) {
	db := s.dbOrTx(tx)

	child, err := s.getChildRow(db, childId)
	if err != nil {
		return Child{}, err
	}
	if child.Users, err = s.userIdsOfChild(db, childId); err != nil {
		return Child{}, err
	}
	return child, nil
}

func (s *Store) getChildRow(db *gorm.DB, childId string) (Child, error) {
	child := Child{}
	res := db.Where("child_id = ?", childId).First(&child)
	if res.RecordNotFound() {
		return Child{}, ErrChildNotFound
	}
	if res.Error != nil {
		return Child{}, res.Error
	}
	child.CreatedAt = child.CreatedAt.UTC()
	return child, nil
}

func (s *Store) childExists(db *gorm.DB, childId string) (bool, error) {
	var count int
	if err := db.Model(&Child{}).Where("child_id = ?", childId).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListChildren returns children oldest first, optionally only those linked
// to options.UserId.
func (s *Store) ListChildren(tx *gorm.DB, options ChildSearchOptions) ([]Child, error) {
	db := s.dbOrTx(tx)

	query := db.Table("children").Select("children.*")
	if options.UserId != "" {
		query = query.
			Joins("JOIN user_children ON user_children.child_id = children.child_id").
			Where("user_children.user_id = ?", options.UserId)
	}

	children := []Child{}
	if err := query.Order("children.created_at asc, children.child_id asc").Find(&children).Error; err != nil {
		return []Child{}, err
	}

	ids := make([]string, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.ChildId.String)
	}
	usersByChild, err := s.userIdsOfChildren(db, ids)
	if err != nil {
		return []Child{}, err
	}
	for i := range children {
		children[i].CreatedAt = children[i].CreatedAt.UTC()
		children[i].Users = usersByChild[children[i].ChildId.String]
		if children[i].Users == nil {
			children[i].Users = []string{}
		}
	}
	return children, nil
}

// UpdateChild overwrites the child's columns and stamps updated_at. A non nil
// child.Users replaces the set of linked users.
func (s *Store) UpdateChild(tx *gorm.DB, child Child) (Child, error) {
	db := s.dbOrTx(tx)

	childId := child.ChildId.String
	if _, err := s.getChildRow(db, childId); err != nil {
		return Child{}, err
	}

	dateOfBirth := dateOnly(child.DateOfBirth)
	if dateOfBirth.After(Today()) {
		return Child{}, ErrBirthDateInFuture
	}

	if child.Users != nil {
		if err := s.ReplaceChildUsers(db, childId, child.Users); err != nil {
			return Child{}, err
		}
	}

	if err := db.Model(&Child{}).Where("child_id = ?", childId).UpdateColumns(map[string]interface{}{
		"first_name":    normalizeNullName(child.FirstName),
		"last_name":     normalizeNullName(child.LastName),
		"date_of_birth": dateOfBirth,
		"updated_at":    s.now(),
	}).Error; err != nil {
		return Child{}, translateError(err)
	}

	return s.GetChild(db, childId)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
