package store

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

// UserChild is one row of the user to child relation. The pair is the
// primary key, so a user is linked to a given child at most once.
type UserChild struct {
	UserId  string `gorm:"primary_key"`
	ChildId string `gorm:"primary_key"`
}

func (UserChild) TableName() string {
	return "user_children"
}

// LinkUserChild links an existing user to an existing child. Linking twice is
// a no-op; created reports whether a new link was written.
func (s *Store) LinkUserChild(tx *gorm.DB, userId, childId string) (created bool, err error) {
	db := s.dbOrTx(tx)

	if err := s.lockChildren(db, []string{childId}); err != nil {
		return false, err
	}
	if _, err := s.getChildRow(db, childId); err != nil {
		return false, err
	}
	if ok, err := s.userExists(db, userId); err != nil {
		return false, err
	} else if !ok {
		return false, ErrUserNotFound
	}

	linked, err := s.isLinked(db, userId, childId)
	if err != nil || linked {
		return false, err
	}
	if err := s.insertLink(db, userId, childId); err != nil {
		return false, err
	}
	return true, nil
}

// UnlinkUserChild removes a link, unless it is the last one the child has.
func (s *Store) UnlinkUserChild(tx *gorm.DB, userId, childId string) error {
	db := s.dbOrTx(tx)

	if err := s.lockChildren(db, []string{childId}); err != nil {
		return err
	}
	if _, err := s.getChildRow(db, childId); err != nil {
		return err
	}

	userIds, err := s.userIdsOfChild(db, childId)
	if err != nil {
		return err
	}
	if !contains(userIds, userId) {
		return ErrLinkNotFound
	}
	if len(userIds) == 1 {
		return ErrChildWithoutUser
	}

	return s.deleteLinks(db, "user_id = ? AND child_id = ?", userId, childId)
}

// ReplaceUserChildren makes childIds the exact set of children linked to the
// user. Dropping a child that has no other user is refused.
func (s *Store) ReplaceUserChildren(tx *gorm.DB, userId string, childIds []string) error {
	db := s.dbOrTx(tx)

	wanted := uniqueSorted(childIds)
	for _, childId := range wanted {
		ok, err := s.childExists(db, childId)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrInvalidChildId, "'%s'", childId)
		}
	}

	current, err := s.childIdsOfUser(db, userId)
	if err != nil {
		return err
	}
	removed := difference(current, wanted)
	added := difference(wanted, current)

	if err := s.lockChildren(db, uniqueSorted(append(append([]string{}, removed...), added...))); err != nil {
		return err
	}

	counts, err := s.userCounts(db, removed)
	if err != nil {
		return err
	}
	for _, childId := range removed {
		if counts[childId] <= 1 {
			return errors.Wrapf(ErrChildWithoutUser, "'%s'", childId)
		}
	}

	if len(removed) > 0 {
		if err := s.deleteLinks(db, "user_id = ? AND child_id IN (?)", userId, removed); err != nil {
			return err
		}
	}
	for _, childId := range added {
		if err := s.insertLink(db, userId, childId); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceChildUsers makes userIds the exact, non empty, set of users linked
// to the child.
func (s *Store) ReplaceChildUsers(tx *gorm.DB, childId string, userIds []string) error {
	db := s.dbOrTx(tx)

	wanted := uniqueSorted(userIds)
	if len(wanted) == 0 {
		return ErrChildWithoutUser
	}
	if err := s.checkUsersExist(db, wanted); err != nil {
		return err
	}
	if err := s.lockChildren(db, []string{childId}); err != nil {
		return err
	}

	current, err := s.userIdsOfChild(db, childId)
	if err != nil {
		return err
	}

	if removed := difference(current, wanted); len(removed) > 0 {
		if err := s.deleteLinks(db, "child_id = ? AND user_id IN (?)", childId, removed); err != nil {
			return err
		}
	}
	for _, userId := range difference(wanted, current) {
		if err := s.insertLink(db, userId, childId); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) checkUsersExist(db *gorm.DB, userIds []string) error {
	for _, userId := range userIds {
		ok, err := s.userExists(db, userId)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrInvalidUserId, "'%s'", userId)
		}
	}
	return nil
}

func (s *Store) insertLink(db *gorm.DB, userId, childId string) error {
	if err := db.Exec("INSERT INTO user_children (user_id, child_id) VALUES (?, ?)", userId, childId).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (s *Store) deleteLinks(db *gorm.DB, query string, values ...interface{}) error {
	if err := db.Where(query, values...).Delete(&UserChild{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete links")
	}
	return nil
}

func (s *Store) isLinked(db *gorm.DB, userId, childId string) (bool, error) {
	var count int
	if err := db.Model(&UserChild{}).Where("user_id = ? AND child_id = ?", userId, childId).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// lockChildren takes row locks on the given children, in id order, for the
// rest of the transaction. sqlite serializes writers on its own.
func (s *Store) lockChildren(db *gorm.DB, childIds []string) error {
	if len(childIds) == 0 || !isPostgres(db) {
		return nil
	}
	locked := []Child{}
	if err := db.Set("gorm:query_option", "FOR UPDATE").
		Select("child_id").
		Where("child_id IN (?)", uniqueSorted(childIds)).
		Order("child_id asc").
		Find(&locked).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (s *Store) childIdsOfUser(db *gorm.DB, userId string) ([]string, error) {
	byUser, err := s.childIdsOfUsers(db, []string{userId})
	if err != nil {
		return nil, err
	}
	if ids, ok := byUser[userId]; ok {
		return ids, nil
	}
	return []string{}, nil
}

func (s *Store) userIdsOfChild(db *gorm.DB, childId string) ([]string, error) {
	byChild, err := s.userIdsOfChildren(db, []string{childId})
	if err != nil {
		return nil, err
	}
	if ids, ok := byChild[childId]; ok {
		return ids, nil
	}
	return []string{}, nil
}

func (s *Store) childIdsOfUsers(db *gorm.DB, userIds []string) (map[string][]string, error) {
	res := map[string][]string{}
	if len(userIds) == 0 {
		return res, nil
	}
	links := []UserChild{}
	if err := db.Where("user_id IN (?)", userIds).Order("child_id asc").Find(&links).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load user children")
	}
	for _, link := range links {
		res[link.UserId] = append(res[link.UserId], link.ChildId)
	}
	return res, nil
}

func (s *Store) userIdsOfChildren(db *gorm.DB, childIds []string) (map[string][]string, error) {
	res := map[string][]string{}
	if len(childIds) == 0 {
		return res, nil
	}
	links := []UserChild{}
	if err := db.Where("child_id IN (?)", childIds).Order("user_id asc").Find(&links).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load child users")
	}
	for _, link := range links {
		res[link.ChildId] = append(res[link.ChildId], link.UserId)
	}
	return res, nil
}

// userCounts returns, per child, how many users are linked to it.
func (s *Store) userCounts(db *gorm.DB, childIds []string) (map[string]int, error) {
	counts := map[string]int{}
	byChild, err := s.userIdsOfChildren(db, childIds)
	if err != nil {
		return nil, err
	}
	for childId, userIds := range byChild {
		counts[childId] = len(userIds)
	}
	return counts, nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
