package store

import (
	"database/sql"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type User struct {
	UserId       sql.NullString `gorm:"primary_key"`
	Password     sql.NullString
	FirstName    sql.NullString
	LastName     sql.NullString
	EmailAddress sql.NullString
	ActivatedAt  sql.NullTime
	LoginAt      sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    sql.NullTime
	Children     []string `sql:"-"`
}

func (User) TableName() string {
	return "users"
}

// AddUser stores a new user. Password must already hold a credential.
func (s *Store) AddUser(tx *gorm.DB, user User) (User, error) {
	db := s.dbOrTx(tx)

	user.EmailAddress = DbNullString(stringPtr(NormalizeEmail(user.EmailAddress.String)))
	user.FirstName = normalizeNullName(user.FirstName)
	user.LastName = normalizeNullName(user.LastName)

	if err := s.checkEmailAvailable(db, user.EmailAddress.String, ""); err != nil {
		return User{}, err
	}

	user.UserId = s.newId()
	user.CreatedAt = s.now()
	user.UpdatedAt = sql.NullTime{}

	// inserted by hand so that gorm does not stamp updated_at on creation
	if err := db.Exec("INSERT INTO users (user_id, password, first_name, last_name, email_address, activated_at, login_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.UserId, user.Password, user.FirstName, user.LastName, user.EmailAddress, user.ActivatedAt, user.LoginAt, user.CreatedAt).Error; err != nil {
		return User{}, translateError(err)
	}

	user.Children = []string{}
	return user, nil
}

func (s *Store) GetUser(tx *gorm.DB, userId string) (User, error) {
	db := s.dbOrTx(tx)

	user, err := s.getUserRow(db, "user_id = ?", userId)
	if err != nil {
		return User{}, err
	}
	if user.Children, err = s.childIdsOfUser(db, userId); err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail looks the user up by its normalized email address.
func (s *Store) GetUserByEmail(tx *gorm.DB, email string) (User, error) {
	db := s.dbOrTx(tx)

	user, err := s.getUserRow(db, "email_address = ?", NormalizeEmail(email))
	if err != nil {
		return User{}, err
	}
	if user.Children, err = s.childIdsOfUser(db, user.UserId.String); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) getUserRow(db *gorm.DB, query string, value string) (User, error) {
	user := User{}
	res := db.Where(query, value).First(&user)
	if res.RecordNotFound() {
		return User{}, ErrUserNotFound
	}
	if res.Error != nil {
		return User{}, res.Error
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) userExists(db *gorm.DB, userId string) (bool, error) {
	var count int
	if err := db.Model(&User{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(tx *gorm.DB) ([]User, error) {
	db := s.dbOrTx(tx)

	users := []User{}
	if err := db.Order("created_at asc, user_id asc").Find(&users).Error; err != nil {
		return []User{}, err
	}

	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.UserId.String)
	}
	childrenByUser, err := s.childIdsOfUsers(db, ids)
	if err != nil {
		return []User{}, err
	}
	for i := range users {
		users[i].CreatedAt = users[i].CreatedAt.UTC()
		users[i].Children = childrenByUser[users[i].UserId.String]
		if users[i].Children == nil {
			users[i].Children = []string{}
		}
	}
	return users, nil
}

// UpdateUser overwrites the mutable columns of user and stamps updated_at.
// The child set is left alone, see ReplaceUserChildren.
func (s *Store) UpdateUser(tx *gorm.DB, user User) (User, error) {
	db := s.dbOrTx(tx)

	if _, err := s.getUserRow(db, "user_id = ?", user.UserId.String); err != nil {
		return User{}, err
	}

	email := NormalizeEmail(user.EmailAddress.String)
	if err := s.checkEmailAvailable(db, email, user.UserId.String); err != nil {
		return User{}, err
	}

	if err := db.Model(&User{}).Where("user_id = ?", user.UserId.String).UpdateColumns(map[string]interface{}{
		"password":      user.Password,
		"first_name":    normalizeNullName(user.FirstName),
		"last_name":     normalizeNullName(user.LastName),
		"email_address": email,
		"activated_at":  user.ActivatedAt,
		"updated_at":    s.now(),
	}).Error; err != nil {
		return User{}, translateError(err)
	}

	return s.GetUser(db, user.UserId.String)
}

// TouchLogin records a successful authentication. It is not an update of
// the user record, so updated_at is left as is.
func (s *Store) TouchLogin(tx *gorm.DB, userId string) (User, error) {
	db := s.dbOrTx(tx)

	res := db.Model(&User{}).Where("user_id = ?", userId).UpdateColumn("login_at", s.now())
	if res.Error != nil {
		return User{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return User{}, ErrUserNotFound
	}
	return s.GetUser(db, userId)
}

func (s *Store) checkEmailAvailable(db *gorm.DB, email, exceptUserId string) error {
	existing, err := s.getUserRow(db, "email_address = ?", email)
	switch {
	case err == ErrUserNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "failed to check email address")
	case existing.UserId.String != exceptUserId:
		return ErrEmailAlreadyRegistered
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
