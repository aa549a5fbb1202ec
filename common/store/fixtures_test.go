package store_test

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MashSoftware/diary-api/common/generator"
	. "github.com/MashSoftware/diary-api/common/store"
	"github.com/MashSoftware/diary-api/common/store/storetest"

	"github.com/Pallinder/go-randomdata"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

type fixtures struct {
	db    *gorm.DB
	store *Store
}

func newFixtures() *fixtures {
	db := storetest.NewDbInstance(false)
	return &fixtures{
		db: db,
		store: &Store{
			Db:              db,
			StringGenerator: &generator.StringGenerator{},
		},
	}
}

func (f *fixtures) close() {
	storetest.Close(f.db)
}

func null(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func (f *fixtures) user() User {
	first := randomdata.FirstName(randomdata.RandomGender)
	user, err := f.store.AddUser(nil, User{
		Password:     null("credential"),
		FirstName:    null(first),
		LastName:     null(randomdata.LastName()),
		EmailAddress: null(fmt.Sprintf("%s.%d@example.com", strings.ToLower(first), randomdata.Number(1, 1000000))),
	})
	Expect(err).NotTo(HaveOccurred())
	return user
}

func (f *fixtures) child(userIds ...string) Child {
	child, err := f.store.AddChild(nil, Child{
		FirstName:   null(randomdata.FirstName(randomdata.RandomGender)),
		LastName:    null(randomdata.LastName()),
		DateOfBirth: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		Users:       userIds,
	})
	Expect(err).NotTo(HaveOccurred())
	return child
}

func (f *fixtures) event(childId string, userId string, startedAt time.Time) Event {
	event := Event{
		ChildId:   null(childId),
		Type:      null("feed"),
		StartedAt: startedAt,
	}
	if userId != "" {
		event.UserId = null(userId)
	}
	created, err := f.store.AddEvent(nil, event)
	Expect(err).NotTo(HaveOccurred())
	return created
}

func (f *fixtures) count(table string, where string, args ...interface{}) int {
	var count int
	query := f.db.Table(table)
	if where != "" {
		query = query.Where(where, args...)
	}
	Expect(query.Count(&count).Error).NotTo(HaveOccurred())
	return count
}
