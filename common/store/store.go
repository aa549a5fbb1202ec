package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Store struct {
	Db              *gorm.DB `inject:""`
	StringGenerator interface {
		GenerateUuid() string
	} `inject:""`
	// Isolation applies to every transaction opened by Tx.
	Isolation sql.IsolationLevel
}

// Tx opens the single transaction a mutating request runs in.
func (s *Store) Tx(ctx context.Context) *gorm.DB {
	return s.Db.BeginTx(ctx, &sql.TxOptions{Isolation: s.Isolation})
}

// Commit commits tx and reports serialization failures as ErrConflict.
func (s *Store) Commit(tx *gorm.DB) error {
	return translateError(tx.Commit().Error)
}

// RollbackOnPanic is deferred right after Tx. It rolls tx back when the
// caller panics and lets the panic go on.
func (s *Store) RollbackOnPanic(tx *gorm.DB) {
	if r := recover(); r != nil {
		tx.Rollback()
		panic(r)
	}
}

func (s *Store) dbOrTx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.Db
}

func DbNullString(value *string) sql.NullString {
	if value != nil {
		return sql.NullString{
			String: *value,
			Valid:  true,
		}
	}
	return sql.NullString{
		Valid: false,
	}
}

func DbNullTime(value *time.Time) sql.NullTime {
	if value != nil {
		return sql.NullTime{
			Time:  value.UTC(),
			Valid: true,
		}
	}
	return sql.NullTime{
		Valid: false,
	}
}

func DbNullFloat64(value *float64) sql.NullFloat64 {
	if value != nil {
		return sql.NullFloat64{
			Float64: *value,
			Valid:   true,
		}
	}
	return sql.NullFloat64{
		Valid: false,
	}
}

func (s *Store) newId() sql.NullString {
	id := s.StringGenerator.GenerateUuid()
	return DbNullString(&id)
}

func (s *Store) now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Today is the current calendar date in UTC, at midnight.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialect().GetName() == "postgres"
}

var titleCaser = cases.Title(language.Und)

func NormalizeName(name string) string {
	return titleCaser.String(strings.TrimSpace(name))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeNullName(name sql.NullString) sql.NullString {
	if !name.Valid {
		return name
	}
	return sql.NullString{String: NormalizeName(name.String), Valid: true}
}

// uniqueSorted drops empty and duplicated ids and sorts the rest, which is
// also the order rows get locked in.
func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	out := make([]string, 0)
	for _, id := range a {
		if !inB[id] {
			out = append(out, id)
		}
	}
	return out
}
