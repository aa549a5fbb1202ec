// Package storetest gives test suites a throw-away database carrying the
// production schema.
package storetest

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// SqlDirPath is the directory holding the schema migrations.
func SqlDirPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "api", "sql")
}

// NewDbInstance opens a fresh sqlite database, with foreign keys enforced,
// and applies every up migration to it. Close removes the file.
func NewDbInstance(logMode bool) *gorm.DB {
	dir, err := ioutil.TempDir("", "diary-test")
	if err != nil {
		panic(err)
	}

	db, err := gorm.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(dir, "diary.db")))
	if err != nil {
		panic(err)
	}
	db.LogMode(logMode)

	if err := applyMigrations(db); err != nil {
		db.Close()
		panic(err)
	}

	return db.InstantSet("storetest:dir", dir)
}

// Close closes db and deletes its backing file.
func Close(db *gorm.DB) {
	db.Close()
	if dir, ok := db.Get("storetest:dir"); ok {
		os.RemoveAll(dir.(string))
	}
}

func applyMigrations(db *gorm.DB) error {
	files, err := filepath.Glob(filepath.Join(SqlDirPath(), "*.up.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := ioutil.ReadFile(file)
		if err != nil {
			return err
		}
		for _, statement := range strings.Split(string(content), ";") {
			if strings.TrimSpace(statement) == "" {
				continue
			}
			if err := db.Exec(statement).Error; err != nil {
				return fmt.Errorf("%s: %v", filepath.Base(file), err)
			}
		}
	}
	return nil
}
