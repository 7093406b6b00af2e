package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenTest opens an in-memory SQLite database with the full schema migrated.
// Each call returns an isolated database.
func OpenTest(tb testing.TB) *gorm.DB {
	tb.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		tb.Fatalf("opening test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		tb.Fatalf("migrating test db: %v", err)
	}
	return gdb
}
