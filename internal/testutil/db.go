package testutil

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/Folio/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 在临时目录打开 SQLite 并自动迁移所有表。
// 不用 :memory:，连接池里的每个连接都会是一个独立的空库，并发加载会读不到表。
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, _ := OpenTestDBAt(t, filepath.Join(t.TempDir(), "folio_test.db"))
	return db
}

// OpenTestDBAt 在指定路径打开测试库，返回 db 与路径
func OpenTestDBAt(t *testing.T, path string) (*gorm.DB, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.Achievement{},
		&schema.Profile{},
		&schema.IntegrationConnection{},
		&schema.RecordChange{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db, path
}
