// Package dbtest opens throwaway SQLite databases for store-backed tests.
package dbtest

import (
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	platformdb "github.com/fatflowers/repairdesk/internal/platform/db"
	gormzap "github.com/fatflowers/repairdesk/pkg/gormlog"
)

// Open returns a migrated database stored under t.TempDir(). A single
// connection serializes background writers with the test goroutine.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "repairdesk.sqlite") + "?_pragma=busy_timeout(5000)"
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: gormzap.New(zap.NewNop().Sugar()).LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(platformdb.Models()...))
	return gdb
}
