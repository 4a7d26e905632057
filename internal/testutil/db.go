// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/academvault/discussions/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir. It uses a single
// connection so concurrent transactions serialise like row-locked Postgres
// writers; code under test must not use the root handle inside a transaction.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given display name
func CreateUser(t testing.TB, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{
		Name:  name,
		Email: fmt.Sprintf("%s@academvault.test", name),
	}
	require.NoError(t, db.WithContext(context.Background()).Create(u).Error)
	return u
}
