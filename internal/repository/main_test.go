package repository

import (
	"context"
	"testing"

	"postflow/internal/config"
	"postflow/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB opens a private in-memory database with the schema applied.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(context.Background(), &config.Config{
		Env:          "test",
		DBDriver:     config.DBDriverSQLite,
		DBSQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
