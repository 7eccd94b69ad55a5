package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"postflow/internal/config"
	"postflow/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:         "8080",
		Env:          "test",
		DBDriver:     config.DBDriverSQLite,
		DBSQLitePath: ":memory:",
	}
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// setupTestApp wires a Server with the rule classifier and an in-memory database.
func setupTestApp(t *testing.T, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()
	s, err := NewServerWithDeps(testConfig(), setupSQLiteDB(t), rdb)
	require.NoError(t, err)
	return s, s.NewApp()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}
