package seed

import (
	"context"
	"testing"

	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/models"
	"postflow/internal/moderation"
	"postflow/internal/repository"
	"postflow/internal/service"
	"postflow/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Posts(t *testing.T) {
	db, err := database.Connect(context.Background(), &config.Config{
		Env:          "test",
		DBDriver:     config.DBDriverSQLite,
		DBSQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	svc := service.NewLifecycleService(
		repository.NewPostRepository(db, nil),
		validation.NewValidator(moderation.NewRuleClassifier(moderation.DefaultRuleSet())),
	)
	ctx := context.Background()

	res, err := NewSeeder(svc, 42).Posts(ctx, 8)
	require.NoError(t, err)

	assert.Equal(t, 2, res[models.StatusDraft])
	assert.GreaterOrEqual(t, res[models.StatusFlagged], 2)
	assert.Equal(t, 8, res[models.StatusDraft]+res[models.StatusApproved]+res[models.StatusFlagged]+res[models.StatusPublished])

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Total)

	posts, err := svc.List(ctx, "flagged")
	require.NoError(t, err)
	for _, p := range posts {
		assert.NotEmpty(t, p.FlaggedReasons)
	}

	require.NoError(t, Clear(ctx, db))
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "日本語", truncate("日本語テキスト", 3))
	assert.Equal(t, "ab", truncate("ab cd", 3), "trailing space is trimmed after a cut")
}
