package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"postflow/internal/lock"
	"postflow/internal/models"
	"postflow/internal/moderation"
	"postflow/internal/repository"
	"postflow/internal/service"
	"postflow/internal/validation"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	cleanContent = "Tomatoes go in once the soil is warm enough to hold a seedling through the night."
	rudeContent  = "Whoever planted this row is a moron and the layout is plain stupid, honestly speaking."
)

func createPost(t *testing.T, app *fiber.App, title, content string) models.Post {
	t.Helper()
	resp, raw := doJSON(t, app, http.MethodPost, "/posts", CreatePostRequest{Title: title, Content: content})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	return decode[models.Post](t, raw)
}

func TestPostLifecycle_HTTP(t *testing.T) {
	_, app := setupTestApp(t, nil)
	post := createPost(t, app, "Spring planting", cleanContent)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.Equal(t, models.Reasons{}, post.FlaggedReasons)

	resp, raw := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, models.StatusApproved, decode[models.Post](t, raw).Status)

	// Same routes are served under /api.
	resp, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/posts/%d/publish", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	published := decode[models.Post](t, raw)
	assert.Equal(t, models.StatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	resp, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/posts/%d", post.ID), EditPostRequest{Title: strPtr("Changed")})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidTransition, decode[models.ErrorResponse](t, raw).Code)

	resp, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/posts/%d", post.ID), map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidTransition, decode[models.ErrorResponse](t, raw).Code)

	resp, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Spring planting", decode[models.Post](t, raw).Title)
}

func TestSubmitPost_FailedInputChecks(t *testing.T) {
	_, app := setupTestApp(t, nil)
	post := createPost(t, app, "Short", strings.Repeat("x", 30))

	resp, raw := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", post.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, models.CodeValidationFailed, body.Code)
	assert.Equal(t, []string{validation.ReasonContentShort}, body.Reasons)

	_, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil)
	assert.Equal(t, models.StatusDraft, decode[models.Post](t, raw).Status)
}

func TestSubmitPost_FlaggedByModeration(t *testing.T) {
	_, app := setupTestApp(t, nil)
	post := createPost(t, app, "Row layout", rudeContent)

	resp, raw := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	flagged := decode[models.Post](t, raw)
	assert.Equal(t, models.StatusFlagged, flagged.Status)
	assert.Equal(t, models.Reasons{"Banned words detected: stupid, moron"}, flagged.FlaggedReasons)
}

func TestPublishPost_RevalidationFailureFlags(t *testing.T) {
	_, app := setupTestApp(t, nil)
	post := createPost(t, app, "Spring planting", cleanContent)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/posts/%d", post.ID), EditPostRequest{Content: strPtr(rudeContent)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, app, http.MethodPatch, fmt.Sprintf("/posts/%d/publish", post.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, models.CodeValidationFailed, body.Code)
	assert.NotEmpty(t, body.Reasons)

	_, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil)
	stored := decode[models.Post](t, raw)
	assert.Equal(t, models.StatusFlagged, stored.Status)
	assert.Equal(t, models.Reasons(body.Reasons), stored.FlaggedReasons)
	assert.Equal(t, rudeContent, stored.Content)
}

func TestPostHandlers_RequestErrors(t *testing.T) {
	_, app := setupTestApp(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"invalid id", http.MethodGet, "/posts/abc", nil, http.StatusBadRequest, models.CodeValidation},
		{"zero id", http.MethodPost, "/posts/0/submit", nil, http.StatusBadRequest, models.CodeValidation},
		{"missing post", http.MethodGet, "/posts/404", nil, http.StatusNotFound, models.CodeNotFound},
		{"submit missing post", http.MethodPost, "/posts/404/submit", nil, http.StatusNotFound, models.CodeNotFound},
		{"blank title", http.MethodPost, "/posts", CreatePostRequest{Title: " ", Content: "body"}, http.StatusBadRequest, models.CodeValidation},
		{"title too long", http.MethodPost, "/posts", CreatePostRequest{Title: strings.Repeat("t", 101), Content: "body"}, http.StatusBadRequest, models.CodeValidation},
		{"edit missing post", http.MethodPatch, "/posts/404", map[string]any{}, http.StatusNotFound, models.CodeNotFound},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound, models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := doJSON(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(raw))
			assert.Equal(t, tt.wantCode, decode[models.ErrorResponse](t, raw).Code)
		})
	}
}

func TestCreatePost_MalformedBody(t *testing.T) {
	_, app := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListPostsAndStats(t *testing.T) {
	_, app := setupTestApp(t, nil)
	first := createPost(t, app, "First", cleanContent)
	second := createPost(t, app, "Second", rudeContent)
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", second.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, app, http.MethodGet, "/posts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]models.Post](t, raw)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)

	_, raw = doJSON(t, app, http.MethodGet, "/posts?status=flagged", nil)
	flagged := decode[[]models.Post](t, raw)
	require.Len(t, flagged, 1)
	assert.Equal(t, second.ID, flagged[0].ID)

	_, raw = doJSON(t, app, http.MethodGet, "/posts?status=archived", nil)
	assert.JSONEq(t, "[]", string(raw))

	resp, raw = doJSON(t, app, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusCounts{Total: 2, Draft: 1, Flagged: 1}, decode[models.StatusCounts](t, raw))
}

func TestSubmitPost_ClassifierUnavailable(t *testing.T) {
	down := moderation.ClassifierFunc(func(context.Context, string, string) (moderation.Verdict, error) {
		return moderation.Verdict{}, moderation.ErrUnavailable
	})
	s := newServer(testConfig(), setupSQLiteDB(t), nil, down, lock.NewKeyedMutex())
	app := s.NewApp()
	post := createPost(t, app, "Spring planting", cleanContent)

	resp, raw := doJSON(t, app, http.MethodPost, fmt.Sprintf("/posts/%d/submit", post.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, models.CodeClassifierUnavailable, decode[models.ErrorResponse](t, raw).Code)

	_, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil)
	assert.Equal(t, models.StatusDraft, decode[models.Post](t, raw).Status)
}

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, title, content string) (*models.Post, error) {
	args := m.Called(ctx, title, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error) {
	args := m.Called(ctx, id, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, status string) ([]*models.Post, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.PostStatus]int64), args.Error(1)
}

func TestPostHandlers_StoreErrors(t *testing.T) {
	mockRepo := new(MockPostRepository)
	validator := validation.NewValidator(moderation.NewRuleClassifier(moderation.DefaultRuleSet()))
	s := &Server{config: testConfig(), postRepo: mockRepo, lifecycle: service.NewLifecycleService(mockRepo, validator)}
	app := s.NewApp()

	draft := &models.Post{ID: 7, Title: "Spring planting", Content: cleanContent, Status: models.StatusDraft, Version: 1}
	mockRepo.On("GetByID", mock.Anything, uint(7)).Return(draft, nil)
	mockRepo.On("Update", mock.Anything, uint(7), mock.Anything).Return(nil, repository.ErrConflict)
	mockRepo.On("CountByStatus", mock.Anything).Return(nil, fmt.Errorf("connection reset"))

	resp, raw := doJSON(t, app, http.MethodPost, "/posts/7/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeStorageConflict, decode[models.ErrorResponse](t, raw).Code)
	mockRepo.AssertNumberOfCalls(t, "Update", service.DefaultMaxAttempts)

	resp, raw = doJSON(t, app, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.Empty(t, body.Details, "internal causes are not exposed")
}

func TestWriteRateLimit(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, app := setupTestApp(t, rdb)
	for i := 0; i < writeRateLimit; i++ {
		resp, raw := doJSON(t, app, http.MethodPost, "/posts", CreatePostRequest{Title: "Note", Content: "body"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/posts", CreatePostRequest{Title: "Note", Content: "body"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(raw), "RATE_LIMITED")

	// Reads are not limited.
	resp, _ = doJSON(t, app, http.MethodGet, "/posts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func strPtr(s string) *string { return &s }
