// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postflow/internal/lock"
	"postflow/internal/models"
	"postflow/internal/observability"

	"gorm.io/gorm"
)

// ErrConflict reports that a versioned write found the row changed underneath it.
var ErrConflict = errors.New("repository: version conflict")

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, title, content string) (*models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// Update applies mutate to a copy of the current row under the per-post
	// lock and commits it only if the row's version is unchanged. A mutate
	// error aborts without writing and is returned as is.
	Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error)
	// List returns posts newest first. An empty status means all posts; an
	// unknown status yields an empty slice.
	List(ctx context.Context, status string) ([]*models.Post, error)
	CountByStatus(ctx context.Context) (map[models.PostStatus]int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db     *gorm.DB
	locker lock.Locker
	now    func() time.Time
}

// NewPostRepository creates a new post repository. A nil locker uses an in-process lock.
func NewPostRepository(db *gorm.DB, locker lock.Locker) PostRepository {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &postRepository{db: db, locker: locker, now: time.Now}
}

func (r *postRepository) Create(ctx context.Context, title, content string) (*models.Post, error) {
	defer observability.TrackQuery("create", "posts")()

	now := r.now()
	post := &models.Post{
		Title:          title,
		Content:        content,
		Status:         models.StatusDraft,
		FlaggedReasons: models.Reasons{},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error) {
	unlock, err := r.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock post %d: %w", id, err)
	}
	defer unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	defer observability.TrackQuery("update", "posts")()

	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	if next.FlaggedReasons == nil {
		next.FlaggedReasons = models.Reasons{}
	}

	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND version = ?", id, current.Version).
		Updates(map[string]interface{}{
			"title":           next.Title,
			"content":         next.Content,
			"status":          next.Status,
			"flagged_reasons": next.FlaggedReasons,
			"version":         next.Version,
			"updated_at":      next.UpdatedAt,
			"published_at":    next.PublishedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("post %d at version %d: %w", id, current.Version, ErrConflict)
	}
	return next, nil
}

func (r *postRepository) List(ctx context.Context, status string) ([]*models.Post, error) {
	posts := []*models.Post{}

	query := r.db.WithContext(ctx).Model(&models.Post{})
	if status != "" {
		parsed, ok := models.ParseStatus(status)
		if !ok {
			return posts, nil
		}
		query = query.Where("status = ?", parsed)
	}

	defer observability.TrackQuery("list", "posts")()
	if err := query.Order("created_at DESC, id DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int64, error) {
	defer observability.TrackQuery("count_by_status", "posts")()

	var rows []struct {
		Status models.PostStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}

	counts := make(map[models.PostStatus]int64, len(models.AllStatuses))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
