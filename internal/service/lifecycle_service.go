// Package service implements the post lifecycle: legal transitions, their
// validation gates and how moderation verdicts are recorded.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"postflow/internal/middleware"
	"postflow/internal/models"
	"postflow/internal/moderation"
	"postflow/internal/observability"
	"postflow/internal/repository"
	"postflow/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionSubmit  = "submit"
	ActionPublish = "publish"
)

// DefaultMaxAttempts bounds how often a transition is recomputed after losing a race.
const DefaultMaxAttempts = 3

// errStale means the row changed after its snapshot was validated.
var errStale = errors.New("service: snapshot is stale")

// LifecycleService is the post state machine.
type LifecycleService struct {
	posts       repository.PostRepository
	validator   *validation.Validator
	now         func() time.Time
	maxAttempts int
}

type CreatePostInput struct {
	Title   string
	Content string
}

// EditPostInput replaces the fields that are non-nil.
type EditPostInput struct {
	PostID  uint
	Title   *string
	Content *string
}

func NewLifecycleService(posts repository.PostRepository, validator *validation.Validator) *LifecycleService {
	return &LifecycleService{
		posts:       posts,
		validator:   validator,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
}

// canEdit lists the statuses whose title and content may change.
func canEdit(s models.PostStatus) bool {
	return s == models.StatusDraft || s == models.StatusFlagged || s == models.StatusApproved
}

func canSubmit(s models.PostStatus) bool {
	return s == models.StatusDraft || s == models.StatusFlagged
}

func canPublish(s models.PostStatus) bool {
	return s == models.StatusApproved
}

func (s *LifecycleService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle", ActionCreate)
	defer span.End()

	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, s.fail(ctx, span, ActionCreate, models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateContent(in.Content); err != nil {
		return nil, s.fail(ctx, span, ActionCreate, models.NewValidationError(err.Error()))
	}

	post, err := s.posts.Create(ctx, in.Title, in.Content)
	if err != nil {
		return nil, s.fail(ctx, span, ActionCreate, err)
	}

	ctx = middleware.WithPostID(ctx, post.ID)
	span.AddAttributes(attribute.Int64("post.id", int64(post.ID)))
	observability.RecordTransition(ActionCreate, "", string(post.Status))
	middleware.Logger.InfoContext(ctx, "post created", slog.String("status", string(post.Status)))
	return post, nil
}

func (s *LifecycleService) Get(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return post, nil
}

// List returns posts newest first; status "" means all, unknown statuses match nothing.
func (s *LifecycleService) List(ctx context.Context, status string) ([]*models.Post, error) {
	posts, err := s.posts.List(ctx, status)
	if err != nil {
		return nil, translate(err)
	}
	return posts, nil
}

// Stats returns per-status post counts.
func (s *LifecycleService) Stats(ctx context.Context) (models.StatusCounts, error) {
	counts, err := s.posts.CountByStatus(ctx)
	if err != nil {
		return models.StatusCounts{}, translate(err)
	}
	return models.NewStatusCounts(counts), nil
}

// Edit replaces title and/or content of a draft, flagged or approved post.
// Status and flagged reasons are left as they are.
func (s *LifecycleService) Edit(ctx context.Context, in EditPostInput) (*models.Post, error) {
	ctx = middleware.WithPostID(ctx, in.PostID)
	ctx, span := observability.StartSpan(ctx, "lifecycle", ActionEdit, attribute.Int64("post.id", int64(in.PostID)))
	defer span.End()

	var from models.PostStatus
	post, err := s.retry(ctx, func() (*models.Post, error) {
		return s.posts.Update(ctx, in.PostID, func(p *models.Post) error {
			// Status is checked first: a published post rejects every edit.
			if !canEdit(p.Status) {
				return models.NewInvalidTransitionError(ActionEdit, p.Status)
			}
			if err := validateEdit(in); err != nil {
				return err
			}
			from = p.Status
			if in.Title != nil {
				p.Title = *in.Title
			}
			if in.Content != nil {
				p.Content = *in.Content
			}
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, span, ActionEdit, err)
	}

	s.committed(ctx, ActionEdit, from, post)
	return post, nil
}

func validateEdit(in EditPostInput) error {
	if in.Title == nil && in.Content == nil {
		return models.NewValidationError("title or content is required")
	}
	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if in.Content != nil {
		if err := validation.ValidateContent(*in.Content); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// Submit validates a draft or flagged post and resolves it to approved or
// flagged in one step. Failed title or length checks reject the call with
// every reason; a draft is left untouched and a flagged post only has its
// reasons replaced. Classifier objections alone flag the post.
func (s *LifecycleService) Submit(ctx context.Context, id uint) (*models.Post, error) {
	ctx = middleware.WithPostID(ctx, id)
	ctx, span := observability.StartSpan(ctx, "lifecycle", ActionSubmit, attribute.Int64("post.id", int64(id)))
	defer span.End()

	for attempt := 1; ; attempt++ {
		snap, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return nil, s.fail(ctx, span, ActionSubmit, err)
		}
		if !canSubmit(snap.Status) {
			return nil, s.fail(ctx, span, ActionSubmit, models.NewInvalidTransitionError(ActionSubmit, snap.Status))
		}

		// No lock is held across the classifier round-trip.
		res, err := s.validator.Validate(ctx, snap.Title, snap.Content)
		if err != nil {
			return nil, s.fail(ctx, span, ActionSubmit, err)
		}
		if len(res.InputReasons) > 0 {
			if snap.Status == models.StatusFlagged && !slices.Equal([]string(snap.FlaggedReasons), res.Reasons) {
				// A flagged post keeps its status but its reasons follow the latest submit.
				_, err = s.posts.Update(ctx, id, func(p *models.Post) error {
					if p.Status != models.StatusFlagged {
						return models.NewInvalidTransitionError(ActionSubmit, p.Status)
					}
					if p.Version != snap.Version {
						return errStale
					}
					p.FlaggedReasons = append(models.Reasons{}, res.Reasons...)
					return nil
				})
				if s.shouldRetry(ctx, err, attempt) {
					continue
				}
				if err != nil {
					return nil, s.fail(ctx, span, ActionSubmit, err)
				}
			}
			return nil, s.fail(ctx, span, ActionSubmit, models.NewValidationFailedError(res.Reasons))
		}

		target := models.StatusApproved
		reasons := models.Reasons{}
		if !res.Passed() {
			target = models.StatusFlagged
			reasons = append(reasons, res.ModerationReasons...)
		}

		post, err := s.posts.Update(ctx, id, func(p *models.Post) error {
			if !canSubmit(p.Status) {
				return models.NewInvalidTransitionError(ActionSubmit, p.Status)
			}
			if p.Version != snap.Version {
				return errStale
			}
			p.Status = target
			p.FlaggedReasons = reasons
			return nil
		})
		if s.shouldRetry(ctx, err, attempt) {
			continue
		}
		if err != nil {
			return nil, s.fail(ctx, span, ActionSubmit, err)
		}

		s.committed(ctx, ActionSubmit, snap.Status, post)
		return post, nil
	}
}

// Publish re-validates an approved post. On success it becomes published and
// immutable; otherwise it moves to flagged with the new reasons, its content
// is kept, and a ValidationFailed error carrying those reasons is returned.
func (s *LifecycleService) Publish(ctx context.Context, id uint) (*models.Post, error) {
	ctx = middleware.WithPostID(ctx, id)
	ctx, span := observability.StartSpan(ctx, "lifecycle", ActionPublish, attribute.Int64("post.id", int64(id)))
	defer span.End()

	for attempt := 1; ; attempt++ {
		snap, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return nil, s.fail(ctx, span, ActionPublish, err)
		}
		if !canPublish(snap.Status) {
			return nil, s.fail(ctx, span, ActionPublish, models.NewInvalidTransitionError(ActionPublish, snap.Status))
		}

		res, err := s.validator.Validate(ctx, snap.Title, snap.Content)
		if err != nil {
			return nil, s.fail(ctx, span, ActionPublish, err)
		}

		now := s.now()
		post, err := s.posts.Update(ctx, id, func(p *models.Post) error {
			if !canPublish(p.Status) {
				return models.NewInvalidTransitionError(ActionPublish, p.Status)
			}
			if p.Version != snap.Version {
				return errStale
			}
			if res.Passed() {
				p.Status = models.StatusPublished
				p.FlaggedReasons = models.Reasons{}
				p.PublishedAt = &now
				return nil
			}
			p.Status = models.StatusFlagged
			p.FlaggedReasons = append(models.Reasons{}, res.Reasons...)
			return nil
		})
		if s.shouldRetry(ctx, err, attempt) {
			continue
		}
		if err != nil {
			return nil, s.fail(ctx, span, ActionPublish, err)
		}

		s.committed(ctx, ActionPublish, snap.Status, post)
		if post.Status != models.StatusPublished {
			return nil, s.fail(ctx, span, ActionPublish, models.NewValidationFailedError(res.Reasons))
		}
		return post, nil
	}
}

// retry reruns op while it loses optimistic-concurrency races.
func (s *LifecycleService) retry(ctx context.Context, op func() (*models.Post, error)) (*models.Post, error) {
	for attempt := 1; ; attempt++ {
		post, err := op()
		if s.shouldRetry(ctx, err, attempt) {
			continue
		}
		return post, err
	}
}

func (s *LifecycleService) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if err == nil || attempt >= s.maxAttempts || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, errStale) || errors.Is(err, repository.ErrConflict) {
		middleware.Logger.DebugContext(ctx, "retrying post transition", slog.Int("attempt", attempt), slog.String("cause", err.Error()))
		return true
	}
	return false
}

func (s *LifecycleService) committed(ctx context.Context, action string, from models.PostStatus, post *models.Post) {
	observability.RecordTransition(action, string(from), string(post.Status))
	attrs := []any{
		slog.String("action", action),
		slog.String("from", string(from)),
		slog.String("to", string(post.Status)),
		slog.Uint64("version", uint64(post.Version)),
	}
	if len(post.FlaggedReasons) > 0 {
		attrs = append(attrs, slog.Any("flagged_reasons", []string(post.FlaggedReasons)))
	}
	middleware.Logger.InfoContext(ctx, "post transition committed", attrs...)
}

// fail translates err, records it on the span and rejection counter, and returns it.
func (s *LifecycleService) fail(ctx context.Context, span *observability.Span, action string, err error) error {
	appErr := translate(err)
	code := models.ErrorCode(appErr)
	observability.RecordRejection(action, code)

	switch code {
	case models.CodeInternal, models.CodeClassifierUnavailable, models.CodeStorageConflict:
		span.SetError(err)
		middleware.Logger.WarnContext(ctx, "post lifecycle operation failed",
			slog.String("action", action), slog.String("code", code), slog.String("error", err.Error()))
	default:
		span.AddAttributes(attribute.String("lifecycle.rejection", code))
	}
	return appErr
}

// translate maps sentinel errors from lower layers onto AppError kinds.
func translate(err error) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, moderation.ErrUnavailable):
		return models.NewClassifierUnavailableError(err)
	case errors.Is(err, repository.ErrConflict), errors.Is(err, errStale):
		return models.NewStorageConflictError(err)
	default:
		return models.NewInternalError(fmt.Errorf("lifecycle: %w", err))
	}
}
