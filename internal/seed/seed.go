// Package seed creates demo posts spread across the lifecycle. It is intended
// for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"postflow/internal/middleware"
	"postflow/internal/models"
	"postflow/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Seeder drives generated posts through the lifecycle service so every seeded
// row obeys the same rules as user-created ones.
type Seeder struct {
	lifecycle *service.LifecycleService
	faker     *gofakeit.Faker
}

// NewSeeder creates a Seeder. A zero seed picks a random one.
func NewSeeder(lifecycle *service.LifecycleService, seed int64) *Seeder {
	return &Seeder{lifecycle: lifecycle, faker: gofakeit.New(seed)}
}

// Result counts seeded posts by final status.
type Result map[models.PostStatus]int

// Posts creates n posts. Roughly a quarter stay drafts, a quarter are
// approved, a quarter are published and the rest carry language that gets
// them flagged.
func (s *Seeder) Posts(ctx context.Context, n int) (Result, error) {
	res := Result{}
	for i := 0; i < n; i++ {
		rude := i%4 == 3
		post, err := s.lifecycle.Create(ctx, service.CreatePostInput{
			Title:   s.title(),
			Content: s.content(rude),
		})
		if err != nil {
			return res, fmt.Errorf("create post %d: %w", i, err)
		}

		id := post.ID
		if i%4 != 0 {
			if post, err = s.lifecycle.Submit(ctx, id); err != nil {
				return res, fmt.Errorf("submit post %d: %w", id, err)
			}
		}
		if i%4 == 2 && post.Status == models.StatusApproved {
			if post, err = s.lifecycle.Publish(ctx, id); err != nil {
				return res, fmt.Errorf("publish post %d: %w", id, err)
			}
		}
		res[post.Status]++
	}

	middleware.Logger.InfoContext(ctx, "seeded posts", "count", n,
		"draft", res[models.StatusDraft], "approved", res[models.StatusApproved],
		"flagged", res[models.StatusFlagged], "published", res[models.StatusPublished])
	return res, nil
}

func (s *Seeder) title() string {
	t := strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 7)), ".")
	return truncate(t, 100)
}

// content returns calm prose between 50 and 2000 characters.
func (s *Seeder) content(rude bool) string {
	body := s.faker.Paragraph(1, s.faker.Number(3, 6), 12, " ")
	for utf8.RuneCountInString(body) < 80 {
		body += " " + s.faker.Sentence(10)
	}
	if rude {
		body = "Honestly this is a stupid idea. " + body
	}
	return truncate(body, 1900)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// Clear removes every post.
func Clear(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error
}
