// Package models contains data structures for the application's domain models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostStatus is a lifecycle state of a post.
type PostStatus string

const (
	StatusDraft         PostStatus = "draft"
	StatusPendingReview PostStatus = "pending_review"
	StatusApproved      PostStatus = "approved"
	StatusFlagged       PostStatus = "flagged"
	StatusPublished     PostStatus = "published"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []PostStatus{
	StatusDraft,
	StatusPendingReview,
	StatusApproved,
	StatusFlagged,
	StatusPublished,
}

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a raw filter value. ok is false for unknown values.
func ParseStatus(raw string) (PostStatus, bool) {
	s := PostStatus(strings.TrimSpace(raw))
	return s, s.Valid()
}

// Reasons is an ordered list of moderation or validation messages,
// stored as a JSON array in a text column.
type Reasons []string

// Value implements driver.Valuer.
func (r Reasons) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *Reasons) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Reasons{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("reasons: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*r = Reasons{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("reasons: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*r = out
	return nil
}

// MarshalJSON always emits an array, never null.
func (r Reasons) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(r))
}

// Post is the sole lifecycle entity.
type Post struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Title          string     `gorm:"size:100;not null" json:"title"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Status         PostStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	FlaggedReasons Reasons    `gorm:"type:text;not null" json:"flagged_reasons"`
	Version        uint       `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
}

// Clone returns a deep copy so mutators never touch the stored snapshot.
func (p *Post) Clone() *Post {
	cp := *p
	if p.FlaggedReasons != nil {
		cp.FlaggedReasons = append(Reasons{}, p.FlaggedReasons...)
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// StatusCounts holds per-status totals.
type StatusCounts struct {
	Total         int64 `json:"total"`
	Draft         int64 `json:"draft"`
	PendingReview int64 `json:"pending_review"`
	Approved      int64 `json:"approved"`
	Flagged       int64 `json:"flagged"`
	Published     int64 `json:"published"`
}

// NewStatusCounts folds a per-status map into StatusCounts.
func NewStatusCounts(byStatus map[PostStatus]int64) StatusCounts {
	sc := StatusCounts{
		Draft:         byStatus[StatusDraft],
		PendingReview: byStatus[StatusPendingReview],
		Approved:      byStatus[StatusApproved],
		Flagged:       byStatus[StatusFlagged],
		Published:     byStatus[StatusPublished],
	}
	sc.Total = sc.Draft + sc.PendingReview + sc.Approved + sc.Flagged + sc.Published
	return sc
}
