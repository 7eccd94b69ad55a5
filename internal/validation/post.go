// Package validation holds the input and lifecycle checks applied to posts.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"postflow/internal/moderation"
)

const (
	MaxTitleLength   = 100
	MinContentLength = 50
	MaxContentLength = 2000
)

var (
	ReasonTitleRequired = "Title is required"
	ReasonTitleTooLong  = fmt.Sprintf("Title too long (maximum %d characters)", MaxTitleLength)
	ReasonContentShort  = fmt.Sprintf("Content too short (minimum %d characters)", MinContentLength)
	ReasonContentLong   = fmt.Sprintf("Content too long (maximum %d characters)", MaxContentLength)
)

// ValidateTitle checks the request-shape rule for titles.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateContent checks the request-shape rule for content. Drafts may be
// shorter than MinContentLength.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content is required")
	}
	return nil
}

// Result collects every failed check of one validation run.
type Result struct {
	// Reasons is InputReasons followed by ModerationReasons.
	Reasons           []string
	InputReasons      []string
	ModerationReasons []string
}

// Passed reports whether every check succeeded.
func (r Result) Passed() bool {
	return len(r.Reasons) == 0
}

// Validator runs the lifecycle gate: title, content length, then the classifier.
type Validator struct {
	classifier moderation.Classifier
}

// NewValidator returns a Validator delegating tone checks to classifier.
func NewValidator(classifier moderation.Classifier) *Validator {
	return &Validator{classifier: classifier}
}

// Validate runs all checks without short-circuiting. A classifier failure is
// returned as an error wrapping moderation.ErrUnavailable and no Result.
func (v *Validator) Validate(ctx context.Context, title, content string) (Result, error) {
	var res Result

	switch {
	case strings.TrimSpace(title) == "":
		res.InputReasons = append(res.InputReasons, ReasonTitleRequired)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		res.InputReasons = append(res.InputReasons, ReasonTitleTooLong)
	}

	switch n := utf8.RuneCountInString(content); {
	case n < MinContentLength:
		res.InputReasons = append(res.InputReasons, ReasonContentShort)
	case n > MaxContentLength:
		res.InputReasons = append(res.InputReasons, ReasonContentLong)
	}

	verdict, err := v.classifier.Classify(ctx, title, content)
	if err != nil {
		if !errors.Is(err, moderation.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", moderation.ErrUnavailable, err)
		}
		return Result{}, err
	}
	if !verdict.Approved {
		res.ModerationReasons = append(res.ModerationReasons, verdict.Reasons...)
		if len(res.ModerationReasons) == 0 {
			res.ModerationReasons = []string{"Rejected by content classifier"}
		}
	}

	res.Reasons = make([]string, 0, len(res.InputReasons)+len(res.ModerationReasons))
	res.Reasons = append(res.Reasons, res.InputReasons...)
	res.Reasons = append(res.Reasons, res.ModerationReasons...)
	return res, nil
}
