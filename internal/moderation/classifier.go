// Package moderation judges post tone and content policy.
//
// A Classifier returns a Verdict for a title/content pair. The lifecycle
// engine treats every implementation as an external collaborator: it may be
// slow, and it may fail with ErrUnavailable, which callers must keep distinct
// from a rejecting verdict.
package moderation

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no verdict could be obtained.
var ErrUnavailable = errors.New("moderation: classifier unavailable")

// Verdict is the outcome of classifying one title/content pair.
type Verdict struct {
	Approved bool     `json:"approved"`
	Reasons  []string `json:"reasons"`
}

// Classifier judges tone and content policy.
type Classifier interface {
	Classify(ctx context.Context, title, content string) (Verdict, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, title, content string) (Verdict, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, title, content string) (Verdict, error) {
	return f(ctx, title, content)
}

func approvedVerdict(reasons []string) Verdict {
	if reasons == nil {
		reasons = []string{}
	}
	return Verdict{Approved: len(reasons) == 0, Reasons: reasons}
}
