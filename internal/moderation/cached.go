package moderation

import (
	"context"
	"time"

	"postflow/internal/cache"
	"postflow/internal/observability"

	"github.com/redis/go-redis/v9"
)

// CachedClassifier memoizes verdicts of a deterministic classifier in Redis.
// Classifier errors are never cached.
type CachedClassifier struct {
	next Classifier
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedClassifier wraps next. A nil client or non-positive ttl disables caching.
func NewCachedClassifier(next Classifier, rdb *redis.Client, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{next: next, rdb: rdb, ttl: ttl}
}

// Classify implements Classifier.
func (cc *CachedClassifier) Classify(ctx context.Context, title, content string) (Verdict, error) {
	if cc.rdb == nil || cc.ttl <= 0 {
		return cc.next.Classify(ctx, title, content)
	}

	var v Verdict
	hit, err := cache.Aside(ctx, cc.rdb, cache.VerdictKey(title, content), &v, cc.ttl, func() error {
		fresh, err := cc.next.Classify(ctx, title, content)
		if err != nil {
			return err
		}
		v = fresh
		return nil
	})
	if err != nil {
		return Verdict{}, err
	}
	if hit {
		observability.RecordClassifierOutcome("cache", "hit")
	}
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	return v, nil
}
