package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postflow/internal/cache"
	"postflow/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLease     = 10 * time.Second
	defaultRetryWait = 20 * time.Millisecond
	maxRetryWait     = 200 * time.Millisecond
)

// Deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance using the same Redis.
// Leases expire after lease; the store's version check rejects writes that outlive theirs.
type RedisLocker struct {
	rdb   *redis.Client
	lease time.Duration
}

// NewRedisLocker returns a RedisLocker. A non-positive lease uses DefaultLease.
func NewRedisLocker(rdb *redis.Client, lease time.Duration) *RedisLocker {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &RedisLocker{rdb: rdb, lease: lease}
}

// Lock polls SET NX until the lease is acquired or ctx is done.
func (r *RedisLocker) Lock(ctx context.Context, postID uint) (func(), error) {
	if r.rdb == nil {
		return nil, errors.New("lock: redis client is nil")
	}

	key := cache.PostLockKey(postID)
	token := uuid.NewString()
	wait := defaultRetryWait

	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("lock post %d: %w", postID, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if wait < maxRetryWait {
			wait *= 2
		}
	}

	return func() {
		// The caller's ctx may already be canceled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil {
			middleware.Logger.Warn("failed to release post lock", "post_id", postID, "error", err)
		}
	}, nil
}
