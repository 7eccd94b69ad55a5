// Package bootstrap assembles the runtime dependencies shared by the server
// and the command-line tools.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"postflow/internal/cache"
	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/lock"
	"postflow/internal/middleware"
	"postflow/internal/moderation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the connections and collaborators built from configuration.
type Runtime struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Classifier moderation.Classifier
	Locker     lock.Locker
}

// InitRuntime connects to the database and Redis and builds the classifier
// and per-post locker. Redis is optional unless the lock backend needs it.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb = cache.InitRedis(ctx, cfg.RedisURL)
	}

	classifier, err := NewClassifier(cfg, rdb)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	locker, err := NewLocker(cfg, rdb)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &Runtime{DB: db, Redis: rdb, Classifier: classifier, Locker: locker}, nil
}

// NewClassifier builds the configured content classifier, wrapped in the
// Redis verdict cache when a TTL is set and Redis is available.
func NewClassifier(cfg *config.Config, rdb *redis.Client) (moderation.Classifier, error) {
	var classifier moderation.Classifier
	switch cfg.ClassifierMode {
	case config.ClassifierModeRemote:
		classifier = moderation.NewRemoteClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout())
	case "", config.ClassifierModeRules:
		rules := moderation.DefaultRuleSet()
		if cfg.ModerationRulesFile != "" {
			loaded, err := moderation.LoadRuleSet(cfg.ModerationRulesFile)
			if err != nil {
				return nil, err
			}
			rules = loaded
		}
		classifier = moderation.NewRuleClassifier(rules)
	default:
		return nil, fmt.Errorf("unsupported CLASSIFIER_MODE %q", cfg.ClassifierMode)
	}

	if ttl := cfg.ClassifierCacheTTL(); ttl > 0 && rdb != nil {
		middleware.Logger.Info("classifier verdict cache enabled", "ttl", ttl)
		classifier = moderation.NewCachedClassifier(classifier, rdb, ttl)
	}
	return classifier, nil
}

// NewLocker builds the per-post locker for the configured backend.
func NewLocker(cfg *config.Config, rdb *redis.Client) (lock.Locker, error) {
	switch cfg.PostLockBackend {
	case "", config.LockBackendLocal:
		return lock.NewKeyedMutex(), nil
	case config.LockBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("POST_LOCK_BACKEND=redis requires a reachable REDIS_URL")
		}
		return lock.NewRedisLocker(rdb, lock.DefaultLease), nil
	default:
		return nil, fmt.Errorf("unsupported POST_LOCK_BACKEND %q", cfg.PostLockBackend)
	}
}
