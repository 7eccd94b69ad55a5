package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/lock"
	"postflow/internal/moderation"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rulesPath := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("banned_words: [spam]\n"), 0o600))

	tests := []struct {
		name    string
		cfg     config.Config
		rdb     *redis.Client
		want    any
		wantErr bool
	}{
		{name: "default rules", cfg: config.Config{}, want: &moderation.RuleClassifier{}},
		{name: "rules from file", cfg: config.Config{ModerationRulesFile: rulesPath}, want: &moderation.RuleClassifier{}},
		{name: "missing rules file", cfg: config.Config{ModerationRulesFile: filepath.Join(t.TempDir(), "nope.yml")}, wantErr: true},
		{name: "remote", cfg: config.Config{ClassifierMode: config.ClassifierModeRemote, ClassifierURL: "http://classifier.local"}, want: &moderation.RemoteClassifier{}},
		{name: "cached when ttl and redis", cfg: config.Config{ClassifierCacheTTLSeconds: 60}, rdb: rdb, want: &moderation.CachedClassifier{}},
		{name: "uncached without redis", cfg: config.Config{ClassifierCacheTTLSeconds: 60}, want: &moderation.RuleClassifier{}},
		{name: "unknown mode", cfg: config.Config{ClassifierMode: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewClassifier(&tt.cfg, tt.rdb)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestNewClassifier_RulesFileApplied(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("banned_words: [spam]\n"), 0o600))

	c, err := NewClassifier(&config.Config{ModerationRulesFile: rulesPath}, nil)
	require.NoError(t, err)

	v, err := c.Classify(context.Background(), "Offer", "Buy cheap spam today from our friendly store")
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Equal(t, []string{"Banned words detected: spam"}, v.Reasons)
}

func TestNewLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := NewLocker(&config.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &lock.KeyedMutex{}, l)

	l, err = NewLocker(&config.Config{PostLockBackend: config.LockBackendRedis}, rdb)
	require.NoError(t, err)
	assert.IsType(t, &lock.RedisLocker{}, l)

	_, err = NewLocker(&config.Config{PostLockBackend: config.LockBackendRedis}, nil)
	assert.Error(t, err)

	_, err = NewLocker(&config.Config{PostLockBackend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestInitRuntime_SQLiteWithoutRedis(t *testing.T) {
	rt, err := InitRuntime(context.Background(), &config.Config{
		Env:          "test",
		DBDriver:     config.DBDriverSQLite,
		DBSQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(rt.DB) })

	assert.NotNil(t, rt.DB)
	assert.Nil(t, rt.Redis)
	assert.IsType(t, &moderation.RuleClassifier{}, rt.Classifier)
	assert.IsType(t, &lock.KeyedMutex{}, rt.Locker)
}
