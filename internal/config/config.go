// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath             string `mapstructure:"DB_SQLITE_PATH"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	ClassifierMode            string `mapstructure:"CLASSIFIER_MODE"`
	ClassifierURL             string `mapstructure:"CLASSIFIER_URL"`
	ClassifierTimeoutMS       int    `mapstructure:"CLASSIFIER_TIMEOUT_MS"`
	ClassifierCacheTTLSeconds int    `mapstructure:"CLASSIFIER_CACHE_TTL_SECONDS"`
	ModerationRulesFile       string `mapstructure:"MODERATION_RULES_FILE"`

	PostLockBackend string `mapstructure:"POST_LOCK_BACKEND"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

const (
	ClassifierModeRules  = "rules"
	ClassifierModeRemote = "remote"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("DB_DRIVER", DBDriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "postflow")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "postflow.db")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("CLASSIFIER_MODE", ClassifierModeRules)
	viper.SetDefault("CLASSIFIER_URL", "")
	viper.SetDefault("CLASSIFIER_TIMEOUT_MS", 3000)
	viper.SetDefault("CLASSIFIER_CACHE_TTL_SECONDS", 600)
	viper.SetDefault("MODERATION_RULES_FILE", "")
	viper.SetDefault("POST_LOCK_BACKEND", LockBackendLocal)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.ClassifierMode = strings.ToLower(strings.TrimSpace(c.ClassifierMode))
	c.PostLockBackend = strings.ToLower(strings.TrimSpace(c.PostLockBackend))
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ClassifierTimeout returns the classifier round-trip budget.
func (c *Config) ClassifierTimeout() time.Duration {
	if c.ClassifierTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ClassifierTimeoutMS) * time.Millisecond
}

// ClassifierCacheTTL returns how long classifier verdicts stay cached. Zero disables caching.
func (c *Config) ClassifierCacheTTL() time.Duration {
	if c.ClassifierCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ClassifierCacheTTLSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DBDriver {
	case "", DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.ClassifierMode {
	case "", ClassifierModeRules:
	case ClassifierModeRemote:
		if strings.TrimSpace(c.ClassifierURL) == "" {
			return errors.New("CLASSIFIER_URL is required when CLASSIFIER_MODE=remote")
		}
	default:
		return fmt.Errorf("unsupported CLASSIFIER_MODE %q", c.ClassifierMode)
	}

	switch c.PostLockBackend {
	case "", LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("unsupported POST_LOCK_BACKEND %q", c.PostLockBackend)
	}

	if c.IsProduction() {
		if c.DBDriver == DBDriverSQLite {
			return errors.New("DB_DRIVER=sqlite is not allowed in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
