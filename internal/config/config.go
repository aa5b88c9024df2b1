// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// History backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port string

	// Storage
	DatabaseURL    string
	RedisURL       string
	HistoryBackend string
	RedisPrefix    string

	// Rule tables
	RuleTablePath string
	TableCacheTTL time.Duration

	// Segmentation
	PromotionDwell time.Duration
	SessionTTL     time.Duration

	// Circuit breaker around the history store
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// Load reads a .env file if one exists, then the environment.
// Existing environment variables take precedence over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		HistoryBackend: getEnv("HISTORY_BACKEND", BackendMemory),
		RedisPrefix:    getEnv("REDIS_PREFIX", "navigator:"),

		RuleTablePath: getEnv("RULE_TABLE_PATH", ""),
		TableCacheTTL: getEnvDuration("TABLE_CACHE_TTL", time.Minute),

		PromotionDwell: getEnvDuration("PROMOTION_DWELL", 120*time.Second),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),

		BreakerMaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for history backend %q", c.HistoryBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for history backend %q", c.HistoryBackend)
		}
	default:
		return fmt.Errorf("unknown history backend %q (use: memory, redis, postgres)", c.HistoryBackend)
	}

	if c.PromotionDwell <= 0 {
		return fmt.Errorf("PROMOTION_DWELL must be positive, got %s", c.PromotionDwell)
	}
	if c.SessionTTL <= c.PromotionDwell {
		return fmt.Errorf("SESSION_TTL must exceed PROMOTION_DWELL, got %s", c.SessionTTL)
	}
	if c.TableCacheTTL < 0 {
		return fmt.Errorf("TABLE_CACHE_TTL must not be negative, got %s", c.TableCacheTTL)
	}
	if c.BreakerMaxFailures < 1 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be at least 1, got %d", c.BreakerMaxFailures)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
