package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "HISTORY_BACKEND", "REDIS_PREFIX",
		"RULE_TABLE_PATH", "TABLE_CACHE_TTL", "PROMOTION_DWELL", "SESSION_TTL",
		"BREAKER_MAX_FAILURES", "BREAKER_OPEN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.HistoryBackend)
	assert.Equal(t, 120*time.Second, cfg.PromotionDwell)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.TableCacheTTL)
	assert.Equal(t, 5, cfg.BreakerMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PROMOTION_DWELL", "45")
	t.Setenv("TABLE_CACHE_TTL", "5m")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendRedis, cfg.HistoryBackend)
	assert.Equal(t, 45*time.Second, cfg.PromotionDwell)
	assert.Equal(t, 5*time.Minute, cfg.TableCacheTTL)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set
	os.Unsetenv("PORT")
	t.Cleanup(func() { os.Unsetenv("PORT") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HistoryBackend:     BackendMemory,
			PromotionDwell:     time.Minute,
			SessionTTL:         time.Hour,
			BreakerMaxFailures: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "memory backend", mutate: func(*Config) {}},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.HistoryBackend = BackendRedis },
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.HistoryBackend = BackendPostgres },
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.HistoryBackend = "cookie" },
			wantErr: "unknown history backend",
		},
		{
			name:    "zero dwell",
			mutate:  func(c *Config) { c.PromotionDwell = 0 },
			wantErr: "PROMOTION_DWELL",
		},
		{
			name:    "session ttl within dwell",
			mutate:  func(c *Config) { c.SessionTTL = c.PromotionDwell },
			wantErr: "SESSION_TTL",
		},
		{
			name:    "no breaker failures",
			mutate:  func(c *Config) { c.BreakerMaxFailures = 0 },
			wantErr: "BREAKER_MAX_FAILURES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
