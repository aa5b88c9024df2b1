package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/pubomax/website-navigator/internal/config"
	"github.com/pubomax/website-navigator/internal/logger"
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/session"
)

// backends holds the storage the server runs on
type backends struct {
	db    *sql.DB
	redis *redis.Client
	store rules.TableStore
	keys  session.KeySpace
}

// openBackends connects the rule table store and the history key space.
// Without DATABASE_URL rule tables live in memory.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		b.db = db
		b.store = rules.NewPostgresTableStore(db)
	} else {
		b.store = rules.NewInMemoryTableStore()
	}

	breaker := session.DefaultBreakerConfig("history-" + cfg.HistoryBackend)
	breaker.MaxFailures = uint32(cfg.BreakerMaxFailures)
	breaker.OpenTimeout = cfg.BreakerOpenTimeout

	switch cfg.HistoryBackend {
	case config.BackendRedis:
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.redis = client
		b.keys = session.NewBreakerKeySpace(session.NewRedisKeySpace(client, cfg.RedisPrefix), breaker)
	case config.BackendPostgres:
		if b.db == nil {
			return nil, fmt.Errorf("history backend postgres requires DATABASE_URL")
		}
		b.keys = session.NewBreakerKeySpace(session.NewPostgresKeySpace(b.db), breaker)
	default:
		b.keys = session.NewMemoryKeySpace()
	}

	logger.Info("backends ready",
		"tableStore", fmt.Sprintf("%T", b.store),
		"historyBackend", cfg.HistoryBackend,
	)
	return b, nil
}

func (b *backends) registerHealthChecks(s *Server) {
	if b.db != nil {
		s.AddHealthCheck("postgres", b.db.PingContext)
	}
	if b.redis != nil {
		client := b.redis
		s.AddHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
}

func (b *backends) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
}
