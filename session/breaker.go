package session

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pubomax/website-navigator/internal/logger"
)

// BreakerConfig tunes the circuit breaker around a remote key space
type BreakerConfig struct {
	Name        string
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before probing again
}

// DefaultBreakerConfig returns the breaker defaults
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// BreakerKeySpace wraps a KeySpace with a circuit breaker so an unavailable
// store fails fast instead of stalling every evaluation.
type BreakerKeySpace struct {
	next KeySpace
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerKeySpace wraps next
func NewBreakerKeySpace(next KeySpace, cfg BreakerConfig) *BreakerKeySpace {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A missing key is an answer, not a store failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrKeyNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("key space breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerKeySpace{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Get reads through the breaker
func (b *BreakerKeySpace) Get(ctx context.Context, key string) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Set writes through the breaker
func (b *BreakerKeySpace) Set(ctx context.Context, key, value string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return err
}

// State reports the breaker state (closed, half-open, open)
func (b *BreakerKeySpace) State() string {
	return b.cb.State().String()
}
