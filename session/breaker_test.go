package session

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingKeySpace counts calls that reach the wrapped store
type countingKeySpace struct {
	KeySpace
	calls int
}

func (c *countingKeySpace) Get(ctx context.Context, key string) (string, error) {
	c.calls++
	return c.KeySpace.Get(ctx, key)
}

func (c *countingKeySpace) Set(ctx context.Context, key, value string) error {
	c.calls++
	return c.KeySpace.Set(ctx, key, value)
}

func TestBreakerPassesThrough(t *testing.T) {
	ctx := context.Background()
	keys := NewBreakerKeySpace(NewMemoryKeySpace(), DefaultBreakerConfig("test"))

	require.NoError(t, keys.Set(ctx, "k", "v"))
	v, err := keys.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, "closed", keys.State())
}

func TestBreakerMissingKeyDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	keys := NewBreakerKeySpace(NewMemoryKeySpace(), BreakerConfig{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := keys.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	}
	assert.Equal(t, "closed", keys.State())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	store := &countingKeySpace{KeySpace: brokenKeySpace{}}
	keys := NewBreakerKeySpace(store, BreakerConfig{Name: "test", MaxFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, keys.Set(ctx, "k", "v"), errStoreDown)
	}
	assert.Equal(t, "open", keys.State())

	_, err := keys.Get(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, store.calls, "open breaker must not reach the store")
}

func TestBreakerDegradesAdapter(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	keys := NewBreakerKeySpace(brokenKeySpace{}, BreakerConfig{Name: "test", MaxFailures: 1, OpenTimeout: time.Minute})
	a, failures := newTestAdapter(keys, now)

	a.Load(context.Background())
	h := a.Load(context.Background())

	assert.Equal(t, 1, h.VisitCount)
	assert.True(t, h.Degraded())
	require.Len(t, *failures, 2)
	assert.ErrorIs(t, (*failures)[1].err, gobreaker.ErrOpenState)
}
