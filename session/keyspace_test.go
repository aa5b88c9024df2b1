package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeySpace(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeySpace()

	_, err := keys.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, keys.Set(ctx, "k", "one"))
	require.NoError(t, keys.Set(ctx, "k", "two"))

	v, err := keys.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
	assert.Equal(t, 1, keys.Len())
}

func TestMemoryKeySpaceConcurrent(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeySpace()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, keys.Set(ctx, fmt.Sprintf("k%d", i%5), "v"))
		}(i)
		go func(i int) {
			defer wg.Done()
			keys.Get(ctx, fmt.Sprintf("k%d", i%5))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, keys.Len())
}
