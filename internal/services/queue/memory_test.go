package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryRegistry_StartsAtZero(t *testing.T) {
	r := NewMemoryRegistry([]string{"fast", "creative"})

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"fast": 0, "creative": 0}, snap)
}

func TestMemoryRegistry_DecrementClampsAtZero(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry([]string{"fast"})

	depth, err := r.Decrement(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	_, err = r.Increment(ctx, "fast")
	require.NoError(t, err)
	depth, err = r.Decrement(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	depth, err = r.Decrement(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestMemoryRegistry_UnknownModel(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry([]string{"fast"})

	_, err := r.Increment(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
	_, err = r.Decrement(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
	_, err = r.Depth(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestMemoryRegistry_ConcurrentUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	r := NewMemoryRegistry([]string{"fast", "creative"})

	const workers = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Increment(ctx, "fast")
			_, _ = r.Increment(ctx, "creative")
			_, _ = r.Decrement(ctx, "creative")
		}()
	}
	wg.Wait()

	fast, err := r.Depth(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), fast)

	creative, err := r.Depth(ctx, "creative")
	require.NoError(t, err)
	assert.Equal(t, int64(0), creative)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Decrement(ctx, "fast")
		}()
	}
	wg.Wait()

	fast, err = r.Depth(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, int64(0), fast)
}
