package views

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterConcurrent(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Increment(ctx, 1)
		}()
		go func() {
			defer wg.Done()
			_ = c.Increment(ctx, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Count(1))
	assert.Equal(t, int64(50), c.Count(2))
	assert.Zero(t, c.Count(3))
}

func TestMemoryCounterTop(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()
	for id, n := range map[int64]int{1: 2, 2: 5, 3: 1} {
		for i := 0; i < n; i++ {
			require.NoError(t, c.Increment(ctx, id))
		}
	}
	top, err := c.Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []Stat{{ID: 2, Views: 5}, {ID: 1, Views: 2}}, top)
}

func TestMemoryCounterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryCounter().Increment(ctx, 1), context.Canceled)
}

func TestRedisCounter(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisCounter(client, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Increment(ctx, 7))
		}()
	}
	wg.Wait()
	require.NoError(t, c.Increment(ctx, 9))

	top, err := c.Top(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []Stat{{ID: 7, Views: 20}, {ID: 9, Views: 1}}, top)

	score, err := mr.ZScore(DefaultRedisKey, "7")
	require.NoError(t, err)
	assert.Equal(t, float64(20), score)
}

func TestOpen(t *testing.T) {
	c, closeFn, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, &MemoryCounter{}, c)

	_, _, err = Open(Options{Backend: "postgres"})
	require.Error(t, err)

	_, _, err = Open(Options{Backend: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	c, closeFn, err = Open(Options{Backend: "redis", RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &RedisCounter{}, c)
}
