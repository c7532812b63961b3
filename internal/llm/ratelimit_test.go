package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to capacity", func(t *testing.T) {
		rl := newRateLimiter(10)
		for i := 0; i < 10; i++ {
			assert.Zero(t, rl.reserve(), "request %d", i)
		}
		assert.Positive(t, rl.reserve())
	})

	t.Run("refills from elapsed time", func(t *testing.T) {
		now := time.Now()
		rl := newRateLimiter(60)
		rl.now = func() time.Time { return now }
		rl.lastRefill = now

		for i := 0; i < 60; i++ {
			require.Zero(t, rl.reserve())
		}
		delay := rl.reserve()
		assert.InDelta(t, float64(time.Second), float64(delay), float64(10*time.Millisecond))

		now = now.Add(1500 * time.Millisecond)
		assert.Zero(t, rl.reserve())
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		now := time.Now()
		rl := newRateLimiter(2)
		rl.now = func() time.Time { return now }
		rl.lastRefill = now

		now = now.Add(time.Hour)
		assert.Zero(t, rl.reserve())
		assert.Zero(t, rl.reserve())
		assert.Positive(t, rl.reserve())
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := rl.wait(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("default rate", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.InDelta(t, 60.0, rl.capacity, 1e-9)
	})

	t.Run("concurrent access", func(t *testing.T) {
		rl := newRateLimiter(100)
		var wg sync.WaitGroup
		granted := make(chan struct{}, 200)
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rl.reserve() == 0 {
					granted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(granted)

		count := 0
		for range granted {
			count++
		}
		assert.GreaterOrEqual(t, count, 100)
		assert.LessOrEqual(t, count, 102)
	})
}

func TestNarrativeCache(t *testing.T) {
	cache := newNarrativeCache(50 * time.Millisecond)
	defer cache.Close()

	frame := model.Frame{ID: "frame_0001", Path: "/frames/frame_0001.jpg"}
	key := cacheKey(frame, "p")
	assert.NotEqual(t, key, cacheKey(frame, "q"))
	assert.NotEqual(t, key, cacheKey(model.Frame{ID: "frame_0002"}, "p"))

	_, ok := cache.get(key)
	assert.False(t, ok)

	cache.set(key, "The case is open.")
	got, ok := cache.get(key)
	require.True(t, ok)
	assert.Equal(t, "The case is open.", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.get(key)
	assert.False(t, ok)

	cache.removeExpired()
	assert.Zero(t, cache.size())

	cache.Close()
}
