package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(window time.Duration, max int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(window, max)
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_RejectsOverLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}

	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 1)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 2)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	clock.Advance(600 * time.Millisecond)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	// first hit leaves the window, second is still inside
	clock.Advance(500 * time.Millisecond)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryLimiter_RejectedRequestsDoNotCount(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 1)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = l.Allow(ctx, "k")
		assert.False(t, ok)
	}

	clock.Advance(1001 * time.Millisecond)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryLimiter_SweepDropsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = l.Allow(ctx, fmt.Sprintf("idle-%d", i))
	}
	clock.Advance(2 * time.Second)
	for i := 0; i < 1024; i++ {
		_, _ = l.Allow(ctx, "busy")
		clock.Advance(time.Second)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.hits, "idle-0")
}

func TestMemoryLimiter_ConcurrentCallers(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(ctx, "shared")
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestRedisLimiter_KeyBucketsByWindow(t *testing.T) {
	l := NewRedisLimiter(nil, "api", time.Second, 5)
	base := time.Unix(1700000000, 0)
	l.now = func() time.Time { return base }
	k1 := l.key("1.1.1.1")

	l.now = func() time.Time { return base.Add(999 * time.Millisecond) }
	assert.Equal(t, k1, l.key("1.1.1.1"))

	l.now = func() time.Time { return base.Add(time.Second) }
	assert.NotEqual(t, k1, l.key("1.1.1.1"))
	assert.Contains(t, k1, "ratelimit:api:1.1.1.1:")
}
