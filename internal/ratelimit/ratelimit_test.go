package ratelimit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func admit(t *testing.T, l Limiter, key string) Decision {
	t.Helper()
	d, err := l.Admit(context.Background(), key)
	require.NoError(t, err)
	return d
}

func TestMemorySixthRequestDenied(t *testing.T) {
	clock := newClock()
	l := NewMemory(5, time.Hour, WithClock(clock.Now))

	for i := 1; i <= 5; i++ {
		d := admit(t, l, "203.0.113.7")
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 5-i, d.Remaining)
		clock.Advance(time.Minute)
	}

	d := admit(t, l, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, clock.now.Add(-5*time.Minute).Add(time.Hour), d.ResetAt)
}

func TestMemoryWindowElapsedStartsFresh(t *testing.T) {
	clock := newClock()
	l := NewMemory(5, time.Hour, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.True(t, admit(t, l, "k").Allowed)
	}
	require.False(t, admit(t, l, "k").Allowed)

	clock.Advance(time.Hour + time.Millisecond)
	d := admit(t, l, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
	assert.Equal(t, clock.Now().Add(time.Hour), d.ResetAt)
}

func TestMemoryBoundaryIsInclusive(t *testing.T) {
	clock := newClock()
	l := NewMemory(1, time.Hour, WithClock(clock.Now))

	require.True(t, admit(t, l, "k").Allowed)
	clock.Advance(time.Hour)
	assert.False(t, admit(t, l, "k").Allowed, "window still open at exactly resetTime")
	clock.Advance(time.Nanosecond)
	assert.True(t, admit(t, l, "k").Allowed)
}

func TestMemoryDenialDoesNotExtendWindow(t *testing.T) {
	clock := newClock()
	l := NewMemory(1, time.Hour, WithClock(clock.Now))

	first := admit(t, l, "k")
	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Minute)
		d := admit(t, l, "k")
		assert.False(t, d.Allowed)
		assert.Equal(t, first.ResetAt, d.ResetAt)
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	l := NewMemory(1, time.Hour)
	assert.True(t, admit(t, l, "a").Allowed)
	assert.True(t, admit(t, l, "b").Allowed)
	assert.False(t, admit(t, l, "a").Allowed)
}

func TestMemoryConcurrentSameKey(t *testing.T) {
	l := NewMemory(5, time.Hour)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(context.Background(), "same")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 5, allowed.Load())
}

func TestMemorySweep(t *testing.T) {
	clock := newClock()
	l := NewMemory(5, time.Minute, WithClock(clock.Now))
	admit(t, l, "old")
	clock.Advance(2 * time.Minute)
	admit(t, l, "new")

	assert.Equal(t, 1, l.Sweep(clock.Now()))
	assert.Equal(t, 1, l.Len())
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := Decision{Allowed: false, ResetAt: now.Add(90*time.Second + 300*time.Millisecond)}
	assert.Equal(t, 91*time.Second, d.RetryAfter(now))
	assert.Zero(t, Decision{Allowed: true, ResetAt: now.Add(time.Hour)}.RetryAfter(now))
	assert.Zero(t, Decision{ResetAt: now.Add(-time.Second)}.RetryAfter(now))
}

func TestRedisFixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("skipping redis integration test: REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, 3, 2*time.Second)
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), l.prefix+key) })

	for i := 1; i <= 3; i++ {
		d := admit(t, l, key)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}
	d := admit(t, l, key)
	assert.False(t, d.Allowed)
	assert.True(t, d.ResetAt.After(time.Now()))

	time.Sleep(2100 * time.Millisecond)
	assert.True(t, admit(t, l, key).Allowed)
}
