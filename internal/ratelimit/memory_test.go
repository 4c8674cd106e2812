package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
)

func TestMemoryLimiter_TokenBucket(t *testing.T) {
	rl := NewMemoryLimiter(1, 2)
	defer rl.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestMemoryLimiter_CheckLimit(t *testing.T) {
	rl := NewMemoryLimiterForWindow(2, time.Minute)
	defer rl.Close()
	ctx := context.Background()

	assert.NoError(t, rl.CheckLimit(ctx, "s", "demo"))
	assert.NoError(t, rl.CheckLimit(ctx, "s", "demo"))
	err := rl.CheckLimit(ctx, "s", "demo")
	assert.True(t, chaterr.Is(err, chaterr.KindRateLimitExceeded))
	assert.NoError(t, rl.CheckLimit(ctx, "s", "chat"))
}

func TestMemoryLimiter_EvictIdle(t *testing.T) {
	rl := NewMemoryLimiter(1, 1)
	defer rl.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(11 * time.Minute)
	rl.Allow("new")

	assert.Equal(t, 1, rl.evictIdle(10*time.Minute))
	rl.Close()
	rl.Close()
}
