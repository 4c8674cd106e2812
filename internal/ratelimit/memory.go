package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
)

// MemoryLimiter is a per-process token bucket keyed by category and key.
// It backs the per-IP HTTP middleware and stands in for Redis in local runs.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewMemoryLimiter allows rate calls/sec with the given burst per key.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// NewMemoryLimiterForWindow spreads max calls per window into a bucket
// refilling at max/window with a burst of max.
func NewMemoryLimiterForWindow(max int, window time.Duration) *MemoryLimiter {
	if max < 1 || window <= 0 {
		return NewMemoryLimiter(1, 1)
	}
	return NewMemoryLimiter(float64(max)/window.Seconds(), max)
}

// Allow takes one token for key and reports whether one was available.
func (rl *MemoryLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastTime: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastTime = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// CheckLimit satisfies coach.RateLimiter.
func (rl *MemoryLimiter) CheckLimit(_ context.Context, key, category string) error {
	if rl.Allow(category + ":" + key) {
		return nil
	}
	return chaterr.New(chaterr.KindRateLimitExceeded, "You're sending messages too quickly. Please wait a moment and try again.")
}

// Close stops the background sweep.
func (rl *MemoryLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(10 * time.Minute)
		}
	}
}

func (rl *MemoryLimiter) evictIdle(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	removed := 0
	for key, b := range rl.buckets {
		if b.lastTime.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}
