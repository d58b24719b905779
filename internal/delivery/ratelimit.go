package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/opencode-ai/wavecast/internal/models"
)

// RateLimitConfig paces sends on one channel.
type RateLimitConfig struct {
	// PerSecond is the sustained send rate. Zero or less disables the limit.
	PerSecond float64

	// Burst is the number of sends allowed back to back.
	Burst int
}

// tokenBucket hands out reservations. Tokens may go negative; the deficit is the wait.
type tokenBucket struct {
	mu           sync.Mutex
	tokens       float64
	lastUpdate   time.Time
	ratePerSec   float64
	maxTokens    float64
	requestCount int64
	delayedCount int64
}

func newTokenBucket(cfg RateLimitConfig, now time.Time) *tokenBucket {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{
		tokens:     float64(burst),
		lastUpdate: now,
		ratePerSec: cfg.PerSecond,
		maxTokens:  float64(burst),
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	if elapsed := now.Sub(tb.lastUpdate).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.ratePerSec
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastUpdate = now
	}
}

// reserve takes one token and returns how long the caller must wait before using it.
func (tb *tokenBucket) reserve(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.requestCount++
	tb.refill(now)
	tb.tokens--
	if tb.tokens >= 0 {
		return 0
	}
	tb.delayedCount++
	return time.Duration(-tb.tokens / tb.ratePerSec * float64(time.Second))
}

// refund returns a token whose wait was abandoned.
func (tb *tokenBucket) refund() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens++
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
}

func (tb *tokenBucket) stats(now time.Time) (available float64, requestCount, delayedCount int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	return tb.tokens, tb.requestCount, tb.delayedCount
}

// RateLimiter paces sends per channel.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[models.Channel]*tokenBucket
	configs map[models.Channel]RateLimitConfig
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithChannelLimit sets the limit for one channel.
func WithChannelLimit(channel models.Channel, cfg RateLimitConfig) RateLimiterOption {
	return func(rl *RateLimiter) {
		if cfg.PerSecond > 0 {
			rl.configs[channel] = cfg
		}
	}
}

// WithClock replaces the time source and sleeper.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
		rl.sleep = sleep
	}
}

// NewRateLimiter creates a limiter. Channels without a limit are never delayed.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[models.Channel]*tokenBucket),
		configs: make(map[models.Channel]RateLimitConfig),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Wait blocks until a send on channel is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, channel models.Channel) error {
	bucket := rl.bucket(channel)
	if bucket == nil {
		return nil
	}
	d := bucket.reserve(rl.now())
	if d <= 0 {
		return nil
	}
	if err := rl.sleep(ctx, d); err != nil {
		bucket.refund()
		return err
	}
	return nil
}

func (rl *RateLimiter) bucket(channel models.Channel) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, ok := rl.buckets[channel]; ok {
		return bucket
	}
	cfg, ok := rl.configs[channel]
	if !ok {
		return nil
	}
	bucket := newTokenBucket(cfg, rl.now())
	rl.buckets[channel] = bucket
	return bucket
}

// ChannelStats describes one channel's limiter.
type ChannelStats struct {
	Channel   models.Channel
	Available float64
	PerSecond float64
	Burst     int
	Sends     int64
	Delayed   int64
}

// Stats returns statistics for every limited channel.
func (rl *RateLimiter) Stats() []ChannelStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := make([]ChannelStats, 0, len(rl.configs))
	for channel, cfg := range rl.configs {
		cs := ChannelStats{Channel: channel, PerSecond: cfg.PerSecond, Burst: cfg.Burst, Available: float64(cfg.Burst)}
		if bucket, ok := rl.buckets[channel]; ok {
			cs.Available, cs.Sends, cs.Delayed = bucket.stats(rl.now())
		}
		stats = append(stats, cs)
	}
	return stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
