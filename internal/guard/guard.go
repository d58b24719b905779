// Package guard blocks sending the same message to the same number twice across runs.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/wavecast/internal/logging"
)

const (
	keyPrefix  = "wavecast:sent:"
	DefaultTTL = 30 * 24 * time.Hour
)

// Guard claims a (number, handle) pair before delivery.
type Guard interface {
	// Claim returns false when the pair was already claimed.
	Claim(ctx context.Context, number, handle string) (bool, error)

	// Release drops a claim after a failed delivery so a later run may retry.
	Release(ctx context.Context, number, handle string) error
}

// Noop claims everything.
type Noop struct{}

func (Noop) Claim(ctx context.Context, number, handle string) (bool, error) { return true, nil }
func (Noop) Release(ctx context.Context, number, handle string) error       { return nil }

// redisClient is the subset of the go-redis client used here.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores claims as expiring keys.
type Redis struct {
	client redisClient
	closer func() error
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	g := newRedis(client, ttl)
	g.closer = client.Close
	return g, nil
}

func newRedis(client redisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.Component("guard"),
	}
}

// Key returns the claim key for a pair.
func Key(number, handle string) string {
	return keyPrefix + number + ":" + handle
}

// Claim sets the pair's key if absent.
func (g *Redis) Claim(ctx context.Context, number, handle string) (bool, error) {
	ok, err := g.client.SetNX(ctx, Key(number, handle), g.now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", number, handle, err)
	}
	if !ok {
		g.logger.Info().Str("number", number).Str("handle", handle).Msg("already claimed")
	}
	return ok, nil
}

// Release deletes the pair's key.
func (g *Redis) Release(ctx context.Context, number, handle string) error {
	if err := g.client.Del(ctx, Key(number, handle)).Err(); err != nil {
		return fmt.Errorf("release %s/%s: %w", number, handle, err)
	}
	return nil
}

// Close closes the underlying connection.
func (g *Redis) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
