package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica through
// Redis (INCR + EXPIRE in one MULTI). Burst is ignored; the window allows
// RequestsPerWindow hits. Works with Redis 2.6 and later.
type RedisLimiter struct {
	Client redis.UniversalClient
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg RateLimitConfig) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(cfg.RequestsPerWindow),
		Window: cfg.Window,
	}
}

// NewRedisLimiterFactory shares client across profiles, namespacing keys by
// profile name.
func NewRedisLimiterFactory(client redis.UniversalClient, prefix string) LimiterFactory {
	return func(name string, cfg RateLimitConfig) Limiter {
		return NewRedisLimiter(client, prefix+strings.ToLower(name)+":", cfg)
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UTC()
	windowStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), windowStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// Plain EXPIRE on every hit: the key is already scoped to one window,
	// so pushing its TTL out only delays cleanup.
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis limiter: %w", err)
	}

	if incr.Val() <= l.Max {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: windowStart.Add(l.Window).Sub(now)}, nil
}
