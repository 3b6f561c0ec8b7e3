package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter on INCR with a TTL, using the same
// window boundaries as the store limiter.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		return false, fmt.Errorf("rate limit window must be at least one second, got %s", window)
	}

	now := l.now().Unix()
	windowStart := now - now%windowSeconds
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count request for %s: %w", key, err)
	}

	return incr.Val() <= int64(limit), nil
}
