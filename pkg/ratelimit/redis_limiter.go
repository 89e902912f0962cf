package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter 固定窗口计数，多个 API 实例共享同一份额度
type RedisLimiter struct {
	rdb    *redis.Client
	scope  string
	window time.Duration
	max    int64
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, scope string, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		scope:  scope,
		window: window,
		max:    int64(max),
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.scope, key, bucket)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}

	// Set expiration on first increment
	if count == 1 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= l.max, nil
}
