// Package ratelimit provides the stores backing echo's RateLimiter middleware.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/trezcool/shule/core"
)

const keyPrefix = "ratelimit:"

// NewRedisClient connects to the configured Redis. It returns a nil client when no address is set.
func NewRedisClient(conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// RedisStore is a fixed-window counter shared by every API instance.
type RedisStore struct {
	client  *redis.Client
	limit   int64
	window  time.Duration
	timeout time.Duration
	nowFunc func() time.Time
}

var _ middleware.RateLimiterStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, limit int, window time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		limit:   int64(limit),
		window:  window,
		timeout: 500 * time.Millisecond,
		nowFunc: time.Now,
	}
}

func (s *RedisStore) key(identifier string) string {
	slot := s.nowFunc().UnixNano() / int64(s.window)
	return keyPrefix + identifier + ":" + strconv.FormatInt(slot, 10)
}

// Allow counts a hit for `identifier` in the current window.
// Redis failures let the request through.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := s.key(identifier)
	pipe := s.client.TxPipeline()
	hits := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, errors.Wrap(err, "counting rate limit hit")
	}
	return hits.Val() <= s.limit, nil
}

// NewStore returns a Redis store when `client` is set, else an in-process token bucket
// allowing `perMinute` requests per minute per identifier.
func NewStore(client *redis.Client, perMinute int) middleware.RateLimiterStore {
	if client != nil {
		return NewRedisStore(client, perMinute, time.Minute)
	}
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
}
