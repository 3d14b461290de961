package infra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ResponseCache stores rendered public read responses. Invalidate drops
// every entry at once.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
	Invalidate(ctx context.Context)
}

const (
	cacheGenKey    = "catalog:gen"
	cacheKeyPrefix = "catalog:resp:"
)

// redisCache namespaces entries by a generation counter. Bumping the
// counter orphans every older entry, which then expires by TTL. Redis
// failures never reach the caller: a broken cache is a cache miss.
type redisCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	cb      *CircuitBreaker
	metrics *Collector
}

// NewRedisCache returns a cache over rdb. metrics may be nil.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, cb *CircuitBreaker, metrics *Collector) ResponseCache {
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig())
	}
	return &redisCache{rdb: rdb, ttl: ttl, cb: cb, metrics: metrics}
}

func (c *redisCache) generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, cacheGenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var body []byte
	err := c.cb.Execute(func() error {
		gen, err := c.generation(ctx)
		if err != nil {
			return err
		}
		body, err = c.rdb.Get(ctx, cacheKeyPrefix+gen+":"+key).Bytes()
		if errors.Is(err, redis.Nil) {
			body = nil
			return nil
		}
		return err
	})
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache read skipped")
	}
	hit := err == nil && body != nil
	c.metrics.cacheResult(hit)
	return body, hit
}

func (c *redisCache) Set(ctx context.Context, key string, body []byte) {
	err := c.cb.Execute(func() error {
		gen, err := c.generation(ctx)
		if err != nil {
			return err
		}
		return c.rdb.Set(ctx, cacheKeyPrefix+gen+":"+key, body, c.ttl).Err()
	})
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache write skipped")
	}
}

func (c *redisCache) Invalidate(ctx context.Context) {
	err := c.cb.Execute(func() error {
		return c.rdb.Incr(ctx, cacheGenKey).Err()
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed; stale reads possible until TTL")
	}
}

// NoopCache never stores anything. Used when REDIS_URL is empty and in tests.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, []byte)        {}
func (NoopCache) Invalidate(context.Context)                 {}
