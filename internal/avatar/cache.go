package avatar

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by a Cache that has no entry for a prompt.
var ErrCacheMiss = errors.New("avatar cache miss")

const redisKeyPrefix = "partyroom:avatar:"

// Cache stores generated images keyed by prompt.
type Cache interface {
	Get(ctx context.Context, prompt string) (string, error)
	Set(ctx context.Context, prompt, image string) error
	Close() error
}

// RedisCache keeps results in Redis so they survive restarts and are shared
// between instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url and verifies the connection.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client (for testing).
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, prompt string) (string, error) {
	image, err := c.client.Get(ctx, redisKeyPrefix+promptKey(prompt)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return image, nil
}

func (c *RedisCache) Set(ctx context.Context, prompt, image string) error {
	return c.client.Set(ctx, redisKeyPrefix+promptKey(prompt), image, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is a bounded in-process cache with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, prompt string) (string, error) {
	image, ok := c.lru.Get(promptKey(prompt))
	if !ok {
		return "", ErrCacheMiss
	}
	return image, nil
}

func (c *MemoryCache) Set(_ context.Context, prompt, image string) error {
	c.lru.Add(promptKey(prompt), image)
	return nil
}

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

const defaultSharedTimeout = 2 * time.Minute

// Cached serves repeated prompts from a Cache and collapses concurrent
// requests for the same prompt into one upstream call. The shared call is
// detached from any single caller and bounded by its own timeout; each caller
// still stops waiting when its own context ends.
type Cached struct {
	next    Generator
	cache   Cache
	timeout time.Duration
	group   singleflight.Group
	log     zerolog.Logger
}

// NewCached wraps next. A non-positive timeout selects the default bound for
// the shared upstream call.
func NewCached(next Generator, cache Cache, timeout time.Duration, logger zerolog.Logger) *Cached {
	if timeout <= 0 {
		timeout = defaultSharedTimeout
	}
	return &Cached{next: next, cache: cache, timeout: timeout, log: logger}
}

func (c *Cached) Generate(ctx context.Context, prompt string) (string, error) {
	image, err := c.cache.Get(ctx, prompt)
	if err == nil {
		return image, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn().Err(err).Msg("avatar cache read failed")
	}

	ch := c.group.DoChan(promptKey(prompt), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		image, err := c.next.Generate(shared, prompt)
		if err != nil {
			return "", err
		}
		if err := c.cache.Set(shared, prompt, image); err != nil {
			c.log.Warn().Err(err).Msg("avatar cache write failed")
		}
		return image, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
