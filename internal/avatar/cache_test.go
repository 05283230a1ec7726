package avatar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type RedisCacheSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	cache *RedisCache
	ctx   context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.cache = NewRedisCacheWithClient(client, time.Hour)
	s.ctx = context.Background()
}

func (s *RedisCacheSuite) TearDownTest() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *RedisCacheSuite) TestMiss() {
	_, err := s.cache.Get(s.ctx, "nothing")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *RedisCacheSuite) TestSetAndGet() {
	s.Require().NoError(s.cache.Set(s.ctx, "cat", "https://img.example/cat.png"))

	image, err := s.cache.Get(s.ctx, "cat")
	s.Require().NoError(err)
	s.Equal("https://img.example/cat.png", image)
	s.True(s.mini.Exists(redisKeyPrefix + promptKey("cat")))
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	s.Require().NoError(s.cache.Set(s.ctx, "cat", "https://img.example/cat.png"))
	s.mini.FastForward(2 * time.Hour)

	_, err := s.cache.Get(s.ctx, "cat")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *RedisCacheSuite) TestCachedWrapperUsesRedis() {
	var calls atomic.Int32
	gen := NewCached(generatorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "https://img.example/once.png", nil
	}), s.cache, 0, zerolog.Nop())

	for range 3 {
		image, err := gen.Generate(s.ctx, "once")
		s.Require().NoError(err)
		s.Equal("https://img.example/once.png", image)
	}
	s.Equal(int32(1), calls.Load())
}

func (s *RedisCacheSuite) TestCachedFallsThroughWhenRedisIsDown() {
	s.mini.Close()
	gen := NewCached(generatorFunc(func(context.Context, string) (string, error) {
		return "https://img.example/direct.png", nil
	}), s.cache, 0, zerolog.Nop())

	image, err := gen.Generate(s.ctx, "dog")
	s.Require().NoError(err)
	s.Equal("https://img.example/direct.png", image)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "a")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	require.NoError(t, c.Set(ctx, "c", "3"))

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss, "oldest entry evicted")
	got, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int32
	gen := NewCached(generatorFunc(func(context.Context, string) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}), NewMemoryCache(8, time.Hour), 0, zerolog.Nop())

	_, err := gen.Generate(context.Background(), "p")
	require.Error(t, err)

	image, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", image)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedCollapsesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	gen := NewCached(generatorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}), NewMemoryCache(8, time.Hour), 0, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = gen.Generate(context.Background(), "same")
		}()
	}

	// Let the callers pile up behind the first upstream call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestCachedSharedCallSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := NewCached(generatorFunc(func(ctx context.Context, _ string) (string, error) {
		close(started)
		select {
		case <-release:
			return "https://img.example/cat.png", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}), NewMemoryCache(8, time.Hour), time.Minute, zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := gen.Generate(firstCtx, "cat")
		firstErr <- err
	}()
	<-started

	type result struct {
		image string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		image, err := gen.Generate(context.Background(), "cat")
		second <- result{image, err}
	}()

	// Give the second caller time to attach to the in-flight call.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "https://img.example/cat.png", res.image)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}

	cached, err := gen.Generate(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/cat.png", cached)
}

func TestCachedSharedCallHasOwnTimeout(t *testing.T) {
	gen := NewCached(generatorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), NewMemoryCache(8, time.Hour), 30*time.Millisecond, zerolog.Nop())

	_, err := gen.Generate(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimitedCapsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := NewLimited(generatorFunc(func(context.Context, string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "x", nil
	}), 2)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Generate(context.Background(), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLimitedGivesUpWhenContextEnds(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	gen := NewLimited(generatorFunc(func(context.Context, string) (string, error) {
		<-block
		return "x", nil
	}), 1)

	go func() { _, _ = gen.Generate(context.Background(), "first") }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := gen.Generate(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
