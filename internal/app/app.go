package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/partyroom-server/internal/avatar"
	"github.com/vovakirdan/partyroom-server/internal/config"
	"github.com/vovakirdan/partyroom-server/internal/core"
	transporthttp "github.com/vovakirdan/partyroom-server/internal/transport/http"
	"github.com/vovakirdan/partyroom-server/internal/utils"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	cache           avatar.Cache
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	generator, cache, err := newAvatarGenerator(cfg.Avatar, logger)
	if err != nil {
		return nil, fmt.Errorf("init avatars: %w", err)
	}

	hub := core.NewHub(core.Options{
		Random:        utils.NewRandom(),
		Avatars:       generator,
		AvatarTimeout: cfg.Avatar.Timeout,
		SendBuffer:    cfg.SendBuffer,
	}, logger)
	server := transporthttp.NewServer(hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		cache:           cache,
		log:             logger,
	}, nil
}

// newAvatarGenerator picks the upstream client when a key is configured and
// the static placeholder otherwise, then layers concurrency limiting and caching.
func newAvatarGenerator(cfg config.AvatarConfig, logger *zerolog.Logger) (avatar.Generator, avatar.Cache, error) {
	var gen avatar.Generator
	if cfg.APIKey == "" {
		logger.Info().Msg("no image api key configured, using placeholder avatars")
		gen = avatar.Static{}
	} else {
		gen = avatar.NewLimited(avatar.NewClient(avatar.ClientConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Size:     cfg.Size,
		}), cfg.MaxConcurrent)
		logger.Info().Str("endpoint", cfg.Endpoint).Str("model", cfg.Model).Msg("image generation enabled")
	}

	var cache avatar.Cache
	if cfg.RedisURL != "" {
		redisCache, err := avatar.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info().Msg("avatar cache: redis")
		cache = redisCache
	} else {
		cache = avatar.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	}

	return avatar.NewCached(gen, cache, cfg.Timeout, logger.With().Str("component", "avatar").Logger()), cache, nil
}

// Hub exposes the session hub.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes the hub and the avatar cache.
func (a *App) cleanup() {
	a.hub.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close avatar cache")
		}
	}
}
