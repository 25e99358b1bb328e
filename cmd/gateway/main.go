package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/cache"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/lwa"
	spapiadapter "github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	httptransport "github.com/bucs445fall2025/project-stackoverflowed/internal/http"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/http/handler"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/middleware"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/repository"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/server"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/service"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/session"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newRedisClient,
			newStateStore,
			newSessionStore,
			newTokenClient,
			newSessionCache,
			newSPAPIClient,
			newRateLimiter,
			service.NewAuthService,
			service.NewMarketplaceService,
			handler.NewAuthHandler,
			handler.NewMarketplaceHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, restoreSession, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newStateStore(client redis.UniversalClient) repository.StateStore {
	return cacheadapter.NewRedisStateStore(client)
}

// newSessionStore prefers Postgres when DATABASE_URL is set so the refresh
// token survives cache flushes; Redis is the default.
func newSessionStore(lc fx.Lifecycle, cfg config.Config, client redis.UniversalClient, logger *zap.Logger) (repository.SessionStore, error) {
	if cfg.DatabaseURL == "" {
		return cacheadapter.NewRedisSessionStore(client), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := repository.NewPostgresSessionStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	logger.Info("refresh token persisted in postgres")
	return store, nil
}

func newTokenClient(cfg config.Config) lwa.TokenClient {
	return lwa.NewHTTPTokenClient(nil, cfg)
}

func newSessionCache(tokens lwa.TokenClient, store repository.SessionStore, cfg config.Config, logger *zap.Logger) *session.Cache {
	return session.NewCache(tokens, store, cfg.TokenSafetyBuffer, logger)
}

func newSPAPIClient(cfg config.Config, sessions *session.Cache, logger *zap.Logger) *spapiadapter.Client {
	return spapiadapter.NewClient(cfg, sessions, logger)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func restoreSession(lc fx.Lifecycle, cache *session.Cache) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return cache.Restore(startCtx)
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
