package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/presence"
	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/gormstore"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-dm/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	manager         *core.Manager
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// OpenStore opens the durable store selected by cfg.Driver.
func OpenStore(cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres", "mysql":
		return gormstore.Open(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	writers := presence.Fanout{st}
	var mirror transporthttp.PresenceMirror
	if cfg.Redis.URL != "" {
		rdb, err := presence.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = rdb
		redisMirror := presence.NewRedisMirror(rdb, cfg.Redis.KeyPrefix)
		writers = append(writers, redisMirror)
		mirror = redisMirror
		logger.Info().Str("key_prefix", cfg.Redis.KeyPrefix).Msg("redis presence mirror enabled")
	}

	managerLog := logger.With().Str("component", "manager").Logger()
	routerLog := logger.With().Str("component", "router").Logger()

	a.manager = core.NewManager(writers, cfg.Session.DeliveryTimeout, &managerLog)
	router := core.NewRouter(st, a.manager, &routerLog)
	a.server = transporthttp.NewServer(a.manager, router, st, mirror, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		n := a.manager.CloseAll(core.CloseReasonShutdown)
		a.log.Info().Int("sessions", n).Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		// Hijacked WebSocket connections are not tracked by Shutdown.
		a.waitDrained(shutdownCtx)
		return nil
	})

	return g.Wait()
}

func (a *App) waitDrained(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for len(a.manager.Online()) > 0 {
		select {
		case <-ctx.Done():
			a.log.Warn().Int("sessions", len(a.manager.Online())).Msg("sessions still open after shutdown timeout")
			return
		case <-ticker.C:
		}
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
