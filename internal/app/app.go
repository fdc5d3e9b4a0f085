// Package app assembles the Star Seeker components from configuration. Both the API
// server and the command line tool build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/config"
	"github.com/starseeker/starseeker/internal/database"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/kvstore"
	"github.com/starseeker/starseeker/internal/network"
	"github.com/starseeker/starseeker/internal/network/hstc"
	"github.com/starseeker/starseeker/internal/provider/resilience"
)

// Options customizes how dependencies are built. Zero values select the production
// implementations.
type Options struct {
	// Store replaces the configured storage driver.
	Store kvstore.Store

	// HTTPClient replaces the resilient HTTP client used by the gateway.
	HTTPClient hstc.HTTPDoer

	// Registerer receives the request-cache metrics (default: a new registry).
	Registerer prometheus.Registerer
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    kvstore.Store
	Registry *resilience.Registry
	Metrics  *network.Collector
	Network  *network.Service
	Gates    *favourites.GateManager
	Routes   *favourites.RouteManager

	closers []func() error
}

// New builds the application from cfg. Favourites are not loaded; call Load.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: resilience.NewRegistry(),
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	a.Store = store

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	collector, err := network.NewCollector(reg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register network metrics: %w", err)
	}
	a.Metrics = collector

	gateway := hstc.NewClient(hstc.ClientConfig{
		BaseURL:            cfg.API.BaseURL,
		APIKey:             cfg.API.Key,
		HTTPClient:         opts.HTTPClient,
		Timeout:            cfg.API.Timeout,
		Registry:           a.Registry,
		AllRoutesSupported: cfg.API.AllRoutes,
		Logger:             logger,
	})

	retries := cfg.Cache.Retries
	if retries == 0 {
		retries = -1
	}

	a.Network = network.NewService(network.ServiceConfig{
		Gateway:   gateway,
		Logger:    logger,
		StaleTime: cfg.Cache.StaleTime,
		GCTime:    cfg.Cache.GCTime,
		Retries:   retries,
		AllRoutes: cfg.API.AllRoutes,
		Metrics:   collector,
	})

	a.Gates = favourites.NewGateManager(favourites.GateManagerConfig{
		Store:  store,
		Logger: logger,
	})
	a.Routes = favourites.NewRouteManager(favourites.RouteManagerConfig{
		Store:  store,
		Logger: logger,
	})

	return a, nil
}

func (a *App) openStore(ctx context.Context) (kvstore.Store, error) {
	cfg := a.Config

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return kvstore.NewMemoryStore(), nil

	case config.DriverFile:
		store, err := kvstore.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		a.Logger.Debug().Str("path", store.Path()).Msg("using file storage")
		return store, nil

	case config.DriverRedis:
		store, err := kvstore.NewRedisStore(ctx, kvstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Debug().Str("addr", cfg.Redis.Addr).Msg("using redis storage")
		return store, nil

	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closePool(pool))

		store := kvstore.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Logger.Debug().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Database).
			Msg("using postgres storage")
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

// Load reads the persisted favourites and search history.
func (a *App) Load(ctx context.Context) {
	a.Gates.Load(ctx)
	a.Routes.Load(ctx)
}

// Close waits for background cache refreshes and releases storage connections.
func (a *App) Close() error {
	if a.Network != nil {
		a.Network.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the process logger. Pretty output goes to stderr through a console
// writer; otherwise JSON lines go to stdout.
func NewLogger(cfg config.LogConfig, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
