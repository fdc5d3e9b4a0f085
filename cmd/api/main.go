// Package main provides the entrypoint for the Star Seeker API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/api"
	"github.com/starseeker/starseeker/internal/api/middleware"
	"github.com/starseeker/starseeker/internal/app"
	"github.com/starseeker/starseeker/internal/config"
	"github.com/starseeker/starseeker/internal/telemetry"
	"github.com/starseeker/starseeker/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("api server failed")
	}
}

func run() error {
	cfg, err := config.Load(config.Options{})
	if err != nil {
		return err
	}

	serviceName := cfg.OTel.ServiceName
	log := app.NewLogger(cfg.Log, serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Str("config_file", cfg.ConfigFile).
		Msg("starting Star Seeker API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.OTel.Environment,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTel.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTel.Endpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, log, app.Options{Registerer: reg})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close storage")
		}
	}()

	application.Load(ctx)
	log.Info().
		Str("storage", cfg.Storage.Driver).
		Int("favourite_gates", len(application.Gates.Favourites())).
		Int("favourite_routes", len(application.Routes.Favourites())).
		Msg("favourites loaded")

	if cfg.Prefetch.Enabled {
		job := worker.NewPrefetchJob(worker.PrefetchJobConfig{
			Config: worker.PrefetchConfig{
				Concurrency:     cfg.Prefetch.Concurrency,
				Interval:        cfg.Prefetch.Interval,
				Gates:           true,
				FavouriteGates:  true,
				FavouriteRoutes: true,
			},
			Logger:  log.With().Str("component", "prefetch").Logger(),
			Network: application.Network,
			Gates:   application.Gates,
			Routes:  application.Routes,
		})
		go job.Start(ctx)
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Gatherer:    reg,
		RateLimit:   cfg.HTTP.RateLimit,
		RequireTLS:  cfg.HTTP.RequireTLS,
		Network:     application.Network,
		Gates:       application.Gates,
		Routes:      application.Routes,
		Registry:    application.Registry,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
