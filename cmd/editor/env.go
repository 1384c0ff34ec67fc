package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"notespace/client/internal/api"
	"notespace/client/internal/cache"
	"notespace/client/internal/config"
	"notespace/client/internal/logging"
	"notespace/client/internal/metrics"
	"notespace/client/internal/session"
)

// environment holds what every command shares: configuration, logging,
// metrics and the signed-in REST client.
type environment struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tokens   session.Store
	client   *api.Client
	closers  []func() error
}

func newEnvironment(cmd *cobra.Command) (*environment, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		os.Setenv("EDITOR_CONFIG", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	env := &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	profile, _ := cmd.Flags().GetString("profile")
	switch cfg.TokenStore {
	case "redis":
		logger.Debug("using redis for token storage", "profile", profile)
		store, err := session.NewRedisStore(cfg.RedisURL, profile)
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		env.tokens = store
		env.closers = append(env.closers, store.Close)
	default:
		env.tokens = session.NewMemoryStore(session.Tokens{
			Access:  os.Getenv("EDITOR_ACCESS_TOKEN"),
			Refresh: os.Getenv("EDITOR_REFRESH_TOKEN"),
		})
	}
	env.client = api.New(cfg.APIURL, env.tokens, api.WithLogger(logger))
	return env, nil
}

func (e *environment) openCache() (*cache.Cache, error) {
	backend, err := cache.OpenBackend(e.cfg.CacheBackend, e.cfg.CacheDir, e.cfg.RedisURL, e.logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c := cache.New(backend,
		cache.WithLifetime(e.cfg.CacheLifetime),
		cache.WithMetrics(e.metrics),
		cache.WithLogger(e.logger),
	)
	e.closers = append(e.closers, c.Close)
	return c, nil
}

// serveMetrics exposes the registry on cfg.MetricsAddr until ctx is done.
func (e *environment) serveMetrics(ctx context.Context) {
	if e.cfg.MetricsAddr == "" {
		return
	}
	server := &http.Server{
		Addr:              e.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		e.logger.Info("metrics listening", "addr", e.cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close", "error", err)
		}
	}
}
