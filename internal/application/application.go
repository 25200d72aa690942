// Package application wires configuration, logging, the connection pool and
// the core service together for the tabload binaries.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/tabload/internal/config"
	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/metrics"
	"github.com/JonMunkholm/tabload/internal/web"
)

// App holds the long-lived dependencies of a running process.
type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Service  *core.Service
	Registry *prometheus.Registry
}

// LoadEnv loads .env style files into the process environment, overwriting
// variables that are already set. With no files it tries ./.env. A missing
// default file is not an error; a missing named file is.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Overload(); err != nil {
			slog.Debug("no .env file found, using environment variables")
			return nil
		}
		slog.Debug("loaded .env file (overwriting existing env vars)")
		return nil
	}

	if err := godotenv.Overload(files...); err != nil {
		return fmt.Errorf("load env files %s: %w", strings.Join(files, ", "), err)
	}
	return nil
}

// ServiceOptions maps configuration onto core.Options.
func ServiceOptions(cfg *config.Config) core.Options {
	return core.Options{
		InferSize:   cfg.Load.InferSize,
		ChunkSize:   cfg.Load.ChunkSize,
		LoadTimeout: cfg.Load.Timeout,
		WriterWait:  cfg.Load.WriterWait,
		PageSize:    cfg.API.PageSize,
		MaxPageSize: cfg.API.MaxPageSize,
	}
}

// PoolConfig parses the database URL and applies the pool settings.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	return poolConfig, nil
}

// New sets up logging on logOut, connects to the database and reflects the
// catalog.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logOut)
	slog.Debug("configuration loaded", "config", cfg.String())

	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("connected to database", "name", databaseName(cfg.Database.URL))

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := core.NewService(pool, ServiceOptions(cfg))
	if err := service.RefreshTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reflect tables: %w", err)
	}
	slog.Info("tables reflected", "count", len(service.Catalog().Names()))

	return &App{
		Config:   cfg,
		Pool:     pool,
		Service:  service,
		Registry: registry,
	}, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	a.Pool.Close()
}

// Serve runs the HTTP server until ctx is cancelled. On shutdown it refuses
// new writes, stops the listener and drains the running write, all within
// the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	server := web.NewServer(a.Service, a.Config, a.Registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Refuse new writes before the listener closes. A write started by a
	// request finishes inside server.Shutdown.
	writer := a.Service.Writer()
	writer.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if status := writer.Status(); status.Busy {
		slog.Info("waiting for write to complete", "operation", status.Operation)
		if err := writer.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("write did not complete in time", "error", err)
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// databaseName returns the database name from a connection URL, or "" for
// keyword/value connection strings.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
