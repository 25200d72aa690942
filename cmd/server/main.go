package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tabload/internal/application"
	"github.com/JonMunkholm/tabload/internal/config"
)

func main() {
	if err := application.LoadEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := application.New(ctx, cfg, os.Stdout)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"chunk_size", cfg.Load.ChunkSize,
		"admin", cfg.API.Admin,
		"browser", cfg.API.Browser,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := app.Serve(ctx); err != nil {
		slog.Error("server error", "error", err)
		app.Close()
		os.Exit(1)
	}
}
