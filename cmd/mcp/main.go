package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akazantsev/specqa/internal/bootstrap"
	"github.com/akazantsev/specqa/internal/config"
	"github.com/akazantsev/specqa/internal/observability/logging"
	mcpadapter "github.com/akazantsev/specqa/internal/adapters/mcp"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	// Stdout carries the stdio transport, so logs go to stderr here.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap error", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.AskUC, version)
	logger.Info("mcp server listening on stdio")
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}
