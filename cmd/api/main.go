package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/akazantsev/specqa/internal/adapters/http"
	"github.com/akazantsev/specqa/internal/bootstrap"
	"github.com/akazantsev/specqa/internal/config"
	"github.com/akazantsev/specqa/internal/observability/logging"
	"github.com/akazantsev/specqa/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap error", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	// Indexed documents change which spec codes resolve to files; drop the
	// resolver cache as soon as a worker finishes one.
	go func() {
		err := app.Queue.SubscribeDocumentIndexed(ctx, func(_ context.Context, documentID string) error {
			logger.Info("document indexed, invalidating resolver", "document_id", documentID)
			app.Resolver.Invalidate()
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("indexed subscription error", "err", err)
		}
	}()

	serverMetrics := metrics.NewHTTPServerMetrics(service)
	router := httpadapter.NewRouter(app.AskUC, app.IngestUC, app.ReadUC, serverMetrics, httpadapter.RouterConfig{
		Service:        service,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxInFlight:    cfg.MaxConnections,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", serverMetrics.Handler())
	mux.Handle("/", router.Handler())

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen error", "err", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "err", err)
	}
}
