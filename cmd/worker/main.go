package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akazantsev/specqa/internal/bootstrap"
	"github.com/akazantsev/specqa/internal/config"
	"github.com/akazantsev/specqa/internal/observability/logging"
	"github.com/akazantsev/specqa/internal/observability/metrics"
)

const service = "worker"

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

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSIngestSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		workerMetrics.StartDocument()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)

		workerMetrics.FinishDocument(service, time.Since(start), processErr)
		if processErr != nil {
			logger.Error("process document", "document_id", documentID, "err", processErr)
		} else {
			logger.Info("document indexed", "document_id", documentID, "duration", time.Since(start).String())
		}
		return processErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker subscribe error", "err", err)
		os.Exit(1)
	}
}
