package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"careanalytics/internal/amqp"
	"careanalytics/internal/backend"
	"careanalytics/internal/config"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
	"careanalytics/internal/metrics"
	"careanalytics/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentWorker,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	logger.Info("Starting import-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the import worker")
		os.Exit(1)
	}

	store, err := backend.Open(cfg, logger.WithComponent(applog.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var metricsServer *http.Server
	if cfg.WorkerMetricsPort != "" {
		metricsServer = metrics.NewServer(":"+cfg.WorkerMetricsPort, reg)
		go func() {
			logger.Info("Metrics listener started", "port", cfg.WorkerMetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	loaderLogger := logger.WithComponent(applog.ComponentLoader)
	newImporter := func(createTable bool) worker.Importer {
		lc := cfg.Loader()
		lc.CreateTable = lc.CreateTable || createTable
		return deprivation.NewLoader(store.Deprivation, lc, loaderLogger, m)
	}
	importWorker := worker.NewImportWorker(newImporter, nil, cfg.ImportDir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := amqpClient.ConsumeImports(ctx, importWorker.HandleImportMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics listener shutdown failed", "error", err)
		}
	}
}
