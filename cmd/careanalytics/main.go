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
	"careanalytics/internal/cache"
	"careanalytics/internal/config"
	"careanalytics/internal/deprivation"
	apphttp "careanalytics/internal/http"
	applog "careanalytics/internal/log"
	"careanalytics/internal/metrics"
	"careanalytics/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := backend.Open(cfg, logger.WithComponent(applog.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter, err := backend.Exporter(ctx, cfg, logger.WithComponent(applog.ComponentSheets))
	if err != nil {
		logger.Error("Failed to initialize report exporter", "error", err)
		os.Exit(1)
	}

	// AMQP is optional; without it import requests are refused.
	var publisher services.ImportPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without queued imports", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	classifier := deprivation.NewClassifier(store.Deprivation, cfg.ClassifierCacheSize, cfg.ClassifierCacheTTL,
		logger.WithComponent(applog.ComponentClassifier), m)

	caches := cache.NewManager()
	caches.Register(classifier.CacheCleaner())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	reports := services.NewReportService(store.Commitments, store.Clients, classifier, exporter, publisher, m,
		logger.WithComponent(applog.ComponentReport),
		services.ReportConfig{EarliestYear: cfg.EarliestReportYear, ImportDir: cfg.ImportDir})

	srv, err := apphttp.NewServer(":"+cfg.Port, reports, store.Pinger, logger, apphttp.Options{
		Gatherer:     prometheus.DefaultGatherer,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting careanalytics server", "port", cfg.Port, "backend", cfg.DataBackend,
		"export_enabled", exporter != nil, "imports_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
