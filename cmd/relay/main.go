package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"llm_relay/internal/config"
	"llm_relay/internal/httpapi"
	"llm_relay/internal/logging"
	"llm_relay/internal/metrics"
	"llm_relay/internal/moderation"
	"llm_relay/internal/providers"
)

func main() {
	// Load .env if present, then configuration from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	checker := moderation.NewChecker(cfg.Moderation, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	forwarder := providers.FromConfig(cfg)

	var usage logging.Sink
	fileSink, err := logging.NewFileSink(cfg.LogDir, logger)
	if err != nil {
		// Usage logging is best-effort; run without it rather than refuse to start.
		logger.Warn("usage log unavailable, records will be discarded",
			zap.String("dir", cfg.LogDir), zap.Error(err))
		usage = logging.NewNoopSink()
	} else {
		usage = fileSink
	}

	deps := &httpapi.Dependencies{
		Config:    cfg,
		Checker:   checker,
		Forwarder: forwarder,
		Usage:     usage,
		Metrics:   metrics.NewPromMetrics(),
		Log:       logger,
	}

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("relay listening",
			zap.String("addr", addr),
			zap.String("provider", forwarder.Name()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	if fileSink != nil {
		_ = fileSink.Close()
	}

	logger.Info("server exited")
}
