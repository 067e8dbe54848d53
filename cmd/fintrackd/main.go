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

	"fintrack/internal/ai"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "fintrackd"})
	applog.SetDefault(logger)

	logger.Info("Starting fintrackd")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ledger := services.NewLedgerService(repo)
	stats := services.NewStatsService(repo)
	budget := services.NewBudgetService(repo, stats, notify.NewLogNotifier(), cfg.AlertThresholdPercent)

	var receipts apphttp.ReceiptScanner
	if cfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize AI client, receipt scanning disabled", "error", err)
		} else {
			receipts = aiClient
		}
	} else {
		logger.Info("No Gemini API key configured, receipt scanning disabled")
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	defer limiter.Stop()

	server := apphttp.NewServer(":"+cfg.Port, ledger, stats, budget, receipts, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("fintrackd shutdown complete")
}
