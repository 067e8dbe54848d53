package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "recurring-worker"})
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	// Per-owner materialization throttle.
	throttle := ratelimit.NewLimiter(ratelimit.Config{
		Limit:  cfg.OwnerRateLimit,
		Window: time.Minute,
	})
	defer throttle.Stop()

	processor := services.NewRecurringProcessor(repo, throttle)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRecurringQueue, cfg.AMQPNotificationQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, processing due templates inline", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring processor configured",
		"trigger_interval", cfg.TriggerInterval,
		"owner_rate_limit", cfg.OwnerRateLimit,
		"amqp", amqpClient != nil)

	g, ctx := errgroup.WithContext(ctx)

	// Trigger loop: enqueue (or process inline) every interval, once on
	// startup.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.TriggerInterval)
		defer ticker.Stop()

		runTrigger(ctx, logger, processor, amqpClient)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runTrigger(ctx, logger, processor, amqpClient)
			}
		}
	})

	// Consumer loop: only when AMQP is up.
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeRecurringProcess(ctx, func(msg *amqp.RecurringProcessMessage) error {
				_, err := processor.ProcessEvent(ctx, msg.OwnerID, msg.TemplateID, msg.AccountID)
				return err
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Recurring-worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}

// runTrigger publishes events for due templates, or materializes them
// inline when no queue is available.
func runTrigger(ctx context.Context, logger *applog.Logger, processor *services.RecurringProcessor, client *amqp.Client) {
	if client != nil {
		count, err := processor.EnqueueDue(ctx, client)
		if err != nil {
			logger.Error("Trigger run failed", "error", err)
			return
		}
		logger.Info("Trigger run complete", "events_published", count)
		return
	}

	count, err := processor.ProcessDueInline(ctx)
	if err != nil {
		logger.Error("Inline processing failed", "error", err)
		return
	}
	logger.Info("Inline processing complete", "transactions_created", count)
}
