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

	"fintrack/internal/ai"
	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "alerts-worker"})
	applog.SetDefault(logger)

	logger.Info("Starting alerts-worker")

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

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRecurringQueue, cfg.AMQPNotificationQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, delivering notifications inline", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	// The delivery notifier performs the actual send: SMTP when
	// configured, log lines otherwise.
	var delivery notify.Notifier = notify.NewLogNotifier()
	if cfg.SMTPHost != "" {
		delivery = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	// Producers hand mail to the queue when one exists; the consumer below
	// drains it into the delivery notifier.
	var producer notify.Notifier = delivery
	if amqpClient != nil {
		producer = notify.NewQueueNotifier(amqpClient)
	}

	var insights services.InsightsGenerator
	if cfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize AI client, using fallback insights", "error", err)
		} else {
			insights = aiClient
		}
	}

	stats := services.NewStatsService(repo)
	budget := services.NewBudgetService(repo, stats, producer, cfg.AlertThresholdPercent)
	reports := services.NewReportService(repo, stats, insights, producer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Budget alert sweep, once on startup then every interval.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.AlertInterval)
		defer ticker.Stop()

		runBudgetSweep(ctx, logger, budget)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runBudgetSweep(ctx, logger, budget)
			}
		}
	})

	// Monthly reports on the first day of each month.
	g.Go(func() error {
		for {
			wait := untilNextMonthStart(time.Now())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				if count, err := reports.SendMonthlyReports(ctx); err != nil {
					logger.Error("Monthly report run failed", "error", err)
				} else {
					logger.Info("Monthly report run finished", "sent", count)
				}
			}
		}
	})

	// Notification delivery consumer.
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
				return delivery.Send(ctx, msg.Recipient, msg.Subject, msg.Body)
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Alerts-worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Alerts-worker shutdown complete")
}

func runBudgetSweep(ctx context.Context, logger *applog.Logger, budget *services.BudgetService) {
	sent, err := budget.CheckAlerts(ctx)
	if err != nil {
		logger.Error("Budget alert sweep failed", "error", err)
		return
	}
	logger.Info("Budget alert sweep finished", "alerts_sent", sent)
}

// untilNextMonthStart returns the duration until midnight UTC on the first
// of the next month.
func untilNextMonthStart(now time.Time) time.Duration {
	_, end := core.MonthRange(now)
	next := end.Add(time.Second)
	return next.Sub(now)
}
