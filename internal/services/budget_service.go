package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/storage"
)

const defaultAlertThresholdPercent = 80.0

// BudgetUsage reports how much of the monthly budget the owner's default
// account has consumed.
type BudgetUsage struct {
	Budget  core.Money
	Spent   core.Money
	Percent float64
}

// BudgetService manages the per-owner monthly budget and evaluates the
// usage alert. The alert fires at most once per calendar month: the store's
// conditional claim on last_alert_sent decides the winner when evaluations
// overlap.
type BudgetService struct {
	store     *storage.SQLiteRepository
	stats     *StatsService
	notifier  notify.Notifier
	threshold float64
	now       func() time.Time
}

func NewBudgetService(store *storage.SQLiteRepository, stats *StatsService, notifier notify.Notifier, threshold float64) *BudgetService {
	if threshold <= 0 {
		threshold = defaultAlertThresholdPercent
	}
	return &BudgetService{
		store:     store,
		stats:     stats,
		notifier:  notifier,
		threshold: threshold,
		now:       time.Now,
	}
}

// GetBudget returns the owner's budget, or nil when none is set.
func (s *BudgetService) GetBudget(ctx context.Context, ownerID string) (*core.Budget, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.store.GetBudget(ctx, ownerID)
}

// SetBudget creates or replaces the owner's budget.
func (s *BudgetService) SetBudget(ctx context.Context, ownerID string, amount core.Money) (*core.Budget, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := amount.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, err)
	}
	if err := s.store.UpsertBudget(ctx, ownerID, amount, s.now()); err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return s.store.GetBudget(ctx, ownerID)
}

// Usage computes current-month spending on the owner's default account
// against the budget. Returns nil when the owner has no budget or no
// default account.
func (s *BudgetService) Usage(ctx context.Context, ownerID string) (*BudgetUsage, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	budget, err := s.store.GetBudget(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if budget == nil {
		return nil, nil
	}

	account, err := s.store.DefaultAccount(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get default account: %w", err)
	}
	if account == nil {
		return nil, nil
	}

	stats, err := s.stats.MonthStats(ctx, ownerID, account.ID, s.now())
	if err != nil {
		return nil, err
	}

	usage := &BudgetUsage{
		Budget: budget.Amount,
		Spent:  stats.TotalExpenses,
	}
	if budget.Amount.Cents > 0 {
		usage.Percent = float64(stats.TotalExpenses.Cents) / float64(budget.Amount.Cents) * 100
	}
	return usage, nil
}

// CheckAlerts evaluates every owner with a budget and sends at most one
// alert per owner per month. Returns the number of alerts sent. Send
// failures are logged and never fail the sweep.
func (s *BudgetService) CheckAlerts(ctx context.Context) (int, error) {
	owners, err := s.store.ListBudgetOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budget owners: %w", err)
	}

	slog.InfoContext(ctx, "Evaluating budget alerts", "owners", len(owners))

	sent := 0
	for _, ownerID := range owners {
		fired, err := s.evaluateOwner(ctx, ownerID)
		if err != nil {
			slog.ErrorContext(ctx, "Budget alert evaluation failed",
				"owner_id", ownerID,
				"error", err)
			continue
		}
		if fired {
			sent++
		}
	}

	slog.InfoContext(ctx, "Budget alert sweep complete", "sent", sent, "owners", len(owners))
	return sent, nil
}

func (s *BudgetService) evaluateOwner(ctx context.Context, ownerID string) (bool, error) {
	usage, err := s.Usage(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if usage == nil || usage.Percent < s.threshold {
		return false, nil
	}

	claimed, err := s.store.ClaimBudgetAlert(ctx, ownerID, s.now())
	if err != nil {
		return false, fmt.Errorf("claim budget alert: %w", err)
	}
	if !claimed {
		// Already alerted this month.
		return false, nil
	}

	subject := "Budget Alert"
	body := fmt.Sprintf(
		"You've used %.1f%% of your monthly budget.\n\nBudget: %.2f\nSpent so far: %.2f\nRemaining: %.2f\n",
		usage.Percent,
		usage.Budget.Units(),
		usage.Spent.Units(),
		core.Money{Cents: usage.Budget.Cents - usage.Spent.Cents}.Units())

	if err := s.notifier.Send(ctx, ownerID, subject, body); err != nil {
		// The month's claim is spent either way. The alert is best-effort.
		slog.ErrorContext(ctx, "Failed to send budget alert",
			"owner_id", ownerID,
			"error", err)
		return false, nil
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"owner_id", ownerID,
		"percent_used", usage.Percent)
	return true, nil
}
