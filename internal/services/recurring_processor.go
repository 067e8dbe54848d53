package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/ratelimit"
	"fintrack/internal/storage"
)

// RecurringPublisher enqueues a materialization request for one due
// template. The AMQP client satisfies it.
type RecurringPublisher interface {
	PublishRecurringProcess(ctx context.Context, ownerID, templateID, accountID string) error
}

// RecurringProcessor materializes due recurring templates into concrete
// transactions. Trigger deliveries are at-least-once, so every
// materialization runs through the store's per-period claim: the first
// delivery wins, duplicates become no-ops.
type RecurringProcessor struct {
	store    *storage.SQLiteRepository
	throttle *ratelimit.Limiter
	now      func() time.Time
}

func NewRecurringProcessor(store *storage.SQLiteRepository, throttle *ratelimit.Limiter) *RecurringProcessor {
	return &RecurringProcessor{
		store:    store,
		throttle: throttle,
		now:      time.Now,
	}
}

// EnqueueDue finds every due recurring template and publishes one
// materialization event per template. Returns the number of events
// published.
func (p *RecurringProcessor) EnqueueDue(ctx context.Context, pub RecurringPublisher) (int, error) {
	now := p.now()
	due, err := p.store.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due recurring: %w", err)
	}

	slog.InfoContext(ctx, "Enqueueing due recurring templates",
		"due", len(due),
		"check_date", now.Format("2006-01-02"))

	published := 0
	for _, tpl := range due {
		if err := pub.PublishRecurringProcess(ctx, tpl.OwnerID, tpl.ID, tpl.AccountID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recurring event",
				"template_id", tpl.ID,
				"owner_id", tpl.OwnerID,
				"error", err)
			continue
		}
		published++
	}
	return published, nil
}

// ProcessDueInline materializes every due template directly, without a
// queue. Used when no broker is configured. Returns the number of
// transactions created.
func (p *RecurringProcessor) ProcessDueInline(ctx context.Context) (int, error) {
	due, err := p.store.ListDueRecurring(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("list due recurring: %w", err)
	}

	created := 0
	for _, tpl := range due {
		ok, err := p.ProcessEvent(ctx, tpl.OwnerID, tpl.ID, tpl.AccountID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process due template",
				"template_id", tpl.ID,
				"error", err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ProcessEvent handles one materialization request. It reports whether a
// transaction was actually created: a stale, throttled, or duplicate event
// returns (false, nil) and must not be redelivered.
func (p *RecurringProcessor) ProcessEvent(ctx context.Context, ownerID, templateID, accountID string) (bool, error) {
	if ownerID == "" || templateID == "" {
		return false, fmt.Errorf("recurring event: %w", core.ErrInvalidInput)
	}

	tpl, err := p.store.FindRecurringTemplate(ctx, ownerID, templateID, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Recurring template not found, dropping event",
				"template_id", templateID,
				"owner_id", ownerID)
			return false, nil
		}
		return false, fmt.Errorf("find recurring template: %w", err)
	}

	now := p.now()

	// Dueness is re-checked at processing time, not only at enqueue time:
	// the template may have been edited or already materialized since the
	// event was published.
	if !tpl.IsDue(now) {
		slog.InfoContext(ctx, "Recurring template not due, skipping",
			"template_id", tpl.ID,
			"next_recurring_date", tpl.NextRecurringDate.Format("2006-01-02"))
		return false, nil
	}

	if p.throttle != nil && !p.throttle.Allow(ownerID) {
		slog.WarnContext(ctx, "Recurring processing throttled for owner",
			"owner_id", ownerID,
			"template_id", tpl.ID)
		return false, nil
	}

	derived := core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     tpl.OwnerID,
		AccountID:   tpl.AccountID,
		Type:        tpl.Type,
		Amount:      tpl.Amount,
		Description: tpl.Description + " (Recurring)",
		Category:    tpl.Category,
		Date:        now,
		IsRecurring: false,
		CreatedAt:   now,
	}

	anchor := p.advanceAnchor(tpl, now)
	next := core.NextRecurringDate(anchor, tpl.RecurringInterval)
	// Missed periods are skipped, not backfilled: the schedule lands on the
	// first anchor-day occurrence strictly after now.
	for next.After(anchor) && !next.After(now) {
		next = core.NextRecurringDate(next, tpl.RecurringInterval)
	}

	created, err := p.store.MaterializeRecurring(ctx, *tpl, derived, now, next)
	if err != nil {
		return false, fmt.Errorf("materialize recurring %s: %w", tpl.ID, err)
	}
	if !created {
		slog.InfoContext(ctx, "Recurring occurrence already materialized for period",
			"template_id", tpl.ID,
			"period", core.PeriodKey(now))
		return false, nil
	}

	slog.InfoContext(ctx, "Created transaction from recurring template",
		"template_id", tpl.ID,
		"transaction_id", derived.ID,
		"amount_cents", derived.Amount.Cents,
		"interval", tpl.RecurringInterval,
		"next_recurring_date", next.Format("2006-01-02"))
	return true, nil
}

// advanceAnchor picks the date the schedule advances from. The template's
// own scheduled date keeps occurrences pinned to their anchor day: a
// monthly template scheduled for the 15th and processed late on the 20th
// still lands on the 15th next month. Only a template that never carried a
// schedule advances from the processing time.
func (p *RecurringProcessor) advanceAnchor(tpl *core.Transaction, now time.Time) time.Time {
	if !tpl.NextRecurringDate.IsZero() {
		return tpl.NextRecurringDate
	}
	if !tpl.Date.IsZero() {
		return tpl.Date
	}
	return now
}
