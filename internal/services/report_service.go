package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/storage"
)

// InsightsGenerator produces short observations about a month of spending.
// The AI client satisfies it; nil means static fallback insights.
type InsightsGenerator interface {
	MonthlyInsights(ctx context.Context, stats *core.RangeStats, month time.Time) []string
}

// ReportService emails each owner a summary of the previous calendar
// month. One owner's failure never blocks the others.
type ReportService struct {
	store    *storage.SQLiteRepository
	stats    *StatsService
	insights InsightsGenerator
	notifier notify.Notifier
	now      func() time.Time
}

func NewReportService(store *storage.SQLiteRepository, stats *StatsService, insights InsightsGenerator, notifier notify.Notifier) *ReportService {
	return &ReportService{
		store:    store,
		stats:    stats,
		insights: insights,
		notifier: notifier,
		now:      time.Now,
	}
}

// SendMonthlyReports generates and sends last month's report for every
// known owner. Returns the number of reports sent.
func (s *ReportService) SendMonthlyReports(ctx context.Context) (int, error) {
	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	lastMonth := s.now().AddDate(0, -1, 0)
	slog.InfoContext(ctx, "Generating monthly reports",
		"owners", len(owners),
		"month", lastMonth.Format("2006-01"))

	sent := 0
	for _, ownerID := range owners {
		if err := s.sendOwnerReport(ctx, ownerID, lastMonth); err != nil {
			slog.ErrorContext(ctx, "Monthly report failed",
				"owner_id", ownerID,
				"error", err)
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Monthly report run complete", "sent", sent, "owners", len(owners))
	return sent, nil
}

func (s *ReportService) sendOwnerReport(ctx context.Context, ownerID string, month time.Time) error {
	stats, err := s.stats.MonthStats(ctx, ownerID, "", month)
	if err != nil {
		return err
	}

	insights := ai.FallbackInsights
	if s.insights != nil {
		insights = s.insights.MonthlyInsights(ctx, stats, month)
	}

	monthName := month.Format("January")
	subject := fmt.Sprintf("Your Monthly Financial Report - %s", monthName)
	body := formatReport(stats, insights, month)

	if err := s.notifier.Send(ctx, ownerID, subject, body); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

func formatReport(stats *core.RangeStats, insights []string, month time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Financial Report for %s\n\n", month.Format("January 2006"))
	fmt.Fprintf(&b, "Total Income: %.2f\n", stats.TotalIncome.Units())
	fmt.Fprintf(&b, "Total Expenses: %.2f\n", stats.TotalExpenses.Units())
	fmt.Fprintf(&b, "Net: %.2f\n", stats.Net().Units())

	if len(stats.ExpenseByCategory) > 0 {
		b.WriteString("\nExpenses by category:\n")
		categories := make([]string, 0, len(stats.ExpenseByCategory))
		for name := range stats.ExpenseByCategory {
			categories = append(categories, name)
		}
		sort.Strings(categories)
		for _, name := range categories {
			fmt.Fprintf(&b, "  %s: %.2f\n", name, stats.ExpenseByCategory[name].Units())
		}
	}

	b.WriteString("\nInsights:\n")
	for _, insight := range insights {
		fmt.Fprintf(&b, "  - %s\n", insight)
	}
	return b.String()
}
