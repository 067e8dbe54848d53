package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// StatsService aggregates transactions over date ranges. All intervals are
// closed: both endpoints are included.
type StatsService struct {
	store *storage.SQLiteRepository
}

func NewStatsService(store *storage.SQLiteRepository) *StatsService {
	return &StatsService{store: store}
}

// RangeStats sums the owner's transactions between start and end inclusive.
// An empty accountID aggregates across all the owner's accounts.
func (s *StatsService) RangeStats(ctx context.Context, ownerID, accountID string, start, end time.Time) (*core.RangeStats, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("range start after end: %w", core.ErrInvalidInput)
	}

	transactions, err := s.store.ListTransactionsInRange(ctx, ownerID, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}

	stats := &core.RangeStats{
		ExpenseByCategory: make(map[string]core.Money),
	}
	for _, t := range transactions {
		stats.TransactionCount++
		switch t.Type {
		case core.Income:
			stats.TotalIncome.Cents += t.Amount.Cents
		case core.Expense:
			stats.TotalExpenses.Cents += t.Amount.Cents
			cat := stats.ExpenseByCategory[t.Category]
			cat.Cents += t.Amount.Cents
			stats.ExpenseByCategory[t.Category] = cat
		}
	}
	return stats, nil
}

// MonthStats aggregates the calendar month containing ref, in UTC.
func (s *StatsService) MonthStats(ctx context.Context, ownerID, accountID string, ref time.Time) (*core.RangeStats, error) {
	start, end := core.MonthRange(ref)
	return s.RangeStats(ctx, ownerID, accountID, start, end)
}
