// Package services provides business logic and orchestration over the
// ledger store: balance-consistent transaction mutations, recurrence
// processing, aggregation, and budget alerting.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// LedgerService owns every mutation that touches an account balance. All
// deltas are computed here and applied by the store inside the same atomic
// unit as the transaction write.
type LedgerService struct {
	store *storage.SQLiteRepository
	now   func() time.Time
}

func NewLedgerService(store *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{store: store, now: time.Now}
}

// AccountInput carries the caller-supplied fields for account creation.
type AccountInput struct {
	Name      string
	Type      core.AccountType
	Currency  string
	Balance   core.Money // opening balance, may be zero
	IsDefault bool
}

// TransactionInput carries the caller-supplied fields for transaction
// create and update.
type TransactionInput struct {
	AccountID         string
	Type              core.TransactionType
	Amount            core.Money
	Description       string
	Category          string
	Date              time.Time
	IsRecurring       bool
	RecurringInterval core.RecurringInterval
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return core.ErrUnauthorized
	}
	return nil
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return err
}

// CreateAccount creates an account for the owner. The store guarantees the
// single-default invariant.
func (s *LedgerService) CreateAccount(ctx context.Context, ownerID string, in AccountInput) (*core.Account, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.Balance.Cents < 0 {
		return nil, fmt.Errorf("opening balance: %w", core.ErrInvalidInput)
	}

	account := core.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Type:      in.Type,
		Currency:  in.Currency,
		Balance:   in.Balance,
		IsDefault: in.IsDefault,
		CreatedAt: s.now(),
	}
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, err)
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return s.store.GetAccount(ctx, ownerID, account.ID)
}

func (s *LedgerService) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.store.ListAccounts(ctx, ownerID)
}

func (s *LedgerService) GetAccount(ctx context.Context, ownerID, accountID string) (*core.Account, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, notFoundOr(err, "account")
	}
	return account, nil
}

// SetDefaultAccount switches the owner's default account atomically; no
// intermediate state with zero or two defaults is observable.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, ownerID, accountID string) (*core.Account, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := s.store.SetDefaultAccount(ctx, ownerID, accountID); err != nil {
		return nil, notFoundOr(err, "account")
	}
	return s.store.GetAccount(ctx, ownerID, accountID)
}

// CreateTransaction writes a transaction and its balance delta in one unit.
// A recurring transaction gets its first schedule from the same date math
// that later advances it.
func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID string, in TransactionInput) (*core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	t := core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		IsRecurring: in.IsRecurring,
		CreatedAt:   s.now(),
	}
	if in.IsRecurring {
		t.RecurringInterval = in.RecurringInterval
		t.NextRecurringDate = core.NextRecurringDate(in.Date, in.RecurringInterval)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, err)
	}

	// Ownership check before any write: a foreign account is not found,
	// never silently redirected.
	if _, err := s.store.GetAccount(ctx, ownerID, in.AccountID); err != nil {
		return nil, notFoundOr(err, "account")
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}
	return t, nil
}

// UpdateTransaction rewrites a transaction and corrects the affected
// balances: the net difference on an unchanged account, or reversal plus
// re-application when the transaction moved between accounts.
func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID, id string, in TransactionInput) (*core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	original, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}

	updated := core.Transaction{
		ID:          id,
		OwnerID:     ownerID,
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		IsRecurring: in.IsRecurring,
		CreatedAt:   original.CreatedAt,
	}
	if in.IsRecurring {
		updated.RecurringInterval = in.RecurringInterval
		updated.NextRecurringDate = core.NextRecurringDate(in.Date, in.RecurringInterval)
	}
	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, err)
	}

	if in.AccountID != original.AccountID {
		if _, err := s.store.GetAccount(ctx, ownerID, in.AccountID); err != nil {
			return nil, notFoundOr(err, "account")
		}
	}

	oldDelta := original.Amount.Signed(original.Type)
	newDelta := in.Amount.Signed(in.Type)

	if err := s.store.UpdateTransaction(ctx, updated, original.AccountID, oldDelta, newDelta); err != nil {
		return nil, notFoundOr(err, "transaction")
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", id,
		"old_delta_cents", oldDelta.Cents,
		"new_delta_cents", newDelta.Cents,
		"account_changed", in.AccountID != original.AccountID)
	return &updated, nil
}

// DeleteTransactions bulk-deletes the owner's transactions and reverses
// their balance contributions in one unit per request.
func (s *LedgerService) DeleteTransactions(ctx context.Context, ownerID string, ids []string) (int, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	deleted, err := s.store.BulkDeleteTransactions(ctx, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return deleted, nil
}

func (s *LedgerService) RecentTransactions(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return s.store.ListRecentTransactions(ctx, ownerID, limit)
}
