package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestLedgerService_RequiresOwner(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"create account", func() error {
			_, err := svc.CreateAccount(ctx, "", AccountInput{Name: "x", Type: core.AccountCurrent})
			return err
		}},
		{"create transaction", func() error {
			_, err := svc.CreateTransaction(ctx, "", TransactionInput{})
			return err
		}},
		{"delete transactions", func() error {
			_, err := svc.DeleteTransactions(ctx, "", []string{"t1"})
			return err
		}},
		{"list accounts", func() error {
			_, err := svc.ListAccounts(ctx, "")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, core.ErrUnauthorized) {
				t.Errorf("error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store)
	ctx := context.Background()
	seedAccount(t, store, "owner1", "a1", 0)

	valid := TransactionInput{
		AccountID:   "a1",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 1000},
		Description: "coffee",
		Category:    "food",
		Date:        time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(in *TransactionInput)
		wantErr error
	}{
		{"zero amount", func(in *TransactionInput) { in.Amount.Cents = 0 }, core.ErrInvalidInput},
		{"negative amount", func(in *TransactionInput) { in.Amount.Cents = -500 }, core.ErrInvalidInput},
		{"bad type", func(in *TransactionInput) { in.Type = "TRANSFER" }, core.ErrInvalidInput},
		{"empty description", func(in *TransactionInput) { in.Description = "  " }, core.ErrInvalidInput},
		{"recurring without interval", func(in *TransactionInput) { in.IsRecurring = true }, core.ErrInvalidInput},
		{"foreign account", func(in *TransactionInput) { in.AccountID = "other" }, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.CreateTransaction(ctx, "owner1", in); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// No partial writes: the account balance is untouched after the
	// rejected inputs.
	account, err := store.GetAccount(ctx, "owner1", "a1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != 0 {
		t.Errorf("balance = %d, want 0", account.Balance.Cents)
	}
}

func TestCreateTransaction_RecurringGetsFirstSchedule(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store)
	ctx := context.Background()
	seedAccount(t, store, "owner1", "a1", 0)

	date := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	tx, err := svc.CreateTransaction(ctx, "owner1", TransactionInput{
		AccountID:         "a1",
		Type:              core.Expense,
		Amount:            core.Money{Cents: 999},
		Description:       "subscription",
		Date:              date,
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	// Jan 31 monthly clips to the end of February.
	want := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if !tx.NextRecurringDate.Equal(want) {
		t.Errorf("NextRecurringDate = %v, want %v", tx.NextRecurringDate, want)
	}
}

func TestUpdateTransaction_TypeFlip(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store)
	ctx := context.Background()
	seedAccount(t, store, "owner1", "a1", 10000)

	tx, err := svc.CreateTransaction(ctx, "owner1", TransactionInput{
		AccountID:   "a1",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 2000},
		Description: "mislabeled",
		Date:        time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	// 100.00 - 20.00 = 80.00.

	// Reclassify as income: delta swings from -20.00 to +20.00.
	if _, err := svc.UpdateTransaction(ctx, "owner1", tx.ID, TransactionInput{
		AccountID:   "a1",
		Type:        core.Income,
		Amount:      core.Money{Cents: 2000},
		Description: "refund",
		Date:        tx.Date,
	}); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	account, err := store.GetAccount(ctx, "owner1", "a1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != 12000 {
		t.Errorf("balance = %d, want 12000", account.Balance.Cents)
	}
}

func TestOwnerIsolation(t *testing.T) {
	store := newTestStore(t)
	svc := NewLedgerService(store)
	ctx := context.Background()

	seedAccount(t, store, "owner1", "a1", 0)
	tx, err := svc.CreateTransaction(ctx, "owner1", TransactionInput{
		AccountID:   "a1",
		Type:        core.Income,
		Amount:      core.Money{Cents: 100},
		Description: "salary",
		Date:        time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	// Another owner sees neither the account nor the transaction.
	if _, err := svc.GetAccount(ctx, "owner2", "a1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAccount(cross-owner) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetTransaction(ctx, "owner2", tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction(cross-owner) error = %v, want ErrNotFound", err)
	}
	deleted, err := svc.DeleteTransactions(ctx, "owner2", []string{tx.ID})
	if err != nil {
		t.Fatalf("DeleteTransactions(cross-owner) error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}
