package core

import (
	"errors"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		AccountID:   "acc-1",
		Type:        Expense,
		Amount:      Money{Cents: 3000},
		Description: "Groceries",
		Category:    "groceries",
		Date:        time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{name: "valid", mutate: func(*Transaction) {}},
		{
			name:    "missing account",
			mutate:  func(tx *Transaction) { tx.AccountID = "" },
			wantErr: ErrMissingAccount,
		},
		{
			name:    "invalid type",
			mutate:  func(tx *Transaction) { tx.Type = "TRANSFER" },
			wantErr: ErrInvalidType,
		},
		{
			name:    "zero amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{Cents: -100} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "blank description",
			mutate:  func(tx *Transaction) { tx.Description = "   " },
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "zero date",
			mutate:  func(tx *Transaction) { tx.Date = time.Time{} },
			wantErr: ErrZeroDate,
		},
		{
			name: "recurring without interval",
			mutate: func(tx *Transaction) {
				tx.IsRecurring = true
			},
			wantErr: ErrInvalidInterval,
		},
		{
			name: "interval without recurring flag",
			mutate: func(tx *Transaction) {
				tx.RecurringInterval = Monthly
			},
			wantErr: ErrIntervalWithoutFlag,
		},
		{
			name: "valid recurring",
			mutate: func(tx *Transaction) {
				tx.IsRecurring = true
				tx.RecurringInterval = Monthly
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccount_Validate(t *testing.T) {
	a := Account{Name: "Main", Type: AccountCurrent}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}
	a.Name = ""
	if !errors.Is(a.Validate(), ErrEmptyName) {
		t.Error("empty name should be rejected")
	}
	a = Account{Name: "Main", Type: "CHECKING"}
	if !errors.Is(a.Validate(), ErrInvalidType) {
		t.Error("unknown account type should be rejected")
	}
}
