package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AccountCurrent AccountType = "CURRENT"
	AccountSavings AccountType = "SAVINGS"

	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

type (
	AccountType       string
	TransactionType   string
	RecurringInterval string

	Money struct {
		Cents int64
	}

	Account struct {
		ID        string
		OwnerID   string
		Name      string
		Type      AccountType
		Currency  string
		Balance   Money // derived: sum of signed transaction amounts
		IsDefault bool
		CreatedAt time.Time
	}

	Transaction struct {
		ID          string
		OwnerID     string
		AccountID   string
		Type        TransactionType
		Amount      Money // unsigned; sign derives from Type
		Description string
		Category    string
		Date        time.Time
		IsRecurring bool

		// Set iff IsRecurring.
		RecurringInterval RecurringInterval
		NextRecurringDate time.Time

		LastProcessed time.Time // zero until first materialization
		CreatedAt     time.Time
	}

	Budget struct {
		OwnerID       string
		Amount        Money
		UpdatedAt     time.Time
		LastAlertSent time.Time // zero if never alerted
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidType         = errors.New("invalid type")
	ErrInvalidInterval     = errors.New("invalid recurring interval")
	ErrZeroDate            = errors.New("date cannot be zero")
	ErrMissingAccount      = errors.New("missing account id")
	ErrIntervalWithoutFlag = errors.New("recurring interval set on non-recurring transaction")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (a AccountType) Valid() bool {
	return a == AccountCurrent || a == AccountSavings
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the balance contribution of an amount of the given type:
// positive for INCOME, negative for EXPENSE.
func (m Money) Signed(t TransactionType) Money {
	if t == Expense {
		return Money{Cents: -m.Cents}
	}
	return Money{Cents: m.Cents}
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return ErrMissingAccount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.IsRecurring {
		if !t.RecurringInterval.Valid() {
			return ErrInvalidInterval
		}
	} else if t.RecurringInterval != "" {
		return ErrIntervalWithoutFlag
	}
	return nil
}
