// Package storage persists the ledger in SQLite. Every multi-row unit the
// ledger needs (transaction write + balance delta, batch delete + reversals,
// default-account switch, recurrence materialization) is a single database
// transaction here; callers never see a transaction without its balance
// effect. Balance changes are applied with SQL increments, not read-modify-
// write in application code.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced row does not exist or is not
// owned by the caller.
var ErrNotFound = errors.New("storage: not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Instants cross the storage boundary exactly once, as UTC unix seconds.

func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(t), Valid: true}
}

func fromNullUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return fromUnix(v.Int64)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// --- accounts ---

// CreateAccount inserts an account. The owner's first account always becomes
// the default; an explicit default demotes every other account in the same
// unit, so a concurrent reader never observes zero or two defaults.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE owner_id = ?`, a.OwnerID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}

	isDefault := a.IsDefault || existing == 0
	if isDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0 WHERE owner_id = ?`, a.OwnerID,
		); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, name, type, currency, balance_cents, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, string(a.Type), a.Currency, a.Balance.Cents, boolToInt(isDefault), toUnix(a.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", a.ID,
		"owner", a.OwnerID,
		"name", a.Name,
		"default", isDefault)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, ownerID, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, type, currency, balance_cents, is_default, created_at
		 FROM accounts WHERE owner_id = ? AND id = ?`, ownerID, id)
	return scanAccount(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, type, currency, balance_cents, is_default, created_at
		 FROM accounts WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// DefaultAccount returns the owner's default account, or nil if the owner
// has no accounts.
func (r *SQLiteRepository) DefaultAccount(ctx context.Context, ownerID string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, type, currency, balance_cents, is_default, created_at
		 FROM accounts WHERE owner_id = ? AND is_default = 1`, ownerID)
	a, err := scanAccount(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// SetDefaultAccount makes accountID the owner's single default in one unit.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, ownerID, accountID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_default = (id = ?) WHERE owner_id = ?`, accountID, ownerID,
	); err != nil {
		return fmt.Errorf("switch default account: %w", err)
	}

	var isDefault int
	if err := tx.QueryRowContext(ctx,
		`SELECT is_default FROM accounts WHERE owner_id = ? AND id = ?`, ownerID, accountID,
	).Scan(&isDefault); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("verify default account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set default: %w", err)
	}
	return nil
}

// --- transactions ---

// CreateTransaction inserts a transaction and applies its signed amount to
// the owning account balance in the same unit.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}

	delta := t.Amount.Signed(t.Type)
	if err := applyBalanceDelta(ctx, tx, t.OwnerID, t.AccountID, delta.Cents); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"account", t.AccountID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents,
		"recurring", t.IsRecurring)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE owner_id = ? AND id = ?`, ownerID, id)
	return scanTransaction(row)
}

// UpdateTransaction rewrites a transaction row and corrects balances in one
// unit. When the account reference changed, the original account is
// decremented by the old contribution before the new account is incremented.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction, oldAccountID string, oldDelta, newDelta core.Money) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		 SET account_id = ?, type = ?, amount_cents = ?, description = ?, category = ?, date = ?,
		     is_recurring = ?, recurring_interval = ?, next_recurring_date = ?
		 WHERE owner_id = ? AND id = ?`,
		t.AccountID, string(t.Type), t.Amount.Cents, t.Description, t.Category, toUnix(t.Date),
		boolToInt(t.IsRecurring), nullString(string(t.RecurringInterval)), nullUnix(t.NextRecurringDate),
		t.OwnerID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update transaction rows: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	if oldAccountID != t.AccountID {
		if err := applyBalanceDelta(ctx, tx, t.OwnerID, oldAccountID, -oldDelta.Cents); err != nil {
			return err
		}
		if err := applyBalanceDelta(ctx, tx, t.OwnerID, t.AccountID, newDelta.Cents); err != nil {
			return err
		}
	} else if net := newDelta.Cents - oldDelta.Cents; net != 0 {
		if err := applyBalanceDelta(ctx, tx, t.OwnerID, t.AccountID, net); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update transaction: %w", err)
	}
	return nil
}

// BulkDeleteTransactions removes the given transactions and reverses each
// one's balance contribution, all in one unit. Returns the number deleted;
// unknown ids are skipped.
func (r *SQLiteRepository) BulkDeleteTransactions(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk delete: %w", err)
	}
	defer tx.Rollback()

	reversals := make(map[string]int64) // account id -> balance correction
	deleted := 0

	for _, id := range ids {
		var accountID, txType string
		var amountCents int64
		err := tx.QueryRowContext(ctx,
			`SELECT account_id, type, amount_cents FROM transactions WHERE owner_id = ? AND id = ?`,
			ownerID, id,
		).Scan(&accountID, &txType, &amountCents)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("load transaction %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id,
		); err != nil {
			return 0, fmt.Errorf("delete transaction %s: %w", id, err)
		}

		signed := core.Money{Cents: amountCents}.Signed(core.TransactionType(txType))
		reversals[accountID] -= signed.Cents
		deleted++
	}

	for accountID, correction := range reversals {
		if err := applyBalanceDelta(ctx, tx, ownerID, accountID, correction); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk delete: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted",
		"owner", ownerID,
		"requested", len(ids),
		"deleted", deleted)
	return deleted, nil
}

// ListTransactionsInRange returns the owner's transactions with date in the
// closed interval [start, end], optionally scoped to one account.
func (r *SQLiteRepository) ListTransactionsInRange(ctx context.Context, ownerID, accountID string, start, end time.Time) ([]core.Transaction, error) {
	query := selectTransaction + ` WHERE owner_id = ? AND date >= ? AND date <= ?`
	args := []any{ownerID, toUnix(start), toUnix(end)}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY date DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransaction+` WHERE owner_id = ? ORDER BY date DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// --- recurring ---

// ListDueRecurring is the collection-spanning due query: every recurring
// template across all owners that has never been processed or whose next
// occurrence date has been reached.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransaction+` WHERE is_recurring = 1 AND (last_processed IS NULL OR next_recurring_date <= ?)`,
		toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// FindRecurringTemplate resolves a template by owner and id. With an account
// id the lookup is direct; without one it probes each of the owner's
// accounts, preserving the search path for trigger payloads that do not
// carry the account reference.
func (r *SQLiteRepository) FindRecurringTemplate(ctx context.Context, ownerID, templateID, accountID string) (*core.Transaction, error) {
	if accountID != "" {
		row := r.db.QueryRowContext(ctx,
			selectTransaction+` WHERE owner_id = ? AND account_id = ? AND id = ? AND is_recurring = 1`,
			ownerID, accountID, templateID)
		return scanTransaction(row)
	}

	accounts, err := r.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		row := r.db.QueryRowContext(ctx,
			selectTransaction+` WHERE owner_id = ? AND account_id = ? AND id = ? AND is_recurring = 1`,
			ownerID, a.ID, templateID)
		t, err := scanTransaction(row)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, ErrNotFound
}

// MaterializeRecurring performs the whole recurrence side effect in one
// unit: claim the per-period dedupe row, insert the derived transaction,
// apply its signed amount to the account balance, and advance the template's
// schedule. The dedupe insert is the compare-and-set: if another delivery of
// the same logical occurrence got there first, nothing is written and false
// is returned.
func (r *SQLiteRepository) MaterializeRecurring(ctx context.Context, tpl core.Transaction, derived core.Transaction, now, next time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin materialize: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO recurring_runs (template_id, period, owner_id, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT (template_id, period) DO NOTHING`,
		tpl.ID, core.PeriodKey(now), tpl.OwnerID, toUnix(now))
	if err != nil {
		return false, fmt.Errorf("claim recurrence period: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("claim recurrence period rows: %w", err)
	} else if n == 0 {
		// Another delivery already materialized this period.
		return false, nil
	}

	if err := insertTransaction(ctx, tx, derived); err != nil {
		return false, err
	}

	delta := derived.Amount.Signed(derived.Type)
	if err := applyBalanceDelta(ctx, tx, derived.OwnerID, derived.AccountID, delta.Cents); err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET last_processed = ?, next_recurring_date = ? WHERE id = ?`,
		toUnix(now), toUnix(next), tpl.ID,
	); err != nil {
		return false, fmt.Errorf("advance template schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit materialize: %w", err)
	}

	slog.InfoContext(ctx, "Recurring transaction materialized",
		"template", tpl.ID,
		"derived", derived.ID,
		"account", derived.AccountID,
		"amount_cents", derived.Amount.Cents,
		"next", next.Format("2006-01-02"))
	return true, nil
}

// --- budgets ---

// GetBudget returns the owner's current budget, or nil if none configured.
func (r *SQLiteRepository) GetBudget(ctx context.Context, ownerID string) (*core.Budget, error) {
	var b core.Budget
	var updatedAt int64
	var lastAlert sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id, amount_cents, updated_at, last_alert_sent FROM budgets WHERE owner_id = ?`,
		ownerID,
	).Scan(&b.OwnerID, &b.Amount.Cents, &updatedAt, &lastAlert)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	b.UpdatedAt = fromUnix(updatedAt)
	b.LastAlertSent = fromNullUnix(lastAlert)
	return &b, nil
}

// UpsertBudget overwrites the owner's single current budget.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, ownerID string, amount core.Money, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (owner_id, amount_cents, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (owner_id) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = excluded.updated_at`,
		ownerID, amount.Cents, toUnix(now))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// ClaimBudgetAlert stamps last_alert_sent for the current month and reports
// whether this caller won the claim. The conditional update makes the
// at-most-one-alert-per-month rule hold even when evaluators run
// concurrently.
func (r *SQLiteRepository) ClaimBudgetAlert(ctx context.Context, ownerID string, now time.Time) (bool, error) {
	monthStart, _ := core.MonthRange(now)
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?
		 WHERE owner_id = ? AND (last_alert_sent IS NULL OR last_alert_sent < ?)`,
		toUnix(now), ownerID, toUnix(monthStart))
	if err != nil {
		return false, fmt.Errorf("claim budget alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim budget alert rows: %w", err)
	}
	return n > 0, nil
}

// ListBudgetOwners returns every owner with a configured budget, for the
// periodic alert sweep.
func (r *SQLiteRepository) ListBudgetOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT owner_id FROM budgets`)
	if err != nil {
		return nil, fmt.Errorf("list budget owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// ListOwners returns every owner with at least one account, for the monthly
// report sweep.
func (r *SQLiteRepository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// --- helpers ---

const selectTransaction = `SELECT id, owner_id, account_id, type, amount_cents, description, category, date,
	is_recurring, recurring_interval, next_recurring_date, last_processed, created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*core.Account, error) {
	var a core.Account
	var accountType string
	var isDefault int
	var createdAt int64
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &accountType, &a.Currency, &a.Balance.Cents, &isDefault, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(accountType)
	a.IsDefault = isDefault != 0
	a.CreatedAt = fromUnix(createdAt)
	return &a, nil
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var t core.Transaction
	var txType string
	var date, createdAt int64
	var isRecurring int
	var interval sql.NullString
	var nextDate, lastProcessed sql.NullInt64
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &txType, &t.Amount.Cents, &t.Description, &t.Category,
		&date, &isRecurring, &interval, &nextDate, &lastProcessed, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(txType)
	t.Date = fromUnix(date)
	t.IsRecurring = isRecurring != 0
	if interval.Valid {
		t.RecurringInterval = core.RecurringInterval(interval.String)
	}
	t.NextRecurringDate = fromNullUnix(nextDate)
	t.LastProcessed = fromNullUnix(lastProcessed)
	t.CreatedAt = fromUnix(createdAt)
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, account_id, type, amount_cents, description, category, date,
		 is_recurring, recurring_interval, next_recurring_date, last_processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, string(t.Type), t.Amount.Cents, t.Description, t.Category, toUnix(t.Date),
		boolToInt(t.IsRecurring), nullString(string(t.RecurringInterval)), nullUnix(t.NextRecurringDate),
		nullUnix(t.LastProcessed), toUnix(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// applyBalanceDelta is the single place a balance changes: an SQL increment
// on the account row, inside the caller's transaction.
func applyBalanceDelta(ctx context.Context, tx *sql.Tx, ownerID, accountID string, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE owner_id = ? AND id = ?`,
		deltaCents, ownerID, accountID)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("apply balance delta rows: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
