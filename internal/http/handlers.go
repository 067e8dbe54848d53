package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Amounts arrive as decimal strings ("12.34" or "12,34") and leave as
// cents. The parser owns rounding; clients never send cents directly.

type accountPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	Balance   int64  `json:"balance_cents"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

type transactionPayload struct {
	ID                string `json:"id"`
	AccountID         string `json:"account_id"`
	Type              string `json:"type"`
	Amount            int64  `json:"amount_cents"`
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
	Date              string `json:"date"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurringInterval string `json:"recurring_interval,omitempty"`
	NextRecurringDate string `json:"next_recurring_date,omitempty"`
}

func accountToPayload(a *core.Account) accountPayload {
	return accountPayload{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Currency:  a.Currency,
		Balance:   a.Balance.Cents,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func transactionToPayload(t *core.Transaction) transactionPayload {
	p := transactionPayload{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Type:        string(t.Type),
		Amount:      t.Amount.Cents,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date.UTC().Format(time.RFC3339),
		IsRecurring: t.IsRecurring,
	}
	if t.IsRecurring {
		p.RecurringInterval = string(t.RecurringInterval)
		p.NextRecurringDate = t.NextRecurringDate.UTC().Format(time.RFC3339)
	}
	return p
}

type createAccountRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	IsDefault bool   `json:"is_default"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	balance := core.Money{}
	if req.Balance != "" {
		cents, err := core.ParseDecimalToCents(req.Balance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid balance")
			return
		}
		balance.Cents = cents
	}

	account, err := s.ledger.CreateAccount(r.Context(), ownerFromContext(r.Context()), services.AccountInput{
		Name:      req.Name,
		Type:      core.AccountType(req.Type),
		Currency:  req.Currency,
		Balance:   balance,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, accountToPayload(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	payload := make([]accountPayload, 0, len(accounts))
	for i := range accounts {
		payload = append(payload, accountToPayload(&accounts[i]))
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.SetDefaultAccount(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, accountToPayload(account))
}

type transactionRequest struct {
	AccountID         string `json:"account_id"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	Date              string `json:"date"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurringInterval string `json:"recurring_interval"`
}

func (req *transactionRequest) toInput() (services.TransactionInput, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return services.TransactionInput{}, fmt.Errorf("invalid amount %q", req.Amount)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return services.TransactionInput{}, fmt.Errorf("invalid date %q", req.Date)
	}
	return services.TransactionInput{
		AccountID:         req.AccountID,
		Type:              core.TransactionType(req.Type),
		Amount:            core.Money{Cents: cents},
		Description:       req.Description,
		Category:          req.Category,
		Date:              date,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.RecurringInterval(req.RecurringInterval),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.ledger.CreateTransaction(r.Context(), ownerFromContext(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, transactionToPayload(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.ledger.UpdateTransaction(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, transactionToPayload(t))
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleBulkDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no transaction ids given")
		return
	}

	deleted, err := s.ledger.DeleteTransactions(r.Context(), ownerFromContext(r.Context()), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.ledger.RecentTransactions(r.Context(), ownerFromContext(r.Context()), 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	payload := make([]transactionPayload, 0, len(transactions))
	for i := range transactions {
		payload = append(payload, transactionToPayload(&transactions[i]))
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleRangeStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}

	stats, err := s.stats.RangeStats(r.Context(), ownerFromContext(r.Context()), q.Get("account_id"), start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	byCategory := make(map[string]int64, len(stats.ExpenseByCategory))
	for name, amount := range stats.ExpenseByCategory {
		byCategory[name] = amount.Cents
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"total_income_cents":   stats.TotalIncome.Cents,
		"total_expenses_cents": stats.TotalExpenses.Cents,
		"net_cents":            stats.Net().Cents,
		"expense_by_category":  byCategory,
		"transaction_count":    stats.TransactionCount,
	})
}

type budgetRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	budget, err := s.budget.GetBudget(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if budget == nil {
		writeSuccess(w, http.StatusOK, nil)
		return
	}

	usage, err := s.budget.Usage(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	payload := map[string]any{
		"amount_cents": budget.Amount.Cents,
		"updated_at":   budget.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if usage != nil {
		payload["spent_cents"] = usage.Spent.Cents
		payload["percent_used"] = usage.Percent
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	budget, err := s.budget.SetBudget(r.Context(), ownerFromContext(r.Context()), core.Money{Cents: cents})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"amount_cents": budget.Amount.Cents,
		"updated_at":   budget.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// handleScanReceipt accepts a raw image body and returns extracted fields
// for pre-filling a transaction form. The scan is best-effort: failures
// return a fallback payload, never an error status.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.receipts == nil {
		writeError(w, http.StatusServiceUnavailable, "receipt scanning not configured")
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, 6<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read image body")
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	data := s.receipts.ScanReceipt(r.Context(), image, mimeType)
	writeSuccess(w, http.StatusOK, map[string]any{
		"amount_cents":  data.Amount.Cents,
		"date":          data.Date.UTC().Format("2006-01-02"),
		"description":   data.Description,
		"merchant_name": data.MerchantName,
		"category":      data.Category,
	})
}
