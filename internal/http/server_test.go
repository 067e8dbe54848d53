package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo)
	stats := services.NewStatsService(repo)
	budget := services.NewBudgetService(repo, stats, nil, 80)

	s := NewServer(":0", ledger, stats, budget, nil, nil)
	return s.routes()
}

func doJSON(t *testing.T, handler http.Handler, method, path, owner, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not the JSON envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, env
}

func TestMissingOwnerHeaderIs401(t *testing.T) {
	handler := newTestServer(t)

	rec, env := doJSON(t, handler, http.MethodGet, "/api/accounts", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if env.Success || env.Error == "" {
		t.Errorf("envelope = %+v, want success=false with error", env)
	}
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAccountAndTransactionFlow(t *testing.T) {
	handler := newTestServer(t)

	rec, env := doJSON(t, handler, http.MethodPost, "/api/accounts", "owner1",
		`{"name": "Checking", "type": "CURRENT", "balance": "100.00"}`)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("create account = (%d, %+v)", rec.Code, env)
	}
	account := env.Data.(map[string]any)
	accountID := account["id"].(string)
	if account["balance_cents"].(float64) != 10000 {
		t.Errorf("balance_cents = %v, want 10000", account["balance_cents"])
	}
	if account["is_default"] != true {
		t.Error("first account should be default")
	}

	date := time.Now().UTC().Format("2006-01-02")
	rec, env = doJSON(t, handler, http.MethodPost, "/api/transactions", "owner1",
		`{"account_id": "`+accountID+`", "type": "EXPENSE", "amount": "25,00", "description": "groceries", "category": "food", "date": "`+date+`"}`)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("create transaction = (%d, %+v)", rec.Code, env)
	}

	// Balance reflects the expense.
	rec, env = doJSON(t, handler, http.MethodGet, "/api/accounts", "owner1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts status = %d", rec.Code)
	}
	accounts := env.Data.([]any)
	if got := accounts[0].(map[string]any)["balance_cents"].(float64); got != 7500 {
		t.Errorf("balance after expense = %v, want 7500", got)
	}
}

func TestCreateTransaction_BadPayloads(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{{", http.StatusBadRequest},
		{"negative amount", `{"account_id": "a", "type": "EXPENSE", "amount": "-5", "description": "x", "date": "2025-02-01"}`, http.StatusBadRequest},
		{"zero amount", `{"account_id": "a", "type": "EXPENSE", "amount": "0", "description": "x", "date": "2025-02-01"}`, http.StatusBadRequest},
		{"bad date", `{"account_id": "a", "type": "EXPENSE", "amount": "5", "description": "x", "date": "yesterday"}`, http.StatusBadRequest},
		{"unknown account", `{"account_id": "nope", "type": "EXPENSE", "amount": "5", "description": "x", "date": "2025-02-01"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doJSON(t, handler, http.MethodPost, "/api/transactions", "owner1", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if env.Success {
				t.Error("failed request must have success=false")
			}
		})
	}
}

func TestBudgetEndpoints(t *testing.T) {
	handler := newTestServer(t)

	// No budget yet.
	rec, env := doJSON(t, handler, http.MethodGet, "/api/budget", "owner1", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("get empty budget = (%d, %+v)", rec.Code, env)
	}
	if env.Data != nil {
		t.Errorf("data = %v, want null", env.Data)
	}

	rec, env = doJSON(t, handler, http.MethodPut, "/api/budget", "owner1", `{"amount": "500"}`)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("set budget = (%d, %+v)", rec.Code, env)
	}
	if got := env.Data.(map[string]any)["amount_cents"].(float64); got != 50000 {
		t.Errorf("amount_cents = %v, want 50000", got)
	}
}

func TestReceiptScanUnconfiguredIs503(t *testing.T) {
	handler := newTestServer(t)

	rec, env := doJSON(t, handler, http.MethodPost, "/api/receipts/scan", "owner1", "fakeimagebytes")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if env.Success {
		t.Error("unconfigured scan must have success=false")
	}
}

func TestRateLimitedRequestsGet429(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	limiter := ratelimit.NewLimiter(ratelimit.Config{Limit: 1, Window: time.Minute})
	t.Cleanup(limiter.Stop)

	ledger := services.NewLedgerService(repo)
	stats := services.NewStatsService(repo)
	budget := services.NewBudgetService(repo, stats, nil, 80)
	handler := NewServer(":0", ledger, stats, budget, nil, limiter).routes()

	rec, _ := doJSON(t, handler, http.MethodGet, "/api/accounts", "owner1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	rec, env := doJSON(t, handler, http.MethodGet, "/api/accounts", "owner1", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if env.Success {
		t.Error("limited response must have success=false")
	}
}
