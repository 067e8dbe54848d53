package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
)

// ReceiptScanner extracts transaction fields from a receipt image. Nil
// when no AI key is configured; the endpoint then returns 503.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, image []byte, mimeType string) ai.ReceiptData
}

type Server struct {
	ledger   *services.LedgerService
	stats    *services.StatsService
	budget   *services.BudgetService
	receipts ReceiptScanner
	limiter  *ratelimit.Limiter

	httpServer *http.Server
}

func NewServer(addr string, ledger *services.LedgerService, stats *services.StatsService, budget *services.BudgetService, receipts ReceiptScanner, limiter *ratelimit.Limiter) *Server {
	s := &Server{
		ledger:   ledger,
		stats:    stats,
		budget:   budget,
		receipts: receipts,
		limiter:  limiter,
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("PUT /api/accounts/{id}/default", s.handleSetDefaultAccount)

	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("POST /api/transactions/bulk-delete", s.handleBulkDeleteTransactions)
	api.HandleFunc("GET /api/transactions/recent", s.handleRecentTransactions)
	api.HandleFunc("GET /api/stats", s.handleRangeStats)

	api.HandleFunc("GET /api/budget", s.handleGetBudget)
	api.HandleFunc("PUT /api/budget", s.handleSetBudget)

	api.HandleFunc("POST /api/receipts/scan", s.handleScanReceipt)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/api/", ownerAuth(api))

	var handler http.Handler = root
	if s.limiter != nil {
		handler = rateLimited(s.limiter)(handler)
	}
	handler = requestLogging(handler)
	return handler
}

func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
