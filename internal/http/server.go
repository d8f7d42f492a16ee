// Package http exposes the REST API. Handlers run a shape-validation pass
// over the request before delegating to the services, which re-validate
// business rules independently.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/services"
)

type Server struct {
	http.Server

	authProvider auth.Provider
	categories   *services.CategoryService
	transactions *services.TransactionService
	budgets      *services.BudgetService
	rateLimiter  *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, provider auth.Provider, categories *services.CategoryService, transactions *services.TransactionService, budgets *services.BudgetService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		authProvider: provider,
		categories:   categories,
		transactions: transactions,
		budgets:      budgets,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/v1/categories", s.withMiddleware(s.handleCreateCategory))
	mux.HandleFunc("GET /api/v1/categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("GET /api/v1/categories/{id}", s.withMiddleware(s.handleGetCategory))
	mux.HandleFunc("PUT /api/v1/categories/{id}", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", s.withMiddleware(s.handleArchiveCategory))

	mux.HandleFunc("POST /api/v1/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/v1/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("GET /api/v1/transactions/summary", s.withMiddleware(s.handleTransactionSummary))
	mux.HandleFunc("GET /api/v1/transactions/analytics/categories", s.withMiddleware(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/v1/transactions/analytics/monthly", s.withMiddleware(s.handleMonthlyTrends))
	mux.HandleFunc("GET /api/v1/transactions/analytics/top-categories", s.withMiddleware(s.handleTopCategories))
	mux.HandleFunc("POST /api/v1/transactions/import", s.withMiddleware(s.handleBulkImport))
	mux.HandleFunc("POST /api/v1/transactions/import/ofx", s.withMiddleware(s.handleOFXImport))
	mux.HandleFunc("GET /api/v1/transactions/{id}", s.withMiddleware(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/v1/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/v1/budgets", s.withMiddleware(s.handleCreateBudget))
	mux.HandleFunc("GET /api/v1/budgets", s.withMiddleware(s.handleListBudgets))
	mux.HandleFunc("GET /api/v1/budgets/overview", s.withMiddleware(s.handleBudgetOverview))
	mux.HandleFunc("GET /api/v1/budgets/{id}", s.withMiddleware(s.handleGetBudget))
	mux.HandleFunc("PUT /api/v1/budgets/{id}", s.withMiddleware(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", s.withMiddleware(s.handleDeleteBudget))
	mux.HandleFunc("GET /api/v1/budgets/{id}/analytics", s.withMiddleware(s.handleBudgetAnalytics))
	mux.HandleFunc("POST /api/v1/budgets/{id}/duplicate", s.withMiddleware(s.handleDuplicateBudget))

	return s
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
