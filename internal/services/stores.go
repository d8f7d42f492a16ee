// Package services holds the business layer: category and transaction
// management, the budget aggregate with its reconciliation engine, and
// alert publication. Services accept store interfaces so tests can swap
// in-memory implementations for the SQLite repository.
package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

type CategoryStore interface {
	InsertCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, userID string, id int64) (*core.Category, error)
	GetCategoryAnyOwner(ctx context.Context, id int64) (*core.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*core.Category, error)
	ListCategories(ctx context.Context, userID string, f core.CategoryFilter) ([]core.Category, int64, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, userID string, id int64) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID string, id int64) error
	ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, int64, error)
	SummarizeTransactions(ctx context.Context, userID string, f core.TransactionFilter) (core.TransactionSummary, error)
	CompletedExpenseTotals(ctx context.Context, userID string, start, end time.Time) (map[int64]core.Money, error)
	CategoryTotals(ctx context.Context, userID string, f core.TransactionFilter) ([]core.CategoryTotal, error)
	MonthlyTrends(ctx context.Context, userID string, f core.TransactionFilter) ([]core.MonthlyTrend, error)
}

type BudgetStore interface {
	InsertBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, userID string, id int64) (*core.Budget, error)
	ListBudgets(ctx context.Context, userID string, f core.BudgetFilter) ([]core.Budget, int64, error)
	ActiveBudgetsCovering(ctx context.Context, userID string, date time.Time) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b *core.Budget) error
	SetBudgetStatus(ctx context.Context, userID string, id int64, status core.BudgetStatus) error
	UpdateSpentAmounts(ctx context.Context, budgetID int64, spent map[int64]core.Money) error
}

// AlertPublisher dispatches generated alerts out of process. Publication is
// best-effort: a failure must never fail the operation that produced the
// alerts.
type AlertPublisher interface {
	PublishBudgetAlerts(ctx context.Context, userID string, alerts []core.Alert) error
}

// Reconciler recomputes spend figures for every active budget covering the
// given dates. The transaction service invokes it synchronously after each
// write.
type Reconciler interface {
	ReconcileCoveringBudgets(ctx context.Context, userID string, dates ...time.Time) error
}
