package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

// Recurring expansion is synchronous and bounded; a pattern producing more
// occurrences than this is cut off at the cap.
const maxRecurringOccurrences = 366

// TransactionService manages money movements and keeps covering budgets
// reconciled after every write.
type TransactionService struct {
	store      TransactionStore
	categories CategoryStore
	reconciler Reconciler
}

func NewTransactionService(store TransactionStore, categories CategoryStore, reconciler Reconciler) *TransactionService {
	return &TransactionService{store: store, categories: categories, reconciler: reconciler}
}

// Create validates and persists a transaction, expands its recurring
// pattern if present, then synchronously reconciles every active budget
// whose period covers an affected date.
func (s *TransactionService) Create(ctx context.Context, userID string, t core.Transaction) (*core.Transaction, error) {
	t.ID = 0
	t.UserID = userID
	applyDefaults(&t)

	if err := s.validate(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.InsertTransaction(ctx, &t); err != nil {
		return nil, err
	}

	dates := []time.Time{t.Date}
	if t.Recurring != nil {
		expanded, err := s.expandRecurring(ctx, t)
		if err != nil {
			return nil, err
		}
		dates = append(dates, expanded...)
	}

	if err := s.reconciler.ReconcileCoveringBudgets(ctx, userID, dates...); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the transaction scoped to its owner.
func (s *TransactionService) Get(ctx context.Context, userID string, id int64) (*core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// List returns one page of the filtered set plus an aggregate summary
// computed over the whole filtered set, not just the page.
func (s *TransactionService) List(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, core.TransactionSummary, core.PageInfo, error) {
	f.Pagination = f.Pagination.Normalize()
	txs, total, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, core.TransactionSummary{}, core.PageInfo{}, err
	}
	summary, err := s.store.SummarizeTransactions(ctx, userID, f)
	if err != nil {
		return nil, core.TransactionSummary{}, core.PageInfo{}, err
	}
	return txs, summary, core.NewPageInfo(f.Pagination, total), nil
}

// TransactionPatch carries the updatable fields; nil means unchanged.
// ClearCategory removes the category reference (transfers only).
type TransactionPatch struct {
	CategoryID    *int64
	ClearCategory bool
	Type          *core.TransactionType
	Amount        *core.Money
	Currency      *core.Currency
	Description   *string
	Date          *time.Time
	Tags          []string
	Location      *string
	Status        *core.TransactionStatus
	Recurring     *core.RecurringPattern
}

// Update re-validates the merged record, persists it, then reconciles the
// union of budgets covering the old and new dates so neither side keeps a
// stale contribution.
func (s *TransactionService) Update(ctx context.Context, userID string, id int64, patch TransactionPatch) (*core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	oldDate := t.Date

	if patch.ClearCategory {
		t.CategoryID = nil
	} else if patch.CategoryID != nil {
		t.CategoryID = patch.CategoryID
	}
	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		t.Currency = *patch.Currency
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Tags != nil {
		t.Tags = patch.Tags
	}
	if patch.Location != nil {
		t.Location = *patch.Location
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Recurring != nil {
		t.Recurring = patch.Recurring
	}

	if err := s.validate(ctx, *t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	if err := s.reconciler.ReconcileCoveringBudgets(ctx, userID, oldDate, t.Date); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes the transaction, then reconciles every budget that had
// counted it.
func (s *TransactionService) Delete(ctx context.Context, userID string, id int64) error {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	return s.reconciler.ReconcileCoveringBudgets(ctx, userID, t.Date)
}

// ImportError reports one rejected row of a bulk import.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk import. Valid rows are imported even when
// others fail.
type ImportResult struct {
	Imported int           `json:"imported"`
	Failed   []ImportError `json:"failed"`
}

// BulkImport creates many transactions in one call, typically from a bank
// statement. Each row passes the full validation gate independently; budgets
// are reconciled once, over the union of imported dates.
func (s *TransactionService) BulkImport(ctx context.Context, userID string, drafts []core.Transaction) (ImportResult, error) {
	var result ImportResult
	var dates []time.Time

	for i, draft := range drafts {
		draft.ID = 0
		draft.UserID = userID
		draft.Recurring = nil
		applyDefaults(&draft)

		if err := s.validate(ctx, draft); err != nil {
			result.Failed = append(result.Failed, ImportError{Index: i, Message: err.Error()})
			continue
		}
		if err := s.store.InsertTransaction(ctx, &draft); err != nil {
			if core.KindOf(err) == core.KindInternal {
				return result, err
			}
			result.Failed = append(result.Failed, ImportError{Index: i, Message: err.Error()})
			continue
		}
		result.Imported++
		dates = append(dates, draft.Date)
	}

	if len(dates) > 0 {
		if err := s.reconciler.ReconcileCoveringBudgets(ctx, userID, dates...); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Summarize aggregates the filtered set without fetching rows.
func (s *TransactionService) Summarize(ctx context.Context, userID string, f core.TransactionFilter) (core.TransactionSummary, error) {
	return s.store.SummarizeTransactions(ctx, userID, f)
}

// CategoryBreakdown aggregates the filtered set per category.
func (s *TransactionService) CategoryBreakdown(ctx context.Context, userID string, f core.TransactionFilter) ([]core.CategoryTotal, error) {
	return s.store.CategoryTotals(ctx, userID, f)
}

// MonthlyTrends aggregates the filtered set per calendar month and type.
func (s *TransactionService) MonthlyTrends(ctx context.Context, userID string, f core.TransactionFilter) ([]core.MonthlyTrend, error) {
	return s.store.MonthlyTrends(ctx, userID, f)
}

// TopSpendingCategories returns the user's highest expense categories over
// the filtered window.
func (s *TransactionService) TopSpendingCategories(ctx context.Context, userID string, f core.TransactionFilter, limit int) ([]core.CategoryTotal, error) {
	expense := core.TransactionExpense
	f.Type = &expense
	totals, err := s.store.CategoryTotals(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// validate runs the full gate: field rules first, then the category checks
// that need a store lookup.
func (s *TransactionService) validate(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CategoryID == nil {
		return nil
	}

	category, err := s.categories.GetCategoryAnyOwner(ctx, *t.CategoryID)
	if err != nil {
		// A dangling category reference is a bad request, not a missing
		// resource: the transaction is what the caller is addressing.
		if core.KindOf(err) == core.KindNotFound {
			return core.ValidationFailed("Category does not exist")
		}
		return err
	}
	if category.UserID != t.UserID {
		return core.ValidationFailed("Category does not belong to this user")
	}
	if category.Archived {
		return core.ValidationFailed("Cannot use an archived category")
	}
	if t.Type != core.TransactionTransfer && string(category.Type) != string(t.Type) {
		return core.ValidationFailedf("Category type '%s' does not match transaction type '%s'", category.Type, t.Type)
	}
	return nil
}

// expandRecurring creates the future occurrences of t up to the pattern's
// end date. Occurrences are plain transactions in pending status; they flip
// to completed (and start counting toward budgets) when the user confirms
// them.
func (s *TransactionService) expandRecurring(ctx context.Context, t core.Transaction) ([]time.Time, error) {
	pattern := *t.Recurring
	var dates []time.Time

	date := pattern.Next(t.Date)
	for n := 0; !date.After(pattern.EndDate); n++ {
		if n >= maxRecurringOccurrences {
			slog.WarnContext(ctx, "Recurring expansion hit occurrence cap",
				"transaction_id", t.ID, "cap", maxRecurringOccurrences)
			break
		}
		occurrence := t
		occurrence.ID = 0
		occurrence.Recurring = nil
		occurrence.Date = date
		occurrence.Status = core.TransactionPending
		if err := s.store.InsertTransaction(ctx, &occurrence); err != nil {
			return nil, fmt.Errorf("expand recurring occurrence: %w", err)
		}
		dates = append(dates, date)
		date = pattern.Next(date)
	}
	return dates, nil
}

func applyDefaults(t *core.Transaction) {
	if t.Status == "" {
		t.Status = core.TransactionCompleted
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency
	}
}
