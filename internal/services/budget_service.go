package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

// BudgetService owns the budget aggregate and the reconciliation engine
// that keeps derived spend figures consistent with the transaction store.
// Every read path reconciles before returning, so callers never observe
// stale figures regardless of which write path ran last.
type BudgetService struct {
	budgets      BudgetStore
	transactions TransactionStore
	categories   CategoryStore
	alerts       AlertPublisher
}

// NewBudgetService wires the aggregate. alerts may be nil; publication is
// then skipped.
func NewBudgetService(budgets BudgetStore, transactions TransactionStore, categories CategoryStore, alerts AlertPublisher) *BudgetService {
	return &BudgetService{
		budgets:      budgets,
		transactions: transactions,
		categories:   categories,
		alerts:       alerts,
	}
}

// Create validates and persists a new active budget. TotalBudget is always
// recomputed from the allocations, never taken from the caller.
func (s *BudgetService) Create(ctx context.Context, userID string, b core.Budget) (*core.Budget, error) {
	b.ID = 0
	b.UserID = userID
	applyBudgetDefaults(&b)
	b.Status = core.BudgetActive
	for i := range b.Categories {
		b.Categories[i].Spent = core.Money{}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategoryReferences(ctx, userID, b.Categories); err != nil {
		return nil, err
	}

	b.TotalBudget = b.TotalAllocated()
	if err := s.budgets.InsertBudget(ctx, &b); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Get returns the budget with freshly reconciled spend figures.
func (s *BudgetService) Get(ctx context.Context, userID string, id int64) (*core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns one page of the user's budgets, each reconciled.
func (s *BudgetService) List(ctx context.Context, userID string, f core.BudgetFilter) ([]core.Budget, core.PageInfo, error) {
	f.Pagination = f.Pagination.Normalize()
	budgets, total, err := s.budgets.ListBudgets(ctx, userID, f)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	for i := range budgets {
		if err := s.reconcile(ctx, &budgets[i]); err != nil {
			return nil, core.PageInfo{}, err
		}
	}
	return budgets, core.NewPageInfo(f.Pagination, total), nil
}

// BudgetPatch carries the updatable budget fields; nil means unchanged.
type BudgetPatch struct {
	Name          *string
	Type          *core.BudgetType
	StartDate     *time.Time
	EndDate       *time.Time
	Categories    []core.Allocation
	Currency      *core.Currency
	Status        *core.BudgetStatus
	Notifications *core.Notifications
	Tags          []string
	Notes         *string
}

// Update applies the patch, re-validates the merged budget, re-derives
// TotalBudget, persists and reconciles.
func (s *BudgetService) Update(ctx context.Context, userID string, id int64, patch BudgetPatch) (*core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.Type != nil {
		b.Type = *patch.Type
	}
	if patch.StartDate != nil {
		b.Period.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		b.Period.EndDate = *patch.EndDate
	}
	if patch.Categories != nil {
		b.Categories = patch.Categories
		for i := range b.Categories {
			b.Categories[i].Spent = core.Money{}
		}
	}
	if patch.Currency != nil {
		b.Currency = *patch.Currency
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Notifications != nil {
		b.Notifications = *patch.Notifications
	}
	if patch.Tags != nil {
		b.Tags = patch.Tags
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if patch.Categories != nil {
		if err := s.checkCategoryReferences(ctx, userID, b.Categories); err != nil {
			return nil, err
		}
	}

	b.TotalBudget = b.TotalAllocated()
	if err := s.budgets.UpdateBudget(ctx, b); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete soft-deletes the budget by cancelling it. The budget stays
// readable by id but drops out of active listings.
func (s *BudgetService) Delete(ctx context.Context, userID string, id int64) error {
	return s.budgets.SetBudgetStatus(ctx, userID, id, core.BudgetCancelled)
}

// Duplicate copies an existing budget into a fresh active one. When period
// is nil, the new period follows immediately after the source's, with the
// same length.
func (s *BudgetService) Duplicate(ctx context.Context, userID string, id int64, name string, period *core.Period) (*core.Budget, error) {
	src, err := s.budgets.GetBudget(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	dup := *src
	dup.Name = name
	if dup.Name == "" {
		dup.Name = src.Name + " (copy)"
	}
	if period != nil {
		dup.Period = *period
	} else {
		length := src.Period.EndDate.Sub(src.Period.StartDate)
		dup.Period = core.Period{
			StartDate: src.Period.EndDate,
			EndDate:   src.Period.EndDate.Add(length),
		}
	}
	dup.Categories = make([]core.Allocation, len(src.Categories))
	for i, alloc := range src.Categories {
		alloc.Spent = core.Money{}
		dup.Categories[i] = alloc
	}

	return s.Create(ctx, userID, dup)
}

// BudgetAnalytics is the full analytics view of one reconciled budget.
type BudgetAnalytics struct {
	Budget             *core.Budget             `json:"budget"`
	TotalSpent         core.Money               `json:"totalSpent"`
	Remaining          core.Money               `json:"remaining"`
	Utilization        float64                  `json:"utilization"`
	Status             core.UtilizationStatus   `json:"status"`
	CategoryBreakdown  []core.CategoryBreakdown `json:"categoryBreakdown"`
	RecentTransactions []core.Transaction       `json:"recentTransactions"`
	Alerts             []core.Alert             `json:"alerts"`
}

// Analytics reconciles the budget, expands the per-category breakdown,
// fetches recent matching transactions and generates alerts. Alerts are
// returned for display only; publication happens on the write path.
func (s *BudgetService) Analytics(ctx context.Context, userID string, id int64) (*BudgetAnalytics, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	names, err := s.categoryNames(ctx, userID, b.Categories)
	if err != nil {
		return nil, err
	}
	breakdown := b.CategoryBreakdown(names)

	expense := core.TransactionExpense
	completed := core.TransactionCompleted
	recent, _, err := s.transactions.ListTransactions(ctx, userID, core.TransactionFilter{
		Type:       &expense,
		Status:     &completed,
		StartDate:  &b.Period.StartDate,
		EndDate:    &b.Period.EndDate,
		Pagination: core.Pagination{Page: 1, Limit: 10},
	})
	if err != nil {
		return nil, err
	}

	alerts := core.GenerateAlerts(*b, breakdown)

	return &BudgetAnalytics{
		Budget:             b,
		TotalSpent:         b.TotalSpent(),
		Remaining:          b.Remaining(),
		Utilization:        b.Utilization(),
		Status:             b.UtilizationStatus(),
		CategoryBreakdown:  breakdown,
		RecentTransactions: recent,
		Alerts:             alerts,
	}, nil
}

// BudgetDigest is one budget's line in the overview.
type BudgetDigest struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Period      core.Period            `json:"period"`
	TotalBudget core.Money             `json:"totalBudget"`
	TotalSpent  core.Money             `json:"totalSpent"`
	Remaining   core.Money             `json:"remaining"`
	Utilization float64                `json:"utilization"`
	Status      core.UtilizationStatus `json:"status"`
}

// BudgetOverview aggregates all of a user's active budgets.
type BudgetOverview struct {
	ActiveBudgets  int                    `json:"activeBudgets"`
	TotalAllocated core.Money             `json:"totalAllocated"`
	TotalSpent     core.Money             `json:"totalSpent"`
	TotalRemaining core.Money             `json:"totalRemaining"`
	Utilization    float64                `json:"utilization"`
	Status         core.UtilizationStatus `json:"status"`
	Budgets        []BudgetDigest         `json:"budgets"`
}

// Overview reconciles every active budget and rolls them up.
func (s *BudgetService) Overview(ctx context.Context, userID string) (*BudgetOverview, error) {
	active := core.BudgetActive
	budgets, _, err := s.budgets.ListBudgets(ctx, userID, core.BudgetFilter{
		Status:     &active,
		Pagination: core.Pagination{Page: 1, Limit: 100},
	})
	if err != nil {
		return nil, err
	}

	overview := &BudgetOverview{ActiveBudgets: len(budgets)}
	for i := range budgets {
		b := &budgets[i]
		if err := s.reconcile(ctx, b); err != nil {
			return nil, err
		}
		overview.TotalAllocated = overview.TotalAllocated.Add(b.TotalBudget)
		overview.TotalSpent = overview.TotalSpent.Add(b.TotalSpent())
		overview.Budgets = append(overview.Budgets, BudgetDigest{
			ID:          b.ID,
			Name:        b.Name,
			Period:      b.Period,
			TotalBudget: b.TotalBudget,
			TotalSpent:  b.TotalSpent(),
			Remaining:   b.Remaining(),
			Utilization: b.Utilization(),
			Status:      b.UtilizationStatus(),
		})
	}

	overview.TotalRemaining = overview.TotalAllocated.Sub(overview.TotalSpent)
	if overview.TotalAllocated.Cents > 0 {
		overview.Utilization = float64(overview.TotalSpent.Cents) / float64(overview.TotalAllocated.Cents) * 100
	}
	overview.Status = core.ClassifyUtilization(overview.Utilization)
	return overview, nil
}

// ReconcileCoveringBudgets recomputes spend figures for every active budget
// whose period contains any of the given dates. Budgets covering more than
// one date are reconciled once.
func (s *BudgetService) ReconcileCoveringBudgets(ctx context.Context, userID string, dates ...time.Time) error {
	seen := make(map[int64]bool)
	for _, date := range dates {
		budgets, err := s.budgets.ActiveBudgetsCovering(ctx, userID, date)
		if err != nil {
			return core.Internal("reconcile: locate covering budgets", err)
		}
		for i := range budgets {
			if seen[budgets[i].ID] {
				continue
			}
			seen[budgets[i].ID] = true
			b := &budgets[i]
			if err := s.reconcile(ctx, b); err != nil {
				return err
			}
			s.notifyAfterReconcile(ctx, b)
		}
	}
	return nil
}

// notifyAfterReconcile generates alerts for a freshly reconciled budget and
// hands them to publishAlerts. Name lookup failures only suppress category
// labels, never the alert itself.
func (s *BudgetService) notifyAfterReconcile(ctx context.Context, b *core.Budget) {
	if s.alerts == nil || !b.Notifications.Enabled || !b.Notifications.EmailAlerts {
		return
	}
	names, err := s.categoryNames(ctx, b.UserID, b.Categories)
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve category names for alerts",
			"budget_id", b.ID, "error", err)
		names = map[int64]string{}
	}
	s.publishAlerts(ctx, b, core.GenerateAlerts(*b, b.CategoryBreakdown(names)))
}

// reconcile is the engine: a full rescan of the budget's window. It resets
// every allocation's spent figure, re-sums completed expense transactions
// whose date falls inside the period (inclusive both ends) per matching
// category, and persists the result. Transactions against categories
// outside the plan are ignored. Full rescan is deliberately preferred over
// incremental deltas: an edit can change date, category, amount and status
// at once, and the per-budget window is small.
func (s *BudgetService) reconcile(ctx context.Context, b *core.Budget) error {
	totals, err := s.transactions.CompletedExpenseTotals(ctx, b.UserID, b.Period.StartDate, b.Period.EndDate)
	if err != nil {
		return core.Internal("reconcile: fetch expense totals", err)
	}

	spent := make(map[int64]core.Money, len(b.Categories))
	for i := range b.Categories {
		alloc := &b.Categories[i]
		alloc.Spent = totals[alloc.CategoryID]
		spent[alloc.CategoryID] = alloc.Spent
	}

	if err := s.budgets.UpdateSpentAmounts(ctx, b.ID, spent); err != nil {
		return core.Internal("reconcile: persist spent amounts", err)
	}
	return nil
}

// checkCategoryReferences requires every allocation to reference a
// non-archived category owned by the user.
func (s *BudgetService) checkCategoryReferences(ctx context.Context, userID string, allocs []core.Allocation) error {
	for _, alloc := range allocs {
		category, err := s.categories.GetCategory(ctx, userID, alloc.CategoryID)
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				return core.ValidationFailed("One or more categories are invalid or archived")
			}
			return err
		}
		if category.Archived {
			return core.ValidationFailed("One or more categories are invalid or archived")
		}
	}
	return nil
}

func (s *BudgetService) categoryNames(ctx context.Context, userID string, allocs []core.Allocation) (map[int64]string, error) {
	names := make(map[int64]string, len(allocs))
	for _, alloc := range allocs {
		category, err := s.categories.GetCategory(ctx, userID, alloc.CategoryID)
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				continue
			}
			return nil, err
		}
		names[alloc.CategoryID] = category.Name
	}
	return names, nil
}

// publishAlerts forwards alerts out of process when the budget opted in and
// utilization cleared the configured threshold. Failures are logged, never
// surfaced: alert delivery must not fail the write that produced it.
func (s *BudgetService) publishAlerts(ctx context.Context, b *core.Budget, alerts []core.Alert) {
	if s.alerts == nil || len(alerts) == 0 {
		return
	}
	if !b.Notifications.Enabled || !b.Notifications.EmailAlerts {
		return
	}
	if b.Utilization() < float64(b.Notifications.Threshold) {
		return
	}
	if err := s.alerts.PublishBudgetAlerts(ctx, b.UserID, alerts); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alerts",
			"budget_id", b.ID, "alerts", len(alerts), "error", err)
	}
}

func applyBudgetDefaults(b *core.Budget) {
	if b.Type == "" {
		b.Type = core.BudgetMonthly
	}
	if b.Currency == "" {
		b.Currency = core.DefaultCurrency
	}
	if b.Notifications == (core.Notifications{}) {
		b.Notifications = core.DefaultNotifications()
	}
}

var _ Reconciler = (*BudgetService)(nil)
