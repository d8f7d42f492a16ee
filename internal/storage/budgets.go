package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/core"
)

type budgetRow struct {
	ID               int64     `db:"id"`
	UserID           string    `db:"user_id"`
	Name             string    `db:"name"`
	Type             string    `db:"type"`
	StartDate        time.Time `db:"start_date"`
	EndDate          time.Time `db:"end_date"`
	TotalBudgetCents int64     `db:"total_budget_cents"`
	Currency         string    `db:"currency"`
	Status           string    `db:"status"`
	NotifyEnabled    bool      `db:"notify_enabled"`
	NotifyThreshold  int       `db:"notify_threshold"`
	NotifyEmail      bool      `db:"notify_email"`
	NotifyPush       bool      `db:"notify_push"`
	Tags             string    `db:"tags"`
	Notes            string    `db:"notes"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type allocationRow struct {
	BudgetID       int64  `db:"budget_id"`
	CategoryID     int64  `db:"category_id"`
	AllocatedCents int64  `db:"allocated_cents"`
	SpentCents     int64  `db:"spent_cents"`
	Color          string `db:"color"`
}

var budgetColumns = []string{
	"id", "user_id", "name", "type", "start_date", "end_date",
	"total_budget_cents", "currency", "status",
	"notify_enabled", "notify_threshold", "notify_email", "notify_push",
	"tags", "notes", "created_at", "updated_at",
}

func (row budgetRow) toCore() core.Budget {
	return core.Budget{
		ID:     row.ID,
		UserID: row.UserID,
		Name:   row.Name,
		Type:   core.BudgetType(row.Type),
		Period: core.Period{
			StartDate: row.StartDate,
			EndDate:   row.EndDate,
		},
		TotalBudget: core.Money{Cents: row.TotalBudgetCents},
		Currency:    core.Currency(row.Currency),
		Status:      core.BudgetStatus(row.Status),
		Notifications: core.Notifications{
			Enabled:     row.NotifyEnabled,
			Threshold:   row.NotifyThreshold,
			EmailAlerts: row.NotifyEmail,
			PushAlerts:  row.NotifyPush,
		},
		Tags:      splitTags(row.Tags),
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (row allocationRow) toCore() core.Allocation {
	return core.Allocation{
		CategoryID: row.CategoryID,
		Allocated:  core.Money{Cents: row.AllocatedCents},
		Spent:      core.Money{Cents: row.SpentCents},
		Color:      row.Color,
	}
}

// InsertBudget persists the budget and its allocation rows in one
// transaction and fills in the ID and timestamps.
func (r *Repository) InsertBudget(ctx context.Context, b *core.Budget) error {
	now := utc(time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert budget: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Insert("budgets").
		Columns("user_id", "name", "type", "start_date", "end_date",
			"total_budget_cents", "currency", "status",
			"notify_enabled", "notify_threshold", "notify_email", "notify_push",
			"tags", "notes", "created_at", "updated_at").
		Values(b.UserID, b.Name, string(b.Type), utc(b.Period.StartDate), utc(b.Period.EndDate),
			b.TotalBudget.Cents, string(b.Currency), string(b.Status),
			b.Notifications.Enabled, b.Notifications.Threshold,
			b.Notifications.EmailAlerts, b.Notifications.PushAlerts,
			joinTags(b.Tags), b.Notes, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert budget: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget insert id: %w", err)
	}

	if err := insertAllocations(ctx, tx, r.sb, id, b.Categories); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert budget: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func insertAllocations(ctx context.Context, tx *sqlx.Tx, sb sq.StatementBuilderType, budgetID int64, allocs []core.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	builder := sb.Insert("budget_categories").
		Columns("budget_id", "category_id", "allocated_cents", "spent_cents", "color")
	for _, alloc := range allocs {
		builder = builder.Values(budgetID, alloc.CategoryID, alloc.Allocated.Cents, alloc.Spent.Cents, alloc.Color)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}
	return nil
}

// GetBudget fetches a budget with its allocations, scoped to its owner.
func (r *Repository) GetBudget(ctx context.Context, userID string, id int64) (*core.Budget, error) {
	query, args, err := r.sb.Select(budgetColumns...).
		From("budgets").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select budget: %w", err)
	}

	var row budgetRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFound("Budget not found")
		}
		return nil, fmt.Errorf("select budget: %w", err)
	}

	budget := row.toCore()
	allocs, err := r.loadAllocations(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	budget.Categories = allocs[id]
	return &budget, nil
}

func (r *Repository) loadAllocations(ctx context.Context, budgetIDs []int64) (map[int64][]core.Allocation, error) {
	if len(budgetIDs) == 0 {
		return map[int64][]core.Allocation{}, nil
	}
	query, args, err := r.sb.Select("budget_id", "category_id", "allocated_cents", "spent_cents", "color").
		From("budget_categories").
		Where(sq.Eq{"budget_id": budgetIDs}).
		OrderBy("budget_id", "category_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select allocations: %w", err)
	}

	var rows []allocationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	byBudget := make(map[int64][]core.Allocation, len(budgetIDs))
	for _, row := range rows {
		byBudget[row.BudgetID] = append(byBudget[row.BudgetID], row.toCore())
	}
	return byBudget, nil
}

// ListBudgets returns one page of the filtered set, newest period first,
// plus the total filtered count.
func (r *Repository) ListBudgets(ctx context.Context, userID string, f core.BudgetFilter) ([]core.Budget, int64, error) {
	where := sq.And{sq.Eq{"user_id": userID}}
	if f.Status != nil {
		where = append(where, sq.Eq{"status": string(*f.Status)})
	}
	if f.Type != nil {
		where = append(where, sq.Eq{"type": string(*f.Type)})
	}

	page := f.Pagination.Normalize()
	query, args, err := r.sb.Select(budgetColumns...).
		From("budgets").
		Where(where).
		OrderBy("start_date DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list budgets: %w", err)
	}

	var rows []budgetRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list budgets: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	allocs, err := r.loadAllocations(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.count(ctx, "budgets", where)
	if err != nil {
		return nil, 0, err
	}

	budgets := make([]core.Budget, len(rows))
	for i, row := range rows {
		budgets[i] = row.toCore()
		budgets[i].Categories = allocs[row.ID]
	}
	return budgets, total, nil
}

// ActiveBudgetsCovering returns the owner's active budgets whose period
// contains the given date. This is the fan-out set for reconciliation
// after a transaction write.
func (r *Repository) ActiveBudgetsCovering(ctx context.Context, userID string, date time.Time) ([]core.Budget, error) {
	d := utc(date)
	query, args, err := r.sb.Select(budgetColumns...).
		From("budgets").
		Where(sq.And{
			sq.Eq{"user_id": userID, "status": string(core.BudgetActive)},
			sq.LtOrEq{"start_date": d},
			sq.GtOrEq{"end_date": d},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build covering budgets: %w", err)
	}

	var rows []budgetRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("covering budgets: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	allocs, err := r.loadAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}

	budgets := make([]core.Budget, len(rows))
	for i, row := range rows {
		budgets[i] = row.toCore()
		budgets[i].Categories = allocs[row.ID]
	}
	return budgets, nil
}

// UpdateBudget rewrites the budget row and replaces its allocation rows in
// one transaction.
func (r *Repository) UpdateBudget(ctx context.Context, b *core.Budget) error {
	now := utc(time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update budget: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Update("budgets").
		Set("name", b.Name).
		Set("type", string(b.Type)).
		Set("start_date", utc(b.Period.StartDate)).
		Set("end_date", utc(b.Period.EndDate)).
		Set("total_budget_cents", b.TotalBudget.Cents).
		Set("currency", string(b.Currency)).
		Set("status", string(b.Status)).
		Set("notify_enabled", b.Notifications.Enabled).
		Set("notify_threshold", b.Notifications.Threshold).
		Set("notify_email", b.Notifications.EmailAlerts).
		Set("notify_push", b.Notifications.PushAlerts).
		Set("tags", joinTags(b.Tags)).
		Set("notes", b.Notes).
		Set("updated_at", now).
		Where(sq.Eq{"id": b.ID, "user_id": b.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update budget: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("Budget not found")
	}

	del, args, err := r.sb.Delete("budget_categories").
		Where(sq.Eq{"budget_id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clear allocations: %w", err)
	}

	if err := insertAllocations(ctx, tx, r.sb, b.ID, b.Categories); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update budget: %w", err)
	}

	b.UpdatedAt = now
	return nil
}

// SetBudgetStatus flips only the lifecycle status. Deleting a budget is a
// soft delete to cancelled.
func (r *Repository) SetBudgetStatus(ctx context.Context, userID string, id int64, status core.BudgetStatus) error {
	query, args, err := r.sb.Update("budgets").
		Set("status", string(status)).
		Set("updated_at", utc(time.Now())).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set budget status: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set budget status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("Budget not found")
	}
	return nil
}

// UpdateSpentAmounts overwrites the derived spent figure for every
// allocation of the budget. Allocations absent from spent are reset to
// zero. Only the reconciliation engine calls this.
func (r *Repository) UpdateSpentAmounts(ctx context.Context, budgetID int64, spent map[int64]core.Money) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update spent: %w", err)
	}
	defer tx.Rollback()

	reset, args, err := r.sb.Update("budget_categories").
		Set("spent_cents", 0).
		Where(sq.Eq{"budget_id": budgetID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset spent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, reset, args...); err != nil {
		return fmt.Errorf("reset spent: %w", err)
	}

	for categoryID, amount := range spent {
		query, args, err := r.sb.Update("budget_categories").
			Set("spent_cents", amount.Cents).
			Where(sq.Eq{"budget_id": budgetID, "category_id": categoryID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build set spent: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("set spent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update spent: %w", err)
	}
	return nil
}
