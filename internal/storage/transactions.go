package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fintrack/internal/core"
)

type transactionRow struct {
	ID             int64          `db:"id"`
	UserID         string         `db:"user_id"`
	CategoryID     sql.NullInt64  `db:"category_id"`
	Type           string         `db:"type"`
	AmountCents    int64          `db:"amount_cents"`
	Currency       string         `db:"currency"`
	Description    string         `db:"description"`
	Date           time.Time      `db:"date"`
	Tags           string         `db:"tags"`
	Location       string         `db:"location"`
	Status         string         `db:"status"`
	RecurFrequency string         `db:"recur_frequency"`
	RecurInterval  int            `db:"recur_interval"`
	RecurEnd       sql.NullTime   `db:"recur_end"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

var transactionColumns = []string{
	"id", "user_id", "category_id", "type", "amount_cents", "currency",
	"description", "date", "tags", "location", "status",
	"recur_frequency", "recur_interval", "recur_end", "created_at", "updated_at",
}

func (row transactionRow) toCore() core.Transaction {
	tx := core.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        core.TransactionType(row.Type),
		Amount:      core.Money{Cents: row.AmountCents},
		Currency:    core.Currency(row.Currency),
		Description: row.Description,
		Date:        row.Date,
		Tags:        splitTags(row.Tags),
		Location:    row.Location,
		Status:      core.TransactionStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.CategoryID.Valid {
		id := row.CategoryID.Int64
		tx.CategoryID = &id
	}
	if row.RecurFrequency != "" {
		tx.Recurring = &core.RecurringPattern{
			Frequency: core.RepeatFrequency(row.RecurFrequency),
			Interval:  row.RecurInterval,
			EndDate:   row.RecurEnd.Time,
		}
	}
	return tx
}

func transactionValues(t *core.Transaction, now time.Time) []any {
	var categoryID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	recurFrequency, recurInterval := "", 0
	var recurEnd any
	if t.Recurring != nil {
		recurFrequency = string(t.Recurring.Frequency)
		recurInterval = t.Recurring.Interval
		recurEnd = utc(t.Recurring.EndDate)
	}
	return []any{
		t.UserID, categoryID, string(t.Type), t.Amount.Cents, string(t.Currency),
		t.Description, utc(t.Date), joinTags(t.Tags), t.Location, string(t.Status),
		recurFrequency, recurInterval, recurEnd, now, now,
	}
}

// InsertTransaction persists t and fills in its ID and timestamps.
func (r *Repository) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	now := utc(time.Now())
	query, args, err := r.sb.Insert("transactions").
		Columns("user_id", "category_id", "type", "amount_cents", "currency",
			"description", "date", "tags", "location", "status",
			"recur_frequency", "recur_interval", "recur_end", "created_at", "updated_at").
		Values(transactionValues(t, now)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert transaction: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTransaction fetches a transaction scoped to its owner.
func (r *Repository) GetTransaction(ctx context.Context, userID string, id int64) (*core.Transaction, error) {
	query, args, err := r.sb.Select(transactionColumns...).
		From("transactions").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select transaction: %w", err)
	}

	var row transactionRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFound("Transaction not found")
		}
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	tx := row.toCore()
	return &tx, nil
}

// UpdateTransaction rewrites all mutable fields of t.
func (r *Repository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := utc(time.Now())
	var categoryID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	recurFrequency, recurInterval := "", 0
	var recurEnd any
	if t.Recurring != nil {
		recurFrequency = string(t.Recurring.Frequency)
		recurInterval = t.Recurring.Interval
		recurEnd = utc(t.Recurring.EndDate)
	}

	query, args, err := r.sb.Update("transactions").
		Set("category_id", categoryID).
		Set("type", string(t.Type)).
		Set("amount_cents", t.Amount.Cents).
		Set("currency", string(t.Currency)).
		Set("description", t.Description).
		Set("date", utc(t.Date)).
		Set("tags", joinTags(t.Tags)).
		Set("location", t.Location).
		Set("status", string(t.Status)).
		Set("recur_frequency", recurFrequency).
		Set("recur_interval", recurInterval).
		Set("recur_end", recurEnd).
		Set("updated_at", now).
		Where(sq.Eq{"id": t.ID, "user_id": t.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update transaction: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("Transaction not found")
	}
	t.UpdatedAt = now
	return nil
}

// DeleteTransaction removes the transaction permanently.
func (r *Repository) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	query, args, err := r.sb.Delete("transactions").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete transaction: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("Transaction not found")
	}
	return nil
}

func transactionWhere(userID string, f core.TransactionFilter) sq.And {
	return transactionWherePrefixed("", userID, f)
}

// transactionWherePrefixed qualifies column names with the given table
// alias so the same filter works in joined queries.
func transactionWherePrefixed(prefix, userID string, f core.TransactionFilter) sq.And {
	where := sq.And{sq.Eq{prefix + "user_id": userID}}
	if f.Type != nil {
		where = append(where, sq.Eq{prefix + "type": string(*f.Type)})
	}
	if f.CategoryID != nil {
		where = append(where, sq.Eq{prefix + "category_id": *f.CategoryID})
	}
	if f.Status != nil {
		where = append(where, sq.Eq{prefix + "status": string(*f.Status)})
	}
	if f.StartDate != nil {
		where = append(where, sq.GtOrEq{prefix + "date": utc(*f.StartDate)})
	}
	if f.EndDate != nil {
		where = append(where, sq.LtOrEq{prefix + "date": utc(*f.EndDate)})
	}
	if f.MinAmount != nil {
		where = append(where, sq.GtOrEq{prefix + "amount_cents": f.MinAmount.Cents})
	}
	if f.MaxAmount != nil {
		where = append(where, sq.LtOrEq{prefix + "amount_cents": f.MaxAmount.Cents})
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		where = append(where, sq.Expr(prefix+`description LIKE ? ESCAPE '\'`, pattern))
	}
	if len(f.Tags) > 0 {
		tagOr := make(sq.Or, 0, len(f.Tags))
		for _, tag := range f.Tags {
			tagOr = append(tagOr, sq.Expr("(',' || "+prefix+"tags || ',') LIKE ?", "%,"+tag+",%"))
		}
		where = append(where, tagOr)
	}
	return where
}

var transactionSortColumns = map[string]string{
	"date":        "date",
	"amount":      "amount_cents",
	"description": "description",
	"createdAt":   "created_at",
}

// ListTransactions returns one page of the filtered set plus the total
// filtered count.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, int64, error) {
	where := transactionWhere(userID, f)

	sortCol, ok := transactionSortColumns[f.SortBy]
	if !ok {
		sortCol = "date"
	}
	order := "DESC"
	if f.SortOrder == "asc" {
		order = "ASC"
	}

	page := f.Pagination.Normalize()
	query, args, err := r.sb.Select(transactionColumns...).
		From("transactions").
		Where(where).
		OrderBy(sortCol + " " + order).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list transactions: %w", err)
	}

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	total, err := r.count(ctx, "transactions", where)
	if err != nil {
		return nil, 0, err
	}

	txs := make([]core.Transaction, len(rows))
	for i, row := range rows {
		txs[i] = row.toCore()
	}
	return txs, total, nil
}

// SummarizeTransactions aggregates income/expense/transfer totals over the
// filtered set.
func (r *Repository) SummarizeTransactions(ctx context.Context, userID string, f core.TransactionFilter) (core.TransactionSummary, error) {
	where := transactionWhere(userID, f)
	query, args, err := r.sb.Select(
		"COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0) AS total_income",
		"COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0) AS total_expense",
		"COALESCE(SUM(CASE WHEN type = 'transfer' THEN amount_cents ELSE 0 END), 0) AS total_transfer",
		"COUNT(*) AS transaction_count",
		"COALESCE(AVG(amount_cents), 0) AS average_amount",
	).From("transactions").Where(where).ToSql()
	if err != nil {
		return core.TransactionSummary{}, fmt.Errorf("build summarize transactions: %w", err)
	}

	var row struct {
		TotalIncome      int64   `db:"total_income"`
		TotalExpense     int64   `db:"total_expense"`
		TotalTransfer    int64   `db:"total_transfer"`
		TransactionCount int64   `db:"transaction_count"`
		AverageAmount    float64 `db:"average_amount"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return core.TransactionSummary{}, fmt.Errorf("summarize transactions: %w", err)
	}

	return core.TransactionSummary{
		TotalIncome:      core.Money{Cents: row.TotalIncome},
		TotalExpense:     core.Money{Cents: row.TotalExpense},
		TotalTransfer:    core.Money{Cents: row.TotalTransfer},
		TransactionCount: row.TransactionCount,
		AverageAmount:    core.Money{Cents: int64(row.AverageAmount + 0.5)},
	}, nil
}

// CompletedExpenseTotals sums completed expense transactions per category
// inside the inclusive [start, end] window. This is the reconciliation
// engine's source of truth.
func (r *Repository) CompletedExpenseTotals(ctx context.Context, userID string, start, end time.Time) (map[int64]core.Money, error) {
	query, args, err := r.sb.Select("category_id", "COALESCE(SUM(amount_cents), 0) AS total").
		From("transactions").
		Where(sq.And{
			sq.Eq{"user_id": userID, "type": "expense", "status": "completed"},
			sq.GtOrEq{"date": utc(start)},
			sq.LtOrEq{"date": utc(end)},
			sq.NotEq{"category_id": nil},
		}).
		GroupBy("category_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expense totals: %w", err)
	}

	var rows []struct {
		CategoryID int64 `db:"category_id"`
		Total      int64 `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("expense totals: %w", err)
	}

	totals := make(map[int64]core.Money, len(rows))
	for _, row := range rows {
		totals[row.CategoryID] = core.Money{Cents: row.Total}
	}
	return totals, nil
}

// CategoryTotals aggregates the filtered set per category, largest first.
func (r *Repository) CategoryTotals(ctx context.Context, userID string, f core.TransactionFilter) ([]core.CategoryTotal, error) {
	where := transactionWherePrefixed("t.", userID, f)
	where = append(where, sq.NotEq{"t.category_id": nil})
	query, args, err := r.sb.Select(
		"t.category_id AS category_id",
		"c.name AS category_name",
		"COALESCE(SUM(t.amount_cents), 0) AS total",
		"COUNT(*) AS count",
		"COALESCE(AVG(t.amount_cents), 0) AS average_amount",
	).
		From("transactions t").
		Join("categories c ON c.id = t.category_id").
		Where(where).
		GroupBy("t.category_id", "c.name").
		OrderBy("total DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category totals: %w", err)
	}

	var rows []struct {
		CategoryID    int64   `db:"category_id"`
		CategoryName  string  `db:"category_name"`
		Total         int64   `db:"total"`
		Count         int64   `db:"count"`
		AverageAmount float64 `db:"average_amount"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}

	totals := make([]core.CategoryTotal, len(rows))
	for i, row := range rows {
		totals[i] = core.CategoryTotal{
			CategoryID:    row.CategoryID,
			CategoryName:  row.CategoryName,
			Total:         core.Money{Cents: row.Total},
			Count:         row.Count,
			AverageAmount: core.Money{Cents: int64(row.AverageAmount + 0.5)},
		}
	}
	return totals, nil
}

// MonthlyTrends aggregates the filtered set per (year, month, type) in
// chronological order.
func (r *Repository) MonthlyTrends(ctx context.Context, userID string, f core.TransactionFilter) ([]core.MonthlyTrend, error) {
	where := transactionWhere(userID, f)
	query, args, err := r.sb.Select(
		"CAST(strftime('%Y', date) AS INTEGER) AS year",
		"CAST(strftime('%m', date) AS INTEGER) AS month",
		"type",
		"COALESCE(SUM(amount_cents), 0) AS total",
		"COUNT(*) AS count",
	).
		From("transactions").
		Where(where).
		GroupBy("year", "month", "type").
		OrderBy("year ASC", "month ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build monthly trends: %w", err)
	}

	var rows []struct {
		Year  int    `db:"year"`
		Month int    `db:"month"`
		Type  string `db:"type"`
		Total int64  `db:"total"`
		Count int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}

	trends := make([]core.MonthlyTrend, len(rows))
	for i, row := range rows {
		trends[i] = core.MonthlyTrend{
			Year:  row.Year,
			Month: row.Month,
			Type:  core.TransactionType(row.Type),
			Total: core.Money{Cents: row.Total},
			Count: row.Count,
		}
	}
	return trends, nil
}
