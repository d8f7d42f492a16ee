package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
)

// memStore is an in-memory implementation of the three store interfaces,
// good enough for exercising the services without SQLite.
type memStore struct {
	nextID       int64
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget
}

func newMemStore() *memStore {
	return &memStore{
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		budgets:      make(map[int64]core.Budget),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) InsertCategory(_ context.Context, c *core.Category) error {
	for _, existing := range m.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return core.Conflict("Category with this name already exists")
		}
	}
	c.ID = m.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.categories[c.ID] = *c
	return nil
}

func (m *memStore) GetCategory(_ context.Context, userID string, id int64) (*core.Category, error) {
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return nil, core.NotFound("Category not found")
	}
	out := c
	return &out, nil
}

func (m *memStore) GetCategoryAnyOwner(_ context.Context, id int64) (*core.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, core.NotFound("Category not found")
	}
	out := c
	return &out, nil
}

func (m *memStore) GetCategoryByName(_ context.Context, userID, name string) (*core.Category, error) {
	for _, c := range m.categories {
		if c.UserID == userID && c.Name == name {
			out := c
			return &out, nil
		}
	}
	return nil, core.NotFound("Category not found")
}

func (m *memStore) ListCategories(_ context.Context, userID string, f core.CategoryFilter) ([]core.Category, int64, error) {
	var out []core.Category
	for _, c := range m.categories {
		if c.UserID != userID {
			continue
		}
		if !f.IncludeArchived && c.Archived {
			continue
		}
		if f.Type != nil && c.Type != *f.Type {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateCategory(_ context.Context, c *core.Category) error {
	existing, ok := m.categories[c.ID]
	if !ok || existing.UserID != c.UserID {
		return core.NotFound("Category not found")
	}
	c.UpdatedAt = time.Now()
	m.categories[c.ID] = *c
	return nil
}

func (m *memStore) InsertTransaction(_ context.Context, t *core.Transaction) error {
	t.ID = m.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.transactions[t.ID] = *t
	return nil
}

func (m *memStore) GetTransaction(_ context.Context, userID string, id int64) (*core.Transaction, error) {
	t, ok := m.transactions[id]
	if !ok || t.UserID != userID {
		return nil, core.NotFound("Transaction not found")
	}
	out := t
	return &out, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	existing, ok := m.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return core.NotFound("Transaction not found")
	}
	t.UpdatedAt = time.Now()
	m.transactions[t.ID] = *t
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, userID string, id int64) error {
	t, ok := m.transactions[id]
	if !ok || t.UserID != userID {
		return core.NotFound("Transaction not found")
	}
	delete(m.transactions, id)
	return nil
}

func (m *memStore) matchTransactions(userID string, f core.TransactionFilter) []core.Transaction {
	var out []core.Transaction
	for _, t := range m.transactions {
		if t.UserID != userID {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
			continue
		}
		if f.StartDate != nil && t.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && t.Date.After(*f.EndDate) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *memStore) ListTransactions(_ context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, int64, error) {
	out := m.matchTransactions(userID, f)
	return out, int64(len(out)), nil
}

func (m *memStore) SummarizeTransactions(_ context.Context, userID string, f core.TransactionFilter) (core.TransactionSummary, error) {
	var s core.TransactionSummary
	var totalCents int64
	for _, t := range m.matchTransactions(userID, f) {
		switch t.Type {
		case core.TransactionIncome:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case core.TransactionExpense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		case core.TransactionTransfer:
			s.TotalTransfer = s.TotalTransfer.Add(t.Amount)
		}
		totalCents += t.Amount.Cents
		s.TransactionCount++
	}
	if s.TransactionCount > 0 {
		s.AverageAmount = core.Money{Cents: totalCents / s.TransactionCount}
	}
	return s, nil
}

func (m *memStore) CompletedExpenseTotals(_ context.Context, userID string, start, end time.Time) (map[int64]core.Money, error) {
	totals := make(map[int64]core.Money)
	period := core.Period{StartDate: start, EndDate: end}
	for _, t := range m.transactions {
		if t.UserID != userID || !t.CountsTowardBudgets() || t.CategoryID == nil {
			continue
		}
		if !period.Contains(t.Date) {
			continue
		}
		totals[*t.CategoryID] = totals[*t.CategoryID].Add(t.Amount)
	}
	return totals, nil
}

func (m *memStore) CategoryTotals(_ context.Context, userID string, f core.TransactionFilter) ([]core.CategoryTotal, error) {
	byCategory := make(map[int64]*core.CategoryTotal)
	for _, t := range m.matchTransactions(userID, f) {
		if t.CategoryID == nil {
			continue
		}
		ct, ok := byCategory[*t.CategoryID]
		if !ok {
			name := ""
			if c, found := m.categories[*t.CategoryID]; found {
				name = c.Name
			}
			ct = &core.CategoryTotal{CategoryID: *t.CategoryID, CategoryName: name}
			byCategory[*t.CategoryID] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}
	var out []core.CategoryTotal
	for _, ct := range byCategory {
		ct.AverageAmount = core.Money{Cents: ct.Total.Cents / ct.Count}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.Cents > out[j].Total.Cents })
	return out, nil
}

func (m *memStore) MonthlyTrends(_ context.Context, userID string, f core.TransactionFilter) ([]core.MonthlyTrend, error) {
	type key struct {
		year, month int
		typ         core.TransactionType
	}
	byMonth := make(map[key]*core.MonthlyTrend)
	for _, t := range m.matchTransactions(userID, f) {
		k := key{t.Date.Year(), int(t.Date.Month()), t.Type}
		tr, ok := byMonth[k]
		if !ok {
			tr = &core.MonthlyTrend{Year: k.year, Month: k.month, Type: k.typ}
			byMonth[k] = tr
		}
		tr.Total = tr.Total.Add(t.Amount)
		tr.Count++
	}
	var out []core.MonthlyTrend
	for _, tr := range byMonth {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (m *memStore) InsertBudget(_ context.Context, b *core.Budget) error {
	b.ID = m.id()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.budgets[b.ID] = cloneBudget(*b)
	return nil
}

func (m *memStore) GetBudget(_ context.Context, userID string, id int64) (*core.Budget, error) {
	b, ok := m.budgets[id]
	if !ok || b.UserID != userID {
		return nil, core.NotFound("Budget not found")
	}
	out := cloneBudget(b)
	return &out, nil
}

func (m *memStore) ListBudgets(_ context.Context, userID string, f core.BudgetFilter) ([]core.Budget, int64, error) {
	var out []core.Budget
	for _, b := range m.budgets {
		if b.UserID != userID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.Type != nil && b.Type != *f.Type {
			continue
		}
		out = append(out, cloneBudget(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memStore) ActiveBudgetsCovering(_ context.Context, userID string, date time.Time) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range m.budgets {
		if b.UserID != userID || b.Status != core.BudgetActive {
			continue
		}
		if b.Period.Contains(date) {
			out = append(out, cloneBudget(b))
		}
	}
	return out, nil
}

func (m *memStore) UpdateBudget(_ context.Context, b *core.Budget) error {
	existing, ok := m.budgets[b.ID]
	if !ok || existing.UserID != b.UserID {
		return core.NotFound("Budget not found")
	}
	b.UpdatedAt = time.Now()
	m.budgets[b.ID] = cloneBudget(*b)
	return nil
}

func (m *memStore) SetBudgetStatus(_ context.Context, userID string, id int64, status core.BudgetStatus) error {
	b, ok := m.budgets[id]
	if !ok || b.UserID != userID {
		return core.NotFound("Budget not found")
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	m.budgets[id] = b
	return nil
}

func (m *memStore) UpdateSpentAmounts(_ context.Context, budgetID int64, spent map[int64]core.Money) error {
	b, ok := m.budgets[budgetID]
	if !ok {
		return core.NotFound("Budget not found")
	}
	for i := range b.Categories {
		b.Categories[i].Spent = spent[b.Categories[i].CategoryID]
	}
	m.budgets[budgetID] = b
	return nil
}

func cloneBudget(b core.Budget) core.Budget {
	out := b
	out.Categories = append([]core.Allocation(nil), b.Categories...)
	out.Tags = append([]string(nil), b.Tags...)
	return out
}

// recordingPublisher captures published alerts.
type recordingPublisher struct {
	published [][]core.Alert
}

func (p *recordingPublisher) PublishBudgetAlerts(_ context.Context, _ string, alerts []core.Alert) error {
	p.published = append(p.published, alerts)
	return nil
}
