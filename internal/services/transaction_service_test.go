package services

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestCreateTransactionDefaults(t *testing.T) {
	f := newFixture()
	cat := f.mustCategory(t, "u1", "Salary", core.CategoryIncome)

	tx, err := f.transactions.Create(context.Background(), "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionIncome,
		Amount:      core.Money{Cents: 250000},
		Description: "July salary",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != core.TransactionCompleted {
		t.Errorf("status = %s, want completed default", tx.Status)
	}
	if tx.Date.IsZero() {
		t.Error("date not defaulted")
	}
	if tx.Currency != core.DefaultCurrency {
		t.Errorf("currency = %s, want %s", tx.Currency, core.DefaultCurrency)
	}
}

func TestCreateTransactionCategoryGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	expenseCat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)
	otherUsers := f.mustCategory(t, "u2", "Food", core.CategoryExpense)
	archived := f.mustCategory(t, "u1", "Old", core.CategoryExpense)
	if err := f.categories.Archive(ctx, "u1", archived.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	missing := int64(9999)

	tests := []struct {
		name    string
		tx      core.Transaction
		kind    core.Kind
		message string
	}{
		{
			name:    "type mismatch",
			tx:      core.Transaction{CategoryID: &expenseCat.ID, Type: core.TransactionIncome, Amount: core.Money{Cents: 100}, Description: "x"},
			kind:    core.KindValidationFailed,
			message: "Category type 'expense' does not match transaction type 'income'",
		},
		{
			name:    "category of another user",
			tx:      core.Transaction{CategoryID: &otherUsers.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 100}, Description: "x"},
			kind:    core.KindValidationFailed,
			message: "Category does not belong to this user",
		},
		{
			name:    "archived category",
			tx:      core.Transaction{CategoryID: &archived.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 100}, Description: "x"},
			kind:    core.KindValidationFailed,
			message: "Cannot use an archived category",
		},
		{
			name:    "missing category",
			tx:      core.Transaction{CategoryID: &missing, Type: core.TransactionExpense, Amount: core.Money{Cents: 100}, Description: "x"},
			kind:    core.KindValidationFailed,
			message: "Category does not exist",
		},
		{
			name:    "no category on expense",
			tx:      core.Transaction{Type: core.TransactionExpense, Amount: core.Money{Cents: 100}, Description: "x"},
			kind:    core.KindValidationFailed,
			message: "Category is required for income and expense transactions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transactions.Create(ctx, "u1", tt.tx)
			assertKindMessage(t, err, tt.kind, tt.message)
		})
	}
}

func TestTransferWithoutCategory(t *testing.T) {
	f := newFixture()
	tx, err := f.transactions.Create(context.Background(), "u1", core.Transaction{
		Type:        core.TransactionTransfer,
		Amount:      core.Money{Cents: 5000},
		Description: "savings move",
	})
	if err != nil {
		t.Fatalf("transfer without category should pass: %v", err)
	}
	if tx.CategoryID != nil {
		t.Error("transfer picked up a category")
	}
}

// A transaction write must be visible in the owning budget on the very next
// read, with no external retry.
func TestCreateTransactionRoundTripsThroughBudget(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)

	b, err := f.budgets.Create(ctx, "u1", core.Budget{
		Name:       "August",
		Period:     augustPeriod(),
		Categories: []core.Allocation{{CategoryID: cat.ID, Allocated: core.Money{Cents: 50000}}},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if _, err := f.transactions.Create(ctx, "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionExpense,
		Amount:      core.Money{Cents: 4599},
		Description: "groceries",
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	got, err := f.budgets.Get(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Categories[0].Spent.Cents != 4599 {
		t.Errorf("spent = %d cents, want 4599", got.Categories[0].Spent.Cents)
	}
}

func TestUpdateTransactionMovesContribution(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)

	b, err := f.budgets.Create(ctx, "u1", core.Budget{
		Name:       "August",
		Period:     augustPeriod(),
		Categories: []core.Allocation{{CategoryID: cat.ID, Allocated: core.Money{Cents: 50000}}},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	tx, err := f.transactions.Create(ctx, "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionExpense,
		Amount:      core.Money{Cents: 4599},
		Description: "groceries",
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Move the transaction out of the budget window.
	outside := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	if _, err := f.transactions.Update(ctx, "u1", tx.ID, TransactionPatch{Date: &outside}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := f.budgets.Get(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Categories[0].Spent.Cents != 0 {
		t.Errorf("spent after move-out = %d cents, want 0", got.Categories[0].Spent.Cents)
	}
}

func TestDeleteTransactionReconciles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)

	b, err := f.budgets.Create(ctx, "u1", core.Budget{
		Name:       "August",
		Period:     augustPeriod(),
		Categories: []core.Allocation{{CategoryID: cat.ID, Allocated: core.Money{Cents: 50000}}},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	tx, err := f.transactions.Create(ctx, "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionExpense,
		Amount:      core.Money{Cents: 4599},
		Description: "groceries",
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := f.transactions.Delete(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := f.budgets.Get(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Categories[0].Spent.Cents != 0 {
		t.Errorf("spent after delete = %d cents, want 0", got.Categories[0].Spent.Cents)
	}
}

func TestPendingTransactionsDoNotCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)

	b, err := f.budgets.Create(ctx, "u1", core.Budget{
		Name:       "August",
		Period:     augustPeriod(),
		Categories: []core.Allocation{{CategoryID: cat.ID, Allocated: core.Money{Cents: 50000}}},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if _, err := f.transactions.Create(ctx, "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionExpense,
		Amount:      core.Money{Cents: 4599},
		Description: "groceries",
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Status:      core.TransactionPending,
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	got, err := f.budgets.Get(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Categories[0].Spent.Cents != 0 {
		t.Errorf("pending transaction counted: spent = %d cents", got.Categories[0].Spent.Cents)
	}
}

func TestRecurringExpansion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Rent", core.CategoryExpense)

	_, err := f.transactions.Create(ctx, "u1", core.Transaction{
		CategoryID:  &cat.ID,
		Type:        core.TransactionExpense,
		Amount:      core.Money{Cents: 120000},
		Description: "rent",
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Recurring: &core.RecurringPattern{
			Frequency: core.RepeatMonthly,
			Interval:  1,
			EndDate:   time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}

	txs, _, _, err := f.transactions.List(ctx, "u1", core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Aug source + Sep, Oct, Nov occurrences.
	if len(txs) != 4 {
		t.Fatalf("transactions = %d, want 4", len(txs))
	}
	pending := 0
	for _, tx := range txs {
		if tx.Status == core.TransactionPending {
			pending++
			if tx.Recurring != nil {
				t.Error("occurrence should not carry the pattern")
			}
		}
	}
	if pending != 3 {
		t.Errorf("pending occurrences = %d, want 3", pending)
	}
}

func TestListSummaryOverFilteredSet(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	food := f.mustCategory(t, "u1", "Food", core.CategoryExpense)
	salary := f.mustCategory(t, "u1", "Salary", core.CategoryIncome)

	seed := []core.Transaction{
		{CategoryID: &salary.ID, Type: core.TransactionIncome, Amount: core.Money{Cents: 250000}, Description: "salary"},
		{CategoryID: &food.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 4599}, Description: "groceries"},
		{CategoryID: &food.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 5000}, Description: "dinner"},
	}
	for _, tx := range seed {
		if _, err := f.transactions.Create(ctx, "u1", tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	expense := core.TransactionExpense
	_, summary, _, err := f.transactions.List(ctx, "u1", core.TransactionFilter{Type: &expense})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if summary.TotalExpense.Cents != 9599 {
		t.Errorf("totalExpense = %d cents, want 9599", summary.TotalExpense.Cents)
	}
	if summary.TotalIncome.Cents != 0 {
		t.Errorf("totalIncome = %d cents, want 0 (income filtered out)", summary.TotalIncome.Cents)
	}
	if summary.TransactionCount != 2 {
		t.Errorf("count = %d, want 2", summary.TransactionCount)
	}
}

func TestBulkImportPartialFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cat := f.mustCategory(t, "u1", "Food", core.CategoryExpense)

	drafts := []core.Transaction{
		{CategoryID: &cat.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 1000}, Description: "ok"},
		{CategoryID: &cat.ID, Type: core.TransactionExpense, Amount: core.Money{}, Description: "bad amount"},
		{CategoryID: &cat.ID, Type: core.TransactionExpense, Amount: core.Money{Cents: 2000}, Description: "also ok"},
	}
	result, err := f.transactions.BulkImport(ctx, "u1", drafts)
	if err != nil {
		t.Fatalf("bulk import: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}
	if len(result.Failed) != 1 || result.Failed[0].Index != 1 {
		t.Errorf("failed = %+v, want index 1 only", result.Failed)
	}
}
