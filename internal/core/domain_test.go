package core

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func catID(id int64) *int64 { return &id }

func validTransaction() Transaction {
	return Transaction{
		UserID:      "u1",
		CategoryID:  catID(1),
		Type:        TransactionExpense,
		Amount:      Money{Cents: 4599},
		Currency:    DefaultCurrency,
		Description: "groceries",
		Date:        date(2025, 3, 10),
		Status:      TransactionCompleted,
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"invalid type", func(tx *Transaction) { tx.Type = "refund" }},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -100} }},
		{"blank description", func(tx *Transaction) { tx.Description = "   " }},
		{"oversized description", func(tx *Transaction) { tx.Description = string(make([]byte, 501)) }},
		{"expense without category", func(tx *Transaction) { tx.CategoryID = nil }},
		{"invalid currency", func(tx *Transaction) { tx.Currency = "BTC" }},
		{"invalid status", func(tx *Transaction) { tx.Status = "done" }},
		{"oversized tag", func(tx *Transaction) { tx.Tags = []string{"this tag is far too long to keep"} }},
		{"bad recurring interval", func(tx *Transaction) {
			tx.Recurring = &RecurringPattern{Frequency: RepeatMonthly, Interval: 0, EndDate: date(2026, 1, 1)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != KindValidationFailed {
				t.Fatalf("kind = %v, want validation_failed", KindOf(err))
			}
		})
	}
}

func TestTransferOmitsCategory(t *testing.T) {
	tx := validTransaction()
	tx.Type = TransactionTransfer
	tx.CategoryID = nil
	if err := tx.Validate(); err != nil {
		t.Fatalf("transfer without category should validate, got %v", err)
	}
}

func validBudget() Budget {
	return Budget{
		UserID: "u1",
		Name:   "March",
		Type:   BudgetMonthly,
		Period: Period{StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31)},
		Categories: []Allocation{
			{CategoryID: 1, Allocated: Money{Cents: 50000}},
			{CategoryID: 2, Allocated: Money{Cents: 20000}},
		},
		Currency:      DefaultCurrency,
		Status:        BudgetActive,
		Notifications: DefaultNotifications(),
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := validBudget().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Budget)
		kind    Kind
		message string
	}{
		{"blank name", func(b *Budget) { b.Name = "" }, KindValidationFailed, "Budget name is required"},
		{"period reversed", func(b *Budget) {
			b.Period = Period{StartDate: date(2025, 3, 31), EndDate: date(2025, 3, 1)}
		}, KindValidationFailed, "End date must be after start date"},
		{"period equal", func(b *Budget) {
			b.Period = Period{StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 1)}
		}, KindValidationFailed, "End date must be after start date"},
		{"no categories", func(b *Budget) { b.Categories = nil }, KindValidationFailed, "At least one category is required"},
		{"zero allocation", func(b *Budget) {
			b.Categories[0].Allocated = Money{}
		}, KindValidationFailed, "Allocated amount must be greater than 0"},
		{"negative allocation", func(b *Budget) {
			b.Categories[0].Allocated = Money{Cents: -1}
		}, KindValidationFailed, "Allocated amount must be greater than 0"},
		{"duplicate category", func(b *Budget) {
			b.Categories[1].CategoryID = b.Categories[0].CategoryID
		}, KindConflict, "Duplicate categories are not allowed"},
		{"missing categoryId", func(b *Budget) { b.Categories[0].CategoryID = 0 }, KindValidationFailed, "Each category must include categoryId"},
		{"bad threshold", func(b *Budget) { b.Notifications.Threshold = 150 }, KindValidationFailed, "Notification threshold must be between 0 and 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBudget()
			tt.mutate(&b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tt.kind {
				t.Fatalf("kind = %v, want %v", KindOf(err), tt.kind)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Message != tt.message {
				t.Fatalf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestBudgetDerivedValues(t *testing.T) {
	b := validBudget()
	b.TotalBudget = b.TotalAllocated()
	if b.TotalBudget.Cents != 70000 {
		t.Fatalf("total allocated = %d, want 70000", b.TotalBudget.Cents)
	}

	b.Categories[0].Spent = Money{Cents: 9599}
	if got := b.TotalSpent().Cents; got != 9599 {
		t.Errorf("total spent = %d, want 9599", got)
	}
	if got := b.Remaining().Cents; got != 60401 {
		t.Errorf("remaining = %d, want 60401", got)
	}
	want := float64(9599) / float64(70000) * 100
	if got := b.Utilization(); got != want {
		t.Errorf("utilization = %v, want %v", got, want)
	}
}

func TestClassifyUtilization(t *testing.T) {
	cases := []struct {
		pct  float64
		want UtilizationStatus
	}{
		{0, UtilizationGood},
		{74.9, UtilizationGood},
		{75, UtilizationWarning},
		{89.9, UtilizationWarning},
		{90, UtilizationCritical},
		{99.9, UtilizationCritical},
		{100, UtilizationExceeded},
		{150, UtilizationExceeded},
	}
	for _, tc := range cases {
		if got := ClassifyUtilization(tc.pct); got != tc.want {
			t.Errorf("ClassifyUtilization(%v) = %v, want %v", tc.pct, got, tc.want)
		}
	}
}

func TestPeriodContains(t *testing.T) {
	p := Period{StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31)}
	cases := []struct {
		ts   time.Time
		want bool
	}{
		{date(2025, 3, 1), true},  // inclusive start
		{date(2025, 3, 31), true}, // inclusive end
		{date(2025, 3, 15), true},
		{date(2025, 2, 28), false},
		{date(2025, 4, 1), false},
	}
	for _, tc := range cases {
		if got := p.Contains(tc.ts); got != tc.want {
			t.Errorf("Contains(%s) = %v, want %v", tc.ts.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestRecurringPatternNext(t *testing.T) {
	start := date(2025, 1, 31)
	cases := []struct {
		p    RecurringPattern
		want time.Time
	}{
		{RecurringPattern{Frequency: RepeatDaily, Interval: 1}, date(2025, 2, 1)},
		{RecurringPattern{Frequency: RepeatWeekly, Interval: 2}, date(2025, 2, 14)},
		{RecurringPattern{Frequency: RepeatMonthly, Interval: 1}, date(2025, 3, 3)}, // Jan 31 + 1 month normalizes
		{RecurringPattern{Frequency: RepeatYearly, Interval: 1}, date(2026, 1, 31)},
	}
	for _, tc := range cases {
		if got := tc.p.Next(start); !got.Equal(tc.want) {
			t.Errorf("%s x%d Next = %s, want %s", tc.p.Frequency, tc.p.Interval, got, tc.want)
		}
	}
}
