package core

import (
	"strings"
	"time"
)

// Entity enums. Soft deletion is an explicit lifecycle state per entity:
// categories carry an Archived flag, budgets a cancelled status.
const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"

	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"

	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"

	BudgetMonthly BudgetType = "monthly"
	BudgetYearly  BudgetType = "yearly"
	BudgetCustom  BudgetType = "custom"

	BudgetActive    BudgetStatus = "active"
	BudgetCompleted BudgetStatus = "completed"
	BudgetCancelled BudgetStatus = "cancelled"

	UtilizationGood     UtilizationStatus = "good"
	UtilizationWarning  UtilizationStatus = "warning"
	UtilizationCritical UtilizationStatus = "critical"
	UtilizationExceeded UtilizationStatus = "exceeded"

	RepeatDaily   RepeatFrequency = "daily"
	RepeatWeekly  RepeatFrequency = "weekly"
	RepeatMonthly RepeatFrequency = "monthly"
	RepeatYearly  RepeatFrequency = "yearly"
)

type (
	CategoryType      string
	TransactionType   string
	TransactionStatus string
	BudgetType        string
	BudgetStatus      string
	UtilizationStatus string
	RepeatFrequency   string
	Currency          string
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxNotesLength       = 500
	maxTagLength         = 20
	maxLocationLength    = 100
)

var currencies = map[Currency]bool{
	"USD": true, "EUR": true, "GBP": true, "INR": true, "CAD": true, "AUD": true,
}

// DefaultCurrency is applied when a client omits the currency label.
const DefaultCurrency Currency = "USD"

func (c Currency) Valid() bool { return currencies[c] }

func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense || t == TransactionTransfer
}

func (s TransactionStatus) Valid() bool {
	return s == TransactionPending || s == TransactionCompleted || s == TransactionCancelled
}

func (t BudgetType) Valid() bool {
	return t == BudgetMonthly || t == BudgetYearly || t == BudgetCustom
}

func (s BudgetStatus) Valid() bool {
	return s == BudgetActive || s == BudgetCompleted || s == BudgetCancelled
}

func (f RepeatFrequency) Valid() bool {
	return f == RepeatDaily || f == RepeatWeekly || f == RepeatMonthly || f == RepeatYearly
}

// Category is a per-user transaction label. (userID, name) is unique; an
// archived category stays attached to historical records but rejects new
// references.
type Category struct {
	ID        int64
	UserID    string
	Name      string
	Type      CategoryType
	Color     string
	Icon      string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ValidationFailed("Category name is required")
	}
	if len(c.Name) > maxNameLength {
		return ValidationFailed("Category name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		return ValidationFailed("Type must be either 'income' or 'expense'")
	}
	return nil
}

// RecurringPattern describes synchronous expansion of a transaction into
// future occurrences, bounded by EndDate.
type RecurringPattern struct {
	Frequency RepeatFrequency
	Interval  int
	EndDate   time.Time
}

func (p RecurringPattern) Validate() error {
	if !p.Frequency.Valid() {
		return ValidationFailed("Invalid recurring frequency")
	}
	if p.Interval < 1 {
		return ValidationFailed("Recurring interval must be at least 1")
	}
	if p.EndDate.IsZero() {
		return ValidationFailed("Recurring end date is required")
	}
	return nil
}

// Next returns the occurrence date following from, per the pattern.
func (p RecurringPattern) Next(from time.Time) time.Time {
	switch p.Frequency {
	case RepeatDaily:
		return from.AddDate(0, 0, p.Interval)
	case RepeatWeekly:
		return from.AddDate(0, 0, 7*p.Interval)
	case RepeatMonthly:
		return from.AddDate(0, p.Interval, 0)
	default:
		return from.AddDate(p.Interval, 0, 0)
	}
}

// Transaction is a single money movement. CategoryID is nil only for
// transfers; there is no direct budget reference — budgets resolve
// transactions by date range at reconciliation time.
type Transaction struct {
	ID          int64
	UserID      string
	CategoryID  *int64
	Type        TransactionType
	Amount      Money
	Currency    Currency
	Description string
	Date        time.Time
	Tags        []string
	Location    string
	Status      TransactionStatus
	Recurring   *RecurringPattern
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate enforces every rule that does not need a store lookup. Category
// existence, ownership, archival and type compatibility are checked by the
// transaction service against the category store.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ValidationFailed("Invalid transaction type")
	}
	if t.Amount.Cents <= 0 {
		return ValidationFailed("Amount must be greater than 0")
	}
	if strings.TrimSpace(t.Description) == "" {
		return ValidationFailed("Description is required")
	}
	if len(t.Description) > maxDescriptionLength {
		return ValidationFailed("Description too long (max 500 characters)")
	}
	if t.Type != TransactionTransfer && t.CategoryID == nil {
		return ValidationFailed("Category is required for income and expense transactions")
	}
	if !t.Currency.Valid() {
		return ValidationFailed("Invalid currency")
	}
	if !t.Status.Valid() {
		return ValidationFailed("Invalid transaction status")
	}
	if err := validateTags(t.Tags); err != nil {
		return err
	}
	if len(t.Location) > maxLocationLength {
		return ValidationFailed("Location too long (max 100 characters)")
	}
	if t.Recurring != nil {
		if err := t.Recurring.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CountsTowardBudgets reports whether this transaction contributes to
// budget spend figures: completed expenses only.
func (t Transaction) CountsTowardBudgets() bool {
	return t.Type == TransactionExpense && t.Status == TransactionCompleted
}

// Period is a closed date interval.
type Period struct {
	StartDate time.Time
	EndDate   time.Time
}

// Contains reports whether ts falls inside the period, inclusive both ends.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.StartDate) && !ts.After(p.EndDate)
}

func (p Period) Validate() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return ValidationFailed("Budget period with start and end dates is required")
	}
	if !p.EndDate.After(p.StartDate) {
		return ValidationFailed("End date must be after start date")
	}
	return nil
}

// Allocation is one category row of a budget's plan. Spent is derived state:
// only the reconciliation engine writes it.
type Allocation struct {
	CategoryID int64
	Allocated  Money
	Spent      Money
	Color      string
}

// Notifications controls alert publication for a budget.
type Notifications struct {
	Enabled     bool
	Threshold   int // utilization percentage, 0-100
	EmailAlerts bool
	PushAlerts  bool
}

// DefaultNotifications mirrors the defaults applied when a client omits the
// notifications block.
func DefaultNotifications() Notifications {
	return Notifications{Enabled: true, Threshold: 80, EmailAlerts: true, PushAlerts: true}
}

func (n Notifications) Validate() error {
	if n.Threshold < 0 || n.Threshold > 100 {
		return ValidationFailed("Notification threshold must be between 0 and 100")
	}
	return nil
}

// Budget is an allocation plan over a period, partitioned by category.
// TotalBudget and per-allocation Spent are derived: TotalBudget is
// recomputed on every save, Spent only by reconciliation.
type Budget struct {
	ID            int64
	UserID        string
	Name          string
	Type          BudgetType
	Period        Period
	Categories    []Allocation
	TotalBudget   Money
	Currency      Currency
	Status        BudgetStatus
	Notifications Notifications
	Tags          []string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate enforces the budget invariants that need no store access.
// Category existence/ownership/archival checks live in the budget service.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ValidationFailed("Budget name is required")
	}
	if len(b.Name) > maxNameLength {
		return ValidationFailed("Budget name too long (max 100 characters)")
	}
	if !b.Type.Valid() {
		return ValidationFailed("Invalid budget type")
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if len(b.Categories) == 0 {
		return ValidationFailed("At least one category is required")
	}
	seen := make(map[int64]bool, len(b.Categories))
	for _, alloc := range b.Categories {
		if alloc.CategoryID == 0 {
			return ValidationFailed("Each category must include categoryId")
		}
		if alloc.Allocated.Cents <= 0 {
			return ValidationFailed("Allocated amount must be greater than 0")
		}
		if seen[alloc.CategoryID] {
			return Conflict("Duplicate categories are not allowed")
		}
		seen[alloc.CategoryID] = true
	}
	if !b.Currency.Valid() {
		return ValidationFailed("Invalid currency")
	}
	if !b.Status.Valid() {
		return ValidationFailed("Invalid budget status")
	}
	if err := b.Notifications.Validate(); err != nil {
		return err
	}
	if err := validateTags(b.Tags); err != nil {
		return err
	}
	if len(b.Notes) > maxNotesLength {
		return ValidationFailed("Notes too long (max 500 characters)")
	}
	return nil
}

// TotalAllocated sums the allocation amounts. The persisted TotalBudget must
// always equal this.
func (b Budget) TotalAllocated() Money {
	var total Money
	for _, alloc := range b.Categories {
		total = total.Add(alloc.Allocated)
	}
	return total
}

// TotalSpent sums the derived per-category spend.
func (b Budget) TotalSpent() Money {
	var total Money
	for _, alloc := range b.Categories {
		total = total.Add(alloc.Spent)
	}
	return total
}

// Remaining is TotalBudget - TotalSpent; negative when overspent.
func (b Budget) Remaining() Money {
	return b.TotalBudget.Sub(b.TotalSpent())
}

// Utilization is TotalSpent / TotalBudget * 100, or 0 for an empty budget.
func (b Budget) Utilization() float64 {
	if b.TotalBudget.Cents <= 0 {
		return 0
	}
	return float64(b.TotalSpent().Cents) / float64(b.TotalBudget.Cents) * 100
}

// UtilizationStatus classifies the whole budget.
func (b Budget) UtilizationStatus() UtilizationStatus {
	return ClassifyUtilization(b.Utilization())
}

// ClassifyUtilization maps a utilization percentage to a status. Boundaries
// are inclusive: exactly 100.0 is exceeded, exactly 90.0 is critical.
func ClassifyUtilization(pct float64) UtilizationStatus {
	switch {
	case pct >= 100:
		return UtilizationExceeded
	case pct >= 90:
		return UtilizationCritical
	case pct >= 75:
		return UtilizationWarning
	default:
		return UtilizationGood
	}
}

func validateTags(tags []string) error {
	for _, tag := range tags {
		if len(tag) > maxTagLength {
			return ValidationFailed("Tag too long (max 20 characters)")
		}
	}
	return nil
}
