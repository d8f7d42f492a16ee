package core

import "time"

// Pagination bounds list queries. Zero values fall back to the defaults.
type Pagination struct {
	Page  int
	Limit int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Normalize clamps the pagination to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Offset is the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageInfo describes a returned page.
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPageInfo derives page metadata from a normalized pagination and the
// total filtered row count.
func NewPageInfo(p Pagination, total int64) PageInfo {
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	Type            *CategoryType
	Search          string
	IncludeArchived bool
	Pagination
}

// TransactionFilter narrows transaction listings and summaries. All fields
// combine with AND; nil pointers mean "any".
type TransactionFilter struct {
	Type       *TransactionType
	CategoryID *int64
	Status     *TransactionStatus
	StartDate  *time.Time
	EndDate    *time.Time
	MinAmount  *Money
	MaxAmount  *Money
	Tags       []string
	Search     string
	SortBy     string // date | amount | description; default date
	SortOrder  string // asc | desc; default desc
	Pagination
}

// BudgetFilter narrows budget listings.
type BudgetFilter struct {
	Status *BudgetStatus
	Type   *BudgetType
	Pagination
}

// TransactionSummary aggregates the filtered transaction set, not the whole
// table.
type TransactionSummary struct {
	TotalIncome      Money `json:"totalIncome"`
	TotalExpense     Money `json:"totalExpense"`
	TotalTransfer    Money `json:"totalTransfer"`
	TransactionCount int64 `json:"transactionCount"`
	AverageAmount    Money `json:"averageAmount"`
}

// NetSavings is income minus expense over the summarized set.
func (s TransactionSummary) NetSavings() Money {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// CategoryTotal is a per-category aggregate used by transaction analytics.
type CategoryTotal struct {
	CategoryID    int64  `json:"categoryId"`
	CategoryName  string `json:"categoryName"`
	Total         Money  `json:"total"`
	Count         int64  `json:"count"`
	AverageAmount Money  `json:"averageAmount"`
}

// MonthlyTrend is a per-month, per-type aggregate used by transaction
// analytics.
type MonthlyTrend struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Type  TransactionType `json:"type"`
	Total Money           `json:"total"`
	Count int64           `json:"count"`
}
