package core

import "fmt"

type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// CategoryBreakdown is one category row of a budget's analytics view,
// derived from already-reconciled state.
type CategoryBreakdown struct {
	CategoryID   int64             `json:"categoryId"`
	CategoryName string            `json:"categoryName"`
	Allocated    Money             `json:"allocated"`
	Spent        Money             `json:"spent"`
	Remaining    Money             `json:"remaining"`
	Percentage   float64           `json:"percentage"`
	Status       UtilizationStatus `json:"status"`
	Color        string            `json:"color"`
}

// CategoryBreakdown expands the budget's allocations into analytics rows.
// names maps category IDs to display names; unknown IDs get an empty name.
func (b Budget) CategoryBreakdown(names map[int64]string) []CategoryBreakdown {
	rows := make([]CategoryBreakdown, len(b.Categories))
	for i, alloc := range b.Categories {
		pct := 0.0
		if alloc.Allocated.Cents > 0 {
			pct = float64(alloc.Spent.Cents) / float64(alloc.Allocated.Cents) * 100
		}
		rows[i] = CategoryBreakdown{
			CategoryID:   alloc.CategoryID,
			CategoryName: names[alloc.CategoryID],
			Allocated:    alloc.Allocated,
			Spent:        alloc.Spent,
			Remaining:    alloc.Allocated.Sub(alloc.Spent),
			Percentage:   pct,
			Status:       ClassifyUtilization(pct),
			Color:        alloc.Color,
		}
	}
	return rows
}

// Alert is a threshold-crossing notice for a budget or one of its
// categories. CategoryID is zero for budget-level alerts.
type Alert struct {
	Level        AlertLevel `json:"level"`
	Message      string     `json:"message"`
	BudgetID     int64      `json:"budgetId"`
	BudgetName   string     `json:"budgetName"`
	CategoryID   int64      `json:"categoryId,omitempty"`
	CategoryName string     `json:"categoryName,omitempty"`
	Utilization  float64    `json:"utilization"`
}

// GenerateAlerts derives alerts from a reconciled budget and its breakdown
// rows. At most one budget-level alert is emitted: critical when overall
// utilization reaches 100%, warning when it reaches 90%. Each category row
// adds a critical alert when exceeded and a warning when in the 90-100%
// band. No side effects.
func GenerateAlerts(b Budget, breakdown []CategoryBreakdown) []Alert {
	var alerts []Alert

	pct := b.Utilization()
	switch {
	case pct >= 100:
		alerts = append(alerts, Alert{
			Level:       AlertCritical,
			Message:     fmt.Sprintf("Budget '%s' has exceeded its limit (%.1f%% used)", b.Name, pct),
			BudgetID:    b.ID,
			BudgetName:  b.Name,
			Utilization: pct,
		})
	case pct >= 90:
		alerts = append(alerts, Alert{
			Level:       AlertWarning,
			Message:     fmt.Sprintf("Budget '%s' is nearing its limit (%.1f%% used)", b.Name, pct),
			BudgetID:    b.ID,
			BudgetName:  b.Name,
			Utilization: pct,
		})
	}

	for _, row := range breakdown {
		switch row.Status {
		case UtilizationExceeded:
			alerts = append(alerts, Alert{
				Level:        AlertCritical,
				Message:      fmt.Sprintf("Category '%s' in budget '%s' has exceeded its allocation (%.1f%% used)", row.CategoryName, b.Name, row.Percentage),
				BudgetID:     b.ID,
				BudgetName:   b.Name,
				CategoryID:   row.CategoryID,
				CategoryName: row.CategoryName,
				Utilization:  row.Percentage,
			})
		case UtilizationCritical:
			alerts = append(alerts, Alert{
				Level:        AlertWarning,
				Message:      fmt.Sprintf("Category '%s' in budget '%s' is nearing its allocation (%.1f%% used)", row.CategoryName, b.Name, row.Percentage),
				BudgetID:     b.ID,
				BudgetName:   b.Name,
				CategoryID:   row.CategoryID,
				CategoryName: row.CategoryName,
				Utilization:  row.Percentage,
			})
		}
	}

	return alerts
}
