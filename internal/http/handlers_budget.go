package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
)

type allocationResponse struct {
	CategoryID int64      `json:"categoryId"`
	Allocated  core.Money `json:"allocatedAmount"`
	Spent      core.Money `json:"spentAmount"`
	Color      string     `json:"color"`
}

type budgetResponse struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	StartDate     time.Time              `json:"startDate"`
	EndDate       time.Time              `json:"endDate"`
	Categories    []allocationResponse   `json:"categories"`
	TotalBudget   core.Money             `json:"totalBudget"`
	TotalSpent    core.Money             `json:"totalSpent"`
	Remaining     core.Money             `json:"remainingBudget"`
	Utilization   float64                `json:"utilizationPercentage"`
	BudgetStatus  core.UtilizationStatus `json:"budgetStatus"`
	Currency      string                 `json:"currency"`
	Status        string                 `json:"status"`
	Notifications core.Notifications     `json:"notifications"`
	Tags          []string               `json:"tags,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

func toBudgetResponse(b *core.Budget) budgetResponse {
	resp := budgetResponse{
		ID:            b.ID,
		Name:          b.Name,
		Type:          string(b.Type),
		StartDate:     b.Period.StartDate,
		EndDate:       b.Period.EndDate,
		Categories:    make([]allocationResponse, len(b.Categories)),
		TotalBudget:   b.TotalBudget,
		TotalSpent:    b.TotalSpent(),
		Remaining:     b.Remaining(),
		Utilization:   b.Utilization(),
		BudgetStatus:  b.UtilizationStatus(),
		Currency:      string(b.Currency),
		Status:        string(b.Status),
		Notifications: b.Notifications,
		Tags:          b.Tags,
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	for i, alloc := range b.Categories {
		resp.Categories[i] = allocationResponse{
			CategoryID: alloc.CategoryID,
			Allocated:  alloc.Allocated,
			Spent:      alloc.Spent,
			Color:      alloc.Color,
		}
	}
	return resp
}

type budgetListResponse struct {
	Budgets []budgetResponse `json:"budgets"`
	Page    core.PageInfo    `json:"page"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := req.toCore()
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	budget, err := s.budgets.Create(r.Context(), principal.UserID, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toBudgetResponse(budget))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	budget, err := s.budgets.Get(r.Context(), principal.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toBudgetResponse(budget))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	budgets, page, err := s.budgets.List(r.Context(), principal.UserID, parseBudgetFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := budgetListResponse{
		Budgets: make([]budgetResponse, len(budgets)),
		Page:    page,
	}
	for i := range budgets {
		resp.Budgets[i] = toBudgetResponse(&budgets[i])
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req budgetPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	budget, err := s.budgets.Update(r.Context(), principal.UserID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toBudgetResponse(budget))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	if err := s.budgets.Delete(r.Context(), principal.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": string(core.BudgetCancelled)})
}

func (s *Server) handleBudgetAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	analytics, err := s.budgets.Analytics(r.Context(), principal.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recent := make([]transactionResponse, len(analytics.RecentTransactions))
	for i := range analytics.RecentTransactions {
		recent[i] = toTransactionResponse(&analytics.RecentTransactions[i])
	}
	writeData(w, http.StatusOK, map[string]any{
		"budget":             toBudgetResponse(analytics.Budget),
		"totalSpent":         analytics.TotalSpent,
		"remainingBudget":    analytics.Remaining,
		"utilization":        analytics.Utilization,
		"status":             analytics.Status,
		"categoryBreakdown":  analytics.CategoryBreakdown,
		"recentTransactions": recent,
		"alerts":             analytics.Alerts,
	})
}

func (s *Server) handleBudgetOverview(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	overview, err := s.budgets.Overview(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, overview)
}

type duplicateBudgetRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (s *Server) handleDuplicateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req duplicateBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var period *core.Period
	if req.StartDate != "" || req.EndDate != "" {
		if req.StartDate == "" || req.EndDate == "" {
			writeError(w, r, core.ValidationFailed("Both startDate and endDate are required to override the period"))
			return
		}
		start, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := parseDate(req.EndDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		period = &core.Period{StartDate: start, EndDate: end}
	}

	principal := principalFrom(r.Context())
	budget, err := s.budgets.Duplicate(r.Context(), principal.UserID, id, req.Name, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toBudgetResponse(budget))
}
