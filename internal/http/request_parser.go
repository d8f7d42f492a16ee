package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const dateLayout = "2006-01-02"

// decodeJSON parses a request body, rejecting malformed JSON and unknown
// fields before the business-rule validation runs.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return core.ValidationFailed("Invalid request body: " + err.Error())
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, core.ValidationFailedf("Invalid date %q: use YYYY-MM-DD", value)
	}
	return t, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, core.ValidationFailedf("Invalid id %q", raw)
	}
	return id, nil
}

func parsePagination(r *http.Request) core.Pagination {
	q := r.URL.Query()
	var p core.Pagination
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Limit = n
		}
	}
	return p
}

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (req categoryRequest) toCore() core.Category {
	return core.Category{
		Name:  req.Name,
		Type:  core.CategoryType(req.Type),
		Color: req.Color,
		Icon:  req.Icon,
	}
}

type categoryPatchRequest struct {
	Name  *string `json:"name"`
	Type  *string `json:"type"`
	Color *string `json:"color"`
	Icon  *string `json:"icon"`
}

func (req categoryPatchRequest) toPatch() services.CategoryPatch {
	patch := services.CategoryPatch{
		Name:  req.Name,
		Color: req.Color,
		Icon:  req.Icon,
	}
	if req.Type != nil {
		t := core.CategoryType(*req.Type)
		patch.Type = &t
	}
	return patch
}

func parseCategoryFilter(r *http.Request) core.CategoryFilter {
	q := r.URL.Query()
	f := core.CategoryFilter{
		Search:          strings.TrimSpace(q.Get("search")),
		IncludeArchived: q.Get("includeArchived") == "true",
		Pagination:      parsePagination(r),
	}
	if v := q.Get("type"); v != "" {
		t := core.CategoryType(v)
		f.Type = &t
	}
	return f
}

type recurringRequest struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	EndDate   string `json:"endDate"`
}

func (req *recurringRequest) toCore() (*core.RecurringPattern, error) {
	if req == nil {
		return nil, nil
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	interval := req.Interval
	if interval == 0 {
		interval = 1
	}
	return &core.RecurringPattern{
		Frequency: core.RepeatFrequency(req.Frequency),
		Interval:  interval,
		EndDate:   end,
	}, nil
}

type transactionRequest struct {
	CategoryID  *int64            `json:"categoryId"`
	Type        string            `json:"type"`
	Amount      core.Money        `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Date        string            `json:"date"`
	Tags        []string          `json:"tags"`
	Location    string            `json:"location"`
	Status      string            `json:"status"`
	Recurring   *recurringRequest `json:"recurring"`
}

func (req transactionRequest) toCore() (core.Transaction, error) {
	t := core.Transaction{
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Amount:      req.Amount,
		Currency:    core.Currency(req.Currency),
		Description: req.Description,
		Tags:        req.Tags,
		Location:    req.Location,
		Status:      core.TransactionStatus(req.Status),
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Date = date
	}
	recurring, err := req.Recurring.toCore()
	if err != nil {
		return core.Transaction{}, err
	}
	t.Recurring = recurring
	return t, nil
}

type transactionPatchRequest struct {
	CategoryID    *int64            `json:"categoryId"`
	ClearCategory bool              `json:"clearCategory"`
	Type          *string           `json:"type"`
	Amount        *core.Money       `json:"amount"`
	Currency      *string           `json:"currency"`
	Description   *string           `json:"description"`
	Date          *string           `json:"date"`
	Tags          []string          `json:"tags"`
	Location      *string           `json:"location"`
	Status        *string           `json:"status"`
	Recurring     *recurringRequest `json:"recurring"`
}

func (req transactionPatchRequest) toPatch() (services.TransactionPatch, error) {
	patch := services.TransactionPatch{
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Amount:        req.Amount,
		Description:   req.Description,
		Tags:          req.Tags,
		Location:      req.Location,
	}
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		patch.Type = &t
	}
	if req.Currency != nil {
		c := core.Currency(*req.Currency)
		patch.Currency = &c
	}
	if req.Status != nil {
		s := core.TransactionStatus(*req.Status)
		patch.Status = &s
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return services.TransactionPatch{}, err
		}
		patch.Date = &date
	}
	if req.Recurring != nil {
		recurring, err := req.Recurring.toCore()
		if err != nil {
			return services.TransactionPatch{}, err
		}
		patch.Recurring = recurring
	}
	return patch, nil
}

func parseTransactionFilter(r *http.Request) (core.TransactionFilter, error) {
	q := r.URL.Query()
	f := core.TransactionFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
		Pagination: parsePagination(r),
	}
	if v := q.Get("type"); v != "" {
		t := core.TransactionType(v)
		f.Type = &t
	}
	if v := q.Get("status"); v != "" {
		s := core.TransactionStatus(v)
		f.Status = &s
	}
	if v := q.Get("categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, core.ValidationFailedf("Invalid categoryId %q", v)
		}
		f.CategoryID = &id
	}
	if v := q.Get("startDate"); v != "" {
		date, err := parseDate(v)
		if err != nil {
			return f, err
		}
		f.StartDate = &date
	}
	if v := q.Get("endDate"); v != "" {
		date, err := parseDate(v)
		if err != nil {
			return f, err
		}
		f.EndDate = &date
	}
	if v := q.Get("minAmount"); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			return f, core.ValidationFailedf("Invalid minAmount %q", v)
		}
		f.MinAmount = &core.Money{Cents: cents}
	}
	if v := q.Get("maxAmount"); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			return f, core.ValidationFailedf("Invalid maxAmount %q", v)
		}
		f.MaxAmount = &core.Money{Cents: cents}
	}
	if v := q.Get("tags"); v != "" {
		f.Tags = strings.Split(v, ",")
	}
	return f, nil
}

type allocationRequest struct {
	CategoryID int64      `json:"categoryId"`
	Allocated  core.Money `json:"allocatedAmount"`
	Color      string     `json:"color"`
}

type notificationsRequest struct {
	Enabled     bool `json:"enabled"`
	Threshold   int  `json:"threshold"`
	EmailAlerts bool `json:"emailAlerts"`
	PushAlerts  bool `json:"pushAlerts"`
}

type budgetRequest struct {
	Name          string                `json:"name"`
	Type          string                `json:"type"`
	StartDate     string                `json:"startDate"`
	EndDate       string                `json:"endDate"`
	Categories    []allocationRequest   `json:"categories"`
	Currency      string                `json:"currency"`
	Notifications *notificationsRequest `json:"notifications"`
	Tags          []string              `json:"tags"`
	Notes         string                `json:"notes"`
}

func (req budgetRequest) toCore() (core.Budget, error) {
	b := core.Budget{
		Name:     req.Name,
		Type:     core.BudgetType(req.Type),
		Currency: core.Currency(req.Currency),
		Tags:     req.Tags,
		Notes:    req.Notes,
	}
	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			return core.Budget{}, err
		}
		b.Period.StartDate = start
	}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			return core.Budget{}, err
		}
		b.Period.EndDate = end
	}
	b.Categories = make([]core.Allocation, len(req.Categories))
	for i, alloc := range req.Categories {
		b.Categories[i] = core.Allocation{
			CategoryID: alloc.CategoryID,
			Allocated:  alloc.Allocated,
			Color:      alloc.Color,
		}
	}
	if req.Notifications != nil {
		b.Notifications = core.Notifications{
			Enabled:     req.Notifications.Enabled,
			Threshold:   req.Notifications.Threshold,
			EmailAlerts: req.Notifications.EmailAlerts,
			PushAlerts:  req.Notifications.PushAlerts,
		}
	}
	return b, nil
}

type budgetPatchRequest struct {
	Name          *string               `json:"name"`
	Type          *string               `json:"type"`
	StartDate     *string               `json:"startDate"`
	EndDate       *string               `json:"endDate"`
	Categories    []allocationRequest   `json:"categories"`
	Currency      *string               `json:"currency"`
	Status        *string               `json:"status"`
	Notifications *notificationsRequest `json:"notifications"`
	Tags          []string              `json:"tags"`
	Notes         *string               `json:"notes"`
}

func (req budgetPatchRequest) toPatch() (services.BudgetPatch, error) {
	patch := services.BudgetPatch{
		Name:  req.Name,
		Tags:  req.Tags,
		Notes: req.Notes,
	}
	if req.Type != nil {
		t := core.BudgetType(*req.Type)
		patch.Type = &t
	}
	if req.Currency != nil {
		c := core.Currency(*req.Currency)
		patch.Currency = &c
	}
	if req.Status != nil {
		s := core.BudgetStatus(*req.Status)
		patch.Status = &s
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			return services.BudgetPatch{}, err
		}
		patch.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			return services.BudgetPatch{}, err
		}
		patch.EndDate = &end
	}
	if req.Categories != nil {
		patch.Categories = make([]core.Allocation, len(req.Categories))
		for i, alloc := range req.Categories {
			patch.Categories[i] = core.Allocation{
				CategoryID: alloc.CategoryID,
				Allocated:  alloc.Allocated,
				Color:      alloc.Color,
			}
		}
	}
	if req.Notifications != nil {
		patch.Notifications = &core.Notifications{
			Enabled:     req.Notifications.Enabled,
			Threshold:   req.Notifications.Threshold,
			EmailAlerts: req.Notifications.EmailAlerts,
			PushAlerts:  req.Notifications.PushAlerts,
		}
	}
	return patch, nil
}

func parseBudgetFilter(r *http.Request) core.BudgetFilter {
	q := r.URL.Query()
	f := core.BudgetFilter{Pagination: parsePagination(r)}
	if v := q.Get("status"); v != "" {
		s := core.BudgetStatus(v)
		f.Status = &s
	}
	if v := q.Get("type"); v != "" {
		t := core.BudgetType(v)
		f.Type = &t
	}
	return f
}
