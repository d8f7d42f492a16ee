package http

import (
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/importer"
)

type recurringResponse struct {
	Frequency string    `json:"frequency"`
	Interval  int       `json:"interval"`
	EndDate   time.Time `json:"endDate"`
}

type transactionResponse struct {
	ID          int64              `json:"id"`
	CategoryID  *int64             `json:"categoryId,omitempty"`
	Type        string             `json:"type"`
	Amount      core.Money         `json:"amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"description"`
	Date        time.Time          `json:"date"`
	Tags        []string           `json:"tags,omitempty"`
	Location    string             `json:"location,omitempty"`
	Status      string             `json:"status"`
	Recurring   *recurringResponse `json:"recurring,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func toTransactionResponse(t *core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID,
		CategoryID:  t.CategoryID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Currency:    string(t.Currency),
		Description: t.Description,
		Date:        t.Date,
		Tags:        t.Tags,
		Location:    t.Location,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Recurring != nil {
		resp.Recurring = &recurringResponse{
			Frequency: string(t.Recurring.Frequency),
			Interval:  t.Recurring.Interval,
			EndDate:   t.Recurring.EndDate,
		}
	}
	return resp
}

type transactionListResponse struct {
	Transactions []transactionResponse   `json:"transactions"`
	Summary      core.TransactionSummary `json:"summary"`
	Page         core.PageInfo           `json:"page"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
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
	tx, err := s.transactions.Create(r.Context(), principal.UserID, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	tx, err := s.transactions.Get(r.Context(), principal.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	txs, summary, page, err := s.transactions.List(r.Context(), principal.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := transactionListResponse{
		Transactions: make([]transactionResponse, len(txs)),
		Summary:      summary,
		Page:         page,
	}
	for i := range txs {
		resp.Transactions[i] = toTransactionResponse(&txs[i])
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionPatchRequest
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
	tx, err := s.transactions.Update(r.Context(), principal.UserID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	if err := s.transactions.Delete(r.Context(), principal.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	summary, err := s.transactions.Summarize(r.Context(), principal.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"summary":    summary,
		"netSavings": summary.NetSavings(),
	})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	totals, err := s.transactions.CategoryBreakdown(r.Context(), principal.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"categories": totals})
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	trends, err := s.transactions.MonthlyTrends(r.Context(), principal.UserID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"trends": trends})
}

func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 5
	if v := r.URL.Query().Get("top"); v != "" {
		if n, parseErr := strconv.Atoi(v); parseErr == nil && n > 0 {
			limit = n
		}
	}

	principal := principalFrom(r.Context())
	totals, err := s.transactions.TopSpendingCategories(r.Context(), principal.UserID, filter, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"categories": totals})
}

type bulkImportRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, r, core.ValidationFailed("At least one transaction is required"))
		return
	}

	drafts := make([]core.Transaction, len(req.Transactions))
	for i, txReq := range req.Transactions {
		draft, err := txReq.toCore()
		if err != nil {
			writeError(w, r, err)
			return
		}
		drafts[i] = draft
	}

	principal := principalFrom(r.Context())
	result, err := s.transactions.BulkImport(r.Context(), principal.UserID, drafts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// handleOFXImport parses an OFX statement body into drafts and imports
// them like a bulk request.
func (s *Server) handleOFXImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, 4<<20)
	defer body.Close()

	drafts, err := importer.ParseOFX(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(drafts) == 0 {
		writeError(w, r, core.ValidationFailed("Statement contains no transactions"))
		return
	}

	categoryID, err := ofxCategoryID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range drafts {
		drafts[i].CategoryID = categoryID
	}

	principal := principalFrom(r.Context())
	result, err := s.transactions.BulkImport(r.Context(), principal.UserID, drafts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// ofxCategoryID reads the target category for imported rows from the query
// string. OFX statements carry no category information of their own.
func ofxCategoryID(r *http.Request) (*int64, error) {
	v := r.URL.Query().Get("categoryId")
	if v == "" {
		return nil, core.ValidationFailed("categoryId query parameter is required for OFX import")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return nil, core.ValidationFailedf("Invalid categoryId %q", v)
	}
	return &id, nil
}
