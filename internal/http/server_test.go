package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	provider, err := auth.ParseTokenTable("alice-token=alice,bob-token=bob")
	if err != nil {
		t.Fatalf("parse tokens: %v", err)
	}

	budgets := services.NewBudgetService(repo, repo, repo, nil)
	transactions := services.NewTransactionService(repo, repo, budgets)
	categories := services.NewCategoryService(repo)

	srv := NewServer(":0", provider, categories, transactions, budgets)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (body %s)", err, rr.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("unmarshal data: %v (data %s)", err, env.Data)
	}
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/categories", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	var env failureEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Status != "Fail" {
		t.Errorf("envelope status = %q, want Fail", env.Status)
	}
	if env.Message != "Authorization header is required" {
		t.Errorf("envelope message = %q", env.Message)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/categories", "wrong-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown token status = %d, want 401", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/api/v1/categories", "alice-token", nil)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestCategoryLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/categories", "alice-token", map[string]any{
		"name": "Groceries",
		"type": "expense",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created categoryResponse
	decodeData(t, rr, &created)
	if created.ID == 0 || created.Name != "Groceries" {
		t.Fatalf("unexpected category: %+v", created)
	}

	// Duplicate names collide per user.
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/categories", "alice-token", map[string]any{
		"name": "Groceries",
		"type": "expense",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rr.Code)
	}

	// Same name is free for another user.
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/categories", "bob-token", map[string]any{
		"name": "Groceries",
		"type": "expense",
	})
	if rr.Code != http.StatusCreated {
		t.Errorf("other user status = %d, want 201", rr.Code)
	}

	// Bob cannot read Alice's category.
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/categories/"+strconv.FormatInt(created.ID, 10), "bob-token", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", rr.Code)
	}
}

func TestBudgetReconciliationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var grocery categoryResponse
	rr := doJSON(t, srv, http.MethodPost, "/api/v1/categories", "alice-token", map[string]any{
		"name": "Groceries",
		"type": "expense",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rr.Code, rr.Body.String())
	}
	decodeData(t, rr, &grocery)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/transactions", "alice-token", map[string]any{
		"categoryId":  grocery.ID,
		"type":        "expense",
		"amount":      45.99,
		"description": "Weekly shop",
		"date":        "2026-08-15",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/budgets", "alice-token", map[string]any{
		"name":      "August",
		"startDate": "2026-08-01",
		"endDate":   "2026-08-31",
		"categories": []map[string]any{
			{"categoryId": grocery.ID, "allocatedAmount": 100.00},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget: %d %s", rr.Code, rr.Body.String())
	}

	var budget budgetResponse
	decodeData(t, rr, &budget)
	if budget.TotalBudget.Cents != 10000 {
		t.Errorf("totalBudget = %d cents, want 10000", budget.TotalBudget.Cents)
	}
	if budget.TotalSpent.Cents != 4599 {
		t.Errorf("totalSpent = %d cents, want 4599", budget.TotalSpent.Cents)
	}
	if budget.Remaining.Cents != 5401 {
		t.Errorf("remainingBudget = %d cents, want 5401", budget.Remaining.Cents)
	}

	// A pending transaction must not change the reconciled numbers.
	rr = doJSON(t, srv, http.MethodPost, "/api/v1/transactions", "alice-token", map[string]any{
		"categoryId":  grocery.ID,
		"type":        "expense",
		"amount":      20.00,
		"description": "Preorder",
		"date":        "2026-08-20",
		"status":      "pending",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create pending transaction: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/budgets/1", "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get budget: %d %s", rr.Code, rr.Body.String())
	}
	decodeData(t, rr, &budget)
	if budget.TotalSpent.Cents != 4599 {
		t.Errorf("totalSpent after pending tx = %d cents, want 4599", budget.TotalSpent.Cents)
	}

	// Bob sees none of it.
	rr = doJSON(t, srv, http.MethodGet, "/api/v1/budgets/1", "bob-token", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", rr.Code)
	}
}

func TestBudgetAnalyticsOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var dining categoryResponse
	rr := doJSON(t, srv, http.MethodPost, "/api/v1/categories", "alice-token", map[string]any{
		"name": "Dining",
		"type": "expense",
	})
	decodeData(t, rr, &dining)

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/transactions", "alice-token", map[string]any{
		"categoryId":  dining.ID,
		"type":        "expense",
		"amount":      95.00,
		"description": "Birthday dinner",
		"date":        "2026-08-10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/budgets", "alice-token", map[string]any{
		"name":      "August",
		"startDate": "2026-08-01",
		"endDate":   "2026-08-31",
		"categories": []map[string]any{
			{"categoryId": dining.ID, "allocatedAmount": 100.00},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/budgets/1/analytics", "alice-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics: %d %s", rr.Code, rr.Body.String())
	}

	var analytics struct {
		Utilization       float64 `json:"utilization"`
		Status            string  `json:"status"`
		CategoryBreakdown []struct {
			CategoryName string `json:"categoryName"`
			Status       string `json:"status"`
		} `json:"categoryBreakdown"`
		Alerts []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"alerts"`
	}
	decodeData(t, rr, &analytics)

	if analytics.Utilization != 95.0 {
		t.Errorf("utilization = %v, want 95", analytics.Utilization)
	}
	if analytics.Status != "critical" {
		t.Errorf("status = %q, want critical", analytics.Status)
	}
	if len(analytics.CategoryBreakdown) != 1 || analytics.CategoryBreakdown[0].CategoryName != "Dining" {
		t.Fatalf("unexpected breakdown: %+v", analytics.CategoryBreakdown)
	}
	if len(analytics.Alerts) == 0 {
		t.Error("expected at least one alert at 95% utilization")
	}
}

func TestInvalidJSONBodyRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", bytes.NewReader([]byte(`{"name": "x", "unknown": 1}`)))
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
