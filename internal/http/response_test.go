package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind core.Kind
		want int
	}{
		{core.KindUnauthenticated, http.StatusUnauthorized},
		{core.KindNotFound, http.StatusNotFound},
		{core.KindValidationFailed, http.StatusBadRequest},
		{core.KindConflict, http.StatusConflict},
		{core.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantStatus  string
		wantMessage string
	}{
		{
			name:        "validation failure uses Fail",
			err:         core.ValidationFailed("Budget name is required"),
			wantCode:    http.StatusBadRequest,
			wantStatus:  "Fail",
			wantMessage: "Budget name is required",
		},
		{
			name:        "not found uses Fail",
			err:         core.NotFound("Budget not found"),
			wantCode:    http.StatusNotFound,
			wantStatus:  "Fail",
			wantMessage: "Budget not found",
		},
		{
			name:        "conflict uses Fail",
			err:         core.Conflict("Duplicate categories are not allowed"),
			wantCode:    http.StatusConflict,
			wantStatus:  "Fail",
			wantMessage: "Duplicate categories are not allowed",
		},
		{
			name:        "internal uses error and appends cause",
			err:         core.Internal("reconcile: update spent amounts", errors.New("disk I/O error")),
			wantCode:    http.StatusInternalServerError,
			wantStatus:  "error",
			wantMessage: "reconcile: update spent amounts: disk I/O error",
		},
		{
			name:        "plain error defaults to internal",
			err:         errors.New("boom"),
			wantCode:    http.StatusInternalServerError,
			wantStatus:  "error",
			wantMessage: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil)
			writeError(rr, req, tt.err)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}

			var env failureEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if env.Status != tt.wantStatus {
				t.Errorf("envelope status = %q, want %q", env.Status, tt.wantStatus)
			}
			if env.Message != tt.wantMessage {
				t.Errorf("envelope message = %q, want %q", env.Message, tt.wantMessage)
			}
			if env.Timestamp.IsZero() {
				t.Error("envelope timestamp not set")
			}
		})
	}
}

func TestWriteDataTimestampIsFresh(t *testing.T) {
	rr1 := httptest.NewRecorder()
	writeData(rr1, http.StatusOK, map[string]string{"a": "b"})
	time.Sleep(5 * time.Millisecond)
	rr2 := httptest.NewRecorder()
	writeData(rr2, http.StatusOK, map[string]string{"a": "b"})

	var e1, e2 successEnvelope
	if err := json.Unmarshal(rr1.Body.Bytes(), &e1); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(rr2.Body.Bytes(), &e2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e2.Timestamp.After(e1.Timestamp) {
		t.Errorf("timestamps should advance between responses: %v then %v", e1.Timestamp, e2.Timestamp)
	}
}
