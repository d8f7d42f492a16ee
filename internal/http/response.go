package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
)

// successEnvelope wraps every successful response body.
type successEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// failureEnvelope wraps every failed response body. Status is "Fail" for
// client-caused rejections and "error" for server-side faults.
type failureEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// writeData writes the success envelope. The timestamp is generated per
// response, never cached.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successEnvelope{
		Timestamp: time.Now().UTC(),
		Data:      data,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps an error kind to an HTTP status and the failure envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		message = coreErr.Message
		if coreErr.Err != nil && kind == core.KindInternal {
			message = coreErr.Message + ": " + coreErr.Err.Error()
		}
	}

	envelopeStatus := "Fail"
	if status >= 500 {
		envelopeStatus = "error"
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(failureEnvelope{
		Timestamp: time.Now().UTC(),
		Status:    envelopeStatus,
		Message:   message,
	}); encodeErr != nil {
		slog.Error("Failed to encode error response", "error", encodeErr)
	}
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindUnauthenticated:
		return http.StatusUnauthorized
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindValidationFailed:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
