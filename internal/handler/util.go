package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/internal/service"
)

const (
	codeInvalidBody = "VALIDATION_FAILURE"
	codeNotFound    = "NOT_FOUND"
	codeInternal    = "INTERNAL_ERROR"
	codeUnavailable = "UNAVAILABLE"

	// maxBodyBytes bounds every JSON request body.
	maxBodyBytes = 64 << 10
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &model.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// statusFor maps a service error code to its HTTP status.
func statusFor(code service.ErrorCode) int {
	switch code {
	case service.ErrorValidation:
		return http.StatusBadRequest
	case service.ErrorGeneration:
		return http.StatusBadGateway
	case service.ErrorDelivery:
		return http.StatusFailedDependency
	case service.ErrorUpstreamUnavailable:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the response body for a failed service call. run may be
// nil when the failure happened before a run started. Only the reason is
// exposed; wrapped upstream errors stay in the logs.
func errorBody(err error, run *model.Run) (int, *model.ErrorResponse) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, &model.ErrorResponse{Error: "internal error", Code: codeInternal}
	}

	body := &model.ErrorResponse{
		Error: svcErr.Reason,
		Code:  string(svcErr.Code),
	}
	if run != nil {
		completed := run.TurnsCompleted
		body.RunID = run.ID
		body.TurnsCompleted = &completed
	}
	return statusFor(svcErr.Code), body
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
