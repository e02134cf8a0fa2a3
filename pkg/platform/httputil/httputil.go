// Package httputil centralizes JSON response writing so every handler
// produces the same envelope for successes and errors.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseview/pkg/domain-errors"
)

// ErrorResponse is the body returned for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error code to an HTTP status and writes the
// standard error envelope. Non-domain errors become 500s with a generic
// message so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal server error"
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	WriteJSON(w, statusFor(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: message,
	})
}

// statusFor maps error codes to HTTP statuses. Conflicts answer 400,
// not 409: existing API clients treat both as a validation failure.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
