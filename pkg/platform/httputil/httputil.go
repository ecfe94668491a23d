// Package httputil centralizes domain error translation and JSON writing for
// HTTP transports.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// statusFor maps domain error codes to HTTP statuses. Configuration errors are
// server faults: they indicate drift between the flow definition and its rule
// tables, never bad user input.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeRequirementUnsatisfied:
		return http.StatusConflict
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a domain error as a JSON body. Internal and configuration
// failures omit the description so implementation detail never leaks to
// clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		// Bare infrastructure errors arrive without a domain code.
		switch {
		case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
			code = dErrors.CodeNotFound
		case errors.Is(err, sentinel.ErrConflict):
			code = dErrors.CodeConflict
		case errors.Is(err, sentinel.ErrUnavailable):
			code = dErrors.CodeTransport
		}
	}
	status := statusFor(code)

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
