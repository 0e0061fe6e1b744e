/*
errors.go - Error to HTTP status mapping

PURPOSE:
  One place that turns domain errors into status codes and the JSON error
  body. Handlers never pick a status for a domain error themselves.

RESPONSE BODY:
  {"error": "insufficient balance", "code": "insufficient_balance",
   "details": "insufficient balance: available 1.00, requested 2.00, shortfall 1.00"}

STATUS MAPPING (first match wins):
  401  unauthenticated (no or invalid bearer token, bad credentials)
  403  ErrNotAuthorized (checked before ErrInvalidTransition: forbidden
       transitions match both)
  404  ErrNotFound and its credit/request/user variants
  409  ErrCreditInUse
  500  ErrCommitFailed (writes attempted and rolled back)
  400  ErrInsufficientBalance, ErrApproverNotConfigured, ErrInvalidRequest,
       ErrInvalidTransition
  500  anything else

SEE ALSO:
  - generic/errors.go: The error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/compday/generic"
)

var (
	errUnauthenticated    = errors.New("authentication required")
	errInvalidCredentials = errors.New("invalid email or password")
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated), errors.Is(err, errInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, generic.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrCreditInUse):
		return http.StatusConflict
	case errors.Is(err, generic.ErrCommitFailed):
		return http.StatusInternalServerError
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// codeFor names the error for clients. Order mirrors statusFor.
func codeFor(err error) (code, message string) {
	switch {
	case errors.Is(err, errInvalidCredentials):
		return "invalid_credentials", errInvalidCredentials.Error()
	case errors.Is(err, errUnauthenticated):
		return "unauthenticated", errUnauthenticated.Error()
	case errors.Is(err, generic.ErrNotAuthorized):
		return "not_authorized", generic.ErrNotAuthorized.Error()
	case errors.Is(err, generic.ErrCreditNotFound):
		return "credit_not_found", generic.ErrCreditNotFound.Error()
	case errors.Is(err, generic.ErrRequestNotFound):
		return "request_not_found", generic.ErrRequestNotFound.Error()
	case errors.Is(err, generic.ErrUserNotFound):
		return "user_not_found", generic.ErrUserNotFound.Error()
	case errors.Is(err, generic.ErrNotFound):
		return "not_found", generic.ErrNotFound.Error()
	case errors.Is(err, generic.ErrCreditInUse):
		return "credit_in_use", generic.ErrCreditInUse.Error()
	case errors.Is(err, generic.ErrCommitFailed):
		return "commit_failed", generic.ErrCommitFailed.Error()
	case errors.Is(err, generic.ErrInsufficientBalance):
		return "insufficient_balance", generic.ErrInsufficientBalance.Error()
	case errors.Is(err, generic.ErrApproverNotConfigured):
		return "approver_not_configured", generic.ErrApproverNotConfigured.Error()
	case errors.Is(err, generic.ErrInvalidTransition):
		return "invalid_transition", generic.ErrInvalidTransition.Error()
	case errors.Is(err, generic.ErrInvalidRequest):
		return "invalid_request", generic.ErrInvalidRequest.Error()
	default:
		return "internal", "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err and writes the error body. Internal errors keep
// their details out of the response; the caller logs them.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code, message := codeFor(err)
	resp := ErrorResponse{Error: message, Code: code}
	if status != http.StatusInternalServerError || errors.Is(err, generic.ErrCommitFailed) {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// badRequest wraps a decoding problem so it maps to 400.
func badRequest(field, message string) error {
	return &generic.ValidationError{Field: field, Message: message}
}
