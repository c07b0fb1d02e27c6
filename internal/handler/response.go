package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		// Headers are already sent; nothing useful to do with an encode error.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	if apperror.CodeOf(err) == apperror.CodeDeductionFailed {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err in the service's error shape. Causes are never
// exposed; unknown errors become INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}

	writeJSON(w, StatusOf(appErr), ErrorResponse{
		Success: false,
		Error:   appErr.Code,
		Message: appErr.Message,
		Details: numericDetails(appErr.Details),
	})
}

// numericDetails renders decimal amounts as JSON numbers.
func numericDetails(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if d, ok := v.(decimal.Decimal); ok {
			out[k] = number(d)
			continue
		}
		out[k] = v
	}
	return out
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// NotFound and MethodNotAllowed answer requests the router cannot serve.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, apperror.RouteNotFound(r.URL.Path))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, apperror.MethodNotAllowed(r.Method))
}
