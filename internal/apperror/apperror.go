package apperror

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUpstream            = errors.New("upstream error")
	ErrConfiguration       = errors.New("configuration error")
	ErrMethodNotAllowed    = errors.New("method not allowed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal error")
)

// Machine-readable codes returned to callers.
const (
	CodeMissingParameter      = "MISSING_PARAMETER"
	CodeInvalidBody           = "INVALID_BODY"
	CodeRecordNotFound        = "RECORD_NOT_FOUND"
	CodeProfileNotFound       = "PROFILE_NOT_FOUND"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeCreditsRecordNotFound = "CREDITS_RECORD_NOT_FOUND"
	CodeInsufficientCredits   = "INSUFFICIENT_CREDITS"
	CodeDeductionFailed       = "DEDUCTION_FAILED"
	CodeUpstream              = "UPSTREAM_ERROR"
	CodeConfiguration         = "CONFIGURATION_ERROR"
	CodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeRouteNotFound         = "NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
)

type AppError struct {
	Err     error                  // kind sentinel
	Code    string                 // machine-readable code
	Message string                 // human-readable message
	Details map[string]interface{} // extra context for the caller
	Cause   error                  // underlying failure, never sent to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func MissingParameter(field string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("%s is required", field),
		Details: map[string]interface{}{"field": field},
	}
}

func InvalidBody(cause error) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeInvalidBody,
		Message: "request body is not valid JSON",
		Cause:   cause,
	}
}

func Validation(code, message string) *AppError {
	return &AppError{Err: ErrValidation, Code: code, Message: message}
}

// RecordNotFound reports a missing feature record.
func RecordNotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeRecordNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

func ProfileNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeProfileNotFound,
		Message: fmt.Sprintf("user profile not found with id %s", id),
		Details: map[string]interface{}{"user_profile_id": id},
	}
}

// UserNotFound reports an account id or identity-provider subject with no
// users row.
func UserNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeUserNotFound,
		Message: fmt.Sprintf("user not found with id %s", id),
		Details: map[string]interface{}{"user_id": id},
	}
}

func CreditsRecordNotFound(userID string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeCreditsRecordNotFound,
		Message: fmt.Sprintf("credits record not found for user %s", userID),
		Details: map[string]interface{}{"user_id": userID},
	}
}

// InsufficientCredits carries the balance, the price and the shortfall.
func InsufficientCredits(current, required decimal.Decimal) *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Code:    CodeInsufficientCredits,
		Message: fmt.Sprintf("insufficient credits: %s available, %s required", current.String(), required.String()),
		Details: map[string]interface{}{
			"current_balance": current,
			"required":        required,
			"shortfall":       required.Sub(current),
		},
	}
}

func DeductionFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Code:    CodeDeductionFailed,
		Message: "credit deduction failed",
		Cause:   cause,
	}
}

func Upstream(message string, cause error) *AppError {
	return &AppError{Err: ErrUpstream, Code: CodeUpstream, Message: message, Cause: cause}
}

func Configuration(message string) *AppError {
	return &AppError{Err: ErrConfiguration, Code: CodeConfiguration, Message: message}
}

func MethodNotAllowed(method string) *AppError {
	return &AppError{
		Err:     ErrMethodNotAllowed,
		Code:    CodeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", method),
	}
}

func RouteNotFound(path string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeRouteNotFound,
		Message: fmt.Sprintf("no route for %s", path),
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Code: CodeUnauthorized, Message: message}
}

func Internal(cause error) *AppError {
	return &AppError{Err: ErrInternal, Code: CodeInternal, Message: "an internal error occurred", Cause: cause}
}

// CodeOf returns the machine-readable code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}
