// Package apperror holds the typed errors shared by the ledger, the providers and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorizedAccess  Code = "UNAUTHORIZED_ACCESS"
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	CodeProviderSubmission  Code = "PROVIDER_SUBMISSION_ERROR"
	CodeProviderPollTimeout Code = "PROVIDER_POLL_TIMEOUT"
	CodeProviderTerminal    Code = "PROVIDER_TERMINAL_ERROR"
	CodeStorageUpload       Code = "STORAGE_UPLOAD_ERROR"
	CodeCancelled           Code = "CANCELLED"
)

// AppError carries a stable code, a human readable message and optional structured details.
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

func InsufficientCredits(required, available int) *AppError {
	return New(CodeInsufficientCredits, "Insufficient credits").
		WithDetail("required", required).
		WithDetail("available", available)
}

func ProviderSubmission(provider string, err error) *AppError {
	return Wrap(err, CodeProviderSubmission, fmt.Sprintf("%s rejected the generation request", provider)).
		WithDetail("provider", provider)
}

func ProviderPollTimeout(taskID string, attempts int) *AppError {
	return New(CodeProviderPollTimeout, "Generation timed out while waiting for the provider").
		WithDetail("task_id", taskID).
		WithDetail("attempts", attempts)
}

func ProviderTerminal(message string) *AppError {
	if message == "" {
		message = "Provider reported the generation as failed"
	}
	return New(CodeProviderTerminal, message)
}

func StorageUpload(err error) *AppError {
	return Wrap(err, CodeStorageUpload, "Failed to store generated artifact")
}

func UnauthorizedAccess(resource string) *AppError {
	return New(CodeUnauthorizedAccess, fmt.Sprintf("You do not have access to this %s", resource))
}

func Cancelled(err error) *AppError {
	return Wrap(err, CodeCancelled, "Polling cancelled")
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// As extracts the AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether any AppError in the chain carries the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorizedAccess:
		return http.StatusForbidden
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeProviderSubmission, CodeProviderTerminal:
		return http.StatusBadGateway
	case CodeProviderPollTimeout:
		return http.StatusGatewayTimeout
	case CodeCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
