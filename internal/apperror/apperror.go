// Package apperror defines the error taxonomy shared across ragmux's
// components so the HTTP/WS boundary can map internal failures to stable
// codes instead of leaking provider- or driver-specific errors.
package apperror

import "fmt"

// Code is a stable, externally-visible error classification.
type Code string

const (
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeClassifyFailed   Code = "CLASSIFY_FAILED"
	CodeAgentUnavailable Code = "AGENT_UNAVAILABLE"
	CodeAgentFailed      Code = "AGENT_FAILED"
	CodeStepBudgetExceeded Code = "STEP_BUDGET_EXCEEDED"
	CodeQualityFailed    Code = "QUALITY_FAILED"
	CodeQuotaExceeded    Code = "QUOTA_EXCEEDED"
	CodeCancelled        Code = "CANCELLED"
	CodeUpstreamTimeout  Code = "UPSTREAM_TIMEOUT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// AppError is the concrete error type returned across internal package
// boundaries. Callers at the transport layer type-assert to it to pick an
// HTTP status and a stable JSON error code.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New builds an AppError with no wrapped cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap builds an AppError around an existing error.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) an *AppError,
// otherwise returns CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// As is a tiny local stand-in for errors.As that walks the single-error
// Unwrap chain looking for an *AppError, so call sites that only need this
// one check do not import "errors".
func As(err error, target **AppError) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
