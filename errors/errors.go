// Package errors provides unified error handling for the component loader.
// It implements structured error types with error codes, HTTP status mapping
// for the diagnostics API, and retryable detection.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// CodeOf returns the ErrorCode carried by err, or the empty code if err is
// not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given ErrorCode.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// --- Common Error Constructors ---

// UnknownComponent creates a new AppError for a name that was never registered.
func UnknownComponent(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownComponent, Message: fmt.Sprintf("Component %q is not registered.", name),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"component": name},
	}
}

// UnknownDependency creates a new AppError for a declared dependency that was
// never registered.
func UnknownDependency(name, dependency string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownDependency, Message: fmt.Sprintf("Component %q depends on %q, which is not registered.", name, dependency),
		HTTPStatus: http.StatusFailedDependency, Retryable: false,
		Details: map[string]any{"component": name, "dependency": dependency},
	}
}

// LoadTimeout creates a new AppError for a factory that did not settle in time.
func LoadTimeout(name string, timeout time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeLoadTimeout, Message: fmt.Sprintf("Component %q timed out loading after %s.", name, timeout),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"component": name, "timeout": timeout.String()},
	}
}

// LoaderFailure creates a new AppError wrapping a factory failure.
func LoaderFailure(name string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeLoaderFailure, Message: fmt.Sprintf("Component %q failed to load.", name),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"component": name}, Cause: cause,
	}
}

// DependencyCycle creates a new AppError for a circular dependency chain.
// The path lists the component names along the cycle in resolution order.
func DependencyCycle(path []string) *AppError {
	return &AppError{
		Code: ErrCodeDependencyCycle, Message: "Component dependency chain is circular and can never load.",
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"path": path},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
