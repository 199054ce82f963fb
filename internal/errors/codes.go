package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode identifies the kind of failure reported to the caller.
type ErrorCode string

const (
	// ErrCodeDataLoadFailed indicates the question source is missing or malformed.
	ErrCodeDataLoadFailed ErrorCode = "DATA_LOAD_FAILED"
	// ErrCodeInvalidFilter indicates the filter or requested count cannot be satisfied.
	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER"
	// ErrCodeBuildFailed indicates the document builder failed.
	ErrCodeBuildFailed ErrorCode = "BUILD_FAILED"
	// ErrCodeStoreFailed indicates the persistent document store failed.
	ErrCodeStoreFailed ErrorCode = "STORE_FAILED"
)

// Error is a structured error carrying a code and optional context.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// DataLoad creates a data load error.
func DataLoad(msg string, cause error) *Error {
	return &Error{Code: ErrCodeDataLoadFailed, Message: msg, Cause: cause}
}

// DataLoadf creates a data load error with a formatted message and no cause.
func DataLoadf(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeDataLoadFailed, Message: fmt.Sprintf(format, args...)}
}

// InvalidFilter creates an invalid filter error.
func InvalidFilter(msg string) *Error {
	return &Error{Code: ErrCodeInvalidFilter, Message: msg}
}

// InvalidFilterf creates an invalid filter error with a formatted message.
func InvalidFilterf(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeInvalidFilter, Message: fmt.Sprintf(format, args...)}
}

// BuildFailure creates a build failure error.
func BuildFailure(msg string, cause error) *Error {
	return &Error{Code: ErrCodeBuildFailed, Message: msg, Cause: cause}
}

// StoreFailure creates a store failure error.
func StoreFailure(msg string, cause error) *Error {
	return &Error{Code: ErrCodeStoreFailed, Message: msg, Cause: cause}
}

// IsCode reports whether any error in err's chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if pkgerrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if no coded error is in the chain.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var e *Error
	if pkgerrors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}
