package services

import (
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorCode is the stable failure code workflows return. The HTTP layer
// maps codes to statuses without inspecting message text.
type ErrorCode string

const (
	CodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	CodeInvalidState        ErrorCode = "INVALID_STATE"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeDuplicateAccount    ErrorCode = "DUPLICATE_ACCOUNT"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeTransient           ErrorCode = "TRANSIENT"
	CodeInternal            ErrorCode = "INTERNAL"
)

// Error is a typed workflow failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can test
// errors.Is(err, ErrNotFound) against wrapped or derived instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrInvalidState        = &Error{Code: CodeInvalidState, Message: "invalid status transition"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrDuplicateAccount    = &Error{Code: CodeDuplicateAccount, Message: "account already registered"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "not authorized for this resource"}
	ErrTransient           = &Error{Code: CodeTransient, Message: "store temporarily unavailable"}
)

// Errorf builds a typed error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a code and message to an underlying error.
func WrapErr(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the stable code from err, defaulting to CodeInternal for
// anything untyped.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a code to the response status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidAmount, CodeInvalidState, CodeInsufficientBalance:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeDuplicateAccount:
		return http.StatusConflict
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// storeError classifies a driver error. Duplicate keys become
// DuplicateAccount, network and timeout failures are retryable Transient,
// everything else is Internal.
func storeError(err error) *Error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return WrapErr(CodeDuplicateAccount, "account already registered", err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return WrapErr(CodeTransient, "store temporarily unavailable", err)
	default:
		return WrapErr(CodeInternal, "unexpected store error", err)
	}
}
