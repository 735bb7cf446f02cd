package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error category returned to clients.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeNotFound         Code = "not_found"
	CodeState            Code = "state"
	CodeExpired          Code = "expired"
	CodeForbidden        Code = "forbidden"
	CodeNoDevice         Code = "no_device"
	CodeAlreadyDelivered Code = "already_delivered"
	CodeStorage          Code = "storage"
	CodeInference        Code = "inference"
	CodeInternal         Code = "internal"
)

// Error carries a taxonomy code plus a human-readable message. Services
// return these (possibly wrapped); handlers translate the code into an HTTP
// status at the operation boundary.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy code to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Unclassified errors
// report CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
