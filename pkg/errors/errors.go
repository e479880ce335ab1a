// Package errors defines the coded errors returned across domainstack.
//
// Every failure a caller may want to branch on carries a [Code]. The CLI
// prints [UserMessage]; the HTTP server maps codes to status codes.
//
// # Error Codes
//
// The alignment engine raises four categories of error, none of which are
// retried internally:
//   - INVALID_SHAPE: mismatched edge lengths or a bad resolution length
//   - UNIT_CONTEXT: a relative unit was requested without a conversion context
//   - INVALID_STATE: center/width or alignment requested before any data
//   - INVALID_POLICY: unknown reference selection policy
//
// The outer layers (description parsing, sampling, caching) add INVALID_*,
// NOT_FOUND and INTERNAL codes.
//
// # Usage
//
//	if errors.Is(err, errors.ErrCodeFileNotFound) {
//	    return http.StatusNotFound
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error.
type Code string

const (
	// Raised by the placement engine. None are retried.
	ErrCodeInvalidShape  Code = "INVALID_SHAPE"
	ErrCodeUnitContext   Code = "UNIT_CONTEXT"
	ErrCodeInvalidState  Code = "INVALID_STATE"
	ErrCodeInvalidPolicy Code = "INVALID_POLICY"

	// Bad descriptions, selections, options or paths.
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidUnit      Code = "INVALID_UNIT"
	ErrCodeInvalidSelection Code = "INVALID_SELECTION"
	ErrCodeInvalidPath      Code = "INVALID_PATH"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is an error with a code. Cause may be nil.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error with code, a formatted message and cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any coded error in err's chain has code.
func Is(err error, code Code) bool {
	for e := first(err); e != nil; e = first(e.Cause) {
		if e.Code == code {
			return true
		}
	}
	return false
}

// GetCode returns the code of the outermost coded error in err's chain, or
// "" when there is none.
func GetCode(err error) Code {
	if e := first(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage returns the outermost coded message without its code, or
// err.Error() for uncoded errors.
func UserMessage(err error) string {
	if e := first(err); e != nil {
		return e.Message
	}
	return err.Error()
}

func first(err error) *Error {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e
	}
	return nil
}

// IsUsage reports whether err carries one of the engine codes. These mean
// the caller passed something unusable, not that a retry could help.
func IsUsage(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidShape, ErrCodeUnitContext, ErrCodeInvalidState, ErrCodeInvalidPolicy:
		return true
	}
	return false
}
