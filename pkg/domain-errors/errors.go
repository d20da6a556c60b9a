// Package domainerrors carries the failure taxonomy shared by every service.
//
// Services return *Error values tagged with a Code; transports translate the code
// into a status without inspecting messages. Stores should not use this package:
// they return sentinel facts (see pkg/platform/sentinel) that services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a failure class.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"

	CodeDuplicateIdentifier Code = "duplicate_identifier"
	CodeAlreadyRevoked      Code = "already_revoked"
	CodeAlreadyClaimed      Code = "already_claimed"
	CodeNotEligible         Code = "not_eligible"
	CodeInsufficientFunds   Code = "insufficient_funds"
	CodeReentrant           Code = "reentrant_call"
	CodeTransferFailed      Code = "transfer_failed"
)

// Error is a coded domain failure. Reasons is only populated for failures that
// explain themselves as a list (not_eligible).
type Error struct {
	Code    Code
	Message string
	Reasons []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithReasons creates a coded error carrying an ordered reason list.
func WithReasons(code Code, msg string, reasons []string) error {
	return &Error{Code: code, Message: msg, Reasons: append([]string(nil), reasons...)}
}

// GetCode returns the code of the outermost *Error in the chain, or CodeInternal.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in the chain carries code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Reasons returns the reason list of the outermost *Error, if any.
func Reasons(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reasons
	}
	return nil
}

// ToHTTPStatus maps a code onto the status transports should answer with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateIdentifier, CodeAlreadyRevoked, CodeAlreadyClaimed, CodeReentrant, CodeInvariantViolation:
		return http.StatusConflict
	case CodeNotEligible, CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
