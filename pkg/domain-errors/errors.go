// Package domainerrors provides coded errors for business-rule failures.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate them into coded errors so transports can map
// every failure to a specific, actionable response. Business rules are never
// silently corrected: every violation surfaces as one of these codes.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// Generic codes.
	CodeValidation         Code = "validation"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal"

	// Lifecycle codes. Each maps 1:1 to a failure the citation/payment
	// engine can report to its callers.
	CodeDuplicateTicket   Code = "duplicate_ticket_number"
	CodeDuplicateReceipt  Code = "duplicate_receipt_number"
	CodeInvalidTransition Code = "invalid_transition"
	CodeCitationPaid      Code = "citation_already_paid"
	CodeAmountMismatch    Code = "amount_mismatch"
)

// Error is a coded domain error with an optional wrapped cause.
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

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	for errors.As(err, &derr) {
		if derr.Code == code {
			return true
		}
		err = derr.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Is is an alias for HasCode; it reads better at call sites that branch on
// a single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code at all.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or a generic fallback for
// uncoded errors so internals never leak to callers.
func MessageOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return "internal error"
}
