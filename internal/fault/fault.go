// Package fault defines the structured error taxonomy shared by the lockup
// vaults and the stake engine.
//
// Every failure carries a Kind (the taxonomy class) and a Code (the precise
// condition) so callers can programmatically distinguish "try again later"
// (State errors such as StillLocked or IntervalNotReached) from "never valid"
// (Validation and Authorization errors). Errors are terminal for the current
// operation: nothing in this module retries internally.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the top-level error class.
type Kind string

const (
	// KindValidation covers malformed or unsupported input: funds, assets, config.
	KindValidation Kind = "validation"

	// KindAuthorization covers calls made by the wrong principal.
	KindAuthorization Kind = "authorization"

	// KindState covers operations attempted in the wrong lifecycle state:
	// lockup still active, record absent, interval not reached, window closed.
	KindState Kind = "state"

	// KindArithmetic covers overflow/underflow in amount math.
	// Amount arithmetic must fail loudly, never saturate or wrap.
	KindArithmetic Kind = "arithmetic"

	// KindInternal covers storage and invariant failures that are not
	// user-correctable.
	KindInternal Kind = "internal"
)

// Code identifies the precise failure condition.
type Code string

const (
	CodeNoFunds             Code = "NO_FUNDS"
	CodeZeroFunds           Code = "ZERO_FUNDS"
	CodeMultipleDenoms      Code = "MULTIPLE_DENOMS"
	CodeWrongDenom          Code = "WRONG_DENOM"
	CodeUnsupportedAsset    Code = "UNSUPPORTED_ASSET"
	CodeCustodyNotConfirmed Code = "CUSTODY_NOT_CONFIRMED"
	CodeWrongPayment        Code = "WRONG_PAYMENT"
	CodeInvalidConfig       Code = "INVALID_CONFIG"

	CodeUnauthorized Code = "UNAUTHORIZED"

	CodeNotFound           Code = "NOT_FOUND"
	CodeStillLocked        Code = "STILL_LOCKED"
	CodeNotStarted         Code = "NOT_STARTED"
	CodeEnded              Code = "ENDED"
	CodeIntervalNotReached Code = "INTERVAL_NOT_REACHED"
	CodeTooEarly           Code = "TOO_EARLY"

	CodeOverflow  Code = "OVERFLOW"
	CodeUnderflow Code = "UNDERFLOW"

	CodeStorage Code = "STORAGE"
)

// Error is the structured failure type for all vault and stake operations.
type Error struct {
	Kind    Kind
	Code    Code
	Message string

	// Details carries optional diagnostic context (amounts, keys, times).
	Details map[string]string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error with the given kind, code, and message.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// With attaches a detail field and returns the error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 2)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the Code from an error, unwrapping as needed.
// Returns "" if the error is not a *fault.Error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// KindOf extracts the Kind from an error, unwrapping as needed.
// Returns "" if the error is not a *fault.Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsCode reports whether err is a *fault.Error with the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether the failure is user-correctable by waiting:
// window not yet open, lockup still active, or interval not reached.
// Authorization and validation failures are never retryable.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeStillLocked, CodeNotStarted, CodeIntervalNotReached, CodeTooEarly:
		return true
	}
	return false
}

// Storage wraps a low-level storage error as an internal fault. The cause
// stays reachable through errors.Is/As.
func Storage(op string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeStorage,
		Message: fmt.Sprintf("%s: %v", op, err),
		cause:   err,
	}
}
