// Package errors defines the error kinds the e-graph engine raises, per
// spec.md §7. The kernel treats its own invariants as total: it fails fast
// with one of these kinds rather than attempting local recovery. Only the
// saturation driver (package saturation) recovers, converting
// OperationCanceled into a graceful no-op result.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the engine.
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMalformedCall      = "MALFORMED_CALL"
	CodeInvalidBatch       = "INVALID_BATCH"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeOperationCanceled  = "OPERATION_CANCELED"
	CodeAssertionFailure   = "ASSERTION_FAILURE"
)

// AppError represents an engine error with a code, message and optional
// wrapped cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target by error code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NotFound builds the error raised when a reference to an absent EClassRef
// or an unbound virtual symbol is dereferenced (spec.md §7).
func NotFound(what string, id fmt.Stringer) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", what, id))
}

// MalformedCall builds the error raised when an EClassCall.Args does not
// cover its class's canonical slot set (spec.md §4.3.4, §7).
func MalformedCall(detail string) *AppError {
	return New(CodeMalformedCall, "malformed call: "+detail)
}

// InvalidBatch builds the error raised by the command schedule builder
// when a batch-0 add carries virtual args, or a mutation is attempted
// after result() (spec.md §4.5, §7).
func InvalidBatch(detail string) *AppError {
	return New(CodeInvalidBatch, "invalid batch: "+detail)
}

// InvariantViolation builds the error raised by EGraph.CheckInvariants and
// by a rebuild that meets a union it cannot reconcile (spec.md §7, §8).
func InvariantViolation(detail string) *AppError {
	return New(CodeInvariantViolation, "invariant violation: "+detail)
}

// OperationCanceled builds the error propagated when a CancellationToken
// fires mid-operation (spec.md §5, §7).
func OperationCanceled(detail string) *AppError {
	return New(CodeOperationCanceled, "operation canceled: "+detail)
}

// AssertionFailure builds the error for an internal contract violation
// (Schreier-Sims membership, union-find composition) that indicates an
// implementation bug rather than misuse (spec.md §7).
func AssertionFailure(detail string) *AppError {
	return New(CodeAssertionFailure, "assertion failure: "+detail)
}

// Is<Kind> helpers, mirroring the host project's errors.Is<X> convention.

func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func IsMalformedCall(err error) bool {
	return hasCode(err, CodeMalformedCall)
}

func IsInvalidBatch(err error) bool {
	return hasCode(err, CodeInvalidBatch)
}

func IsInvariantViolation(err error) bool {
	return hasCode(err, CodeInvariantViolation)
}

func IsOperationCanceled(err error) bool {
	return hasCode(err, CodeOperationCanceled)
}

func IsAssertionFailure(err error) bool {
	return hasCode(err, CodeAssertionFailure)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the error code from err, or CodeUnknown if err is not (or
// does not wrap) an *AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
