package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure that stops the automaton.
//
// Runtime errors include:
//   - Invariant violation: a limb or digit escaped its range
//   - Log write failure: the step record could not be written
//   - Scale failure: the carry pass rejected the store
//
// The terminal event is not a RuntimeError.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Step    uint64 // index of the failing step
	Err     error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvariant indicates broken arithmetic (limb >= M, digit >= 81).
	ErrCodeInvariant RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeLogWrite indicates the step log could not be written.
	ErrCodeLogWrite RuntimeErrorCode = "LOG_WRITE_FAILED"

	// ErrCodeScale indicates the carry pass failed.
	ErrCodeScale RuntimeErrorCode = "SCALE_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (step=%d): %v", e.Code, e.Message, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s (step=%d)", e.Code, e.Message, e.Step)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, codes ...RuntimeErrorCode) bool {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return false
	}
	for _, c := range codes {
		if re.Code == c {
			return true
		}
	}
	return false
}

// IsInvariantError reports whether err is an invariant violation.
// Scale failures caused by an out-of-range limb count as well.
func IsInvariantError(err error) bool {
	return hasCode(err, ErrCodeInvariant, ErrCodeScale)
}

// IsLogWriteError reports whether err is a step log failure.
func IsLogWriteError(err error) bool {
	return hasCode(err, ErrCodeLogWrite)
}

func NewInvariantError(step uint64, cause error) *RuntimeError {
	return &RuntimeError{ErrCodeInvariant, "arithmetic invariant violated", step, cause}
}

func NewLogWriteError(step uint64, cause error) *RuntimeError {
	return &RuntimeError{ErrCodeLogWrite, "step log write failed", step, cause}
}

func NewScaleError(step uint64, cause error) *RuntimeError {
	return &RuntimeError{ErrCodeScale, "carry pass failed", step, cause}
}
