package harness

import (
	"fmt"
	"math/big"
)

// Result captures the outcome of running a scenario.
type Result struct {
	// Pass is true when the outcome and every assertion matched.
	Pass bool

	// Halted reports whether the automaton reached the terminal event.
	Halted bool

	// Step is the halting step, or the next step to run when the budget ran out.
	Step uint64

	// Counter is the final counter.
	Counter int64

	// Lines are the step log lines, without trailing newlines.
	Lines []string

	// Value is the integer held by the store when the run ended.
	Value *big.Int

	// Errors collects every mismatch found.
	Errors []error
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err error) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AssertionError describes a failed expectation.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
	Message  string
}

func (e *AssertionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (expected %v, got %v)", e.Type, e.Message, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: expected %v, got %v", e.Type, e.Expected, e.Actual)
}
