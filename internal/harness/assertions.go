package harness

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

func checkExpect(e *ExpectClause, r *Result) {
	if e == nil {
		return
	}
	if e.Halted != r.Halted {
		r.AddError(&AssertionError{Type: "expect", Expected: e.Halted, Actual: r.Halted, Message: "halted"})
	}
	if e.Step != nil && *e.Step != r.Step {
		r.AddError(&AssertionError{Type: "expect", Expected: *e.Step, Actual: r.Step, Message: "step"})
	}
	if e.Counter != nil && *e.Counter != r.Counter {
		r.AddError(&AssertionError{Type: "expect", Expected: *e.Counter, Actual: r.Counter, Message: "counter"})
	}
}

func checkAssertion(a Assertion, r *Result) error {
	switch a.Type {
	case AssertLogLine:
		if a.Step >= uint64(len(r.Lines)) {
			return &AssertionError{
				Type:     a.Type,
				Expected: a.Line,
				Actual:   nil,
				Message:  fmt.Sprintf("step %d was never logged", a.Step),
			}
		}
		if got := r.Lines[a.Step]; got != a.Line {
			return &AssertionError{Type: a.Type, Expected: a.Line, Actual: got, Message: fmt.Sprintf("step %d", a.Step)}
		}
	case AssertLogCount:
		if len(r.Lines) != a.Count {
			return &AssertionError{Type: a.Type, Expected: a.Count, Actual: len(r.Lines)}
		}
	case AssertFinalValue:
		want, ok := new(big.Int).SetString(a.Value, 10)
		if !ok {
			return fmt.Errorf("%s: invalid value %q", a.Type, a.Value)
		}
		if r.Value == nil || want.Cmp(r.Value) != 0 {
			return &AssertionError{Type: a.Type, Expected: want, Actual: r.Value}
		}
	case AssertCounterMin:
		for i, line := range r.Lines {
			c, err := lineCounter(line)
			if err != nil {
				return fmt.Errorf("%s: line %d: %w", a.Type, i, err)
			}
			if c < a.Min {
				return &AssertionError{Type: a.Type, Expected: a.Min, Actual: c, Message: fmt.Sprintf("step %d", i)}
			}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// lineCounter extracts the counter field of a step log line.
func lineCounter(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return 0, fmt.Errorf("malformed log line %q", line)
	}
	return strconv.ParseInt(fields[1], 10, 64)
}
