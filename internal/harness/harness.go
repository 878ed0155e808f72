package harness

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/fixmod"
	"github.com/roach88/limbwalk/internal/limbs"
	"github.com/roach88/limbwalk/internal/steplog"
)

// lineRecorder keeps step log lines in memory.
type lineRecorder struct {
	lines   []string
	buf     []byte
	scratch big.Int
}

func (r *lineRecorder) Record(rec engine.StepRecord) error {
	r.buf = steplog.AppendLine(r.buf[:0], rec, &r.scratch)
	r.lines = append(r.lines, strings.TrimSuffix(string(r.buf), "\n"))
	return nil
}

// Run executes a scenario and checks its expectations.
//
// Run returns an error only when the scenario cannot be set up or the
// automaton fails; mismatches are reported through Result.Errors.
func Run(s *Scenario) (*Result, error) {
	store, err := StoreFromDecimal(s.Start.Value)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	rec := &lineRecorder{}
	opts := []engine.Option{
		engine.WithTable(s.buildTable()),
		engine.WithRecorder(rec),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if s.Group > 0 {
		opts = append(opts, engine.WithGroupLimbs(s.Group))
	}
	if s.Start.Counter != nil {
		opts = append(opts, engine.WithStart(0, *s.Start.Counter, nil))
	}
	a := engine.New(store, opts...)

	halted := false
	for i := 0; i < s.MaxSteps && !halted; i++ {
		halted, err = a.Step()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	result := &Result{
		Pass:    true,
		Halted:  halted,
		Step:    a.Clock().Current(),
		Counter: a.Counter(),
		Lines:   rec.lines,
		Value:   store.Value(),
	}
	checkExpect(s.Expect, result)
	for _, assertion := range s.Assertions {
		if err := checkAssertion(assertion, result); err != nil {
			result.AddError(err)
		}
	}
	return result, nil
}

// StoreFromDecimal builds a store holding the decimal integer v.
// An empty string yields the value 0.
func StoreFromDecimal(v string) (*limbs.Store, error) {
	if v == "" {
		return limbs.New(), nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid start value %q", v)
	}

	m := new(big.Int).SetUint64(fixmod.M)
	var digits []uint64
	var r big.Int
	for n.Sign() > 0 {
		n.QuoRem(n, m, &r)
		digits = append(digits, r.Uint64())
	}
	return limbs.FromLimbs(digits)
}
