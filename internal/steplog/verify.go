package steplog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
)

// maxLineBytes bounds a single log line. A group of four limbs renders in
// well under 200 bytes; the headroom covers hand-edited files.
const maxLineBytes = 1 << 20

// Mismatch describes the first log line the automaton does not reproduce.
type Mismatch struct {
	Line   int    `json:"line"` // 1-based line number in the log
	Step   uint64 `json:"step"` // step the automaton was about to run
	Reason string `json:"reason"`
	Want   string `json:"want,omitempty"` // line the automaton produced
	Got    string `json:"got"`            // line found in the log
}

// VerifyResult summarizes a Verify pass.
type VerifyResult struct {
	Checked  int       // lines reproduced exactly
	Skipped  int       // lines before the starting step
	Halted   bool      // the automaton reached the terminal event
	NextStep uint64    // step index after the last checked line
	Mismatch *Mismatch // nil when every checked line matched
}

// capture keeps the line of the most recent step.
type capture struct {
	line []byte
	n    big.Int
}

func (c *capture) Record(rec engine.StepRecord) error {
	c.line = AppendLine(c.line[:0], rec, &c.n)
	return nil
}

// Verify re-runs the automaton over store and compares each step against the
// log read from r. Lines numbered below the automaton's starting step are
// skipped, so a log that spans several resumed runs can be checked from any
// of their checkpoints. limit > 0 stops after that many checked lines.
//
// Verify stops at the first mismatch. An error is returned only when the log
// cannot be read, ctx is done, or the automaton fails.
func Verify(ctx context.Context, r io.Reader, store *limbs.Store, limit int, opts ...engine.Option) (VerifyResult, error) {
	c := &capture{}
	a := engine.New(store, append(opts, engine.WithRecorder(c))...)

	var res VerifyResult
	start := a.Clock().Current()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return res, err
		}
		got := sc.Bytes()
		next := a.Clock().Current()

		mismatch := func(reason string, want []byte) VerifyResult {
			res.Mismatch = &Mismatch{Line: lineNo, Step: next, Reason: reason, Got: string(got)}
			if want != nil {
				res.Mismatch.Want = string(want)
			}
			return res
		}

		step, ok := lineStep(got)
		if !ok {
			return mismatch("malformed line", nil), nil
		}
		if step < start && res.Checked == 0 {
			res.Skipped++
			continue
		}
		if a.State() == engine.StateHalted {
			return mismatch("log continues past the halting step", nil), nil
		}
		if step != next {
			return mismatch(fmt.Sprintf("expected step %d", next), nil), nil
		}

		halted, err := a.Step()
		if err != nil {
			return res, err
		}
		want := bytes.TrimSuffix(c.line, []byte{'\n'})
		if !bytes.Equal(want, got) {
			return mismatch("line differs", want), nil
		}
		res.Checked++
		res.Halted = halted
		res.NextStep = a.Clock().Current()
		if limit > 0 && res.Checked == limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("steplog: read: %w", err)
	}
	if res.Checked == 0 {
		res.NextStep = start
	}
	return res, nil
}

// lineStep parses the leading step field of a log line.
func lineStep(line []byte) (uint64, bool) {
	i := bytes.IndexByte(line, ' ')
	if i <= 0 || bytes.Count(line, []byte{' '}) != 3 {
		return 0, false
	}
	step, err := strconv.ParseUint(string(line[:i]), 10, 64)
	return step, err == nil
}
