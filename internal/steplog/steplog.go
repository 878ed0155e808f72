// Package steplog writes the per-step log stream.
//
// One line per step: `step counter previous_word current_group`, decimal,
// space separated. The file is opened for append and every line is flushed
// before the next step runs.
package steplog

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/roach88/limbwalk/internal/engine"
)

// Writer is an engine.Recorder backed by an append-only file.
// Not safe for concurrent use.
type Writer struct {
	f    *os.File
	w    *bufio.Writer
	line []byte
	n    big.Int
}

// Open opens path for append, creating it if needed.
func Open(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("steplog: empty path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("steplog: open %s: %w", path, err)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Record writes one line and flushes it.
func (w *Writer) Record(rec engine.StepRecord) error {
	w.line = AppendLine(w.line[:0], rec, &w.n)
	if _, err := w.w.Write(w.line); err != nil {
		return fmt.Errorf("steplog: write: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("steplog: flush: %w", err)
	}
	return nil
}

// Sync flushes and commits the file to stable storage.
func (w *Writer) Sync() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("steplog: flush: %w", err)
	}
	return w.f.Sync()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	ferr := w.w.Flush()
	cerr := w.f.Close()
	if ferr != nil {
		return fmt.Errorf("steplog: flush: %w", ferr)
	}
	return cerr
}

// AppendLine appends the text form of rec, newline included, to dst.
// scratch is reused for multi-word values and may be nil.
func AppendLine(dst []byte, rec engine.StepRecord, scratch *big.Int) []byte {
	dst = strconv.AppendUint(dst, rec.Step, 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, rec.Counter, 10)
	dst = append(dst, ' ')
	dst = AppendWord(dst, rec.Previous, scratch)
	dst = append(dst, ' ')
	dst = AppendWord(dst, rec.Current, scratch)
	return append(dst, '\n')
}

// AppendWord appends the decimal value of big-endian 64-bit words.
func AppendWord(dst []byte, words []uint64, scratch *big.Int) []byte {
	i := 0
	for i < len(words)-1 && words[i] == 0 {
		i++
	}
	words = words[i:]
	switch len(words) {
	case 0:
		return append(dst, '0')
	case 1:
		return strconv.AppendUint(dst, words[0], 10)
	}
	if scratch == nil {
		scratch = new(big.Int)
	}
	scratch.SetUint64(0)
	var w big.Int
	for _, x := range words {
		scratch.Lsh(scratch, 64)
		scratch.Or(scratch, w.SetUint64(x))
	}
	return scratch.Append(dst, 10)
}
