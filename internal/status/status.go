// Package status publishes automaton progress to a console reporter without
// slowing the loop down.
//
// The loop swaps in a fresh immutable Snapshot after every step; readers load
// whichever snapshot is current. A reader can never observe a half-written
// snapshot, so there is no retry protocol.
package status

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Snapshot is one consistent view of progress.
type Snapshot struct {
	Step    uint64 // steps completed
	Counter int64
	Limbs   int
	Pages   int
}

// Board holds the latest snapshot. The zero value is ready to use.
type Board struct {
	cur atomic.Pointer[Snapshot]
}

// Publish replaces the current snapshot.
func (b *Board) Publish(s Snapshot) {
	b.cur.Store(&s)
}

// Load returns the current snapshot and whether one was published.
func (b *Board) Load() (Snapshot, bool) {
	p := b.cur.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// DefaultInterval is the reporting period used when none is configured.
const DefaultInterval = time.Second

// Reporter prints a progress line on a fixed interval.
type Reporter struct {
	board    *Board
	out      io.Writer
	interval time.Duration
	now      func() time.Time
}

// NewReporter returns a reporter reading from board and writing to out.
// Intervals below one millisecond fall back to DefaultInterval.
func NewReporter(board *Board, out io.Writer, interval time.Duration) *Reporter {
	if interval < time.Millisecond {
		interval = DefaultInterval
	}
	return &Reporter{board: board, out: out, interval: interval, now: time.Now}
}

// Run prints until ctx is done. It returns nil on cancellation.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	prev, _ := r.board.Load()
	prevAt := r.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, ok := r.board.Load()
			if !ok {
				continue
			}
			at := r.now()
			if _, err := io.WriteString(r.out, FormatLine(prev, cur, at.Sub(prevAt))+"\n"); err != nil {
				return fmt.Errorf("status: %w", err)
			}
			prev, prevAt = cur, at
		}
	}
}

// FormatLine renders cur, with the step rate measured against prev.
func FormatLine(prev, cur Snapshot, elapsed time.Duration) string {
	rate := 0.0
	if elapsed > 0 && cur.Step >= prev.Step {
		rate = float64(cur.Step-prev.Step) / elapsed.Seconds()
	}
	return fmt.Sprintf("step %d  counter %d  limbs %d  pages %d  %.1f steps/s",
		cur.Step, cur.Counter, cur.Limbs, cur.Pages, rate)
}
