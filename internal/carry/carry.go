// Package carry scales the whole Digit Store by a power of two.
//
// A pass runs in two phases. Workers first scale disjoint runs of pages
// in parallel, each starting its carry chain at zero and reporting the carry
// that leaves its run. The owning goroutine then folds those carries back in,
// in increasing chunk order, at the first limb of the following chunk. Only
// the second phase touches the store's control state.
package carry

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/limbwalk/internal/fixmod"
	"github.com/roach88/limbwalk/internal/limbs"
)

// DefaultChunksPerWorker keeps a few chunks queued per worker so a slow
// worker does not hold up the pass.
const DefaultChunksPerWorker = 4

// Pass scales a store with a pool of transient workers.
type Pass struct {
	mod             *fixmod.Modulus
	workers         int
	chunksPerWorker int

	carries []uint64
	starts  []int
}

// Option configures a Pass.
type Option func(*Pass)

// WithWorkers sets the number of workers. Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pass) {
		p.workers = n
	}
}

// WithChunksPerWorker sets how many chunks each worker receives on average.
func WithChunksPerWorker(n int) Option {
	return func(p *Pass) {
		p.chunksPerWorker = n
	}
}

// New returns a pass over the limb modulus.
func New(opts ...Option) *Pass {
	p := &Pass{
		mod:             fixmod.Limb(),
		chunksPerWorker: DefaultChunksPerWorker,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	if p.chunksPerWorker < 1 {
		p.chunksPerWorker = 1
	}
	return p
}

// Workers returns the configured worker count.
func (p *Pass) Workers() int { return p.workers }

// Scale multiplies the value held by s by 2^shift (shift <= 64).
// A pass is never abandoned halfway: a partly scaled store has no meaning.
func (p *Pass) Scale(s *limbs.Store, shift uint) error {
	pages := s.PageCount()
	chunks := min(pages, p.workers*p.chunksPerWorker)
	if p.workers == 1 || chunks <= 1 {
		return ScaleSequential(s, shift)
	}

	p.carries = resize(p.carries, chunks)
	p.starts = resizeInt(p.starts, chunks+1)
	for k := 0; k <= chunks; k++ {
		p.starts[k] = k * pages / chunks
	}
	// The last carry belongs just above the current top, wherever earlier
	// fix-ups may have moved the end to.
	end := s.End()

	var g errgroup.Group
	g.SetLimit(p.workers)
	for k := 0; k < chunks; k++ {
		g.Go(func() error {
			var c uint64
			for i := p.starts[k]; i < p.starts[k+1]; i++ {
				span := s.PageSpan(i)
				if err := checkSpan(span, p.mod.Value(), i); err != nil {
					return err
				}
				c = p.mod.ScaleRun(span, c, shift)
			}
			p.carries[k] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for k := 0; k < chunks; k++ {
		c := p.carries[k]
		if c == 0 {
			continue
		}
		if k+1 < chunks {
			s.Add(limbs.Position{Page: p.starts[k+1]}, c)
		} else {
			s.Add(end, c)
		}
	}
	return nil
}

// ScaleSequential multiplies s by 2^shift on the calling goroutine, limb by
// limb in index order. It is the reference the parallel pass must match.
func ScaleSequential(s *limbs.Store, shift uint) error {
	mod := fixmod.Limb()
	end := s.End()
	var c uint64
	for i := 0; i < s.PageCount(); i++ {
		span := s.PageSpan(i)
		if err := checkSpan(span, mod.Value(), i); err != nil {
			return err
		}
		c = mod.ScaleRun(span, c, shift)
	}
	if c != 0 {
		s.Add(end, c)
	}
	return nil
}

// checkSpan rejects limbs that are already out of range; scaling them would
// overflow the quotient and silently corrupt the value.
func checkSpan(span []uint64, m uint64, page int) error {
	for j, x := range span {
		if x >= m {
			return fmt.Errorf("page %d limb %d: %w", page, j,
				&fixmod.RangeError{What: "limb", Value: x, Bound: m})
		}
	}
	return nil
}

func resize(buf []uint64, n int) []uint64 {
	if cap(buf) < n {
		return make([]uint64, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func resizeInt(buf []int, n int) []int {
	if cap(buf) < n {
		return make([]int, n)
	}
	return buf[:n]
}
