// Package limbs implements the Digit Store: a non-negative integer held as
// base-M limbs (M = 81^8) in a queue of fixed-size pages.
//
// Pages form a ring. New high-order pages are appended at the tail; pages whose
// limbs have all been popped leave from the head and go back to a pool. A
// cursor marks the lowest live limb inside the head page so popping never
// shifts memory.
//
// Thread-safety: the control state (ring, cursor, length) is owned by a single
// goroutine. PageSpan hands out disjoint limb slices that other goroutines may
// read and write while the owner waits.
package limbs

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/roach88/limbwalk/internal/fixmod"
)

// ErrLimbRange is returned when a limb is not below the modulus.
var ErrLimbRange = errors.New("limb out of range")

// Position addresses a limb by page and offset. Page 0 is the head page;
// Page -1 is only valid as the slot just below the head page (see Vacated).
type Position struct {
	Page   int
	Offset int
}

// Store is the page-backed big integer.
//
// INVARIANTS:
//   - every live limb is in [0, M)
//   - there is always at least one live limb (a zero sentinel when the value is 0)
//   - slots above the top live limb are zero
type Store struct {
	mod *fixmod.Modulus

	ring   []*page // capacity is a power of two
	head   int     // ring index of the head page
	count  int     // pages in use
	cursor int     // offset of the lowest live limb in the head page
	length int     // live limbs

	pool *pool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFreePages bounds the number of recycled pages kept idle.
func WithMaxFreePages(n int) Option {
	return func(s *Store) {
		s.pool = newPool(n)
	}
}

// New returns a store holding the value 0.
func New(opts ...Option) *Store {
	s := &Store{
		mod:  fixmod.Limb(),
		ring: make([]*page, 4),
		pool: newPool(DefaultMaxFree),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pushPage()
	s.length = 1
	return s
}

// FromLimbs builds a store from limbs, lowest first. The cursor starts at 0.
// An empty slice yields the value 0.
func FromLimbs(limbs []uint64, opts ...Option) (*Store, error) {
	s := New(opts...)
	if len(limbs) == 0 {
		return s, nil
	}
	for i, l := range limbs {
		if l >= fixmod.M {
			return nil, fmt.Errorf("limb %d = %d: %w", i, l, ErrLimbRange)
		}
	}
	// The sentinel slot is overwritten by the first limb.
	s.length = 0
	for len(limbs) > 0 {
		if s.length == s.count*PageLimbs {
			s.pushPage()
		}
		pg := s.pageAt(s.count - 1)
		n := copy(pg[s.length%PageLimbs:], limbs)
		s.length += n
		limbs = limbs[n:]
	}
	return s, nil
}

// Len returns the number of live limbs.
func (s *Store) Len() int { return s.length }

// PageCount returns the number of pages holding live limbs.
func (s *Store) PageCount() int { return s.count }

// Cursor returns the offset of the lowest live limb within the head page.
func (s *Store) Cursor() int { return s.cursor }

// PoolStats reports how many pages were recycled and how many were dropped.
func (s *Store) PoolStats() (recycled, released uint64) {
	return s.pool.recycled, s.pool.released
}

// Head returns the position of the lowest live limb.
func (s *Store) Head() Position {
	return Position{Page: 0, Offset: s.cursor}
}

// End returns the position just above the top live limb.
func (s *Store) End() Position {
	g := s.cursor + s.length
	return Position{Page: g / PageLimbs, Offset: g % PageLimbs}
}

// Vacated returns the slot just below the lowest live limb, which is where the
// most recently popped limb lived.
func (s *Store) Vacated() Position {
	if s.cursor == 0 {
		return Position{Page: -1, Offset: PageLimbs - 1}
	}
	return Position{Page: 0, Offset: s.cursor - 1}
}

// At returns the i-th live limb, counting from the lowest.
func (s *Store) At(i int) uint64 {
	if i < 0 || i >= s.length {
		panic(fmt.Sprintf("limbs: index %d out of range [0, %d)", i, s.length))
	}
	return *s.slot(i)
}

// Pop removes and returns the lowest limb. When only one limb is live it is
// returned and replaced by a zero sentinel.
func (s *Store) Pop() uint64 {
	pg := s.pageAt(0)
	v := pg[s.cursor]
	if s.length == 1 {
		pg[s.cursor] = 0
		return v
	}
	s.cursor++
	s.length--
	if s.cursor == PageLimbs {
		s.popPage()
		s.cursor = 0
	}
	return v
}

// Add adds v at pos and propagates the carry toward the top, appending pages
// as needed. pos may be any live position, End(), or Vacated(); adding at
// Vacated() makes that slot live again.
func (s *Store) Add(pos Position, v uint64) {
	idx := pos.Page*PageLimbs + pos.Offset - s.cursor
	if idx == -1 {
		s.reclaim()
		idx = 0
	}
	if idx < 0 || idx > s.length {
		panic(fmt.Sprintf("limbs: add at %+v outside live range", pos))
	}
	for v != 0 {
		if idx == s.length {
			s.grow()
		}
		q, r := s.mod.DivRem(0, v)
		l := s.slot(idx)
		*l += r
		if *l >= s.mod.Value() {
			*l -= s.mod.Value()
			q++
		}
		v = q
		idx++
	}
}

// PageSpan returns the live limbs of logical page i, aliasing the page.
func (s *Store) PageSpan(i int) []uint64 {
	if i < 0 || i >= s.count {
		panic(fmt.Sprintf("limbs: page %d out of range [0, %d)", i, s.count))
	}
	lo, hi := 0, PageLimbs
	if i == 0 {
		lo = s.cursor
	}
	if top := s.cursor + s.length - i*PageLimbs; top < hi {
		hi = top
	}
	return s.pageAt(i)[lo:hi]
}

// AppendLimbs appends the live limbs, lowest first, to dst.
func (s *Store) AppendLimbs(dst []uint64) []uint64 {
	for i := 0; i < s.count; i++ {
		dst = append(dst, s.PageSpan(i)...)
	}
	return dst
}

// Limbs returns a copy of the live limbs, lowest first.
func (s *Store) Limbs() []uint64 {
	return s.AppendLimbs(make([]uint64, 0, s.length))
}

// Value returns the integer held by the store.
func (s *Store) Value() *big.Int {
	v := new(big.Int)
	m := new(big.Int).SetUint64(s.mod.Value())
	var limb big.Int
	for i := s.length - 1; i >= 0; i-- {
		v.Mul(v, m)
		v.Add(v, limb.SetUint64(*s.slot(i)))
	}
	return v
}

func (s *Store) slot(i int) *uint64 {
	g := s.cursor + i
	return &s.pageAt(g / PageLimbs)[g%PageLimbs]
}

func (s *Store) pageAt(i int) *page {
	return s.ring[(s.head+i)&(len(s.ring)-1)]
}

// grow makes one more limb live at the top.
func (s *Store) grow() {
	if s.cursor+s.length == s.count*PageLimbs {
		s.pushPage()
	}
	s.length++
}

// reclaim makes the slot below the head live again and zeroes it.
func (s *Store) reclaim() {
	if s.cursor == 0 {
		s.ensureRing()
		s.head = (s.head - 1) & (len(s.ring) - 1)
		s.ring[s.head] = s.pool.get()
		s.count++
		s.cursor = PageLimbs
	}
	s.cursor--
	s.length++
	s.pageAt(0)[s.cursor] = 0
}

func (s *Store) pushPage() {
	s.ensureRing()
	s.ring[(s.head+s.count)&(len(s.ring)-1)] = s.pool.get()
	s.count++
}

func (s *Store) popPage() {
	pg := s.ring[s.head]
	s.ring[s.head] = nil
	s.head = (s.head + 1) & (len(s.ring) - 1)
	s.count--
	s.pool.put(pg)
}

// ensureRing doubles the ring when it is full, keeping pages in order.
func (s *Store) ensureRing() {
	if s.count < len(s.ring) {
		return
	}
	ring := make([]*page, 2*len(s.ring))
	for i := 0; i < s.count; i++ {
		ring[i] = s.pageAt(i)
	}
	s.ring = ring
	s.head = 0
}
