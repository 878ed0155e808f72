// Package fixmod implements arithmetic modulo a fixed limb modulus.
//
// The Digit Store keeps every limb in [0, M) with M = 81^8. Scaling a limb by
// a power of two and splitting off the carry is a double-width division by M;
// Modulus replaces the hardware divide with a multiplication by a precomputed
// normalized reciprocal (Möller and Granlund, "Improved division by invariant
// integers", algorithm 4). The result is exact for every input whose quotient
// fits in 64 bits.
package fixmod

import (
	"fmt"
	"math/bits"
)

const (
	// Radix is the base of the digits consumed by the automaton.
	Radix = 81

	// LimbDigits is the number of base-81 digits held by one limb.
	LimbDigits = 8

	// M is the limb modulus, Radix^LimbDigits.
	M uint64 = 1853020188851841
)

// Modulus is a divisor with its precomputed reciprocal.
// A Modulus is immutable and safe for concurrent use.
type Modulus struct {
	m     uint64
	shift uint   // leading zeros of m
	d     uint64 // m << shift, top bit set
	v     uint64 // floor((2^128-1)/d) - 2^64
}

// New precomputes the reciprocal of m.
// Panics if m is zero.
func New(m uint64) *Modulus {
	if m == 0 {
		panic("fixmod: zero modulus")
	}
	s := uint(bits.LeadingZeros64(m))
	d := m << s
	// (2^128-1) - 2^64*d = ^d*2^64 + (2^64-1); ^d < d because the top bit of d is set.
	v, _ := bits.Div64(^d, ^uint64(0), d)
	return &Modulus{m: m, shift: s, d: d, v: v}
}

// Limb returns the modulus shared by the Digit Store.
func Limb() *Modulus {
	return limbModulus
}

var limbModulus = New(M)

// Value returns the divisor.
func (md *Modulus) Value() uint64 {
	return md.m
}

// DivRem returns q and r with q*m + r == hi*2^64 + lo and r < m.
// Requires hi < m so that the quotient fits in 64 bits.
func (md *Modulus) DivRem(hi, lo uint64) (q, r uint64) {
	s := md.shift
	// Shifts by 64 yield 0 in Go, so s == 0 needs no special case.
	u1 := hi<<s | lo>>(64-s)
	u0 := lo << s

	q1, q0 := bits.Mul64(md.v, u1)
	q0, c := bits.Add64(q0, u0, 0)
	q1, _ = bits.Add64(q1, u1, c)
	q1++

	r = u0 - q1*md.d
	// r > q0 happens for roughly half the inputs; fold it in with a mask.
	_, borrow := bits.Sub64(q0, r, 0)
	mask := -borrow
	q1 += mask
	r += md.d & mask
	if r >= md.d {
		q1++
		r -= md.d
	}
	return q1, r >> s
}

// Scale computes divmod(x*2^shift + carry, m) for one limb.
// Requires x < m, shift <= 64 and carry < 2^shift (any carry when shift is 64),
// which keeps the quotient below 2^64.
func (md *Modulus) Scale(x, carry uint64, shift uint) (limb, carryOut uint64) {
	var hi, lo uint64
	if shift >= 64 {
		hi, lo = x, carry
	} else {
		hi, lo = x>>(64-shift), x<<shift
		var c uint64
		lo, c = bits.Add64(lo, carry, 0)
		hi += c
	}
	q, r := md.DivRem(hi, lo)
	return r, q
}

// ScaleRun scales limbs in place, lowest first, starting from carry.
// It returns the carry out of the top limb.
func (md *Modulus) ScaleRun(limbs []uint64, carry uint64, shift uint) uint64 {
	for i, x := range limbs {
		limbs[i], carry = md.Scale(x, carry, shift)
	}
	return carry
}

// RangeError reports a limb or digit that escaped its range.
// It indicates broken arithmetic, never bad input.
type RangeError struct {
	What  string
	Value uint64
	Bound uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("fixmod: %s %d out of range [0, %d)", e.What, e.Value, e.Bound)
}
