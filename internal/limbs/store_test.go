package limbs

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limbwalk/internal/fixmod"
)

func randomLimbs(rng *rand.Rand, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = rng.Uint64() % fixmod.M
	}
	return out
}

func bigValue(limbs []uint64) *big.Int {
	v := new(big.Int)
	m := new(big.Int).SetUint64(fixmod.M)
	for i := len(limbs) - 1; i >= 0; i-- {
		v.Mul(v, m)
		v.Add(v, new(big.Int).SetUint64(limbs[i]))
	}
	return v
}

func TestNew_IsZeroWithSentinel(t *testing.T) {
	s := New()
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.PageCount())
	assert.Equal(t, []uint64{0}, s.Limbs())
	assert.Equal(t, 0, s.Value().Sign())
}

func TestFromLimbs_MultiPage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	limbs := randomLimbs(rng, 3*PageLimbs+17)

	s, err := FromLimbs(limbs)
	require.NoError(t, err)
	assert.Equal(t, len(limbs), s.Len())
	assert.Equal(t, 4, s.PageCount())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, limbs, s.Limbs())
	assert.Equal(t, 0, bigValue(limbs).Cmp(s.Value()))
}

func TestFromLimbs_ExactPageBoundary(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	limbs := randomLimbs(rng, 2*PageLimbs)

	s, err := FromLimbs(limbs)
	require.NoError(t, err)
	assert.Equal(t, 2, s.PageCount())
	assert.Equal(t, Position{Page: 2, Offset: 0}, s.End())
	assert.Equal(t, limbs, s.Limbs())
}

func TestFromLimbs_RejectsOutOfRange(t *testing.T) {
	_, err := FromLimbs([]uint64{1, fixmod.M})
	require.ErrorIs(t, err, ErrLimbRange)
}

func TestFromLimbs_Empty(t *testing.T) {
	s, err := FromLimbs(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, s.Limbs())
}

func TestPop_LowestFirst(t *testing.T) {
	s, err := FromLimbs([]uint64{5, 6, 7})
	require.NoError(t, err)

	assert.Equal(t, uint64(5), s.Pop())
	assert.Equal(t, uint64(6), s.Pop())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(7), s.Pop())

	// The last limb is replaced by a zero sentinel.
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(0), s.Pop())
	assert.Equal(t, []uint64{0}, s.Limbs())
}

func TestPop_DiscardsConsumedPages(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	limbs := randomLimbs(rng, 2*PageLimbs+3)
	s, err := FromLimbs(limbs, WithMaxFreePages(1))
	require.NoError(t, err)

	for i := 0; i < PageLimbs; i++ {
		require.Equal(t, limbs[i], s.Pop())
	}
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, 2, s.PageCount())

	for i := PageLimbs; i < 2*PageLimbs; i++ {
		require.Equal(t, limbs[i], s.Pop())
	}
	assert.Equal(t, 1, s.PageCount())
	assert.Equal(t, limbs[2*PageLimbs:], s.Limbs())

	// One page fit in the free list; the other was dropped.
	_, released := s.PoolStats()
	assert.Equal(t, uint64(1), released)
}

func TestPopAdd_Inverse(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	limbs := randomLimbs(rng, PageLimbs+40)
	s, err := FromLimbs(limbs)
	require.NoError(t, err)

	// Walk across the page boundary so Vacated() lands both inside the head
	// page and on the page that was just discarded.
	for i := 0; i < PageLimbs+5; i++ {
		before := s.Limbs()
		v := s.Pop()
		s.Add(s.Vacated(), v)
		require.Equal(t, before, s.Limbs(), "iteration %d", i)
		s.Pop()
	}
}

func TestPopAdd_InverseAtPageStart(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	limbs := randomLimbs(rng, PageLimbs+2)
	s, err := FromLimbs(limbs)
	require.NoError(t, err)

	for i := 0; i < PageLimbs-1; i++ {
		s.Pop()
	}
	before := s.Limbs()
	pagesBefore := s.PageCount()

	v := s.Pop() // consumes the last limb of the head page
	assert.Equal(t, pagesBefore-1, s.PageCount())
	assert.Equal(t, Position{Page: -1, Offset: PageLimbs - 1}, s.Vacated())

	s.Add(s.Vacated(), v)
	assert.Equal(t, before, s.Limbs())
	assert.Equal(t, pagesBefore, s.PageCount())
}

func TestAdd_CarryAcrossPagesAndAppend(t *testing.T) {
	top := fixmod.M - 1
	limbs := make([]uint64, PageLimbs+1)
	for i := range limbs {
		limbs[i] = top
	}
	s, err := FromLimbs(limbs)
	require.NoError(t, err)
	want := new(big.Int).Add(s.Value(), big.NewInt(1))

	s.Add(s.Head(), 1)

	assert.Equal(t, len(limbs)+1, s.Len())
	assert.Equal(t, 2, s.PageCount())
	assert.Equal(t, uint64(1), s.At(s.Len()-1))
	for i := 0; i < len(limbs); i++ {
		require.Zero(t, s.At(i))
	}
	assert.Equal(t, 0, want.Cmp(s.Value()))
}

func TestAdd_LargeValueSplitsIntoLimbs(t *testing.T) {
	s := New()
	v := ^uint64(0)
	s.Add(s.Head(), v)

	assert.Equal(t, 0, new(big.Int).SetUint64(v).Cmp(s.Value()))
	for _, l := range s.Limbs() {
		assert.Less(t, l, fixmod.M)
	}
	assert.Equal(t, []uint64{v % fixmod.M, v / fixmod.M}, s.Limbs())
}

func TestAdd_AtEndAppends(t *testing.T) {
	s, err := FromLimbs([]uint64{1, 2})
	require.NoError(t, err)

	s.Add(s.End(), 9)
	assert.Equal(t, []uint64{1, 2, 9}, s.Limbs())

	s.Add(s.End(), 0)
	assert.Equal(t, 3, s.Len(), "adding zero never grows the store")
}

func TestAdd_OutsideLiveRangePanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.Add(Position{Page: 0, Offset: 5}, 1) })
}

func TestRandomOps_MatchBigInt(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	s := New(WithMaxFreePages(2))
	ref := new(big.Int)
	m := new(big.Int).SetUint64(fixmod.M)

	for i := 0; i < 6000; i++ {
		switch rng.Intn(4) {
		case 0:
			got := s.Pop()
			r := new(big.Int)
			ref.DivMod(ref, m, r)
			require.Equal(t, r.Uint64(), got, "op %d", i)
		default:
			v := rng.Uint64()
			ref.Add(ref, new(big.Int).SetUint64(v))
			s.Add(s.Head(), v)
			if rng.Intn(2) == 0 {
				// Grow the top so pages keep filling up.
				n := s.Len()
				hi := rng.Uint64()
				s.Add(s.End(), hi)
				w := new(big.Int).Exp(m, big.NewInt(int64(n)), nil)
				ref.Add(ref, w.Mul(w, new(big.Int).SetUint64(hi)))
			}
		}
	}
	assert.Greater(t, s.PageCount(), 1)
	assert.Equal(t, 0, ref.Cmp(s.Value()))
}

func TestPageSpan_CoversLiveRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	limbs := randomLimbs(rng, 2*PageLimbs+9)
	s, err := FromLimbs(limbs)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		s.Pop()
	}

	var joined []uint64
	for i := 0; i < s.PageCount(); i++ {
		joined = append(joined, s.PageSpan(i)...)
	}
	assert.Equal(t, limbs[30:], joined)
	assert.Len(t, s.PageSpan(0), PageLimbs-30)
	assert.Len(t, s.PageSpan(2), 9)
}
