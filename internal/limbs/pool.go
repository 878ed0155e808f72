package limbs

// PageLimbs is the number of limbs in one page (4 KiB of uint64).
const PageLimbs = 512

// page is a fixed-capacity block of limbs. A page has exactly one owner at a
// time: either the Store's ring or the pool's free list.
type page [PageLimbs]uint64

// DefaultMaxFree bounds the number of idle pages kept for reuse.
const DefaultMaxFree = 64

// pool recycles pages released from the head of the ring.
// Not safe for concurrent use; it belongs to a single Store.
type pool struct {
	free     []*page
	maxFree  int
	recycled uint64 // pages handed out from the free list
	released uint64 // pages dropped because the free list was full
}

func newPool(maxFree int) *pool {
	if maxFree < 0 {
		maxFree = 0
	}
	return &pool{maxFree: maxFree}
}

// get returns a zeroed page, reusing an idle one when available.
func (p *pool) get() *page {
	if n := len(p.free); n > 0 {
		pg := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		clear(pg[:])
		p.recycled++
		return pg
	}
	return new(page)
}

// put takes ownership of pg.
func (p *pool) put(pg *page) {
	if len(p.free) >= p.maxFree {
		p.released++
		return
	}
	p.free = append(p.free, pg)
}
