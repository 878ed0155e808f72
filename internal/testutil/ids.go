package testutil

import "fmt"

// FixedIDGenerator hands out run IDs from a fixed sequence.
//
// This enables golden comparison of ledger output. The same test with the same
// generator produces byte-identical rows.
//
// Thread-safety: NOT safe for concurrent use.
type FixedIDGenerator struct {
	ids   []string
	index int
}

// NewFixedIDGenerator creates a generator returning ids in order.
//
// Once the list is exhausted, Generate falls back to "test-run-N".
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next run ID.
func (g *FixedIDGenerator) Generate() string {
	g.index++
	if g.index <= len(g.ids) {
		return g.ids[g.index-1]
	}
	return fmt.Sprintf("test-run-%d", g.index)
}
