// Package table holds the static transition table of the automaton.
//
// Every base-81 digit maps to a counter delta and an output symbol. The
// table is fixed at compile time and identical across runs; tests may build
// their own Table to drive the automaton along a known path.
package table

import "fmt"

// Size is the number of entries, one per base-81 digit value.
const Size = 81

// Entry is one row of the table.
type Entry struct {
	Delta  int8  // added to the counter when the digit is consumed
	Symbol uint8 // base-256 symbol appended to the produced word
}

// Table maps digit values 0..80 to entries.
type Table [Size]Entry

// Lookup returns the entry for digit d.
// Panics if d is not a valid base-81 digit.
func (t *Table) Lookup(d uint8) Entry {
	if d >= Size {
		panic(fmt.Sprintf("table: digit %d out of range", d))
	}
	return t[d]
}

// Uniform returns a table where every digit maps to the same entry.
// Used by tests that need a predictable delta sum.
func Uniform(e Entry) *Table {
	var t Table
	for i := range t {
		t[i] = e
	}
	return &t
}

// Default returns the production table.
// The returned pointer is shared; callers must not modify it.
func Default() *Table {
	return &defaultTable
}

var defaultTable = Table{
	{1, 2}, {1, 5}, {-1, 9}, {2, 11}, {0, 15}, {-2, 19}, {1, 21}, {1, 24},
	{2, 27}, {2, 30}, {0, 34}, {0, 37}, {3, 39}, {1, 43}, {-1, 47}, {2, 49},
	{0, 53}, {3, 55}, {3, 58}, {1, 62}, {-1, 66}, {-1, 69}, {2, 71}, {0, 75},
	{3, 77}, {1, 81}, {-1, 85}, {2, 87}, {2, 90}, {0, 94}, {0, 97}, {-2, 101},
	{-1, 104}, {-1, 107}, {2, 109}, {0, 113}, {3, 115}, {1, 119}, {1, 122},
	{1, 125}, {-1, 129}, {0, 132}, {0, 135}, {-2, 139}, {1, 141}, {4, 143},
	{2, 147}, {0, 151}, {0, 154}, {0, 157}, {1, 160}, {1, 163}, {-1, 167},
	{0, 170}, {0, 173}, {3, 175}, {1, 179}, {1, 182}, {-1, 186}, {0, 189},
	{0, 192}, {0, 195}, {1, 198}, {1, 201}, {-1, 205}, {2, 207}, {2, 210},
	{0, 214}, {1, 217}, {1, 220}, {-1, 224}, {2, 226}, {2, 229}, {0, 233},
	{-2, 237}, {1, 239}, {1, 242}, {2, 245}, {2, 248}, {0, 252}, {1, 255},
}
