package squash

import "github.com/ajitpratap0/squash/pkg/columnar"

// Policy decides whether a block is large enough to be emitted on its own.
// A zero threshold disables that trigger; with both disabled every block is
// large enough.
type Policy struct {
	MinRows  uint64
	MinBytes uint64
}

// Disabled reports whether both thresholds are zero
func (p Policy) Disabled() bool {
	return p.MinRows == 0 && p.MinBytes == 0
}

// Enough reports whether rows or bytes reach an enabled threshold. The two
// thresholds are OR-combined.
func (p Policy) Enough(rows, bytes uint64) bool {
	return p.Disabled() ||
		(p.MinRows != 0 && rows >= p.MinRows) ||
		(p.MinBytes != 0 && bytes >= p.MinBytes)
}

// EnoughBlock applies Enough to the block's row count and byte size. It
// fails with a structural mismatch if the columns disagree on row count and
// with an invalid column error if a column is unset.
func (p Policy) EnoughBlock(b *columnar.Block) (bool, error) {
	rows, err := b.Rows()
	if err != nil {
		return false, err
	}
	bytes, err := b.ByteSize()
	if err != nil {
		return false, err
	}
	return p.Enough(uint64(rows), uint64(bytes)), nil //nolint:gosec // sizes are never negative
}
