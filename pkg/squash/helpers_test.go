package squash

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/columnar"
)

// source produces blocks whose id column counts up across calls, so the
// order and completeness of any output sequence can be checked.
type source struct {
	next int64
}

func (s *source) block(t *testing.T, rows int) *columnar.Block {
	t.Helper()
	ids := columnar.NewIntColumn()
	names := columnar.NewStringColumn()
	for i := 0; i < rows; i++ {
		require.NoError(t, ids.Append(s.next))
		require.NoError(t, names.Append(fmt.Sprintf("row-%d", s.next)))
		s.next++
	}
	b := columnar.NewBlock()
	require.NoError(t, b.AddColumn("id", ids))
	require.NoError(t, b.AddColumn("name", names))
	return b
}

func intColumn(t *testing.T, values ...int64) *columnar.IntColumn {
	t.Helper()
	col := columnar.NewIntColumn()
	for _, v := range values {
		require.NoError(t, col.Append(v))
	}
	return col
}

func rowsOf(t *testing.T, b *columnar.Block) int {
	t.Helper()
	rows, err := b.Rows()
	require.NoError(t, err)
	return rows
}

func idsOf(t *testing.T, b *columnar.Block) []int64 {
	t.Helper()
	col, ok := b.ColumnAt(0).Data.Column().(*columnar.IntColumn)
	require.True(t, ok)
	ids := make([]int64, col.Len())
	for i := range ids {
		ids[i] = col.Value(i)
	}
	return ids
}

var errAllocation = stderrors.New("cannot allocate memory")

// failingColumn is an Int64 column whose appends fail or panic on demand
type failingColumn struct {
	*columnar.IntColumn
	fail   bool
	panics bool
}

func (c *failingColumn) AppendRange(src columnar.Column, start, length int) error {
	if c.panics {
		panic("out of memory")
	}
	if c.fail {
		return errAllocation
	}
	return c.IntColumn.AppendRange(src, start, length)
}

func (c *failingColumn) Clone() columnar.Column {
	return &failingColumn{IntColumn: c.IntColumn.Clone().(*columnar.IntColumn), fail: c.fail, panics: c.panics}
}

// intPair returns a block of two Int64 columns, id and n. A non-nil
// second column is used as n and must already hold rows values.
func intPair(t *testing.T, src *source, rows int, second columnar.Column) *columnar.Block {
	t.Helper()
	ids := columnar.NewIntColumn()
	plain := columnar.NewIntColumn()
	for i := 0; i < rows; i++ {
		require.NoError(t, ids.Append(src.next))
		require.NoError(t, plain.Append(src.next*10))
		src.next++
	}
	if second == nil {
		second = plain
	}
	b := columnar.NewBlock()
	require.NoError(t, b.AddColumn("id", ids))
	require.NoError(t, b.AddColumn("n", second))
	return b
}

// failingPair returns an intPair block whose n column fails, or panics,
// when anything is appended to it
func failingPair(t *testing.T, src *source, rows int, panics bool) *columnar.Block {
	t.Helper()
	failing := &failingColumn{IntColumn: columnar.NewIntColumn(), fail: !panics, panics: panics}
	for i := 0; i < rows; i++ {
		require.NoError(t, failing.Append(int64(i)))
	}
	return intPair(t, src, rows, failing)
}
