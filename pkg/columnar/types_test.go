package columnar

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnType_StringRoundTrip(t *testing.T) {
	for _, ct := range []ColumnType{ColumnTypeString, ColumnTypeInt, ColumnTypeFloat, ColumnTypeBool, ColumnTypeTimestamp, ColumnTypeBytes} {
		parsed, err := ParseColumnType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, parsed)
	}

	_, err := ParseColumnType("Decimal")
	assert.Error(t, err)
	assert.Equal(t, "Unknown(42)", ColumnType(42).String())
}

func TestColumn_AppendRange(t *testing.T) {
	tests := []struct {
		name   string
		typ    ColumnType
		values []interface{}
	}{
		{"string", ColumnTypeString, []interface{}{"a", "b", "c", "d"}},
		{"int", ColumnTypeInt, []interface{}{int64(1), int64(-2), int64(3), int64(4)}},
		{"float", ColumnTypeFloat, []interface{}{1.5, 2.5, -3.25, 0.0}},
		{"bool", ColumnTypeBool, []interface{}{true, false, false, true}},
		{"timestamp", ColumnTypeTimestamp, []interface{}{
			time.Unix(1, 0).UTC(), time.Unix(2, 0).UTC(), time.Unix(3, 0).UTC(), time.Unix(4, 0).UTC(),
		}},
		{"bytes", ColumnTypeBytes, []interface{}{[]byte("x"), []byte{}, []byte("yz"), []byte{0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewColumn(tt.typ)
			for _, v := range tt.values {
				require.NoError(t, src.Append(v))
			}
			assert.Equal(t, len(tt.values), src.Len())

			dst := NewColumn(tt.typ)
			require.NoError(t, dst.Append(tt.values[0]))
			require.NoError(t, dst.AppendRange(src, 1, 2))

			require.Equal(t, 3, dst.Len())
			assert.Equal(t, tt.values[0], dst.Get(0))
			assert.Equal(t, tt.values[1], dst.Get(1))
			assert.Equal(t, tt.values[2], dst.Get(2))
			assert.Equal(t, len(tt.values), src.Len(), "source must not change")
		})
	}
}

func TestColumn_AppendRangeErrors(t *testing.T) {
	ints := NewIntColumn()
	require.NoError(t, ints.Append(int64(1)))

	assert.Error(t, ints.AppendRange(nil, 0, 0))
	assert.Error(t, ints.AppendRange(NewStringColumn(), 0, 0))
	assert.Error(t, ints.AppendRange(ints.Clone(), 0, 2))
	assert.Error(t, ints.AppendRange(ints.Clone(), -1, 1))
	assert.Equal(t, 1, ints.Len())
}

func TestColumn_CloneIsDeep(t *testing.T) {
	col := NewStringColumn()
	require.NoError(t, col.Append("a"))

	clone := col.Clone()
	require.NoError(t, clone.Append("b"))

	assert.Equal(t, 1, col.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestStringColumn_DictionaryEncoding(t *testing.T) {
	col := NewStringColumn()
	for i := 0; i < 2000; i++ {
		require.NoError(t, col.Append(fmt.Sprintf("v%d", i%10)))
	}
	assert.True(t, col.IsDictionaryEncoded())
	assert.Equal(t, 2000, col.Len())
	assert.Equal(t, "v7", col.Value(1997))

	// Merging a dictionary column into a plain one keeps values in order
	dst := NewStringColumn()
	require.NoError(t, dst.AppendRange(col, 5, 3))
	assert.Equal(t, []interface{}{"v5", "v6", "v7"}, []interface{}{dst.Get(0), dst.Get(1), dst.Get(2)})

	clone := col.Clone().(*StringColumn)
	assert.True(t, clone.IsDictionaryEncoded())
	assert.Equal(t, col.Value(123), clone.Value(123))
}

func TestBoolColumn_CrossesWordBoundary(t *testing.T) {
	col := NewBoolColumn()
	for i := 0; i < 130; i++ {
		require.NoError(t, col.Append(i%3 == 0))
	}
	for i := 0; i < 130; i++ {
		assert.Equal(t, i%3 == 0, col.Value(i), "row %d", i)
	}

	dst := NewBoolColumn()
	require.NoError(t, dst.AppendRange(col, 60, 10))
	for i := 0; i < 10; i++ {
		assert.Equal(t, (60+i)%3 == 0, dst.Value(i))
	}
}

func TestColumn_AppendParsesText(t *testing.T) {
	ints := NewIntColumn()
	require.NoError(t, ints.Append("42"))
	assert.Error(t, ints.Append("x"))
	assert.Equal(t, int64(42), ints.Value(0))

	ts := NewTimestampColumn()
	require.NoError(t, ts.Append("2024-01-02T03:04:05Z"))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts.Get(0))

	bools := NewBoolColumn()
	assert.Error(t, bools.Append("maybe"))
	assert.Equal(t, 0, bools.Len())
}

func TestColumn_ByteSize(t *testing.T) {
	ints := NewIntColumn()
	for i := 0; i < 10; i++ {
		require.NoError(t, ints.Append(i))
	}
	assert.Equal(t, 80, ints.ByteSize())

	strs := NewStringColumn()
	require.NoError(t, strs.Append("abcd"))
	assert.Equal(t, 20, strs.ByteSize())

	ints.Clear()
	assert.Equal(t, 0, ints.ByteSize())
	assert.Equal(t, 0, ints.Len())
}
