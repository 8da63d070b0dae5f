package columnar

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoding_ColumnsSurviveRoundTrip(t *testing.T) {
	dict := NewStringColumn()
	for i := 0; i < 1500; i++ {
		require.NoError(t, dict.Append(fmt.Sprintf("k%d", i%3)))
	}
	require.True(t, dict.IsDictionaryEncoded())

	ts := NewTimestampColumn()
	require.NoError(t, ts.Append(time.Unix(1700000000, 0)))
	require.NoError(t, ts.Append(time.Unix(1600000000, 0)))

	raw := NewBytesColumn()
	require.NoError(t, raw.Append([]byte{0, 1, 2}))
	require.NoError(t, raw.Append([]byte{}))

	bools := NewBoolColumn()
	for i := 0; i < 70; i++ {
		require.NoError(t, bools.Append(i%2 == 0))
	}

	floats := NewFloatColumn()
	require.NoError(t, floats.Append(3.25))
	require.NoError(t, floats.Append(-1e10))

	plain := NewStringColumn()
	require.NoError(t, plain.Append("héllo"))
	require.NoError(t, plain.Append(""))

	columns := []Column{intColumn(t, 5, -3, 1<<40, 0), dict, ts, raw, bools, floats, plain}

	var buf []byte
	var err error
	for _, col := range columns {
		buf, err = AppendColumn(buf, col)
		require.NoError(t, err)
	}

	r := bufio.NewReader(bytes.NewReader(buf))
	for _, want := range columns {
		got, err := ReadColumn(r, want.Type(), want.Len())
		require.NoError(t, err)
		require.Equal(t, want.Len(), got.Len(), want.Type().String())
		for i := 0; i < want.Len(); i++ {
			assert.Equal(t, want.Get(i), got.Get(i), "%s row %d", want.Type(), i)
		}
	}
	_, err = r.ReadByte()
	assert.Error(t, err, "all bytes consumed")
}

func TestEncoding_Truncated(t *testing.T) {
	buf, err := AppendColumn(nil, intColumn(t, 100, 200, 300))
	require.NoError(t, err)

	_, err = ReadColumn(bufio.NewReader(bytes.NewReader(buf[:len(buf)-1])), ColumnTypeInt, 3)
	assert.Error(t, err)
}

func TestEncoding_CountBeyondData(t *testing.T) {
	empty := func() *bufio.Reader { return bufio.NewReader(bytes.NewReader(nil)) }
	for _, colType := range []ColumnType{
		ColumnTypeString, ColumnTypeInt, ColumnTypeFloat,
		ColumnTypeBool, ColumnTypeTimestamp, ColumnTypeBytes,
	} {
		_, err := ReadColumn(empty(), colType, 1<<62)
		assert.Error(t, err, colType.String())
	}

	_, err := ReadColumn(empty(), ColumnTypeInt, -1)
	assert.Error(t, err)

	// a value claiming far more bytes than remain
	huge := binary.AppendUvarint(nil, 1<<30)
	_, err = ReadColumn(bufio.NewReader(bytes.NewReader(huge)), ColumnTypeBytes, 1)
	assert.Error(t, err)
}

func TestEncoding_DictionaryRejectsDuplicates(t *testing.T) {
	buf := []byte{1}
	buf = binary.AppendUvarint(buf, 2)
	for _, v := range []string{"a", "a"} {
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	buf = binary.AppendUvarint(buf, 1)
	buf = binary.AppendUvarint(buf, 1)

	_, err := ReadColumn(bufio.NewReader(bytes.NewReader(buf)), ColumnTypeString, 2)
	assert.Error(t, err)
}

func TestEncoding_DictionaryCodeOutOfRange(t *testing.T) {
	buf := []byte{1}
	buf = binary.AppendUvarint(buf, 1)
	buf = binary.AppendUvarint(buf, 1)
	buf = append(buf, 'a')
	buf = binary.AppendUvarint(buf, 0)
	buf = binary.AppendUvarint(buf, 1)

	_, err := ReadColumn(bufio.NewReader(bytes.NewReader(buf)), ColumnTypeString, 2)
	assert.Error(t, err)

	buf[len(buf)-1] = 0
	col, err := ReadColumn(bufio.NewReader(bytes.NewReader(buf)), ColumnTypeString, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", col.(*StringColumn).Value(1))
}
