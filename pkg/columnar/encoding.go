package columnar

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// AppendColumn appends the binary encoding of col to buf. The row count and
// type are not written; callers frame them.
//
// Integers and timestamps are delta encoded as zigzag varints, strings are
// length prefixed, with dictionary columns writing the dictionary once
// followed by one varint code per row.
func AppendColumn(buf []byte, col Column) ([]byte, error) {
	switch c := col.(type) {
	case *IntColumn:
		return appendDeltas(buf, c.values), nil
	case *TimestampColumn:
		return appendDeltas(buf, c.values), nil
	case *FloatColumn:
		for _, v := range c.values {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		return buf, nil
	case *BoolColumn:
		buf = binary.AppendUvarint(buf, uint64(len(c.values)))
		for _, word := range c.values {
			buf = binary.LittleEndian.AppendUint64(buf, word)
		}
		return buf, nil
	case *StringColumn:
		if c.dictMode {
			buf = append(buf, 1)
			buf = binary.AppendUvarint(buf, uint64(len(c.dictValues)))
			for _, s := range c.dictValues {
				buf = appendString(buf, s)
			}
			for _, code := range c.codes {
				buf = binary.AppendUvarint(buf, uint64(code))
			}
			return buf, nil
		}
		buf = append(buf, 0)
		for _, s := range c.values {
			buf = appendString(buf, s)
		}
		return buf, nil
	case *BytesColumn:
		for i := 0; i < c.Len(); i++ {
			v := c.Value(i)
			buf = binary.AppendUvarint(buf, uint64(len(v)))
			buf = append(buf, v...)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("unsupported column type: %v", col.Type())
	}
}

func appendDeltas(buf []byte, values []int64) []byte {
	var prev int64
	for _, v := range values {
		buf = binary.AppendVarint(buf, v-prev)
		prev = v
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// maxPrealloc caps the capacity reserved from a decoded count; larger
// columns grow as their values are actually read
const maxPrealloc = 1 << 16

func preallocRows(n int) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

// ReadColumn decodes rows values of the given type written by AppendColumn.
// Counts come from untrusted input: a count the data cannot back fails with
// an error once the reader runs dry.
func ReadColumn(r *bufio.Reader, colType ColumnType, rows int) (Column, error) {
	if rows < 0 {
		return nil, fmt.Errorf("negative row count %d", rows)
	}
	switch colType {
	case ColumnTypeInt:
		values, err := readDeltas(r, rows)
		if err != nil {
			return nil, err
		}
		return &IntColumn{values: values}, nil
	case ColumnTypeTimestamp:
		values, err := readDeltas(r, rows)
		if err != nil {
			return nil, err
		}
		return &TimestampColumn{values: values}, nil
	case ColumnTypeFloat:
		col := &FloatColumn{values: make([]float64, 0, preallocRows(rows))}
		var word [8]byte
		for i := 0; i < rows; i++ {
			if _, err := io.ReadFull(r, word[:]); err != nil {
				return nil, err
			}
			col.values = append(col.values, math.Float64frombits(binary.LittleEndian.Uint64(word[:])))
		}
		return col, nil
	case ColumnTypeBool:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		words := rows/64 + 1
		if rows%64 == 0 {
			words--
		}
		if n != uint64(words) {
			return nil, fmt.Errorf("bool column has %d words for %d rows", n, rows)
		}
		col := &BoolColumn{values: make([]uint64, 0, preallocRows(words)), count: rows}
		var word [8]byte
		for i := 0; i < words; i++ {
			if _, err := io.ReadFull(r, word[:]); err != nil {
				return nil, err
			}
			col.values = append(col.values, binary.LittleEndian.Uint64(word[:]))
		}
		return col, nil
	case ColumnTypeString:
		return readStrings(r, rows)
	case ColumnTypeBytes:
		col := NewBytesColumn()
		for i := 0; i < rows; i++ {
			v, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			col.appendBytes(v)
		}
		return col, nil
	default:
		return nil, fmt.Errorf("unsupported column type: %v", colType)
	}
}

func readDeltas(r *bufio.Reader, rows int) ([]int64, error) {
	values := make([]int64, 0, preallocRows(rows))
	var prev int64
	for i := 0; i < rows; i++ {
		delta, err := binary.ReadVarint(r)
		if err != nil {
			return nil, err
		}
		prev += delta
		values = append(values, prev)
	}
	return values, nil
}

func readStrings(r *bufio.Reader, rows int) (Column, error) {
	mode, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	col := NewStringColumn()
	if mode == 0 {
		for i := 0; i < rows; i++ {
			v, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			col.values = append(col.values, string(v))
		}
		return col, nil
	}

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > math.MaxUint32 {
		return nil, fmt.Errorf("dictionary of %d entries too large", n)
	}
	col.dictMode = true
	col.dict = make(map[string]uint32, preallocRows(int(n)))
	col.dictValues = make([]string, 0, preallocRows(int(n)))
	col.values = nil
	for i := uint64(0); i < n; i++ {
		v, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		if _, dup := col.dict[string(v)]; dup {
			return nil, fmt.Errorf("duplicate dictionary entry %q", v)
		}
		col.code(string(v))
	}
	col.codes = make([]uint32, 0, preallocRows(rows))
	for i := 0; i < rows; i++ {
		code, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if code >= uint64(len(col.dictValues)) {
			return nil, fmt.Errorf("dictionary code %d out of range", code)
		}
		col.codes = append(col.codes, uint32(code)) //nolint:gosec // bounded by dictionary size
	}
	return col, nil
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("value length %d too large", n)
	}
	if n > maxPrealloc {
		v, err := io.ReadAll(io.LimitReader(r, int64(n)))
		if err != nil {
			return nil, err
		}
		if uint64(len(v)) != n {
			return nil, io.ErrUnexpectedEOF
		}
		return v, nil
	}
	v := make([]byte, n)
	if _, err := io.ReadFull(r, v); err != nil {
		return nil, err
	}
	return v, nil
}
