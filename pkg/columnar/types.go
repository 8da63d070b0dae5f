package columnar

import (
	"fmt"
	"strconv"
	"time"
)

// ColumnType represents the data type of a column
type ColumnType int

const (
	ColumnTypeString ColumnType = iota
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeBool
	ColumnTypeTimestamp
	ColumnTypeBytes
)

var columnTypeNames = map[ColumnType]string{
	ColumnTypeString:    "String",
	ColumnTypeInt:       "Int64",
	ColumnTypeFloat:     "Float64",
	ColumnTypeBool:      "Bool",
	ColumnTypeTimestamp: "DateTime",
	ColumnTypeBytes:     "Bytes",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(t)) + ")"
}

// ParseColumnType is the inverse of ColumnType.String
func ParseColumnType(name string) (ColumnType, error) {
	for t, n := range columnTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown column type %q", name)
}

// Column is a typed, ordered sequence of values.
//
// Columns are not safe for concurrent mutation. A column that may be
// reachable from more than one block must be accessed through a Ref and
// mutated only via Ref.Mutate.
type Column interface {
	Type() ColumnType
	// Len returns the number of rows
	Len() int
	// ByteSize returns an approximation of the memory held by the values
	ByteSize() int
	Get(i int) interface{}
	Append(value interface{}) error
	// AppendRange appends length values of src starting at start.
	// src must have the same type.
	AppendRange(src Column, start, length int) error
	// Clone returns a deep copy
	Clone() Column
	Clear()
}

// NewColumn creates an empty column of the given type
func NewColumn(colType ColumnType) Column {
	switch colType {
	case ColumnTypeString:
		return NewStringColumn()
	case ColumnTypeInt:
		return NewIntColumn()
	case ColumnTypeFloat:
		return NewFloatColumn()
	case ColumnTypeBool:
		return NewBoolColumn()
	case ColumnTypeTimestamp:
		return NewTimestampColumn()
	case ColumnTypeBytes:
		return NewBytesColumn()
	default:
		return NewStringColumn()
	}
}

func checkRange(dst, src Column, start, length int) error {
	if src == nil {
		return fmt.Errorf("append from nil column")
	}
	if src.Type() != dst.Type() {
		return fmt.Errorf("cannot append %s column into %s column", src.Type(), dst.Type())
	}
	if start < 0 || length < 0 || start+length > src.Len() {
		return fmt.Errorf("range [%d, %d) out of bounds for column of %d rows", start, start+length, src.Len())
	}
	return nil
}

// StringColumn stores string values efficiently
type StringColumn struct {
	values []string
	// Dictionary encoding for repeated values
	dict       map[string]uint32
	dictValues []string
	codes      []uint32
	dictMode   bool
	threshold  float64 // Switch to dictionary when unique ratio < threshold
}

// NewStringColumn creates a new string column
func NewStringColumn() *StringColumn {
	return &StringColumn{
		values:    make([]string, 0, 64),
		threshold: 0.5,
	}
}

func (c *StringColumn) Type() ColumnType { return ColumnTypeString }
func (c *StringColumn) Len() int {
	if c.dictMode {
		return len(c.codes)
	}
	return len(c.values)
}

func (c *StringColumn) Get(i int) interface{} {
	return c.Value(i)
}

// Value returns the string at row i
func (c *StringColumn) Value(i int) string {
	if c.dictMode {
		return c.dictValues[c.codes[i]]
	}
	return c.values[i]
}

func (c *StringColumn) Append(value interface{}) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	c.appendString(str)
	return nil
}

func (c *StringColumn) appendString(str string) {
	if c.dictMode {
		c.codes = append(c.codes, c.code(str))
		return
	}

	c.values = append(c.values, str)

	// Check if we should switch to dictionary mode
	if len(c.values) == 1024 && c.shouldUseDictionary() {
		c.convertToDictionary()
	}
}

func (c *StringColumn) code(str string) uint32 {
	if code, exists := c.dict[str]; exists {
		return code
	}
	code := uint32(len(c.dictValues)) //nolint:gosec // dictionary never exceeds the row count
	c.dict[str] = code
	c.dictValues = append(c.dictValues, str)
	return code
}

func (c *StringColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	s := src.(*StringColumn)
	if !c.dictMode && !s.dictMode {
		c.values = append(c.values, s.values[start:start+length]...)
		return nil
	}
	for i := start; i < start+length; i++ {
		c.appendString(s.Value(i))
	}
	return nil
}

func (c *StringColumn) Clone() Column {
	clone := &StringColumn{
		values:    append(make([]string, 0, len(c.values)), c.values...),
		dictMode:  c.dictMode,
		threshold: c.threshold,
	}
	if c.dictMode {
		clone.dict = make(map[string]uint32, len(c.dict))
		for k, v := range c.dict {
			clone.dict[k] = v
		}
		clone.dictValues = append([]string(nil), c.dictValues...)
		clone.codes = append([]uint32(nil), c.codes...)
	}
	return clone
}

func (c *StringColumn) shouldUseDictionary() bool {
	unique := make(map[string]struct{})
	for _, v := range c.values {
		unique[v] = struct{}{}
	}
	ratio := float64(len(unique)) / float64(len(c.values))
	return ratio < c.threshold
}

func (c *StringColumn) convertToDictionary() {
	c.dictMode = true
	c.dict = make(map[string]uint32)
	c.dictValues = c.dictValues[:0]
	c.codes = make([]uint32, 0, len(c.values))

	for _, v := range c.values {
		c.codes = append(c.codes, c.code(v))
	}

	// Clear values to free memory
	c.values = nil
}

// IsDictionaryEncoded reports whether the column switched to dictionary mode
func (c *StringColumn) IsDictionaryEncoded() bool { return c.dictMode }

func (c *StringColumn) Clear() {
	c.values = c.values[:0]
	c.codes = c.codes[:0]
	c.dict = nil
	c.dictValues = nil
	c.dictMode = false
}

func (c *StringColumn) ByteSize() int {
	var total int

	if c.dictMode {
		for _, k := range c.dictValues {
			total += len(k) + 16 + 4
		}
		total += len(c.codes) * 4
		return total
	}

	for _, v := range c.values {
		total += len(v)
		total += 16 // string header overhead
	}
	return total
}

// IntColumn stores integer values
type IntColumn struct {
	values []int64
}

// NewIntColumn creates a new integer column
func NewIntColumn() *IntColumn {
	return &IntColumn{
		values: make([]int64, 0, 64),
	}
}

func (c *IntColumn) Type() ColumnType { return ColumnTypeInt }
func (c *IntColumn) Len() int         { return len(c.values) }

func (c *IntColumn) Get(i int) interface{} {
	return c.values[i]
}

// Value returns the integer at row i
func (c *IntColumn) Value(i int) int64 { return c.values[i] }

func (c *IntColumn) Append(value interface{}) error {
	var intVal int64
	switch v := value.(type) {
	case int:
		intVal = int64(v)
	case int64:
		intVal = v
	case int32:
		intVal = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int: %w", v, err)
		}
		intVal = parsed
	default:
		return fmt.Errorf("expected int, got %T", value)
	}

	c.values = append(c.values, intVal)
	return nil
}

func (c *IntColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	c.values = append(c.values, src.(*IntColumn).values[start:start+length]...)
	return nil
}

func (c *IntColumn) Clone() Column {
	return &IntColumn{values: append(make([]int64, 0, len(c.values)), c.values...)}
}

func (c *IntColumn) Clear() {
	c.values = c.values[:0]
}

func (c *IntColumn) ByteSize() int {
	return len(c.values) * 8
}

// FloatColumn stores floating point values
type FloatColumn struct {
	values []float64
}

// NewFloatColumn creates a new float column
func NewFloatColumn() *FloatColumn {
	return &FloatColumn{
		values: make([]float64, 0, 64),
	}
}

func (c *FloatColumn) Type() ColumnType { return ColumnTypeFloat }
func (c *FloatColumn) Len() int         { return len(c.values) }

func (c *FloatColumn) Get(i int) interface{} {
	return c.values[i]
}

// Value returns the float at row i
func (c *FloatColumn) Value(i int) float64 { return c.values[i] }

func (c *FloatColumn) Append(value interface{}) error {
	var floatVal float64
	switch v := value.(type) {
	case float64:
		floatVal = v
	case float32:
		floatVal = float64(v)
	case int64:
		floatVal = float64(v)
	case int:
		floatVal = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float: %w", v, err)
		}
		floatVal = parsed
	default:
		return fmt.Errorf("expected float, got %T", value)
	}

	c.values = append(c.values, floatVal)
	return nil
}

func (c *FloatColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	c.values = append(c.values, src.(*FloatColumn).values[start:start+length]...)
	return nil
}

func (c *FloatColumn) Clone() Column {
	return &FloatColumn{values: append(make([]float64, 0, len(c.values)), c.values...)}
}

func (c *FloatColumn) Clear() {
	c.values = c.values[:0]
}

func (c *FloatColumn) ByteSize() int {
	return len(c.values) * 8
}

// BoolColumn stores boolean values bit-packed, 64 per word
type BoolColumn struct {
	values []uint64
	count  int
}

// NewBoolColumn creates a new boolean column
func NewBoolColumn() *BoolColumn {
	return &BoolColumn{
		values: make([]uint64, 0, 4),
	}
}

func (c *BoolColumn) Type() ColumnType { return ColumnTypeBool }
func (c *BoolColumn) Len() int         { return c.count }

func (c *BoolColumn) Get(i int) interface{} {
	return c.Value(i)
}

// Value returns the boolean at row i
func (c *BoolColumn) Value(i int) bool {
	return (c.values[i/64] & (1 << (i % 64))) != 0
}

func (c *BoolColumn) Append(value interface{}) error {
	var boolVal bool
	switch v := value.(type) {
	case bool:
		boolVal = v
	case string:
		switch v {
		case "true", "1", "yes":
			boolVal = true
		case "false", "0", "no", "":
		default:
			return fmt.Errorf("cannot parse %q as bool", v)
		}
	default:
		return fmt.Errorf("expected bool, got %T", value)
	}

	c.appendBool(boolVal)
	return nil
}

func (c *BoolColumn) appendBool(v bool) {
	wordIndex := c.count / 64
	if wordIndex >= len(c.values) {
		c.values = append(c.values, 0)
	}
	if v {
		c.values[wordIndex] |= 1 << (c.count % 64)
	}
	c.count++
}

func (c *BoolColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	s := src.(*BoolColumn)
	for i := start; i < start+length; i++ {
		c.appendBool(s.Value(i))
	}
	return nil
}

func (c *BoolColumn) Clone() Column {
	return &BoolColumn{values: append(make([]uint64, 0, len(c.values)), c.values...), count: c.count}
}

func (c *BoolColumn) Clear() {
	c.values = c.values[:0]
	c.count = 0
}

func (c *BoolColumn) ByteSize() int {
	return len(c.values) * 8
}

// TimestampColumn stores timestamps as Unix seconds
type TimestampColumn struct {
	values []int64
}

// NewTimestampColumn creates a new timestamp column
func NewTimestampColumn() *TimestampColumn {
	return &TimestampColumn{
		values: make([]int64, 0, 64),
	}
}

func (c *TimestampColumn) Type() ColumnType { return ColumnTypeTimestamp }
func (c *TimestampColumn) Len() int         { return len(c.values) }

func (c *TimestampColumn) Get(i int) interface{} {
	return time.Unix(c.values[i], 0).UTC()
}

// Unix returns the raw Unix seconds at row i
func (c *TimestampColumn) Unix(i int) int64 { return c.values[i] }

func (c *TimestampColumn) Append(value interface{}) error {
	var timestamp int64
	switch v := value.(type) {
	case time.Time:
		timestamp = v.Unix()
	case int64:
		timestamp = v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("cannot parse %q as timestamp: %w", v, err)
		}
		timestamp = t.Unix()
	default:
		return fmt.Errorf("expected timestamp, got %T", value)
	}

	c.values = append(c.values, timestamp)
	return nil
}

func (c *TimestampColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	c.values = append(c.values, src.(*TimestampColumn).values[start:start+length]...)
	return nil
}

func (c *TimestampColumn) Clone() Column {
	return &TimestampColumn{values: append(make([]int64, 0, len(c.values)), c.values...)}
}

func (c *TimestampColumn) Clear() {
	c.values = c.values[:0]
}

func (c *TimestampColumn) ByteSize() int {
	return len(c.values) * 8
}

// BytesColumn stores opaque binary values in one contiguous buffer
type BytesColumn struct {
	data    []byte
	offsets []int // end offset of each value
}

// NewBytesColumn creates a new binary column
func NewBytesColumn() *BytesColumn {
	return &BytesColumn{}
}

func (c *BytesColumn) Type() ColumnType { return ColumnTypeBytes }
func (c *BytesColumn) Len() int         { return len(c.offsets) }

func (c *BytesColumn) Get(i int) interface{} {
	return c.Value(i)
}

// Value returns the bytes at row i. The slice aliases the column buffer.
func (c *BytesColumn) Value(i int) []byte {
	begin := 0
	if i > 0 {
		begin = c.offsets[i-1]
	}
	return c.data[begin:c.offsets[i]:c.offsets[i]]
}

func (c *BytesColumn) Append(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		c.appendBytes(v)
	case string:
		c.appendBytes([]byte(v))
	default:
		return fmt.Errorf("expected bytes, got %T", value)
	}
	return nil
}

func (c *BytesColumn) appendBytes(v []byte) {
	c.data = append(c.data, v...)
	c.offsets = append(c.offsets, len(c.data))
}

func (c *BytesColumn) AppendRange(src Column, start, length int) error {
	if err := checkRange(c, src, start, length); err != nil {
		return err
	}
	s := src.(*BytesColumn)
	for i := start; i < start+length; i++ {
		c.appendBytes(s.Value(i))
	}
	return nil
}

func (c *BytesColumn) Clone() Column {
	return &BytesColumn{
		data:    append([]byte(nil), c.data...),
		offsets: append([]int(nil), c.offsets...),
	}
}

func (c *BytesColumn) Clear() {
	c.data = c.data[:0]
	c.offsets = c.offsets[:0]
}

func (c *BytesColumn) ByteSize() int {
	return len(c.data) + len(c.offsets)*8
}
