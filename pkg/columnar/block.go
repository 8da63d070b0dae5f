package columnar

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/ajitpratap0/squash/pkg/errors"
)

// Schema defines the structure of a block
type Schema struct {
	Fields []FieldSchema
}

// FieldSchema defines a single field in the schema
type FieldSchema struct {
	Name string
	Type ColumnType
}

// Names returns the field names in order
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named field or -1
func (s *Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas declare the same fields in the same order
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	if s == nil {
		return ""
	}
	out := ""
	for i, f := range s.Fields {
		if i > 0 {
			out += ", "
		}
		out += f.Name + " " + f.Type.String()
	}
	return out
}

// BlockColumn is one named, typed column of a block
type BlockColumn struct {
	Name string
	Type ColumnType
	Data *Ref
}

// Block is an ordered set of named columns that all hold the same number of
// rows: one fragment of a table.
//
// A nil block and a block without columns are both "empty" and act as the
// end-of-stream marker. A block with columns but zero rows is not empty.
//
// Blocks have a single owner and are not safe for concurrent use. Columns
// may still be shared with other blocks through their Ref handles.
type Block struct {
	columns []BlockColumn
}

// NewBlock creates a block from the given columns
func NewBlock(columns ...BlockColumn) *Block {
	return &Block{columns: columns}
}

// NewBlockFromSchema creates a block with empty columns for every field
func NewBlockFromSchema(schema *Schema) *Block {
	b := &Block{columns: make([]BlockColumn, 0, len(schema.Fields))}
	for _, f := range schema.Fields {
		b.columns = append(b.columns, BlockColumn{Name: f.Name, Type: f.Type, Data: NewRef(NewColumn(f.Type))})
	}
	return b
}

// AddColumn appends a column to the block, taking exclusive ownership of col
func (b *Block) AddColumn(name string, col Column) error {
	for _, c := range b.columns {
		if c.Name == name {
			return errors.Newf(errors.ErrorTypeValidation, "column %q already exists", name)
		}
	}
	b.columns = append(b.columns, BlockColumn{Name: name, Type: col.Type(), Data: NewRef(col)})
	return nil
}

// Empty reports whether the block is nil or has no columns
func (b *Block) Empty() bool {
	return b == nil || len(b.columns) == 0
}

// NumColumns returns the number of columns
func (b *Block) NumColumns() int {
	if b == nil {
		return 0
	}
	return len(b.columns)
}

// ColumnAt returns the column at position i
func (b *Block) ColumnAt(i int) *BlockColumn {
	return &b.columns[i]
}

// ColumnByName returns the named column
func (b *Block) ColumnByName(name string) (*BlockColumn, bool) {
	for i := range b.columns {
		if b.columns[i].Name == name {
			return &b.columns[i], true
		}
	}
	return nil, false
}

// Rows returns the row count of the first column. Every later column must
// agree, and no column reference may be unset.
func (b *Block) Rows() (int, error) {
	if b.Empty() {
		return 0, nil
	}
	rows := 0
	for i, c := range b.columns {
		col := c.Data.Column()
		if col == nil {
			return 0, errors.New(errors.ErrorTypeInvalidColumn, "invalid column in block").
				WithDetail("column", c.Name).
				WithDetail("position", i)
		}
		if i == 0 {
			rows = col.Len()
			continue
		}
		if col.Len() != rows {
			return 0, errors.New(errors.ErrorTypeStructuralMismatch, "sizes of columns don't match").
				WithDetail("column", c.Name).
				WithDetail("position", i).
				WithDetail("rows", col.Len()).
				WithDetail("expected_rows", rows)
		}
	}
	return rows, nil
}

// ByteSize returns the sum of the columns' byte sizes
func (b *Block) ByteSize() (int, error) {
	if b.Empty() {
		return 0, nil
	}
	total := 0
	for i, c := range b.columns {
		col := c.Data.Column()
		if col == nil {
			return 0, errors.New(errors.ErrorTypeInvalidColumn, "invalid column in block").
				WithDetail("column", c.Name).
				WithDetail("position", i)
		}
		total += col.ByteSize()
	}
	return total, nil
}

// Schema returns the ordered (name, type) header of the block
func (b *Block) Schema() *Schema {
	s := &Schema{Fields: make([]FieldSchema, b.NumColumns())}
	for i := 0; i < b.NumColumns(); i++ {
		s.Fields[i] = FieldSchema{Name: b.columns[i].Name, Type: b.columns[i].Type}
	}
	return s
}

// SameStructure reports whether both blocks declare the same columns, in the
// same order, with the same types.
func (b *Block) SameStructure(other *Block) bool {
	if b.NumColumns() != other.NumColumns() {
		return false
	}
	for i := 0; i < b.NumColumns(); i++ {
		if b.columns[i].Name != other.columns[i].Name || b.columns[i].Type != other.columns[i].Type {
			return false
		}
	}
	return true
}

// Share returns a block whose columns share storage with b. Mutating either
// block through Ref.Mutate copies the affected column first.
func (b *Block) Share() *Block {
	if b == nil {
		return nil
	}
	shared := &Block{columns: make([]BlockColumn, len(b.columns))}
	for i, c := range b.columns {
		shared.columns[i] = BlockColumn{Name: c.Name, Type: c.Type, Data: c.Data.Share()}
	}
	return shared
}

// Release drops the block's column handles and leaves it empty
func (b *Block) Release() {
	if b == nil {
		return
	}
	for _, c := range b.columns {
		c.Data.Release()
	}
	b.columns = nil
}

// Clear removes all columns, leaving an empty block
func (b *Block) Clear() {
	b.Release()
}

// Row returns the values of row i in column order
func (b *Block) Row(i int) []interface{} {
	row := make([]interface{}, len(b.columns))
	for j, c := range b.columns {
		row[j] = c.Data.Column().Get(i)
	}
	return row
}

// RowDigest accumulates an order-sensitive digest of a row sequence. The
// digest depends only on the rows and their order, not on how they were
// split into blocks.
type RowDigest struct {
	h    *xxh3.Hasher
	rows int
	buf  [9]byte
}

// NewRowDigest creates an empty digest
func NewRowDigest() *RowDigest {
	return &RowDigest{h: xxh3.New()}
}

// Add feeds every row of the block into the digest
func (d *RowDigest) Add(b *Block) error {
	rows, err := b.Rows()
	if err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		for _, c := range b.columns {
			d.writeValue(c.Data.Column(), i)
		}
	}
	d.rows += rows
	return nil
}

// Rows returns the number of rows added
func (d *RowDigest) Rows() int { return d.rows }

// Sum64 returns the digest value
func (d *RowDigest) Sum64() uint64 { return d.h.Sum64() }

func (d *RowDigest) writeValue(col Column, i int) {
	d.buf[0] = byte(col.Type())
	switch c := col.(type) {
	case *IntColumn:
		binary.LittleEndian.PutUint64(d.buf[1:], uint64(c.Value(i))) //nolint:gosec // bit pattern only
		_, _ = d.h.Write(d.buf[:9])
	case *FloatColumn:
		binary.LittleEndian.PutUint64(d.buf[1:], math.Float64bits(c.Value(i)))
		_, _ = d.h.Write(d.buf[:9])
	case *TimestampColumn:
		binary.LittleEndian.PutUint64(d.buf[1:], uint64(c.Unix(i))) //nolint:gosec // bit pattern only
		_, _ = d.h.Write(d.buf[:9])
	case *BoolColumn:
		d.buf[1] = 0
		if c.Value(i) {
			d.buf[1] = 1
		}
		_, _ = d.h.Write(d.buf[:2])
	case *StringColumn:
		d.writeBytes([]byte(c.Value(i)))
	case *BytesColumn:
		d.writeBytes(c.Value(i))
	default:
		d.writeBytes([]byte(fmt.Sprint(col.Get(i))))
	}
}

func (d *RowDigest) writeBytes(v []byte) {
	binary.LittleEndian.PutUint64(d.buf[1:], uint64(len(v)))
	_, _ = d.h.Write(d.buf[:9])
	_, _ = d.h.Write(v)
}
