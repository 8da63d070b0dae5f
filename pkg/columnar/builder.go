package columnar

import (
	"fmt"

	"github.com/ajitpratap0/squash/pkg/errors"
)

// Builder accumulates rows into a block with a fixed schema. Readers use it
// to turn row-oriented input into columnar blocks.
type Builder struct {
	schema  *Schema
	columns []Column
	rows    int
	err     error
}

// NewBuilder creates a builder for the given schema
func NewBuilder(schema *Schema) *Builder {
	b := &Builder{schema: schema}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.columns = make([]Column, len(b.schema.Fields))
	for i, f := range b.schema.Fields {
		b.columns[i] = NewColumn(f.Type)
	}
	b.rows = 0
}

// Schema returns the builder's schema
func (b *Builder) Schema() *Schema { return b.schema }

// Len returns the number of rows appended since the last Build
func (b *Builder) Len() int { return b.rows }

// AppendRow appends one row, values in schema order. A failed append leaves
// the columns misaligned, so the builder refuses further rows until Build
// or Reset.
func (b *Builder) AppendRow(values []interface{}) error {
	if b.err != nil {
		return b.err
	}
	if len(values) != len(b.columns) {
		return errors.Newf(errors.ErrorTypeData, "row has %d values, expected %d", len(values), len(b.columns))
	}
	for i, v := range values {
		if err := b.columns[i].Append(v); err != nil {
			b.err = errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("column %q", b.schema.Fields[i].Name)).
				WithDetail("row", b.rows)
			return b.err
		}
	}
	b.rows++
	return nil
}

// Build returns the accumulated rows as a block and starts a fresh one
func (b *Builder) Build() (*Block, error) {
	if b.err != nil {
		err := b.err
		b.Reset()
		return nil, err
	}
	block := &Block{columns: make([]BlockColumn, len(b.columns))}
	for i, col := range b.columns {
		f := b.schema.Fields[i]
		block.columns[i] = BlockColumn{Name: f.Name, Type: f.Type, Data: NewRef(col)}
	}
	b.reset()
	return block, nil
}

// Reset drops the buffered rows and any sticky error
func (b *Builder) Reset() {
	b.err = nil
	b.reset()
}
