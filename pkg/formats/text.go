package formats

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// formatValue renders row i of col the way the text formats write it
func formatValue(col columnar.Column, i int) string {
	switch c := col.(type) {
	case *columnar.StringColumn:
		return c.Value(i)
	case *columnar.IntColumn:
		return strconv.FormatInt(c.Value(i), 10)
	case *columnar.FloatColumn:
		return strconv.FormatFloat(c.Value(i), 'g', -1, 64)
	case *columnar.BoolColumn:
		return strconv.FormatBool(c.Value(i))
	case *columnar.TimestampColumn:
		return time.Unix(c.Unix(i), 0).UTC().Format(time.RFC3339)
	case *columnar.BytesColumn:
		return string(c.Value(i))
	}
	return ""
}

// checkHeader rejects a block whose columns differ from the writer's header
func checkHeader(header *columnar.Schema, block *columnar.Block) error {
	schema := block.Schema()
	if header.Equal(schema) {
		return nil
	}
	return errors.New(errors.ErrorTypeStructuralMismatch, "block does not match output header").
		WithDetail("header", header.String()).
		WithDetail("block", schema.String())
}

// blockRows returns the row count of a block being written
func blockRows(block *columnar.Block) (int, error) {
	if block.Empty() {
		return 0, nil
	}
	return block.Rows()
}
