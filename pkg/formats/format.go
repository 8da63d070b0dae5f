// Package formats turns files into blocks and blocks into files.
//
// A Registry maps format names to creators for readers (InputFormat),
// writers (OutputFormat) and schema readers, together with per-format
// capabilities: whether a file can be appended to, whether the writer can
// format blocks in parallel, which file extensions and content type belong
// to the format. Default returns a registry holding every built-in format.
//
//	reg := formats.Default()
//	name, _ := reg.FormatFromFileName("events.jsonl.gz", true) // JSONEachRow
//	in, err := reg.NewInput(name, reader, formats.DefaultSettings())
//	for {
//	    block, err := in.Read()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// Format and compression are independent; callers wrap the reader or writer
// with pkg/compression before handing it to the registry.
package formats

import (
	"io"

	"github.com/ajitpratap0/squash/pkg/columnar"
)

// Built-in format names
const (
	CSVWithNames = "CSVWithNames"
	TSVWithNames = "TSVWithNames"
	JSONEachRow  = "JSONEachRow"
	Arrow        = "Arrow"
	ArrowStream  = "ArrowStream"
	Parquet      = "Parquet"
	Avro         = "Avro"
	Native       = "Native"
)

// InputFormat reads a file as a sequence of blocks
type InputFormat interface {
	// Read returns the next block, or io.EOF after the last one. Blocks
	// hold at most Settings.MaxBlockRows rows.
	Read() (*columnar.Block, error)
	// Header returns the columns every block carries
	Header() *columnar.Schema
	Close() error
}

// OutputFormat writes blocks to a file
type OutputFormat interface {
	// Write appends the block's rows. The block must match the header the
	// writer was created with.
	Write(block *columnar.Block) error
	// Finalize writes any footer and flushes buffered data. Write must not
	// be called afterwards.
	Finalize() error
	RowsWritten() int64
	// Close releases resources without finalizing; it does not close the
	// underlying writer.
	Close() error
}

// SchemaReader determines the header of a file without reading it as blocks
type SchemaReader interface {
	ReadSchema() (*columnar.Schema, error)
}

// InputCreator creates a reader over r
type InputCreator func(r io.Reader, settings *Settings) (InputFormat, error)

// OutputCreator creates a writer of blocks with the given header to w
type OutputCreator func(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error)

// SchemaReaderCreator creates a schema reader over r
type SchemaReaderCreator func(r io.Reader, settings *Settings) (SchemaReader, error)

// AppendSupportChecker reports whether a format can append to an existing
// file under the given settings
type AppendSupportChecker func(settings *Settings) bool

// SubsetOfColumnsSupportChecker reports whether a reader can skip columns
// under the given settings
type SubsetOfColumnsSupportChecker func(settings *Settings) bool

// schemaFunc adapts a function to SchemaReader
type schemaFunc func() (*columnar.Schema, error)

func (f schemaFunc) ReadSchema() (*columnar.Schema, error) { return f() }

// schemaFromInput builds a SchemaReader from a format whose reader learns
// the header on creation
func schemaFromInput(create InputCreator) SchemaReaderCreator {
	return func(r io.Reader, settings *Settings) (SchemaReader, error) {
		return schemaFunc(func() (*columnar.Schema, error) {
			in, err := create(r, settings)
			if err != nil {
				return nil, err
			}
			defer in.Close()
			return in.Header(), nil
		}), nil
	}
}
