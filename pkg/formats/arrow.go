package formats

import (
	"bytes"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// readAtSeeker is what the footer-indexed formats need to read a file
type readAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// seekable returns r when it already supports random access and otherwise
// buffers it in memory
func seekable(r io.Reader) (readAtSeeker, error) {
	if ras, ok := r.(readAtSeeker); ok {
		return ras, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
	}
	return bytes.NewReader(data), nil
}

// toArrowSchema maps a block header to an Arrow schema. DateTime columns
// become millisecond timestamps in UTC.
func toArrowSchema(header *columnar.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(header.Fields))
	for i, f := range header.Fields {
		var dt arrow.DataType
		switch f.Type {
		case columnar.ColumnTypeInt:
			dt = arrow.PrimitiveTypes.Int64
		case columnar.ColumnTypeFloat:
			dt = arrow.PrimitiveTypes.Float64
		case columnar.ColumnTypeBool:
			dt = arrow.FixedWidthTypes.Boolean
		case columnar.ColumnTypeTimestamp:
			dt = arrow.FixedWidthTypes.Timestamp_ms
		case columnar.ColumnTypeBytes:
			dt = arrow.BinaryTypes.Binary
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt}
	}
	return arrow.NewSchema(fields, nil)
}

// fromArrowSchema maps an Arrow schema to a block header
func fromArrowSchema(schema *arrow.Schema) (*columnar.Schema, error) {
	header := &columnar.Schema{Fields: make([]columnar.FieldSchema, schema.NumFields())}
	for i, f := range schema.Fields() {
		var t columnar.ColumnType
		switch f.Type.ID() {
		case arrow.STRING, arrow.LARGE_STRING:
			t = columnar.ColumnTypeString
		case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
			arrow.UINT8, arrow.UINT16, arrow.UINT32:
			t = columnar.ColumnTypeInt
		case arrow.FLOAT32, arrow.FLOAT64:
			t = columnar.ColumnTypeFloat
		case arrow.BOOL:
			t = columnar.ColumnTypeBool
		case arrow.TIMESTAMP:
			t = columnar.ColumnTypeTimestamp
		case arrow.BINARY, arrow.LARGE_BINARY:
			t = columnar.ColumnTypeBytes
		default:
			return nil, errors.Newf(errors.ErrorTypeCapability, "column %q has unsupported type %s", f.Name, f.Type)
		}
		header.Fields[i] = columnar.FieldSchema{Name: f.Name, Type: t}
	}
	return header, nil
}

// blockToRecord copies a block into an Arrow record the caller releases
func blockToRecord(pool memory.Allocator, schema *arrow.Schema, block *columnar.Block, rows int) arrow.Record {
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()
	builder.Reserve(rows)

	for j := 0; j < block.NumColumns(); j++ {
		col := block.ColumnAt(j).Data.Column()
		switch b := builder.Field(j).(type) {
		case *array.Int64Builder:
			c := col.(*columnar.IntColumn)
			for i := 0; i < rows; i++ {
				b.Append(c.Value(i))
			}
		case *array.Float64Builder:
			c := col.(*columnar.FloatColumn)
			for i := 0; i < rows; i++ {
				b.Append(c.Value(i))
			}
		case *array.BooleanBuilder:
			c := col.(*columnar.BoolColumn)
			for i := 0; i < rows; i++ {
				b.Append(c.Value(i))
			}
		case *array.TimestampBuilder:
			c := col.(*columnar.TimestampColumn)
			for i := 0; i < rows; i++ {
				b.Append(arrow.Timestamp(c.Unix(i) * 1000))
			}
		case *array.BinaryBuilder:
			c := col.(*columnar.BytesColumn)
			for i := 0; i < rows; i++ {
				b.Append(c.Value(i))
			}
		case *array.StringBuilder:
			c := col.(*columnar.StringColumn)
			for i := 0; i < rows; i++ {
				b.Append(c.Value(i))
			}
		}
	}
	return builder.NewRecord()
}

// recordToBlock copies rows [start, end) of rec into a block with the given
// header. Nulls become the column type's zero value.
func recordToBlock(rec arrow.Record, header *columnar.Schema, start, end int) (*columnar.Block, error) {
	block := columnar.NewBlockFromSchema(header)
	for j := 0; j < int(rec.NumCols()); j++ {
		col := block.ColumnAt(j).Data.Column()
		arr := rec.Column(j)
		for i := start; i < end; i++ {
			var v interface{}
			if arr.IsNull(i) {
				v = zeroValue(header.Fields[j].Type)
			} else {
				v = arrowValue(arr, i)
			}
			if err := col.Append(v); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to convert column "+header.Fields[j].Name).
					WithDetail("row", i)
			}
		}
	}
	return block, nil
}

func arrowValue(arr arrow.Array, i int) interface{} {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Binary:
		return a.Value(i)
	case *array.LargeBinary:
		return a.Value(i)
	}
	return nil
}

// recordInput turns a sequence of Arrow records into blocks of at most
// maxRows rows
type recordInput struct {
	header  *columnar.Schema
	next    func() (arrow.Record, error) // io.EOF at end; caller releases
	closer  func() error
	current arrow.Record
	offset  int
	maxRows int
}

func (in *recordInput) Header() *columnar.Schema { return in.header }

func (in *recordInput) Read() (*columnar.Block, error) {
	for in.current == nil || in.offset >= int(in.current.NumRows()) {
		if in.current != nil {
			in.current.Release()
			in.current = nil
		}
		rec, err := in.next()
		if err != nil {
			return nil, err
		}
		in.current = rec
		in.offset = 0
	}

	end := in.offset + in.maxRows
	if rows := int(in.current.NumRows()); end > rows {
		end = rows
	}
	block, err := recordToBlock(in.current, in.header, in.offset, end)
	if err != nil {
		return nil, err
	}
	in.offset = end
	return block, nil
}

func (in *recordInput) Close() error {
	if in.current != nil {
		in.current.Release()
		in.current = nil
	}
	if in.closer != nil {
		return in.closer()
	}
	return nil
}

func newArrowFileInput(r io.Reader, settings *Settings) (InputFormat, error) {
	settings = orDefault(settings)
	ras, err := seekable(r)
	if err != nil {
		return nil, err
	}
	reader, err := ipc.NewFileReader(ras, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Arrow file")
	}
	header, err := fromArrowSchema(reader.Schema())
	if err != nil {
		reader.Close()
		return nil, err
	}

	index := 0
	return &recordInput{
		header:  header,
		maxRows: settings.maxBlockRows(),
		closer:  reader.Close,
		next: func() (arrow.Record, error) {
			if index >= reader.NumRecords() {
				return nil, io.EOF
			}
			rec, err := reader.RecordAt(index)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read record batch").
					WithDetail("batch", index)
			}
			index++
			return rec, nil
		},
	}, nil
}

func newArrowStreamInput(r io.Reader, settings *Settings) (InputFormat, error) {
	settings = orDefault(settings)
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Arrow stream")
	}
	header, err := fromArrowSchema(reader.Schema())
	if err != nil {
		reader.Release()
		return nil, err
	}

	return &recordInput{
		header:  header,
		maxRows: settings.maxBlockRows(),
		closer: func() error {
			reader.Release()
			return nil
		},
		next: func() (arrow.Record, error) {
			if !reader.Next() {
				if err := reader.Err(); err != nil && err != io.EOF {
					return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read record batch")
				}
				return nil, io.EOF
			}
			rec := reader.Record()
			rec.Retain()
			return rec, nil
		},
	}, nil
}

// recordWriter is the part of the Arrow IPC and Parquet writers the block
// writer drives
type recordWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

// recordOutput writes each block as one Arrow record
type recordOutput struct {
	pool     memory.Allocator
	schema   *arrow.Schema
	header   *columnar.Schema
	writer   recordWriter
	rows     int64
	finished bool
}

func (out *recordOutput) Write(block *columnar.Block) error {
	if out.finished {
		return errors.New(errors.ErrorTypeInternal, "write after finalize")
	}
	rows, err := blockRows(block)
	if err != nil || rows == 0 {
		return err
	}
	if err := checkHeader(out.header, block); err != nil {
		return err
	}

	rec := blockToRecord(out.pool, out.schema, block, rows)
	defer rec.Release()
	if err := out.writer.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	out.rows += int64(rows)
	return nil
}

func (out *recordOutput) Finalize() error {
	if out.finished {
		return nil
	}
	out.finished = true
	if err := out.writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finalize")
	}
	return nil
}

func (out *recordOutput) RowsWritten() int64 { return out.rows }

func (out *recordOutput) Close() error { return nil }

func ipcOptions(pool memory.Allocator, schema *arrow.Schema, settings *Settings) ([]ipc.Option, error) {
	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(pool)}
	switch settings.Arrow.Compression {
	case "", "none":
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown Arrow compression %q", settings.Arrow.Compression)
	}
	return opts, nil
}

func newArrowFileOutput(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
	settings = orDefault(settings)
	pool := memory.NewGoAllocator()
	schema := toArrowSchema(header)
	opts, err := ipcOptions(pool, schema, settings)
	if err != nil {
		return nil, err
	}
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow file writer")
	}
	return &recordOutput{pool: pool, schema: schema, header: header, writer: fw}, nil
}

func newArrowStreamOutput(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
	settings = orDefault(settings)
	pool := memory.NewGoAllocator()
	schema := toArrowSchema(header)
	opts, err := ipcOptions(pool, schema, settings)
	if err != nil {
		return nil, err
	}
	return &recordOutput{pool: pool, schema: schema, header: header, writer: ipc.NewWriter(w, opts...)}, nil
}
