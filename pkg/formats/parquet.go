package formats

import (
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	}
	return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unknown Parquet compression %q", name)
}

func newParquetInput(r io.Reader, settings *Settings) (InputFormat, error) {
	settings = orDefault(settings)
	ras, err := seekable(r)
	if err != nil {
		return nil, err
	}
	fr, err := file.NewParquetReader(ras)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Parquet file")
	}

	maxRows := settings.maxBlockRows()
	pool := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{BatchSize: int64(maxRows)}, pool)
	if err != nil {
		fr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Parquet file")
	}
	schema, err := reader.Schema()
	if err != nil {
		fr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read Parquet schema")
	}

	var indices []int
	if len(settings.Parquet.Columns) > 0 {
		fields := make([]arrow.Field, 0, len(settings.Parquet.Columns))
		for _, name := range settings.Parquet.Columns {
			found := schema.FieldIndices(name)
			if len(found) == 0 {
				fr.Close()
				return nil, errors.Newf(errors.ErrorTypeNotFound, "column %q not in file", name)
			}
			indices = append(indices, found[0])
			fields = append(fields, schema.Field(found[0]))
		}
		schema = arrow.NewSchema(fields, nil)
	}

	header, err := fromArrowSchema(schema)
	if err != nil {
		fr.Close()
		return nil, err
	}

	records, err := reader.GetRecordReader(context.Background(), indices, nil)
	if err != nil {
		fr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read Parquet row groups")
	}

	return &recordInput{
		header:  header,
		maxRows: maxRows,
		closer: func() error {
			records.Release()
			return fr.Close()
		},
		next: func() (arrow.Record, error) {
			if !records.Next() {
				if err := records.Err(); err != nil && err != io.EOF {
					return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read row group")
				}
				return nil, io.EOF
			}
			rec := records.Record()
			rec.Retain()
			return rec, nil
		},
	}, nil
}

// parquetWriter buffers blocks into row groups of RowGroupRows rows
type parquetWriter struct {
	*pqarrow.FileWriter
}

func (w parquetWriter) Write(rec arrow.Record) error {
	return w.WriteBuffered(rec)
}

func newParquetOutput(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
	settings = orDefault(settings)
	codec, err := parquetCodec(settings.Parquet.Compression)
	if err != nil {
		return nil, err
	}
	rowGroup := settings.Parquet.RowGroupRows
	if rowGroup <= 0 {
		rowGroup = DefaultSettings().Parquet.RowGroupRows
	}

	pool := memory.NewGoAllocator()
	schema := toArrowSchema(header)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithMaxRowGroupLength(rowGroup),
		parquet.WithAllocator(pool),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
	}
	return &recordOutput{pool: pool, schema: schema, header: header, writer: parquetWriter{fw}}, nil
}
