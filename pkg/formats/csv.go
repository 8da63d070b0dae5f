package formats

import (
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// csvInput reads a delimited file whose first row names the columns
type csvInput struct {
	reader  *csv.Reader
	header  *columnar.Schema
	builder *columnar.Builder
	sampled [][]string
	maxRows int
	line    int
	done    bool
}

func delimiter(settings *Settings, fallback rune) (rune, error) {
	if settings.CSV.Delimiter == "" {
		return fallback, nil
	}
	r, size := utf8.DecodeRuneInString(settings.CSV.Delimiter)
	if size != len(settings.CSV.Delimiter) || r == utf8.RuneError {
		return 0, errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", settings.CSV.Delimiter)
	}
	return r, nil
}

// newCSVInput returns the creator for a delimited format
func newCSVInput(sep rune) InputCreator {
	return func(r io.Reader, settings *Settings) (InputFormat, error) {
		settings = orDefault(settings)
		comma, err := delimiter(settings, sep)
		if err != nil {
			return nil, err
		}

		in := &csvInput{
			reader:  csv.NewReader(r),
			maxRows: settings.maxBlockRows(),
		}
		in.reader.Comma = comma
		in.reader.ReuseRecord = false

		names, err := in.reader.Read()
		if err == io.EOF {
			in.header = &columnar.Schema{}
			in.builder = columnar.NewBuilder(in.header)
			in.done = true
			return in, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read header row")
		}
		in.line = 1

		if err := in.discoverSchema(names, settings.CSV); err != nil {
			return nil, err
		}
		in.builder = columnar.NewBuilder(in.header)
		return in, nil
	}
}

// discoverSchema types the columns from the leading rows, which are kept
// and emitted ahead of the rest of the file
func (in *csvInput) discoverSchema(names []string, cfg CSVSettings) error {
	if !cfg.InferTypes {
		fields := make([]columnar.FieldSchema, len(names))
		for i, name := range names {
			fields[i] = columnar.FieldSchema{Name: name, Type: columnar.ColumnTypeString}
		}
		in.header = &columnar.Schema{Fields: fields}
		return nil
	}

	sample := cfg.InferSampleRows
	if sample <= 0 {
		sample = DefaultSettings().CSV.InferSampleRows
	}
	for len(in.sampled) < sample {
		record, err := in.reader.Read()
		if err == io.EOF {
			in.done = true
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read sample rows")
		}
		in.sampled = append(in.sampled, record)
	}
	in.header = columnar.InferSchema(names, in.sampled)
	return nil
}

func (in *csvInput) Header() *columnar.Schema { return in.header }

func (in *csvInput) next() ([]string, error) {
	if len(in.sampled) > 0 {
		record := in.sampled[0]
		in.sampled = in.sampled[1:]
		return record, nil
	}
	if in.done {
		return nil, io.EOF
	}
	record, err := in.reader.Read()
	if err == io.EOF {
		in.done = true
	}
	return record, err
}

func (in *csvInput) Read() (*columnar.Block, error) {
	values := make([]interface{}, len(in.header.Fields))
	for in.builder.Len() < in.maxRows {
		record, err := in.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			in.builder.Reset()
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read row")
		}
		in.line++

		if len(record) != len(values) {
			in.builder.Reset()
			return nil, errors.Newf(errors.ErrorTypeData, "row has %d fields, header has %d", len(record), len(values)).
				WithDetail("line", in.line)
		}
		for i, field := range record {
			v, err := columnar.ParseValue(in.header.Fields[i].Type, field)
			if err != nil {
				in.builder.Reset()
				return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("column %q", in.header.Fields[i].Name)).
					WithDetail("line", in.line)
			}
			values[i] = v
		}
		if err := in.builder.AppendRow(values); err != nil {
			in.builder.Reset()
			return nil, err
		}
	}

	if in.builder.Len() == 0 {
		return nil, io.EOF
	}
	return in.builder.Build()
}

func (in *csvInput) Close() error { return nil }

// csvOutput writes blocks as delimited text with a header row
type csvOutput struct {
	writer        *csv.Writer
	header        *columnar.Schema
	headerWritten bool
	rows          int64
	record        []string
}

// newCSVOutput returns the creator for a delimited format
func newCSVOutput(sep rune) OutputCreator {
	return func(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
		settings = orDefault(settings)
		comma, err := delimiter(settings, sep)
		if err != nil {
			return nil, err
		}
		out := &csvOutput{
			writer:        csv.NewWriter(w),
			header:        header,
			headerWritten: settings.CSV.OmitHeader,
			record:        make([]string, len(header.Fields)),
		}
		out.writer.Comma = comma
		return out, nil
	}
}

func (out *csvOutput) writeHeader() error {
	if out.headerWritten {
		return nil
	}
	out.headerWritten = true
	if err := out.writer.Write(out.header.Names()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write header row")
	}
	return nil
}

func (out *csvOutput) Write(block *columnar.Block) error {
	rows, err := blockRows(block)
	if err != nil || rows == 0 {
		return err
	}
	if err := checkHeader(out.header, block); err != nil {
		return err
	}
	if err := out.writeHeader(); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		for j := range out.record {
			out.record[j] = formatValue(block.ColumnAt(j).Data.Column(), i)
		}
		if err := out.writer.Write(out.record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row")
		}
	}
	out.rows += int64(rows)
	return nil
}

func (out *csvOutput) Finalize() error {
	if err := out.writeHeader(); err != nil {
		return err
	}
	out.writer.Flush()
	if err := out.writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush")
	}
	return nil
}

func (out *csvOutput) RowsWritten() int64 { return out.rows }

func (out *csvOutput) Close() error { return nil }

// csvSupportsAppend reports whether appended rows would land under the
// existing header
func csvSupportsAppend(settings *Settings) bool {
	return settings != nil && settings.CSV.AllowAppend
}
