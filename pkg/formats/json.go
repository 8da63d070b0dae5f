package formats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
	jsonpool "github.com/ajitpratap0/squash/pkg/json"
	gojson "github.com/goccy/go-json"
)

// jsonInput reads one JSON object per line. The header is the sorted union
// of keys in the sampled rows; later rows may omit keys but not add them.
type jsonInput struct {
	decoder *gojson.Decoder
	header  *columnar.Schema
	builder *columnar.Builder
	sampled []map[string]interface{}
	maxRows int
	row     int
	done    bool
}

func newJSONInput(r io.Reader, settings *Settings) (InputFormat, error) {
	settings = orDefault(settings)
	in := &jsonInput{
		decoder: jsonpool.NewDecoder(r),
		maxRows: settings.maxBlockRows(),
	}

	sample := settings.JSON.InferSampleRows
	if sample <= 0 {
		sample = DefaultSettings().JSON.InferSampleRows
	}
	for len(in.sampled) < sample {
		obj, err := in.decode()
		if err == io.EOF {
			in.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		in.sampled = append(in.sampled, obj)
	}

	in.header = inferJSONSchema(in.sampled)
	in.builder = columnar.NewBuilder(in.header)
	return in, nil
}

func (in *jsonInput) decode() (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := in.decoder.Decode(&obj); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode row").
			WithDetail("row", in.row+len(in.sampled)+1)
	}
	if obj == nil {
		return nil, errors.New(errors.ErrorTypeData, "row is not a JSON object").
			WithDetail("row", in.row+len(in.sampled)+1)
	}
	return obj, nil
}

func inferJSONSchema(rows []map[string]interface{}) *columnar.Schema {
	kinds := make(map[string]columnar.ColumnType)
	seen := make(map[string]bool)
	var names []string

	for _, row := range rows {
		for key, v := range row {
			if _, ok := seen[key]; !ok {
				seen[key] = false
				names = append(names, key)
			}
			if v == nil {
				continue
			}
			t := jsonValueType(v)
			if !seen[key] {
				seen[key] = true
				kinds[key] = t
				continue
			}
			kinds[key] = widen(kinds[key], t)
		}
	}

	sort.Strings(names)
	schema := &columnar.Schema{Fields: make([]columnar.FieldSchema, len(names))}
	for i, name := range names {
		t, ok := kinds[name]
		if !ok {
			t = columnar.ColumnTypeString
		}
		schema.Fields[i] = columnar.FieldSchema{Name: name, Type: t}
	}
	return schema
}

func jsonValueType(v interface{}) columnar.ColumnType {
	switch val := v.(type) {
	case jsonpool.Number:
		if _, err := val.Int64(); err == nil {
			return columnar.ColumnTypeInt
		}
		return columnar.ColumnTypeFloat
	case bool:
		return columnar.ColumnTypeBool
	case string:
		if _, err := time.Parse(time.RFC3339, val); err == nil {
			return columnar.ColumnTypeTimestamp
		}
	}
	return columnar.ColumnTypeString
}

// widen merges the types seen for one key
func widen(a, b columnar.ColumnType) columnar.ColumnType {
	switch {
	case a == b:
		return a
	case a == columnar.ColumnTypeInt && b == columnar.ColumnTypeFloat,
		a == columnar.ColumnTypeFloat && b == columnar.ColumnTypeInt:
		return columnar.ColumnTypeFloat
	}
	return columnar.ColumnTypeString
}

func (in *jsonInput) Header() *columnar.Schema { return in.header }

func (in *jsonInput) next() (map[string]interface{}, error) {
	if len(in.sampled) > 0 {
		obj := in.sampled[0]
		in.sampled = in.sampled[1:]
		return obj, nil
	}
	if in.done {
		return nil, io.EOF
	}
	obj, err := in.decode()
	if err == io.EOF {
		in.done = true
	}
	return obj, err
}

func (in *jsonInput) Read() (*columnar.Block, error) {
	values := make([]interface{}, len(in.header.Fields))
	for in.builder.Len() < in.maxRows {
		obj, err := in.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			in.builder.Reset()
			return nil, err
		}
		in.row++

		matched := 0
		for i, f := range in.header.Fields {
			raw, ok := obj[f.Name]
			if ok {
				matched++
			}
			v, err := jsonToValue(f.Type, raw)
			if err != nil {
				in.builder.Reset()
				return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("column %q", f.Name)).
					WithDetail("row", in.row)
			}
			values[i] = v
		}
		if matched != len(obj) {
			in.builder.Reset()
			return nil, errors.New(errors.ErrorTypeData, "row has keys not present in the header").
				WithDetail("row", in.row).
				WithDetail("header", in.header.String())
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

func (in *jsonInput) Close() error { return nil }

// jsonToValue converts a decoded JSON value into what a column of type t
// appends. Missing and null values become the type's zero value.
func jsonToValue(t columnar.ColumnType, raw interface{}) (interface{}, error) {
	if raw == nil {
		return zeroValue(t), nil
	}
	switch t {
	case columnar.ColumnTypeInt:
		if n, ok := raw.(jsonpool.Number); ok {
			return n.Int64()
		}
	case columnar.ColumnTypeFloat:
		if n, ok := raw.(jsonpool.Number); ok {
			return n.Float64()
		}
	case columnar.ColumnTypeBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case columnar.ColumnTypeTimestamp:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case columnar.ColumnTypeString, columnar.ColumnTypeBytes:
		switch v := raw.(type) {
		case string:
			return v, nil
		case jsonpool.Number:
			return v.String(), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			data, err := jsonpool.Marshal(v)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
}

// zeroValue returns the value appended for a missing field
func zeroValue(t columnar.ColumnType) interface{} {
	switch t {
	case columnar.ColumnTypeInt, columnar.ColumnTypeTimestamp:
		return int64(0)
	case columnar.ColumnTypeFloat:
		return float64(0)
	case columnar.ColumnTypeBool:
		return false
	case columnar.ColumnTypeBytes:
		return []byte{}
	}
	return ""
}

// jsonOutput writes each row as a JSON object on its own line, keys in
// header order
type jsonOutput struct {
	writer io.Writer
	header *columnar.Schema
	keys   [][]byte
	rows   int64
}

func newJSONOutput(w io.Writer, header *columnar.Schema, _ *Settings) (OutputFormat, error) {
	out := &jsonOutput{
		writer: w,
		header: header,
		keys:   make([][]byte, len(header.Fields)),
	}
	for i, f := range header.Fields {
		out.keys[i] = append(jsonpool.AppendString(nil, f.Name), ':')
	}
	return out, nil
}

// Write renders the whole block into a pooled buffer and issues one write
func (out *jsonOutput) Write(block *columnar.Block) error {
	rows, err := blockRows(block)
	if err != nil || rows == 0 {
		return err
	}
	if err := checkHeader(out.header, block); err != nil {
		return err
	}

	buf := jsonpool.GetBuffer()
	defer jsonpool.PutBuffer(buf)

	for i := 0; i < rows; i++ {
		buf.WriteByte('{')
		for j, key := range out.keys {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(key)
			buf.Write(appendJSONValue(buf.AvailableBuffer(), block.ColumnAt(j).Data.Column(), i))
		}
		buf.WriteString("}\n")
	}
	if _, err := out.writer.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write rows")
	}
	out.rows += int64(rows)
	return nil
}

func appendJSONValue(buf []byte, col columnar.Column, i int) []byte {
	switch c := col.(type) {
	case *columnar.IntColumn:
		return strconv.AppendInt(buf, c.Value(i), 10)
	case *columnar.FloatColumn:
		v := c.Value(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return append(buf, "null"...)
		}
		return strconv.AppendFloat(buf, v, 'g', -1, 64)
	case *columnar.BoolColumn:
		return strconv.AppendBool(buf, c.Value(i))
	case *columnar.TimestampColumn:
		return jsonpool.AppendString(buf, formatValue(c, i))
	case *columnar.BytesColumn:
		return jsonpool.AppendString(buf, string(c.Value(i)))
	case *columnar.StringColumn:
		return jsonpool.AppendString(buf, c.Value(i))
	}
	return append(buf, "null"...)
}

func (out *jsonOutput) Finalize() error { return nil }

func (out *jsonOutput) RowsWritten() int64 { return out.rows }

func (out *jsonOutput) Close() error { return nil }
