package formats

import (
	"io"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
	jsonpool "github.com/ajitpratap0/squash/pkg/json"
)

const avroRecordName = "squash_row"

type avroField struct {
	Name string      `json:"name"`
	Type interface{} `json:"type"`
}

type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

type avroLogical struct {
	Type        string `json:"type"`
	LogicalType string `json:"logicalType"`
}

// toAvroSchema renders a header as an Avro record schema. DateTime columns
// use the timestamp-millis logical type.
func toAvroSchema(header *columnar.Schema) (string, error) {
	schema := avroSchema{Type: "record", Name: avroRecordName, Fields: make([]avroField, len(header.Fields))}
	for i, f := range header.Fields {
		var t interface{}
		switch f.Type {
		case columnar.ColumnTypeInt:
			t = "long"
		case columnar.ColumnTypeFloat:
			t = "double"
		case columnar.ColumnTypeBool:
			t = "boolean"
		case columnar.ColumnTypeTimestamp:
			t = avroLogical{Type: "long", LogicalType: "timestamp-millis"}
		case columnar.ColumnTypeBytes:
			t = "bytes"
		default:
			t = "string"
		}
		schema.Fields[i] = avroField{Name: f.Name, Type: t}
	}
	data, err := jsonpool.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fromAvroSchema maps a flat Avro record schema to a header. Nullable
// unions take the type of their non-null branch.
func fromAvroSchema(schemaJSON string) (*columnar.Schema, error) {
	var schema avroSchema
	if err := jsonpool.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse Avro schema")
	}
	if schema.Type != "record" {
		return nil, errors.Newf(errors.ErrorTypeCapability, "Avro schema of type %q is not a record", schema.Type)
	}

	header := &columnar.Schema{Fields: make([]columnar.FieldSchema, len(schema.Fields))}
	for i, f := range schema.Fields {
		t, ok := avroColumnType(f.Type)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeCapability, "column %q has unsupported Avro type", f.Name)
		}
		header.Fields[i] = columnar.FieldSchema{Name: f.Name, Type: t}
	}
	return header, nil
}

func avroColumnType(t interface{}) (columnar.ColumnType, bool) {
	switch v := t.(type) {
	case string:
		switch v {
		case "string", "enum":
			return columnar.ColumnTypeString, true
		case "int", "long":
			return columnar.ColumnTypeInt, true
		case "float", "double":
			return columnar.ColumnTypeFloat, true
		case "boolean":
			return columnar.ColumnTypeBool, true
		case "bytes":
			return columnar.ColumnTypeBytes, true
		}
	case map[string]interface{}:
		switch v["logicalType"] {
		case "timestamp-millis", "timestamp-micros":
			return columnar.ColumnTypeTimestamp, true
		}
		return avroColumnType(v["type"])
	case []interface{}:
		var branch interface{}
		for _, b := range v {
			if b == "null" {
				continue
			}
			if branch != nil {
				return 0, false
			}
			branch = b
		}
		return avroColumnType(branch)
	}
	return 0, false
}

// avroInput reads an object container file
type avroInput struct {
	reader  *goavro.OCFReader
	header  *columnar.Schema
	builder *columnar.Builder
	maxRows int
	row     int
}

func newAvroInput(r io.Reader, settings *Settings) (InputFormat, error) {
	settings = orDefault(settings)
	reader, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Avro file")
	}
	header, err := fromAvroSchema(reader.Codec().Schema())
	if err != nil {
		return nil, err
	}
	return &avroInput{
		reader:  reader,
		header:  header,
		builder: columnar.NewBuilder(header),
		maxRows: settings.maxBlockRows(),
	}, nil
}

func (in *avroInput) Header() *columnar.Schema { return in.header }

func (in *avroInput) Read() (*columnar.Block, error) {
	values := make([]interface{}, len(in.header.Fields))
	for in.builder.Len() < in.maxRows && in.reader.Scan() {
		datum, err := in.reader.Read()
		if err != nil {
			in.builder.Reset()
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode row").WithDetail("row", in.row+1)
		}
		in.row++

		record, ok := datum.(map[string]interface{})
		if !ok {
			in.builder.Reset()
			return nil, errors.Newf(errors.ErrorTypeData, "row decoded as %T", datum).WithDetail("row", in.row)
		}
		for i, f := range in.header.Fields {
			values[i] = avroValue(f.Type, record[f.Name])
		}
		if err := in.builder.AppendRow(values); err != nil {
			in.builder.Reset()
			return nil, err
		}
	}
	if err := in.reader.Err(); err != nil {
		in.builder.Reset()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read Avro block")
	}

	if in.builder.Len() == 0 {
		return nil, io.EOF
	}
	return in.builder.Build()
}

// avroValue unwraps union values and widens Avro natives to column values
func avroValue(t columnar.ColumnType, v interface{}) interface{} {
	if union, ok := v.(map[string]interface{}); ok && len(union) == 1 {
		for _, inner := range union {
			v = inner
		}
	}
	switch val := v.(type) {
	case nil:
		return zeroValue(t)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC()
	}
	return v
}

func (in *avroInput) Close() error { return nil }

// avroOutput writes an object container file, one Avro block per block
type avroOutput struct {
	writer *goavro.OCFWriter
	header *columnar.Schema
	rows   int64
}

func newAvroOutput(w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
	settings = orDefault(settings)
	schemaJSON, err := toAvroSchema(header)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to render Avro schema")
	}
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCapability, "header cannot be expressed as an Avro schema")
	}

	compression := settings.Avro.Codec
	if compression == "" {
		compression = goavro.CompressionNullLabel
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create Avro writer")
	}
	return &avroOutput{writer: writer, header: header}, nil
}

func (out *avroOutput) Write(block *columnar.Block) error {
	rows, err := blockRows(block)
	if err != nil || rows == 0 {
		return err
	}
	if err := checkHeader(out.header, block); err != nil {
		return err
	}

	natives := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		record := make(map[string]interface{}, block.NumColumns())
		for j := 0; j < block.NumColumns(); j++ {
			c := block.ColumnAt(j)
			record[c.Name] = c.Data.Column().Get(i)
		}
		natives[i] = record
	}
	if err := out.writer.Append(natives); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro block")
	}
	out.rows += int64(rows)
	return nil
}

// Finalize is a no-op; Append already wrote complete container blocks
func (out *avroOutput) Finalize() error { return nil }

func (out *avroOutput) RowsWritten() int64 { return out.rows }

func (out *avroOutput) Close() error { return nil }
