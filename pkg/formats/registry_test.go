package formats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/errors"
)

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	reg := Default()
	for _, name := range []string{CSVWithNames, TSVWithNames, JSONEachRow, Arrow, ArrowStream, Parquet, Avro, Native} {
		assert.True(t, reg.IsInputFormat(name), name)
		assert.True(t, reg.IsOutputFormat(name), name)
		assert.True(t, reg.CheckIfFormatHasSchemaReader(name), name)
	}
	assert.Len(t, reg.Formats(), 8)
}

func TestRegistry_FormatFromFileName(t *testing.T) {
	reg := Default()
	tests := []struct {
		path string
		want string
	}{
		{"data.csv", CSVWithNames},
		{"data.CSV.gz", CSVWithNames},
		{"/tmp/events.jsonl.zst", JSONEachRow},
		{"events.ndjson", JSONEachRow},
		{"t.parquet", Parquet},
		{"t.arrows", ArrowStream},
		{"t.native.lz4", Native},
	}
	for _, tt := range tests {
		got, err := reg.FormatFromFileName(tt.path, true)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	got, err := reg.FormatFromFileName("notes.txt", false)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = reg.FormatFromFileName("notes.txt", true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestRegistry_Capabilities(t *testing.T) {
	reg := Default()

	assert.False(t, reg.CheckIfFormatSupportAppend(Parquet, nil))
	assert.False(t, reg.CheckIfFormatSupportAppend(Arrow, nil))
	assert.True(t, reg.CheckIfFormatSupportAppend(JSONEachRow, nil))
	assert.True(t, reg.CheckIfFormatSupportAppend(Native, nil))

	settings := DefaultSettings()
	assert.False(t, reg.CheckIfFormatSupportAppend(CSVWithNames, settings))
	settings.CSV.AllowAppend = true
	assert.True(t, reg.CheckIfFormatSupportAppend(CSVWithNames, settings))

	assert.True(t, reg.CheckIfFormatSupportsSubsetOfColumns(Parquet, nil))
	assert.False(t, reg.CheckIfFormatSupportsSubsetOfColumns(CSVWithNames, nil))
	assert.False(t, reg.CheckIfFormatSupportsSubcolumns(Parquet))

	ct, err := reg.ContentType(JSONEachRow)
	require.NoError(t, err)
	assert.Equal(t, "application/x-ndjson; charset=UTF-8", ct)

	for _, info := range reg.Formats() {
		if info.Name == CSVWithNames {
			assert.True(t, info.SupportsParallelFormatting)
			assert.Equal(t, []string{".csv"}, info.Extensions)
		}
	}
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.CheckFormatName("jsoneachrow"))
	in, err := reg.NewInput("jsoneachrow", strings.NewReader(`{"a":1}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "a Int64", in.Header().String())
}

func TestRegistry_UnknownFormat(t *testing.T) {
	reg := Default()
	assert.True(t, errors.IsType(reg.CheckFormatName("XML"), errors.ErrorTypeNotFound))

	_, err := reg.NewInput("XML", strings.NewReader(""), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = reg.NewOutput("XML", &bytes.Buffer{}, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = reg.ContentType("XML")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestRegistry_MissingCapability(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterOutputFormat("Sink", newNativeOutput))

	_, err := reg.NewInput("Sink", strings.NewReader(""), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	_, err = reg.NewSchemaReader("Sink", strings.NewReader(""), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	ct, err := reg.ContentType("Sink")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", ct)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)

	err := reg.RegisterInputFormat(CSVWithNames, newCSVInput(','))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	err = reg.MarkOutputFormatSupportsParallelFormatting(JSONEachRow)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	err = reg.MarkFormatHasNoAppendSupport(Parquet)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	require.NoError(t, reg.MarkFormatSupportsSubcolumns(Parquet))
	assert.True(t, reg.CheckIfFormatSupportsSubcolumns(Parquet))
}

func TestRegistry_SchemaReader(t *testing.T) {
	sr, err := Default().NewSchemaReader(CSVWithNames, strings.NewReader("id,name\n1,a\n2,b\n"), nil)
	require.NoError(t, err)
	schema, err := sr.ReadSchema()
	require.NoError(t, err)
	assert.Equal(t, "id Int64, name String", schema.String())
}
