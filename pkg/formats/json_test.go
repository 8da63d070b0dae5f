package formats

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/testutil"
)

// sortedSample is the sample data set without payload, columns in the
// sorted order JSONEachRow reads them back in
func sortedSample(t *testing.T, start, rows int) *columnar.Block {
	t.Helper()
	schema := &columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "active", Type: columnar.ColumnTypeBool},
		{Name: "created_at", Type: columnar.ColumnTypeTimestamp},
		{Name: "id", Type: columnar.ColumnTypeInt},
		{Name: "name", Type: columnar.ColumnTypeString},
		{Name: "score", Type: columnar.ColumnTypeFloat},
	}}
	b := columnar.NewBuilder(schema)
	for id := start; id < start+rows; id++ {
		r := testutil.SampleRow(id)
		require.NoError(t, b.AppendRow([]interface{}{r[3], r[4], r[0], r[1], r[2]}))
	}
	block, err := b.Build()
	require.NoError(t, err)
	return block
}

func TestJSONEachRow_RoundTrip(t *testing.T) {
	first := sortedSample(t, 1, 40)
	second := sortedSample(t, 41, 10)
	want := testutil.Rows(t, first, second)

	data := write(t, JSONEachRow, nil, first, second)
	header, blocks := readAll(t, JSONEachRow, data, nil)

	assert.Equal(t, "active Bool, created_at DateTime, id Int64, name String, score Float64", header.String())
	assert.Equal(t, want, testutil.Rows(t, blocks...))
}

func TestJSONEachRow_Output(t *testing.T) {
	data := write(t, JSONEachRow, nil, sortedSample(t, 3, 1))
	assert.Equal(t,
		`{"active":true,"created_at":"2023-11-14T22:16:20Z","id":3,"name":"user-3","score":0.75}`+"\n",
		string(data))
}

func TestJSONEachRow_MissingAndNullKeys(t *testing.T) {
	input := `{"id": 1, "name": "a"}
{"id": 2}
{"id": null, "name": "c"}
`
	header, blocks := readAll(t, JSONEachRow, []byte(input), nil)
	assert.Equal(t, "id Int64, name String", header.String())
	assert.Equal(t, [][]interface{}{
		{int64(1), "a"},
		{int64(2), ""},
		{int64(0), "c"},
	}, testutil.Rows(t, blocks...))
}

func TestJSONEachRow_TypeInference(t *testing.T) {
	input := `{"n": 1, "f": 1, "mixed": 1, "obj": {"k": [1, 2]}, "ts": "2024-01-02T03:04:05Z"}
{"n": 2, "f": 2.5, "mixed": "x", "obj": null, "ts": "2024-01-02T03:04:06Z"}
`
	header, blocks := readAll(t, JSONEachRow, []byte(input), nil)
	assert.Equal(t, "f Float64, mixed String, n Int64, obj String, ts DateTime", header.String())

	rows := testutil.Rows(t, blocks...)
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{float64(1), "1", int64(1), `{"k":[1,2]}`, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, rows[0])
	assert.Equal(t, "x", rows[1][1])
}

func TestJSONEachRow_UnknownKeyAfterSample(t *testing.T) {
	settings := DefaultSettings()
	settings.JSON.InferSampleRows = 1
	in, err := Default().NewInput(JSONEachRow, strings.NewReader("{\"a\":1}\n{\"a\":2,\"b\":3}\n"), settings)
	require.NoError(t, err)

	_, err = in.Read()
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestJSONEachRow_NotAnObject(t *testing.T) {
	_, err := Default().NewInput(JSONEachRow, strings.NewReader("[1,2]\n"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	_, err = Default().NewInput(JSONEachRow, strings.NewReader("null\n"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestJSONEachRow_Empty(t *testing.T) {
	in, err := Default().NewInput(JSONEachRow, strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, in.Header().Fields)
	_, err = in.Read()
	assert.Equal(t, io.EOF, err)
}
