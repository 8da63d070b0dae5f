package formats

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/testutil"
)

func TestCSV_HeaderOnly(t *testing.T) {
	header, blocks := readAll(t, CSVWithNames, []byte("id,name\n"), nil)
	assert.Equal(t, []string{"id", "name"}, header.Names())
	assert.Empty(t, blocks)
}

func TestCSV_EmptyFile(t *testing.T) {
	header, blocks := readAll(t, CSVWithNames, nil, nil)
	assert.Empty(t, header.Fields)
	assert.Empty(t, blocks)
}

func TestCSV_WithoutInference(t *testing.T) {
	settings := DefaultSettings()
	settings.CSV.InferTypes = false
	header, blocks := readAll(t, CSVWithNames, []byte("id,ok\n1,true\n"), settings)
	assert.Equal(t, "id String, ok String", header.String())
	assert.Equal(t, [][]interface{}{{"1", "true"}}, testutil.Rows(t, blocks...))
}

func TestCSV_InferenceBeyondSample(t *testing.T) {
	settings := DefaultSettings()
	settings.CSV.InferSampleRows = 2
	in, err := Default().NewInput(CSVWithNames, strings.NewReader("n\n1\n2\nthree\n"), settings)
	require.NoError(t, err)
	assert.Equal(t, "n Int64", in.Header().String())

	_, err = in.Read()
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestCSV_CustomDelimiter(t *testing.T) {
	settings := DefaultSettings()
	settings.CSV.Delimiter = ";"
	header, blocks := readAll(t, CSVWithNames, []byte("a;b\n1;x\n"), settings)
	assert.Equal(t, "a Int64, b String", header.String())
	assert.Equal(t, [][]interface{}{{int64(1), "x"}}, testutil.Rows(t, blocks...))

	settings.CSV.Delimiter = ";;"
	_, err := Default().NewInput(CSVWithNames, strings.NewReader("a\n"), settings)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCSV_RaggedRow(t *testing.T) {
	_, err := Default().NewInput(CSVWithNames, strings.NewReader("a,b\n1,2\n3\n"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestCSV_Output(t *testing.T) {
	block := projected(t, 4, 2, 2)
	assert.Equal(t, "id,name,score,active\n2,user-2,0.5,false\n3,user-3,0.75,true\n",
		string(write(t, CSVWithNames, nil, block)))

	settings := DefaultSettings()
	settings.CSV.OmitHeader = true
	assert.Equal(t, "2\tuser-2\t0.5\tfalse\n3\tuser-3\t0.75\ttrue\n",
		string(write(t, TSVWithNames, settings, block)))
}

func TestCSV_OutputAllTypes(t *testing.T) {
	var buf bytes.Buffer
	out, err := Default().NewOutput(CSVWithNames, &buf, testutil.SampleSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, out.Write(testutil.SampleBlock(t, 0, 1)))
	require.NoError(t, out.Finalize())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0,user-0,0,true,2023-11-14T22:13:20Z,p0", lines[1])
}

func TestCSV_EmptyOutputHasHeader(t *testing.T) {
	var buf bytes.Buffer
	out, err := Default().NewOutput(CSVWithNames, &buf, projected(t, 2, 0, 1).Schema(), nil)
	require.NoError(t, err)
	require.NoError(t, out.Finalize())
	assert.Equal(t, "id,name\n", buf.String())

	in, err := Default().NewInput(CSVWithNames, &buf, nil)
	require.NoError(t, err)
	_, err = in.Read()
	assert.Equal(t, io.EOF, err)
}
