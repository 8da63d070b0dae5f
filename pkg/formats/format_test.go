package formats

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/testutil"
)

// projected builds sample rows restricted to the first n sample columns
func projected(t *testing.T, n, start, rows int) *columnar.Block {
	t.Helper()
	schema := &columnar.Schema{Fields: testutil.SampleSchema().Fields[:n]}
	b := columnar.NewBuilder(schema)
	for id := start; id < start+rows; id++ {
		require.NoError(t, b.AppendRow(testutil.SampleRow(id)[:n]))
	}
	block, err := b.Build()
	require.NoError(t, err)
	return block
}

func write(t *testing.T, name string, settings *Settings, blocks ...*columnar.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	out, err := Default().NewOutput(name, &buf, blocks[0].Schema(), settings)
	require.NoError(t, err)
	total := 0
	for _, block := range blocks {
		rows, err := block.Rows()
		require.NoError(t, err)
		total += rows
		require.NoError(t, out.Write(block))
	}
	require.NoError(t, out.Finalize())
	require.NoError(t, out.Close())
	assert.Equal(t, int64(total), out.RowsWritten())
	return buf.Bytes()
}

func readAll(t *testing.T, name string, data []byte, settings *Settings) (*columnar.Schema, []*columnar.Block) {
	t.Helper()
	in, err := Default().NewInput(name, bytes.NewReader(data), settings)
	require.NoError(t, err)
	defer in.Close()

	var blocks []*columnar.Block
	for {
		block, err := in.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
	return in.Header(), blocks
}

func TestFormats_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		columns int
	}{
		{CSVWithNames, 4},
		{TSVWithNames, 4},
		{Arrow, 6},
		{ArrowStream, 6},
		{Parquet, 6},
		{Avro, 6},
		{Native, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := projected(t, tt.columns, 1, 50)
			second := projected(t, tt.columns, 51, 30)
			want := testutil.Rows(t, first, second)
			wantDigest := testutil.Digest(t, first, second)
			schema := first.Schema()

			settings := DefaultSettings()
			settings.MaxBlockRows = 32
			data := write(t, tt.name, settings, first, second)

			header, blocks := readAll(t, tt.name, data, settings)
			assert.True(t, schema.Equal(header), "header %s", header)
			for _, block := range blocks {
				rows, err := block.Rows()
				require.NoError(t, err)
				assert.LessOrEqual(t, rows, 32)
			}
			assert.Equal(t, want, testutil.Rows(t, blocks...))
			assert.Equal(t, wantDigest, testutil.Digest(t, blocks...))
		})
	}
}

func TestFormats_EmptyOutput(t *testing.T) {
	for _, name := range []string{CSVWithNames, Arrow, ArrowStream, Parquet, Avro} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			out, err := Default().NewOutput(name, &buf, testutil.SampleSchema(), nil)
			require.NoError(t, err)
			require.NoError(t, out.Finalize())

			in, err := Default().NewInput(name, bytes.NewReader(buf.Bytes()), nil)
			require.NoError(t, err)
			defer in.Close()
			_, err = in.Read()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestFormats_WriteRejectsOtherHeader(t *testing.T) {
	for _, name := range []string{CSVWithNames, JSONEachRow, Arrow, Avro, Native} {
		t.Run(name, func(t *testing.T) {
			out, err := Default().NewOutput(name, io.Discard, testutil.SampleSchema(), nil)
			require.NoError(t, err)
			err = out.Write(projected(t, 2, 0, 3))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "structural_mismatch")
			assert.Zero(t, out.RowsWritten())
		})
	}
}

func TestFormats_WriteSkipsEmptyBlocks(t *testing.T) {
	var buf bytes.Buffer
	out, err := Default().NewOutput(Native, &buf, testutil.SampleSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, out.Write(columnar.NewBlock()))
	require.NoError(t, out.Finalize())
	assert.Zero(t, buf.Len())
}
