package pipeline

import (
	"context"
	"io"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/metrics"
	"github.com/ajitpratap0/squash/pkg/squash"
	"github.com/ajitpratap0/squash/pkg/testutil"
)

type sliceInput struct {
	header *columnar.Schema
	blocks []*columnar.Block
	err    error
}

func (in *sliceInput) Read() (*columnar.Block, error) {
	if len(in.blocks) == 0 {
		if in.err != nil {
			return nil, in.err
		}
		return nil, io.EOF
	}
	b := in.blocks[0]
	in.blocks = in.blocks[1:]
	return b, nil
}

func (in *sliceInput) Header() *columnar.Schema { return in.header }
func (in *sliceInput) Close() error             { return nil }

// memOutput copies rows out of every block it is given
type memOutput struct {
	rows      [][]interface{}
	sizes     []int
	finalized bool
}

func (out *memOutput) Write(block *columnar.Block) error {
	n, err := block.Rows()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		out.rows = append(out.rows, block.Row(i))
	}
	out.sizes = append(out.sizes, n)
	return nil
}

func (out *memOutput) Finalize() error    { out.finalized = true; return nil }
func (out *memOutput) RowsWritten() int64 { return int64(len(out.rows)) }
func (out *memOutput) Close() error       { return nil }

// sampleInput splits sample rows [0, sum(sizes)) into blocks of the given
// sizes
func sampleInput(t *testing.T, sizes ...int) *sliceInput {
	in := &sliceInput{header: testutil.SampleSchema()}
	start := 0
	for _, n := range sizes {
		in.blocks = append(in.blocks, testutil.SampleBlock(t, start, n))
		start += n
	}
	return in
}

func TestStream_SquashesSmallBlocks(t *testing.T) {
	in := sampleInput(t, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	out := &memOutput{}

	s := NewStream("squash-small", in, out, squash.Policy{MinRows: 25}, StreamOptions{Logger: testutil.TestLogger(t)})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{30, 30, 30, 10}, out.sizes)
	assert.True(t, out.finalized)
	assert.Equal(t, testutil.Rows(t, testutil.SampleBlock(t, 0, 100)), out.rows)

	assert.Equal(t, 10, res.BlocksIn)
	assert.Equal(t, 100, res.RowsIn)
	assert.Equal(t, 4, res.BlocksOut)
	assert.Equal(t, 100, res.RowsOut)
	assert.Equal(t, uint64(6), res.Stats.Merges)
	assert.Equal(t, uint64(1), res.Stats.Flushes)
	assert.Zero(t, res.Digest)
}

func TestStream_PassThroughWhenDisabled(t *testing.T) {
	in := sampleInput(t, 3, 5, 7)
	out := &memOutput{}

	res, err := NewStream("squash-passthrough", in, out, squash.Policy{}, StreamOptions{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{3, 5, 7}, out.sizes)
	assert.Equal(t, uint64(3), res.Stats.PassedThrough)
}

func TestStream_Verify(t *testing.T) {
	want := testutil.Digest(t, testutil.SampleBlock(t, 0, 60))
	in := sampleInput(t, 7, 13, 1, 39)
	out := &memOutput{}

	res, err := NewStream("squash-verify", in, out, squash.Policy{MinRows: 16}, StreamOptions{Verify: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, res.Digest)
	assert.Equal(t, 60, len(out.rows))
}

func TestStream_VerifyDetectsMissingRows(t *testing.T) {
	s := NewStream("squash-verify-mismatch", sampleInput(t), &memOutput{}, squash.Policy{}, StreamOptions{Verify: true})
	require.NoError(t, s.inDig.Add(testutil.SampleBlock(t, 0, 2)))
	require.NoError(t, s.outDig.Add(testutil.SampleBlock(t, 0, 1)))

	err := s.check()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestStream_EmptyInput(t *testing.T) {
	out := &memOutput{}
	res, err := NewStream("squash-empty", sampleInput(t), out, squash.Policy{MinRows: 10}, StreamOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.sizes)
	assert.True(t, out.finalized)
	assert.Zero(t, res.BlocksOut)
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &memOutput{}
	_, err := NewStream("squash-cancelled", sampleInput(t, 5), out, squash.Policy{}, StreamOptions{}).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, out.finalized)
}

func TestStream_ReadError(t *testing.T) {
	in := sampleInput(t, 5)
	in.err = errors.New(errors.ErrorTypeData, "corrupt row")

	_, err := NewStream("squash-read-error", in, &memOutput{}, squash.Policy{}, StreamOptions{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestStream_StructuralMismatch(t *testing.T) {
	b := columnar.NewBuilder(&columnar.Schema{Fields: []columnar.FieldSchema{{Name: "id", Type: columnar.ColumnTypeInt}}})
	require.NoError(t, b.AppendRow([]interface{}{int64(1)}))
	other, err := b.Build()
	require.NoError(t, err)

	in := sampleInput(t, 5)
	in.blocks = append(in.blocks, other)
	out := &memOutput{}

	_, err = NewStream("squash-mismatch", in, out, squash.Policy{MinRows: 100}, StreamOptions{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructuralMismatch))
	assert.False(t, out.finalized)
}

func TestStream_RecordsMetrics(t *testing.T) {
	const stream = "squash-metrics"
	in := sampleInput(t, 4, 4, 4, 4)

	_, err := NewStream(stream, in, &memOutput{}, squash.Policy{MinRows: 8}, StreamOptions{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(4), promtest.ToFloat64(metrics.BlocksRead.WithLabelValues(stream)))
	assert.Equal(t, float64(16), promtest.ToFloat64(metrics.RowsRead.WithLabelValues(stream)))
	assert.Equal(t, float64(2), promtest.ToFloat64(metrics.BlocksWritten.WithLabelValues(stream)))
	assert.Equal(t, float64(16), promtest.ToFloat64(metrics.RowsWritten.WithLabelValues(stream)))
	assert.Equal(t, float64(2), promtest.ToFloat64(metrics.Merges.WithLabelValues(stream)))
	assert.Equal(t, float64(0), promtest.ToFloat64(metrics.PendingRows.WithLabelValues(stream)))
}
