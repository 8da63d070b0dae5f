// Package testutil provides testing utilities for squash
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/squash/pkg/columnar"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// SampleSchema is the header of SampleBlock: one column of every type
func SampleSchema() *columnar.Schema {
	return &columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "id", Type: columnar.ColumnTypeInt},
		{Name: "name", Type: columnar.ColumnTypeString},
		{Name: "score", Type: columnar.ColumnTypeFloat},
		{Name: "active", Type: columnar.ColumnTypeBool},
		{Name: "created_at", Type: columnar.ColumnTypeTimestamp},
		{Name: "payload", Type: columnar.ColumnTypeBytes},
	}}
}

// SampleRow returns row id of the sample data set
func SampleRow(id int) []interface{} {
	return []interface{}{
		int64(id),
		fmt.Sprintf("user-%d", id%7),
		float64(id) * 0.25,
		id%3 == 0,
		time.Unix(1700000000+int64(id)*60, 0).UTC(),
		[]byte(fmt.Sprintf("p%d", id)),
	}
}

// SampleBlock builds rows [start, start+rows) of the sample data set
func SampleBlock(t testing.TB, start, rows int) *columnar.Block {
	t.Helper()
	b := columnar.NewBuilder(SampleSchema())
	for id := start; id < start+rows; id++ {
		require.NoError(t, b.AppendRow(SampleRow(id)))
	}
	block, err := b.Build()
	require.NoError(t, err)
	return block
}

// Rows flattens blocks into row values in order
func Rows(t testing.TB, blocks ...*columnar.Block) [][]interface{} {
	t.Helper()
	var out [][]interface{}
	for _, block := range blocks {
		if block.Empty() {
			continue
		}
		n, err := block.Rows()
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			out = append(out, block.Row(i))
		}
	}
	return out
}

// Digest returns the row digest of blocks in order
func Digest(t testing.TB, blocks ...*columnar.Block) uint64 {
	t.Helper()
	d := columnar.NewRowDigest()
	for _, block := range blocks {
		require.NoError(t, d.Add(block))
	}
	return d.Sum64()
}
