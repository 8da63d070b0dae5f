package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("collector-test")
	c.BlockRead(10)
	c.BlockRead(5)
	c.BlockWritten(15, 300)
	c.Merged(1)
	c.MergeFailed()
	c.SetPending(7)
	c.Pushed(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(BlocksRead.WithLabelValues("collector-test")))
	assert.Equal(t, 15.0, testutil.ToFloat64(RowsRead.WithLabelValues("collector-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BlocksWritten.WithLabelValues("collector-test")))
	assert.Equal(t, 15.0, testutil.ToFloat64(RowsWritten.WithLabelValues("collector-test")))
	assert.Equal(t, 300.0, testutil.ToFloat64(BytesWritten.WithLabelValues("collector-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Merges.WithLabelValues("collector-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(MergeFailures.WithLabelValues("collector-test")))
	assert.Equal(t, 7.0, testutil.ToFloat64(PendingRows.WithLabelValues("collector-test")))
	assert.Equal(t, "collector-test", c.Stream())
}

func TestHandler_ServesMetrics(t *testing.T) {
	NewCollector("handler-test").BlockRead(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `squash_rows_read_total{stream="handler-test"} 3`))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("throughput-test")
	tracker.Increment(100)
	time.Sleep(10 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("throughput-test")))
	assert.Equal(t, 0.0, tracker.GetAndReset())
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
