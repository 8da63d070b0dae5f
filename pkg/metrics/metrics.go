// Package metrics provides Prometheus metrics for squash streams.
//
// Every metric carries a "stream" label. Components record through a
// Collector bound to their stream:
//
//	c := metrics.NewCollector("events")
//	c.BlockRead(rows, bytes)
//	timer := metrics.NewTimer()
//	out, err := t.Push(block)
//	c.Pushed(timer.Stop())
//	c.BlockWritten(outRows, outBytes)
//
// Handler exposes the default registry for scraping.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksRead counts blocks read from stream inputs
	BlocksRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_blocks_read_total",
			Help: "Total number of blocks read from inputs",
		},
		[]string{"stream"},
	)

	// RowsRead counts rows read from stream inputs
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_rows_read_total",
			Help: "Total number of rows read from inputs",
		},
		[]string{"stream"},
	)

	// BlocksWritten counts squashed blocks written to outputs
	BlocksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_blocks_written_total",
			Help: "Total number of squashed blocks written to outputs",
		},
		[]string{"stream"},
	)

	// RowsWritten counts rows written to outputs
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_rows_written_total",
			Help: "Total number of rows written to outputs",
		},
		[]string{"stream"},
	)

	// BytesWritten counts the in-memory size of written blocks
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_block_bytes_written_total",
			Help: "Total in-memory bytes of blocks written to outputs",
		},
		[]string{"stream"},
	)

	// Merges counts blocks appended into a pending block
	Merges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_merges_total",
			Help: "Total number of blocks merged into a pending block",
		},
		[]string{"stream"},
	)

	// MergeFailures counts merges that failed and dropped the pending block
	MergeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_merge_failures_total",
			Help: "Total number of failed merges",
		},
		[]string{"stream"},
	)

	// PendingRows is the row count of a stream's pending block
	PendingRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "squash_pending_rows",
			Help: "Rows held in the pending block",
		},
		[]string{"stream"},
	)

	// EmittedBlockRows is the distribution of rows per written block
	EmittedBlockRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "squash_emitted_block_rows",
			Help:    "Rows per block written to outputs",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64 .. 16M
		},
		[]string{"stream"},
	)

	// PushLatency tracks the duration of one engine push in seconds
	PushLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "squash_push_latency_seconds",
			Help: "Duration of one squashing push",
			Buckets: []float64{
				1e-6, // 1μs - Pass-through and swaps
				1e-5, // 10μs
				1e-4, // 100μs - Small merges
				1e-3, // 1ms
				1e-2, // 10ms - Large merges
				1e-1, // 100ms
				1,    // 1s
			},
		},
		[]string{"stream"},
	)

	// Throughput tracks rows read per second
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "squash_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"stream"},
	)
)

// Collector records the metrics of one stream. Safe for concurrent use.
type Collector struct {
	stream        string
	blocksRead    prometheus.Counter
	rowsRead      prometheus.Counter
	blocksWritten prometheus.Counter
	rowsWritten   prometheus.Counter
	bytesWritten  prometheus.Counter
	merges        prometheus.Counter
	mergeFailures prometheus.Counter
	pendingRows   prometheus.Gauge
	blockRows     prometheus.Observer
	pushLatency   prometheus.Observer
}

// NewCollector binds the metrics to a stream
func NewCollector(stream string) *Collector {
	return &Collector{
		stream:        stream,
		blocksRead:    BlocksRead.WithLabelValues(stream),
		rowsRead:      RowsRead.WithLabelValues(stream),
		blocksWritten: BlocksWritten.WithLabelValues(stream),
		rowsWritten:   RowsWritten.WithLabelValues(stream),
		bytesWritten:  BytesWritten.WithLabelValues(stream),
		merges:        Merges.WithLabelValues(stream),
		mergeFailures: MergeFailures.WithLabelValues(stream),
		pendingRows:   PendingRows.WithLabelValues(stream),
		blockRows:     EmittedBlockRows.WithLabelValues(stream),
		pushLatency:   PushLatency.WithLabelValues(stream),
	}
}

// Stream returns the stream label
func (c *Collector) Stream() string { return c.stream }

// BlockRead records a block taken from the input
func (c *Collector) BlockRead(rows int) {
	c.blocksRead.Inc()
	c.rowsRead.Add(float64(rows))
}

// BlockWritten records a block handed to the output
func (c *Collector) BlockWritten(rows, bytes int) {
	c.blocksWritten.Inc()
	c.rowsWritten.Add(float64(rows))
	c.bytesWritten.Add(float64(bytes))
	c.blockRows.Observe(float64(rows))
}

// Pushed records the duration of one push
func (c *Collector) Pushed(d time.Duration) {
	c.pushLatency.Observe(d.Seconds())
}

// Merged adds n merges
func (c *Collector) Merged(n int) {
	c.merges.Add(float64(n))
}

// MergeFailed records a failed merge
func (c *Collector) MergeFailed() {
	c.mergeFailures.Inc()
}

// SetPending sets the rows held by the engine
func (c *Collector) SetPending(rows int) {
	c.pendingRows.Set(float64(rows))
}

// Handler serves the default Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (rows per second) over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows processed since last reset
	lastReset time.Time // Time of last reset
	stream    string
}

// NewThroughputTracker creates a new throughput tracker for a stream
func NewThroughputTracker(stream string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		stream:    stream,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.stream).Set(throughput)

	return throughput
}
