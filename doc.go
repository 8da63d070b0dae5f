// Package squash reads files as streams of column blocks, merges runs of
// small blocks into fewer large ones and writes them back out.
//
// Producers such as parsers emit blocks whose size follows their input, so a
// file read in small chunks turns into thousands of tiny blocks. Writing them
// one by one is slow for columnar sinks. The squashing engine in pkg/squash
// buffers consecutive blocks until one of two thresholds is reached, the
// minimum row count or the minimum byte size, and emits them as a single
// block. Rows keep their order and are never dropped.
//
// # Layout
//
//   - pkg/columnar: typed columns with copy-on-write sharing, blocks, schemas
//   - pkg/squash: the size policy, merge and the squashing Transform
//   - pkg/formats: format registry with CSV, TSV, JSONEachRow, Arrow,
//     ArrowStream, Parquet, Avro and Native readers and writers
//   - pkg/compression: gzip, zstd, snappy, s2, lz4 and deflate file codecs
//   - internal/pipeline: file-to-file streams and parallel runs
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: configuration,
//     zap logging, Prometheus metrics and OpenTelemetry tracing
//   - cmd/squash: the command line tool
//
// # Quick Start
//
// Squash a CSV file into Parquet with blocks of at least 64Ki rows:
//
//	squash run --input events.csv.gz --output events.parquet --min-rows 65536
//
// Or use the engine directly:
//
//	t := squash.New(65536, 256<<20)
//	for block := range blocks {
//	    out, err := t.Push(block)
//	    if err != nil {
//	        return err
//	    }
//	    if out != nil {
//	        write(out)
//	    }
//	}
//	if out, _ := t.Flush(); out != nil {
//	    write(out)
//	}
package squash
