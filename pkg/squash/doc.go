// Package squash coalesces a stream of small blocks into fewer, larger ones.
//
// Parsers and network readers tend to produce many small blocks; writers
// and storage prefer few large ones. A Transform sits between them: it
// buffers incoming blocks, merges them column by column, and hands a block
// back once it reaches a row-count or byte-size threshold.
//
//	t := squash.New(65536, 0)
//	for _, in := range blocks {
//	    out, err := t.Push(in)
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
//
// # Ordering
//
// Output rows always appear in input order. When a block that is already
// large enough arrives while smaller rows are still pending, the pending
// rows are returned first and the new block is held until the next call.
// That costs one call of latency in exchange for order.
//
// # Failures
//
// The pending block is never left half merged. If appending into it fails,
// it is discarded and the error is returned with type
// errors.ErrorTypeAppendFailure; only rows that were buffered and not yet
// returned are lost. Structural errors leave the pending block untouched.
//
// The package does no I/O and no logging. The stream driver in
// internal/pipeline adds metrics, logs and tracing around it.
package squash
