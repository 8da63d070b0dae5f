// Package pipeline drives squash streams: it reads blocks from an input
// format, feeds them through one squashing engine and writes whatever the
// engine emits to an output format.
//
// A Stream works on already opened readers and writers. A Job opens the
// files, chooses formats and codecs from its configuration or the file
// names, and runs a Stream. RunAll runs independent jobs concurrently.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/formats"
	"github.com/ajitpratap0/squash/pkg/logger"
	"github.com/ajitpratap0/squash/pkg/metrics"
	"github.com/ajitpratap0/squash/pkg/observability"
	"github.com/ajitpratap0/squash/pkg/squash"
)

// Result summarizes a finished stream
type Result struct {
	Stream    string
	BlocksIn  int
	RowsIn    int
	BlocksOut int
	RowsOut   int
	// Engine counters
	Stats    squash.Stats
	Duration time.Duration
	// Digest is the row digest of the output; zero unless verification ran
	Digest uint64
}

// StreamOptions tunes a Stream
type StreamOptions struct {
	// Verify digests input and output rows and fails the stream when they
	// differ
	Verify bool
	Logger *zap.Logger
}

// Stream moves the blocks of one input through one engine to one output.
// It is single-use.
type Stream struct {
	name      string
	input     formats.InputFormat
	output    formats.OutputFormat
	transform *squash.Transform
	verify    bool

	collector  *metrics.Collector
	throughput *metrics.ThroughputTracker
	logger     *zap.Logger

	result Result
	inDig  *columnar.RowDigest
	outDig *columnar.RowDigest
}

// NewStream creates a stream. The stream does not own input or output:
// Run finalizes the output but closes neither.
func NewStream(name string, input formats.InputFormat, output formats.OutputFormat, policy squash.Policy, opts StreamOptions) *Stream {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	s := &Stream{
		name:       name,
		input:      input,
		output:     output,
		transform:  squash.NewWithPolicy(policy),
		verify:     opts.Verify,
		collector:  metrics.NewCollector(name),
		throughput: metrics.NewThroughputTracker(name),
		logger:     log.With(zap.String("component", "stream")),
		result:     Result{Stream: name},
	}
	if s.verify {
		s.inDig = columnar.NewRowDigest()
		s.outDig = columnar.NewRowDigest()
	}
	return s
}

// Run reads the input to the end, flushes the engine once and finalizes the
// output. Cancelling ctx stops the stream between blocks; the output is
// then left unfinalized.
func (s *Stream) Run(ctx context.Context) (*Result, error) {
	ctx = logger.ContextWithStream(ctx, s.name)
	log := logger.FromContext(ctx, s.logger)

	ctx, span := observability.StartSpan(ctx, "squash.stream")
	defer span.End()
	span.SetAttribute("stream", s.name)
	span.SetAttribute("min_rows", s.transform.Policy().MinRows)
	span.SetAttribute("min_bytes", s.transform.Policy().MinBytes)

	start := time.Now()
	log.Debug("stream started",
		zap.Uint64("min_rows", s.transform.Policy().MinRows),
		zap.Uint64("min_bytes", s.transform.Policy().MinBytes),
		zap.Stringer("header", s.input.Header()))

	err := s.run(ctx)
	s.result.Duration = time.Since(start)
	s.result.Stats = s.transform.Stats()
	s.collector.SetPending(s.transform.PendingRows())
	s.throughput.GetAndReset()

	span.SetAttribute("rows_in", s.result.RowsIn)
	span.SetAttribute("rows_out", s.result.RowsOut)
	span.SetAttribute("blocks_in", s.result.BlocksIn)
	span.SetAttribute("blocks_out", s.result.BlocksOut)
	if err != nil {
		span.RecordError(err)
		log.Error("stream failed", zap.Error(err),
			zap.Int("rows_in", s.result.RowsIn),
			zap.Int("rows_out", s.result.RowsOut))
		return &s.result, err
	}

	log.Info("stream completed",
		zap.Int("blocks_in", s.result.BlocksIn),
		zap.Int("rows_in", s.result.RowsIn),
		zap.Int("blocks_out", s.result.BlocksOut),
		zap.Int("rows_out", s.result.RowsOut),
		zap.Uint64("merges", s.result.Stats.Merges),
		zap.Duration("duration", s.result.Duration))
	return &s.result, nil
}

func (s *Stream) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "stream cancelled")
		}

		block, err := s.input.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.TypeOf(err), "failed to read block").
				WithDetail("block", s.result.BlocksIn)
		}
		if err := s.consume(block); err != nil {
			return err
		}
	}

	out, err := s.transform.Flush()
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to flush")
	}
	if err := s.write(out); err != nil {
		return err
	}

	if err := s.output.Finalize(); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to finalize output")
	}
	return s.check()
}

func (s *Stream) consume(block *columnar.Block) error {
	rows, err := block.Rows()
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "invalid input block").
			WithDetail("block", s.result.BlocksIn)
	}
	if s.verify {
		if err := s.inDig.Add(block); err != nil {
			return err
		}
	}
	s.result.BlocksIn++
	s.result.RowsIn += rows
	s.collector.BlockRead(rows)

	before := s.transform.Stats()
	timer := metrics.NewTimer()
	out, err := s.transform.Push(block)
	s.collector.Pushed(timer.Stop())

	after := s.transform.Stats()
	s.collector.Merged(int(after.Merges - before.Merges))
	s.collector.SetPending(s.transform.PendingRows())
	if after.MergeFailures > before.MergeFailures {
		s.collector.MergeFailed()
	}
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to squash block").
			WithDetail("block", s.result.BlocksIn-1)
	}
	return s.write(out)
}

func (s *Stream) write(block *columnar.Block) error {
	if block == nil {
		return nil
	}
	defer block.Release()

	rows, err := block.Rows()
	if err != nil {
		return err
	}
	size, err := block.ByteSize()
	if err != nil {
		return err
	}
	if s.verify {
		if err := s.outDig.Add(block); err != nil {
			return err
		}
	}
	if err := s.output.Write(block); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to write block").
			WithDetail("block", s.result.BlocksOut)
	}
	s.result.BlocksOut++
	s.result.RowsOut += rows
	s.collector.BlockWritten(rows, size)
	s.throughput.Increment(int64(rows))
	return nil
}

// check compares the digests of rows read and rows written
func (s *Stream) check() error {
	if !s.verify {
		return nil
	}
	s.result.Digest = s.outDig.Sum64()
	if s.inDig.Rows() != s.outDig.Rows() || s.inDig.Sum64() != s.outDig.Sum64() {
		return errors.New(errors.ErrorTypeData, "output rows differ from input rows").
			WithDetail("rows_in", s.inDig.Rows()).
			WithDetail("rows_out", s.outDig.Rows())
	}
	return nil
}
