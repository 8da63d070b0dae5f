package pipeline

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/compression"
	"github.com/ajitpratap0/squash/pkg/config"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/formats"
	"github.com/ajitpratap0/squash/pkg/logger"
	"github.com/ajitpratap0/squash/pkg/squash"
)

const writeBufferSize = 1 << 20

// Job squashes one input file into one output file
type Job struct {
	Name     string
	Input    config.EndpointConfig
	Output   config.EndpointConfig
	Policy   squash.Policy
	Settings *formats.Settings
	Verify   bool
	// Registry defaults to formats.Default()
	Registry *formats.Registry
	Logger   *zap.Logger
}

// JobsFromConfig creates a job for every configured stream
func JobsFromConfig(cfg *config.Config) []*Job {
	policy := squash.Policy{
		MinRows:  cfg.Squashing.MinBlockSizeRows,
		MinBytes: cfg.Squashing.MinBlockSizeBytes,
	}
	jobs := make([]*Job, 0, len(cfg.Streams))
	for i := range cfg.Streams {
		s := cfg.Streams[i]
		settings := cfg.Formats
		jobs = append(jobs, &Job{
			Name:     s.StreamName(),
			Input:    s.Input,
			Output:   s.Output,
			Policy:   policy,
			Settings: &settings,
			Verify:   cfg.Pipeline.Verify,
		})
	}
	return jobs
}

func (j *Job) registry() *formats.Registry {
	if j.Registry != nil {
		return j.Registry
	}
	return formats.Default()
}

func (j *Job) settings() *formats.Settings {
	if j.Settings != nil {
		return j.Settings
	}
	return formats.DefaultSettings()
}

func (j *Job) logger() *zap.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return logger.Get()
}

// Run opens the files, runs the stream and closes everything. A failed job
// may leave a partial output file behind.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if samePath(j.Input.Path, j.Output.Path) {
		return nil, errors.New(errors.ErrorTypeConfig, "input and output are the same file").
			WithDetail("path", j.Input.Path)
	}

	reg := j.registry()
	settings := j.settings()

	inFormat, err := resolveFormat(reg, j.Input)
	if err != nil {
		return nil, err
	}
	outFormat, err := resolveFormat(reg, j.Output)
	if err != nil {
		return nil, err
	}
	if !reg.IsInputFormat(inFormat) {
		return nil, errors.Newf(errors.ErrorTypeCapability, "format %s cannot be read", inFormat)
	}
	if !reg.IsOutputFormat(outFormat) {
		return nil, errors.Newf(errors.ErrorTypeCapability, "format %s cannot be written", outFormat)
	}

	src, err := openInput(j.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	in, err := reg.NewInput(inFormat, src.Reader, settings)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to open input").WithDetail("path", j.Input.Path)
	}
	defer in.Close()

	dst, appending, err := openOutput(j.Output, reg, outFormat, settings)
	if err != nil {
		return nil, err
	}
	defer dst.abort()

	if appending && settings.CSV.AllowAppend {
		// the existing file already has its header
		s := *settings
		s.CSV.OmitHeader = true
		settings = &s
	}

	out, err := reg.NewOutput(outFormat, dst, in.Header(), settings)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to open output").WithDetail("path", j.Output.Path)
	}
	defer out.Close()

	j.logger().Debug("job opened",
		zap.String("stream", j.Name),
		zap.String("input", j.Input.Path),
		zap.String("input_format", inFormat),
		zap.String("output", j.Output.Path),
		zap.String("output_format", outFormat),
		zap.Bool("append", appending))

	stream := NewStream(j.Name, in, out, j.Policy, StreamOptions{Verify: j.Verify, Logger: j.logger()})
	res, err := stream.Run(ctx)
	if err != nil {
		return res, err
	}
	if err := dst.Close(); err != nil {
		return res, err
	}
	return res, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func resolveFormat(reg *formats.Registry, ep config.EndpointConfig) (string, error) {
	if ep.Format != "" {
		if err := reg.CheckFormatName(ep.Format); err != nil {
			return "", err
		}
		return ep.Format, nil
	}
	return reg.FormatFromFileName(ep.Path, true)
}

// resolveCompression returns the configured codec, or the one named by the
// file's extension when the configuration says "auto" or nothing
func resolveCompression(ep config.EndpointConfig) (compression.Algorithm, error) {
	if ep.Compression == "" || strings.EqualFold(ep.Compression, "auto") {
		return compression.AlgorithmFromFileName(ep.Path), nil
	}
	return compression.ParseAlgorithm(ep.Compression)
}

// inputFile is an opened, possibly decompressed input
type inputFile struct {
	io.Reader
	file  *os.File
	codec io.Closer
}

func (f *inputFile) Close() error {
	if f.codec != nil {
		_ = f.codec.Close()
	}
	return f.file.Close()
}

func openInput(ep config.EndpointConfig) (*inputFile, error) {
	alg, err := resolveCompression(ep)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(ep.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input file").WithDetail("path", ep.Path)
	}

	// An uncompressed file keeps its io.ReaderAt for the random access
	// formats.
	if alg == compression.None {
		return &inputFile{Reader: file, file: file}, nil
	}
	codec, err := compression.NewReader(bufio.NewReader(file), alg)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to open input file").WithDetail("path", ep.Path)
	}
	return &inputFile{Reader: codec, file: file, codec: codec}, nil
}

// outputFile is an opened, possibly compressing output. Close flushes the
// layers in order; abort discards them after a failure.
type outputFile struct {
	io.Writer
	path   string
	file   *os.File
	buf    *bufio.Writer
	codec  io.WriteCloser
	closed bool
}

func openOutput(ep config.EndpointConfig, reg *formats.Registry, format string, settings *formats.Settings) (*outputFile, bool, error) {
	alg, err := resolveCompression(ep)
	if err != nil {
		return nil, false, err
	}
	level := compression.Default
	if ep.CompressionLevel != "" {
		if level, err = compression.ParseLevel(ep.CompressionLevel); err != nil {
			return nil, false, err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	appending := false
	if ep.Append {
		if !reg.CheckIfFormatSupportAppend(format, settings) {
			return nil, false, errors.Newf(errors.ErrorTypeCapability, "format %s does not support appending", format).
				WithDetail("path", ep.Path)
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if info, err := os.Stat(ep.Path); err == nil && info.Size() > 0 {
			appending = true
		}
	}

	if dir := filepath.Dir(ep.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").WithDetail("path", ep.Path)
		}
	}
	file, err := os.OpenFile(ep.Path, flags, 0o644) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrorTypeFile, "failed to open output file").WithDetail("path", ep.Path)
	}

	buf := bufio.NewWriterSize(file, writeBufferSize)
	codec, err := compression.NewWriter(buf, &compression.Config{Algorithm: alg, Level: level})
	if err != nil {
		_ = file.Close()
		return nil, false, errors.Wrap(err, errors.TypeOf(err), "failed to open output file").WithDetail("path", ep.Path)
	}
	return &outputFile{Writer: codec, path: ep.Path, file: file, buf: buf, codec: codec}, appending, nil
}

func (f *outputFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.codec.Close(); err != nil {
		_ = f.file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compression").WithDetail("path", f.path)
	}
	if err := f.buf.Flush(); err != nil {
		_ = f.file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output").WithDetail("path", f.path)
	}
	if err := f.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output").WithDetail("path", f.path)
	}
	return nil
}

func (f *outputFile) abort() {
	if f.closed {
		return
	}
	f.closed = true
	_ = f.codec.Close()
	_ = f.buf.Flush()
	_ = f.file.Close()
}

// ReadSchema determines the header of the file at ep and the format it was
// read as
func ReadSchema(ep config.EndpointConfig, reg *formats.Registry, settings *formats.Settings) (*columnar.Schema, string, error) {
	if reg == nil {
		reg = formats.Default()
	}
	name, err := resolveFormat(reg, ep)
	if err != nil {
		return nil, "", err
	}
	if !reg.CheckIfFormatHasSchemaReader(name) {
		return nil, name, errors.Newf(errors.ErrorTypeCapability, "format %s does not support schema inference", name)
	}

	src, err := openInput(ep)
	if err != nil {
		return nil, name, err
	}
	defer src.Close()

	reader, err := reg.NewSchemaReader(name, src.Reader, settings)
	if err != nil {
		return nil, name, err
	}
	schema, err := reader.ReadSchema()
	if err != nil {
		return nil, name, errors.Wrap(err, errors.TypeOf(err), "failed to read schema").WithDetail("path", ep.Path)
	}
	return schema, name, nil
}
