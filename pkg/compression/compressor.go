// Package compression wraps input and output files in a compression codec.
//
// Format and compression are independent: any format can be read from or
// written to a compressed file, and the codec is usually chosen from the
// file name's trailing extension.
//
//	alg := compression.AlgorithmFromFileName("events.jsonl.zst") // Zstd
//	w, err := compression.NewWriter(file, &compression.Config{Algorithm: alg})
//	...
//	err = w.Close() // flushes the codec, does not close file
//
// # Algorithm Selection
//
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip: Wide compatibility, good compression
//   - Deflate: Standard algorithm, wide support
package compression

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/squash/pkg/errors"
)

// Algorithm represents a compression algorithm.
// Each algorithm has different trade-offs between speed and compression ratio.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "default"
	}
}

// ParseLevel maps a level name to a Level. The empty string is Default.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "fastest":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	}
	return Default, errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", name)
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
}

// DefaultConfig returns an uncompressed configuration
func DefaultConfig() *Config {
	return &Config{
		Algorithm: None,
		Level:     Default,
	}
}

// extensions lists the file suffix of every algorithm
var extensions = []struct {
	ext string
	alg Algorithm
}{
	{".gz", Gzip},
	{".gzip", Gzip},
	{".zst", Zstd},
	{".zstd", Zstd},
	{".sz", Snappy},
	{".snappy", Snappy},
	{".s2", S2},
	{".lz4", LZ4},
	{".deflate", Deflate},
}

// ParseAlgorithm validates an algorithm name. "auto" and the empty string
// map to None; callers resolve those from the file name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(name)); alg {
	case "", "auto":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2, Deflate:
		return alg, nil
	}
	return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", name)
}

// AlgorithmFromFileName returns the algorithm implied by the file's final
// extension, or None
func AlgorithmFromFileName(path string) Algorithm {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if e.ext == ext {
			return e.alg
		}
	}
	return None
}

// StripExtension removes a trailing compression extension from path
func StripExtension(path string) string {
	if AlgorithmFromFileName(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Extension returns the canonical file suffix for an algorithm
func Extension(alg Algorithm) string {
	for _, e := range extensions {
		if e.alg == alg {
			return e.ext
		}
	}
	return ""
}

// NewWriter wraps w in a compressing writer. Closing the returned writer
// flushes the codec but does not close w.
func NewWriter(w io.Writer, config *Config) (io.WriteCloser, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, mapGzipLevel(config.Level))
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(config.Level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to configure lz4 writer")
		}
		return lw, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(config.Level)))
	case S2:
		return s2.NewWriter(w, s2Options(config.Level)...), nil
	case Deflate:
		return flate.NewWriter(w, mapDeflateLevel(config.Level))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", config.Algorithm)
	}
}

// NewReader wraps r in a decompressing reader. Closing the returned reader
// releases codec resources but does not close r.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "invalid gzip stream")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "invalid zstd stream")
		}
		return zstdReadCloser{dec}, nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func s2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

// String implements fmt.Stringer
func (a Algorithm) String() string {
	if a == "" {
		return string(None)
	}
	return string(a)
}
