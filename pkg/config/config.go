// Package config provides the configuration of a squash run.
//
// A Config groups the squashing thresholds, the streams to process, the
// per-format reader and writer settings, pipeline behavior and
// observability. Load reads it from a YAML or JSON file with ${VAR}
// substitution, then applies SQUASH_ environment overrides:
//
//	SQUASH_SQUASHING_MIN_BLOCK_SIZE_ROWS=65536
//	SQUASH_PIPELINE_PARALLELISM=8
//
// Example usage:
//
//	cfg, err := config.Load("squash.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/ajitpratap0/squash/pkg/compression"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/formats"
)

// Config is the full configuration of a run
type Config struct {
	// Squashing sets the thresholds every stream's engine uses
	Squashing SquashingConfig `yaml:"squashing" json:"squashing" mapstructure:"squashing"`

	// Streams lists the input/output pairs to process
	Streams []StreamConfig `yaml:"streams" json:"streams" mapstructure:"streams"`

	// Formats holds reader and writer settings shared by all streams
	Formats formats.Settings `yaml:"formats" json:"formats" mapstructure:"formats"`

	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" mapstructure:"pipeline"`

	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// SquashingConfig holds the size thresholds. Zero in both disables
// squashing and every block passes through.
type SquashingConfig struct {
	MinBlockSizeRows  uint64 `yaml:"min_block_size_rows" json:"min_block_size_rows" mapstructure:"min_block_size_rows"`
	MinBlockSizeBytes uint64 `yaml:"min_block_size_bytes" json:"min_block_size_bytes" mapstructure:"min_block_size_bytes"`
}

// StreamConfig is one input squashed into one output
type StreamConfig struct {
	// Name labels logs and metrics; defaults to the input path
	Name   string         `yaml:"name" json:"name" mapstructure:"name"`
	Input  EndpointConfig `yaml:"input" json:"input" mapstructure:"input"`
	Output EndpointConfig `yaml:"output" json:"output" mapstructure:"output"`
}

// EndpointConfig locates a file and says how to decode or encode it. Empty
// Format and Compression are guessed from the path.
type EndpointConfig struct {
	Path        string `yaml:"path" json:"path" mapstructure:"path"`
	Format      string `yaml:"format" json:"format" mapstructure:"format"`
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// CompressionLevel is fastest, default, better or best
	CompressionLevel string `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
	// Append adds to an existing output file instead of truncating it
	Append bool `yaml:"append" json:"append" mapstructure:"append"`
}

// PipelineConfig controls how streams run
type PipelineConfig struct {
	// Parallelism is the number of streams run at once
	Parallelism int `yaml:"parallelism" json:"parallelism" mapstructure:"parallelism"`
	// Verify compares a digest of the rows read with the rows written
	Verify bool `yaml:"verify" json:"verify" mapstructure:"verify"`
	// Timeout bounds the whole run; zero means none
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// ObservabilityConfig contains logging, metrics and tracing settings
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing activates OpenTelemetry tracing to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// Default returns a configuration with the usual thresholds and no streams
func Default() *Config {
	return &Config{
		Squashing: SquashingConfig{
			MinBlockSizeRows:  65536,
			MinBlockSizeBytes: 256 << 20,
		},
		Formats: *formats.DefaultSettings(),
		Pipeline: PipelineConfig{
			Parallelism: runtime.NumCPU(),
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks the configuration for correctness. Call it after Load to
// catch errors before any file is opened.
func (c *Config) Validate() error {
	if c.Pipeline.Parallelism <= 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline.parallelism must be positive")
	}
	if c.Pipeline.Timeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline.timeout cannot be negative")
	}
	if c.Formats.MaxBlockRows < 0 {
		return errors.New(errors.ErrorTypeConfig, "formats.max_block_rows cannot be negative")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "observability.tracing_sample_rate must be within [0, 1], got %g", r)
	}
	switch c.Observability.LogEncoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "observability.log_encoding must be json or console, got %q", c.Observability.LogEncoding)
	}

	names := make(map[string]bool, len(c.Streams))
	for i := range c.Streams {
		s := &c.Streams[i]
		if err := s.validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid stream").WithDetail("stream", i)
		}
		if names[s.StreamName()] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate stream name %q", s.StreamName())
		}
		names[s.StreamName()] = true
	}
	return c.validatePaths()
}

// validatePaths rejects streams that would overwrite each other's output or
// truncate a file another stream reads
func (c *Config) validatePaths() error {
	inputs := make(map[string]string, len(c.Streams))
	outputs := make(map[string]string, len(c.Streams))
	for i := range c.Streams {
		s := &c.Streams[i]
		in, err := filepath.Abs(s.Input.Path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid input path").WithDetail("stream", s.StreamName())
		}
		out, err := filepath.Abs(s.Output.Path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output path").WithDetail("stream", s.StreamName())
		}
		if other, ok := outputs[out]; ok {
			return errors.Newf(errors.ErrorTypeConfig, "streams %q and %q write the same output %s", other, s.StreamName(), s.Output.Path)
		}
		outputs[out] = s.StreamName()
		if _, ok := inputs[in]; !ok {
			inputs[in] = s.StreamName()
		}
	}
	for i := range c.Streams {
		out, _ := filepath.Abs(c.Streams[i].Output.Path)
		if reader, ok := inputs[out]; ok {
			return errors.Newf(errors.ErrorTypeConfig, "stream %q writes %s which stream %q reads",
				c.Streams[i].StreamName(), c.Streams[i].Output.Path, reader)
		}
	}
	return nil
}

func (s *StreamConfig) validate() error {
	if s.Input.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "input.path is required")
	}
	if s.Output.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "output.path is required")
	}
	for _, ep := range []EndpointConfig{s.Input, s.Output} {
		if ep.Format != "" {
			if err := formats.Default().CheckFormatName(ep.Format); err != nil {
				return err
			}
		}
		if _, err := compression.ParseAlgorithm(ep.Compression); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
		}
		if ep.CompressionLevel != "" {
			if _, err := compression.ParseLevel(ep.CompressionLevel); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression level")
			}
		}
	}
	return nil
}

// StreamName returns the configured name or the input path
func (s *StreamConfig) StreamName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Input.Path
}
