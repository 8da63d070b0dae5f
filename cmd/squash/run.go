package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/squash/internal/pipeline"
	"github.com/ajitpratap0/squash/pkg/config"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/logger"
	"github.com/ajitpratap0/squash/pkg/metrics"
	"github.com/ajitpratap0/squash/pkg/observability"
)

// streamFlags describes a single stream given on the command line
type streamFlags struct {
	input, inputFormat, inputCompression                      string
	output, outputFormat, outputCompression, compressionLevel string
	appendOutput                                              bool
}

func (f *streamFlags) stream() (config.StreamConfig, bool) {
	if f.input == "" && f.output == "" {
		return config.StreamConfig{}, false
	}
	return config.StreamConfig{
		Input: config.EndpointConfig{
			Path:        f.input,
			Format:      f.inputFormat,
			Compression: f.inputCompression,
		},
		Output: config.EndpointConfig{
			Path:             f.output,
			Format:           f.outputFormat,
			Compression:      f.outputCompression,
			CompressionLevel: f.compressionLevel,
			Append:           f.appendOutput,
		},
	}, true
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var configFile string
	var sf streamFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Squash one or more files",
		Long: `Run squashes every stream of the configuration file, plus the stream given
by --input and --output.

Example:
  squash run --input events.csv --output events.parquet --min-rows 65536
  squash run --config squash.yaml --parallelism 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSquash(cmd.Context(), v, configFile, &sf, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML or JSON configuration file")
	flags.StringVarP(&sf.input, "input", "i", "", "Input file")
	flags.StringVar(&sf.inputFormat, "input-format", "", "Input format; guessed from the file name when empty")
	flags.StringVar(&sf.inputCompression, "input-compression", "auto", "Input compression")
	flags.StringVarP(&sf.output, "output", "o", "", "Output file")
	flags.StringVar(&sf.outputFormat, "output-format", "", "Output format; guessed from the file name when empty")
	flags.StringVar(&sf.outputCompression, "output-compression", "auto", "Output compression")
	flags.StringVar(&sf.compressionLevel, "compression-level", "", "Output compression level (fastest, default, better, best)")
	flags.BoolVar(&sf.appendOutput, "append", false, "Append to the output file instead of truncating it")

	defaults := config.Default()
	flags.Uint64("min-rows", defaults.Squashing.MinBlockSizeRows, "Emit a block once it holds this many rows; 0 disables")
	flags.Uint64("min-bytes", defaults.Squashing.MinBlockSizeBytes, "Emit a block once it holds this many bytes; 0 disables")
	flags.Int("max-block-rows", defaults.Formats.MaxBlockRows, "Maximum rows per block read from an input")
	flags.Int("parallelism", defaults.Pipeline.Parallelism, "Number of streams processed at once")
	flags.Bool("verify", defaults.Pipeline.Verify, "Check that the rows written equal the rows read")
	flags.Duration("timeout", defaults.Pipeline.Timeout, "Abort the run after this long; 0 means no limit")
	flags.String("log-level", defaults.Observability.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-encoding", defaults.Observability.LogEncoding, "Log encoding (json, console)")
	flags.String("metrics-addr", defaults.Observability.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("tracing", defaults.Observability.EnableTracing, "Export OpenTelemetry spans to stderr")
	flags.Float64("tracing-sample-rate", defaults.Observability.TracingSampleRate, "Fraction of streams traced")

	for key, flag := range map[string]string{
		"squashing.min_block_size_rows":     "min-rows",
		"squashing.min_block_size_bytes":    "min-bytes",
		"formats.max_block_rows":            "max-block-rows",
		"pipeline.parallelism":              "parallelism",
		"pipeline.verify":                   "verify",
		"pipeline.timeout":                  "timeout",
		"observability.log_level":           "log-level",
		"observability.log_encoding":        "log-encoding",
		"observability.metrics_addr":        "metrics-addr",
		"observability.enable_tracing":      "tracing",
		"observability.tracing_sample_rate": "tracing-sample-rate",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runSquash(ctx context.Context, v *viper.Viper, configFile string, sf *streamFlags, stdout io.Writer) error {
	if configFile != "" {
		if err := config.ReadFile(v, configFile); err != nil {
			return err
		}
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	if s, ok := sf.stream(); ok {
		cfg.Streams = append(cfg.Streams, s)
	}
	if len(cfg.Streams) == 0 {
		return errors.New(errors.ErrorTypeConfig, "no streams to run: pass --input and --output or a --config with streams")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
		Encoding:    cfg.Observability.LogEncoding,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "squash-cli"))

	if err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    "squash",
		ServiceVersion: version,
		SamplingRate:   cfg.Observability.TracingSampleRate,
		Writer:         os.Stderr,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := serveMetrics(addr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	results, err := pipeline.Run(ctx, cfg, log)
	printResults(stdout, results)
	if err != nil {
		return err
	}

	rows := 0
	for _, res := range results {
		rows += res.RowsOut
	}
	elapsed := time.Since(start)
	log.Info("run completed",
		zap.Int("streams", len(results)),
		zap.Int("rows", rows),
		zap.Duration("duration", elapsed),
		zap.Float64("rows_per_second", float64(rows)/elapsed.Seconds()))
	return nil
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func printResults(w io.Writer, results []*pipeline.Result) {
	for _, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintf(w, "%s: %d rows, %d blocks in, %d blocks out, %d merges, %s\n",
			res.Stream, res.RowsOut, res.BlocksIn, res.BlocksOut, res.Stats.Merges, res.Duration.Round(time.Millisecond))
	}
}
