package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/squash/pkg/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("EVENTS_DIR", "/data/events")
	path := writeConfig(t, "squash.yaml", `
squashing:
  min_block_size_rows: 1000
  min_block_size_bytes: 0
streams:
  - name: events
    input:
      path: ${EVENTS_DIR}/in.csv
    output:
      path: ${EVENTS_DIR}/out.parquet
      compression: zstd
pipeline:
  verify: true
  timeout: 90s
formats:
  csv:
    delimiter: ";"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(1000), cfg.Squashing.MinBlockSizeRows)
	assert.Zero(t, cfg.Squashing.MinBlockSizeBytes)
	require.Len(t, cfg.Streams, 1)
	assert.Equal(t, "/data/events/in.csv", cfg.Streams[0].Input.Path)
	assert.Equal(t, "zstd", cfg.Streams[0].Output.Compression)
	assert.True(t, cfg.Pipeline.Verify)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, ";", cfg.Formats.CSV.Delimiter)
	// untouched keys keep their defaults
	assert.True(t, cfg.Formats.CSV.InferTypes)
	assert.Equal(t, "snappy", cfg.Formats.Parquet.Compression)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SQUASH_SQUASHING_MIN_BLOCK_SIZE_ROWS", "42")
	t.Setenv("SQUASH_PIPELINE_PARALLELISM", "3")
	t.Setenv("SQUASH_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Squashing.MinBlockSizeRows)
	assert.Equal(t, 3, cfg.Pipeline.Parallelism)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "squash.json", `{"pipeline": {"parallelism": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Parallelism)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Load(writeConfig(t, "bad.yaml", "squashing: [\n"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Squashing.MinBlockSizeRows = 7
	cfg.Pipeline.Timeout = time.Minute
	cfg.Streams = []StreamConfig{{Input: EndpointConfig{Path: "a.csv"}, Output: EndpointConfig{Path: "b.native"}}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Squashing, loaded.Squashing)
	assert.Equal(t, cfg.Streams, loaded.Streams)
	assert.Equal(t, time.Minute, loaded.Pipeline.Timeout)
}

func TestValidate(t *testing.T) {
	stream := func() StreamConfig {
		return StreamConfig{Input: EndpointConfig{Path: "in.csv"}, Output: EndpointConfig{Path: "out.csv"}}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero parallelism", func(c *Config) { c.Pipeline.Parallelism = 0 }},
		{"negative timeout", func(c *Config) { c.Pipeline.Timeout = -time.Second }},
		{"sample rate", func(c *Config) { c.Observability.TracingSampleRate = 1.5 }},
		{"log encoding", func(c *Config) { c.Observability.LogEncoding = "xml" }},
		{"missing input", func(c *Config) { c.Streams[0].Input.Path = "" }},
		{"missing output", func(c *Config) { c.Streams[0].Output.Path = "" }},
		{"unknown format", func(c *Config) { c.Streams[0].Output.Format = "XML" }},
		{"unknown compression", func(c *Config) { c.Streams[0].Input.Compression = "rar" }},
		{"unknown level", func(c *Config) { c.Streams[0].Output.CompressionLevel = "ultra" }},
		{"duplicate names", func(c *Config) { c.Streams = append(c.Streams, stream()) }},
		{"shared output", func(c *Config) {
			c.Streams = append(c.Streams, StreamConfig{
				Input:  EndpointConfig{Path: "other.csv"},
				Output: EndpointConfig{Path: "./out.csv"},
			})
		}},
		{"output read by another stream", func(c *Config) {
			c.Streams = append(c.Streams, StreamConfig{
				Input:  EndpointConfig{Path: "out.csv"},
				Output: EndpointConfig{Path: "final.parquet"},
			})
		}},
		{"output is own input", func(c *Config) { c.Streams[0].Output.Path = "./in.csv" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Streams = []StreamConfig{stream()}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))
		})
	}
}

func TestValidate_StreamsShareInput(t *testing.T) {
	cfg := Default()
	cfg.Streams = []StreamConfig{
		{Name: "a", Input: EndpointConfig{Path: "in.csv"}, Output: EndpointConfig{Path: "a.parquet"}},
		{Name: "b", Input: EndpointConfig{Path: "in.csv"}, Output: EndpointConfig{Path: "b.arrow"}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestStreamConfig_StreamName(t *testing.T) {
	s := StreamConfig{Input: EndpointConfig{Path: "in.csv"}}
	assert.Equal(t, "in.csv", s.StreamName())
	s.Name = "events"
	assert.Equal(t, "events", s.StreamName())
}
