package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/squash/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. SQUASH_PIPELINE_VERIFY
const EnvPrefix = "SQUASH"

// NewViper returns a viper instance holding the defaults and bound to the
// SQUASH_ environment. The CLI binds its flags to the same instance.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every scalar key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("squashing.min_block_size_rows", cfg.Squashing.MinBlockSizeRows)
	v.SetDefault("squashing.min_block_size_bytes", cfg.Squashing.MinBlockSizeBytes)

	v.SetDefault("formats.max_block_rows", cfg.Formats.MaxBlockRows)
	v.SetDefault("formats.csv.delimiter", cfg.Formats.CSV.Delimiter)
	v.SetDefault("formats.csv.infer_types", cfg.Formats.CSV.InferTypes)
	v.SetDefault("formats.csv.infer_sample_rows", cfg.Formats.CSV.InferSampleRows)
	v.SetDefault("formats.csv.allow_append", cfg.Formats.CSV.AllowAppend)
	v.SetDefault("formats.csv.omit_header", cfg.Formats.CSV.OmitHeader)
	v.SetDefault("formats.json.infer_sample_rows", cfg.Formats.JSON.InferSampleRows)
	v.SetDefault("formats.parquet.compression", cfg.Formats.Parquet.Compression)
	v.SetDefault("formats.parquet.row_group_rows", cfg.Formats.Parquet.RowGroupRows)
	v.SetDefault("formats.arrow.compression", cfg.Formats.Arrow.Compression)
	v.SetDefault("formats.avro.codec", cfg.Formats.Avro.Codec)

	v.SetDefault("pipeline.parallelism", cfg.Pipeline.Parallelism)
	v.SetDefault("pipeline.verify", cfg.Pipeline.Verify)
	v.SetDefault("pipeline.timeout", cfg.Pipeline.Timeout)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_encoding", cfg.Observability.LogEncoding)
	v.SetDefault("observability.development", cfg.Observability.Development)
	v.SetDefault("observability.metrics_addr", cfg.Observability.MetricsAddr)
	v.SetDefault("observability.enable_tracing", cfg.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// ReadFile merges a YAML or JSON file into v after substituting ${VAR}
// references from the environment
func ReadFile(v *viper.Viper, filePath string) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	configType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if configType == "yml" || configType == "" {
		configType = "yaml"
	}
	v.SetConfigType(configType)

	content := substituteEnvVars(string(data))
	if err := v.MergeConfig(bytes.NewReader([]byte(content))); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", filePath)
	}
	return nil
}

// Decode unmarshals v into a Config
func Decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to unmarshal config")
	}
	return cfg, nil
}

// Load reads a configuration file and applies environment overrides. An
// empty path yields the defaults with environment overrides.
func Load(filePath string) (*Config, error) {
	v := NewViper()
	if filePath != "" {
		if err := ReadFile(v, filePath); err != nil {
			return nil, err
		}
	}
	return Decode(v)
}

// Save writes a configuration to a YAML file
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file")
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var sb strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		sb.WriteString(content[:start])
		sb.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	sb.WriteString(content)
	return sb.String()
}
