package formats

// Settings configures readers and writers. Each format reads only its own
// section.
type Settings struct {
	// MaxBlockRows caps the rows per block a reader emits
	MaxBlockRows int `yaml:"max_block_rows" json:"max_block_rows" mapstructure:"max_block_rows"`

	CSV     CSVSettings     `yaml:"csv" json:"csv" mapstructure:"csv"`
	JSON    JSONSettings    `yaml:"json" json:"json" mapstructure:"json"`
	Parquet ParquetSettings `yaml:"parquet" json:"parquet" mapstructure:"parquet"`
	Arrow   ArrowSettings   `yaml:"arrow" json:"arrow" mapstructure:"arrow"`
	Avro    AvroSettings    `yaml:"avro" json:"avro" mapstructure:"avro"`
}

// CSVSettings configures CSVWithNames and TSVWithNames
type CSVSettings struct {
	// Delimiter overrides the format's default separator when set
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// InferTypes types columns from the first InferSampleRows rows;
	// otherwise every column is a String
	InferTypes      bool `yaml:"infer_types" json:"infer_types" mapstructure:"infer_types"`
	InferSampleRows int  `yaml:"infer_sample_rows" json:"infer_sample_rows" mapstructure:"infer_sample_rows"`
	// AllowAppend permits appending to an existing file, which then
	// receives no second header row
	AllowAppend bool `yaml:"allow_append" json:"allow_append" mapstructure:"allow_append"`
	// OmitHeader suppresses the header row on output
	OmitHeader bool `yaml:"omit_header" json:"omit_header" mapstructure:"omit_header"`
}

// JSONSettings configures JSONEachRow
type JSONSettings struct {
	InferSampleRows int `yaml:"infer_sample_rows" json:"infer_sample_rows" mapstructure:"infer_sample_rows"`
}

// ParquetSettings configures the Parquet writer
type ParquetSettings struct {
	Compression  string `yaml:"compression" json:"compression" mapstructure:"compression"`
	RowGroupRows int64  `yaml:"row_group_rows" json:"row_group_rows" mapstructure:"row_group_rows"`
	// Columns restricts reading to the named columns; empty reads all
	Columns []string `yaml:"columns" json:"columns" mapstructure:"columns"`
}

// ArrowSettings configures the Arrow writers
type ArrowSettings struct {
	// Compression is "", "lz4" or "zstd" (IPC body compression)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
}

// AvroSettings configures the Avro writer
type AvroSettings struct {
	// Codec is "null", "deflate", "snappy" or "zstandard"
	Codec string `yaml:"codec" json:"codec" mapstructure:"codec"`
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() *Settings {
	return &Settings{
		MaxBlockRows: 65536,
		CSV: CSVSettings{
			InferTypes:      true,
			InferSampleRows: 100,
		},
		JSON: JSONSettings{
			InferSampleRows: 100,
		},
		Parquet: ParquetSettings{
			Compression:  "snappy",
			RowGroupRows: 1 << 20,
		},
		Avro: AvroSettings{
			Codec: "null",
		},
	}
}

func (s *Settings) maxBlockRows() int {
	if s == nil || s.MaxBlockRows <= 0 {
		return DefaultSettings().MaxBlockRows
	}
	return s.MaxBlockRows
}

func orDefault(s *Settings) *Settings {
	if s == nil {
		return DefaultSettings()
	}
	return s
}
