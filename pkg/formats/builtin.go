package formats

// builtin describes one built-in format
type builtin struct {
	name        string
	input       InputCreator
	output      OutputCreator
	extensions  []string
	contentType string
	appendCheck AppendSupportChecker
	parallel    bool
	subset      bool
}

func builtins() []builtin {
	csvIn, csvOut := newCSVInput(','), newCSVOutput(',')
	tsvIn, tsvOut := newCSVInput('\t'), newCSVOutput('\t')
	noAppend := func(*Settings) bool { return false }

	return []builtin{
		{
			name: CSVWithNames, input: csvIn, output: csvOut,
			extensions: []string{"csv"}, contentType: "text/csv; charset=UTF-8; header=present",
			appendCheck: csvSupportsAppend, parallel: true,
		},
		{
			name: TSVWithNames, input: tsvIn, output: tsvOut,
			extensions: []string{"tsv"}, contentType: "text/tab-separated-values; charset=UTF-8",
			appendCheck: csvSupportsAppend, parallel: true,
		},
		{
			name: JSONEachRow, input: newJSONInput, output: newJSONOutput,
			extensions: []string{"jsonl", "ndjson"}, contentType: "application/x-ndjson; charset=UTF-8",
			parallel: true,
		},
		{
			name: Arrow, input: newArrowFileInput, output: newArrowFileOutput,
			extensions: []string{"arrow", "feather"}, contentType: "application/vnd.apache.arrow.file",
			appendCheck: noAppend,
		},
		{
			name: ArrowStream, input: newArrowStreamInput, output: newArrowStreamOutput,
			extensions: []string{"arrows"}, contentType: "application/vnd.apache.arrow.stream",
			appendCheck: noAppend,
		},
		{
			name: Parquet, input: newParquetInput, output: newParquetOutput,
			extensions: []string{"parquet"}, contentType: "application/vnd.apache.parquet",
			appendCheck: noAppend, subset: true,
		},
		{
			name: Avro, input: newAvroInput, output: newAvroOutput,
			extensions: []string{"avro"}, contentType: "application/avro",
			appendCheck: noAppend,
		},
		{
			name: Native, input: newNativeInput, output: newNativeOutput,
			extensions: []string{"native"}, contentType: "application/octet-stream",
		},
	}
}

// RegisterBuiltins registers every built-in format with r. It panics if a
// built-in name is already taken, which only a programming error can cause.
func RegisterBuiltins(r *Registry) {
	for _, b := range builtins() {
		must(r.RegisterInputFormat(b.name, b.input))
		must(r.RegisterOutputFormat(b.name, b.output))
		must(r.RegisterSchemaReader(b.name, schemaFromInput(b.input)))
		for _, ext := range b.extensions {
			r.RegisterFileExtension(ext, b.name)
		}
		r.RegisterContentType(b.name, b.contentType)
		if b.appendCheck != nil {
			must(r.RegisterAppendSupportChecker(b.name, b.appendCheck))
		}
		if b.parallel {
			must(r.MarkOutputFormatSupportsParallelFormatting(b.name))
		}
		if b.subset {
			must(r.MarkFormatSupportsSubsetOfColumns(b.name))
		}
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
