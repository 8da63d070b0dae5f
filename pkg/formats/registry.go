package formats

import (
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/compression"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/logger"
)

// creators holds everything registered for one format name
type creators struct {
	input              InputCreator
	output             OutputCreator
	schemaReader       SchemaReaderCreator
	appendChecker      AppendSupportChecker
	subsetOfColumns    SubsetOfColumnsSupportChecker
	parallelFormatting bool
	supportsSubcolumns bool
	contentType        string
}

// Info describes a registered format
type Info struct {
	Name                       string
	Input                      bool
	Output                     bool
	SchemaReader               bool
	SupportsParallelFormatting bool
	SupportsSubcolumns         bool
	ContentType                string
	Extensions                 []string
}

// Registry manages format registration and instantiation
type Registry struct {
	formats    map[string]*creators
	extensions map[string]string // lower-case extension without dot -> format
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry holding the built-in formats
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		formats:    make(map[string]*creators),
		extensions: make(map[string]string),
	}
}

func (r *Registry) log() *zap.Logger {
	return logger.Get().With(zap.String("component", "format_registry"))
}

// entry returns the creators for name, creating them. Callers hold mu.
func (r *Registry) entry(name string) *creators {
	c, ok := r.formats[name]
	if !ok {
		c = &creators{}
		r.formats[name] = c
	}
	return c
}

// lookup resolves name, case-insensitively, to its canonical name
func (r *Registry) lookup(name string) (string, *creators, bool) {
	if c, ok := r.formats[name]; ok {
		return name, c, true
	}
	for canonical, c := range r.formats {
		if strings.EqualFold(canonical, name) {
			return canonical, c, true
		}
	}
	return "", nil, false
}

// RegisterInputFormat registers the reader of a format
func (r *Registry) RegisterInputFormat(name string, creator InputCreator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.input != nil {
		return errors.Newf(errors.ErrorTypeConfig, "input format %s is already registered", name)
	}
	c.input = creator
	r.log().Debug("input format registered", zap.String("name", name))
	return nil
}

// RegisterOutputFormat registers the writer of a format
func (r *Registry) RegisterOutputFormat(name string, creator OutputCreator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.output != nil {
		return errors.Newf(errors.ErrorTypeConfig, "output format %s is already registered", name)
	}
	c.output = creator
	r.log().Debug("output format registered", zap.String("name", name))
	return nil
}

// RegisterSchemaReader registers the schema reader of a format
func (r *Registry) RegisterSchemaReader(name string, creator SchemaReaderCreator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.schemaReader != nil {
		return errors.Newf(errors.ErrorTypeConfig, "schema reader for format %s is already registered", name)
	}
	c.schemaReader = creator
	return nil
}

// RegisterFileExtension maps a file extension, with or without the leading
// dot, to a format. Later registrations replace earlier ones.
func (r *Registry) RegisterFileExtension(ext, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = name
}

// RegisterContentType sets the MIME type of a format's output
func (r *Registry) RegisterContentType(name, contentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(name).contentType = contentType
}

// ContentType returns the MIME type of a format's output
func (r *Registry) ContentType(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, c, ok := r.lookup(name)
	if !ok || c.output == nil {
		return "", errors.Newf(errors.ErrorTypeNotFound, "format %s is not suitable for output", name)
	}
	if c.contentType == "" {
		return "text/plain; charset=UTF-8", nil
	}
	return c.contentType, nil
}

// RegisterAppendSupportChecker registers a function deciding whether a format
// can append to an existing file
func (r *Registry) RegisterAppendSupportChecker(name string, checker AppendSupportChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.appendChecker != nil {
		return errors.Newf(errors.ErrorTypeConfig, "append support checker for format %s is already registered", name)
	}
	c.appendChecker = checker
	return nil
}

// MarkFormatHasNoAppendSupport records that a format can never append
func (r *Registry) MarkFormatHasNoAppendSupport(name string) error {
	return r.RegisterAppendSupportChecker(name, func(*Settings) bool { return false })
}

// CheckIfFormatSupportAppend reports whether a format can append to an
// existing file. Formats without a checker can.
func (r *Registry) CheckIfFormatSupportAppend(name string, settings *Settings) bool {
	r.mu.RLock()
	_, c, ok := r.lookup(name)
	r.mu.RUnlock()

	if !ok || c.appendChecker == nil {
		return true
	}
	return c.appendChecker(orDefault(settings))
}

// MarkOutputFormatSupportsParallelFormatting records that a format's writer
// can format blocks independently
func (r *Registry) MarkOutputFormatSupportsParallelFormatting(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.parallelFormatting {
		return errors.Newf(errors.ErrorTypeConfig, "output format %s is already marked as supporting parallel formatting", name)
	}
	c.parallelFormatting = true
	return nil
}

// MarkFormatSupportsSubcolumns records that a format can read nested
// subcolumns
func (r *Registry) MarkFormatSupportsSubcolumns(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.supportsSubcolumns {
		return errors.Newf(errors.ErrorTypeConfig, "format %s is already marked as supporting subcolumns", name)
	}
	c.supportsSubcolumns = true
	return nil
}

// CheckIfFormatSupportsSubcolumns reports whether a format can read nested
// subcolumns
func (r *Registry) CheckIfFormatSupportsSubcolumns(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, c, ok := r.lookup(name)
	return ok && c.supportsSubcolumns
}

// RegisterSubsetOfColumnsSupportChecker registers a function deciding
// whether a reader can skip columns
func (r *Registry) RegisterSubsetOfColumnsSupportChecker(name string, checker SubsetOfColumnsSupportChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.entry(name)
	if c.subsetOfColumns != nil {
		return errors.Newf(errors.ErrorTypeConfig, "subset of columns support checker for format %s is already registered", name)
	}
	c.subsetOfColumns = checker
	return nil
}

// MarkFormatSupportsSubsetOfColumns records that a reader can always skip
// columns
func (r *Registry) MarkFormatSupportsSubsetOfColumns(name string) error {
	return r.RegisterSubsetOfColumnsSupportChecker(name, func(*Settings) bool { return true })
}

// CheckIfFormatSupportsSubsetOfColumns reports whether a reader can skip
// columns. Formats without a checker cannot.
func (r *Registry) CheckIfFormatSupportsSubsetOfColumns(name string, settings *Settings) bool {
	r.mu.RLock()
	_, c, ok := r.lookup(name)
	r.mu.RUnlock()
	return ok && c.subsetOfColumns != nil && c.subsetOfColumns(orDefault(settings))
}

// CheckIfFormatHasSchemaReader reports whether a format can determine a
// file's header
func (r *Registry) CheckIfFormatHasSchemaReader(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, c, ok := r.lookup(name)
	return ok && c.schemaReader != nil
}

// FormatFromFileName guesses a format from a file name. A trailing
// compression extension is ignored, so "data.csv.gz" is CSVWithNames. An
// unknown extension yields "" unless mustExist is set.
func (r *Registry) FormatFromFileName(path string, mustExist bool) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(compression.StripExtension(path)), "."))

	r.mu.RLock()
	name, ok := r.extensions[ext]
	r.mu.RUnlock()

	if !ok {
		if mustExist {
			return "", errors.Newf(errors.ErrorTypeNotFound, "cannot determine the file format by its extension %q", filepath.Base(path)).
				WithDetail("path", path)
		}
		return "", nil
	}
	return name, nil
}

// IsInputFormat reports whether name has a registered reader
func (r *Registry) IsInputFormat(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, c, ok := r.lookup(name)
	return ok && c.input != nil
}

// IsOutputFormat reports whether name has a registered writer
func (r *Registry) IsOutputFormat(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, c, ok := r.lookup(name)
	return ok && c.output != nil
}

// CheckFormatName returns a not-found error for unknown formats
func (r *Registry) CheckFormatName(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, _, ok := r.lookup(name); !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "unknown format %s", name)
	}
	return nil
}

// Formats lists every registered format, sorted by name
func (r *Registry) Formats() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byFormat := make(map[string][]string)
	for ext, name := range r.extensions {
		byFormat[name] = append(byFormat[name], "."+ext)
	}

	infos := make([]Info, 0, len(r.formats))
	for name, c := range r.formats {
		exts := byFormat[name]
		sort.Strings(exts)
		infos = append(infos, Info{
			Name:                       name,
			Input:                      c.input != nil,
			Output:                     c.output != nil,
			SchemaReader:               c.schemaReader != nil,
			SupportsParallelFormatting: c.parallelFormatting,
			SupportsSubcolumns:         c.supportsSubcolumns,
			ContentType:                c.contentType,
			Extensions:                 exts,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// NewInput creates a reader for the named format over rd
func (r *Registry) NewInput(name string, rd io.Reader, settings *Settings) (InputFormat, error) {
	r.mu.RLock()
	canonical, c, ok := r.lookup(name)
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown format %s", name)
	}
	if c.input == nil {
		return nil, errors.Newf(errors.ErrorTypeCapability, "format %s is not suitable for input", canonical)
	}

	in, err := c.input(rd, orDefault(settings))
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to create input format "+canonical)
	}
	return in, nil
}

// NewOutput creates a writer for the named format to w
func (r *Registry) NewOutput(name string, w io.Writer, header *columnar.Schema, settings *Settings) (OutputFormat, error) {
	r.mu.RLock()
	canonical, c, ok := r.lookup(name)
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown format %s", name)
	}
	if c.output == nil {
		return nil, errors.Newf(errors.ErrorTypeCapability, "format %s is not suitable for output", canonical)
	}

	out, err := c.output(w, header, orDefault(settings))
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to create output format "+canonical)
	}
	return out, nil
}

// NewSchemaReader creates a schema reader for the named format over rd
func (r *Registry) NewSchemaReader(name string, rd io.Reader, settings *Settings) (SchemaReader, error) {
	r.mu.RLock()
	canonical, c, ok := r.lookup(name)
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown format %s", name)
	}
	if c.schemaReader == nil {
		return nil, errors.Newf(errors.ErrorTypeCapability, "format %s does not support schema inference", canonical)
	}
	return c.schemaReader(rd, orDefault(settings))
}
