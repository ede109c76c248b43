// Package extract derives a SourceDescriptor from the raw text of one source
// file. Two engines are available: a line-based regex classifier and a
// tree-sitter classifier. Both are pure functions of their input.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"testgen/internal/logging"
	"testgen/internal/types"
)

// Extractor turns source text into a descriptor.
type Extractor interface {
	// Name is the engine identifier used in configuration ("regex", "treesitter").
	Name() string

	// SupportedExtensions returns the file extensions this extractor handles,
	// including the leading dot.
	SupportedExtensions() []string

	// Extract derives the descriptor. A source without a public type yields a
	// descriptor with an empty TypeName and no error.
	Extract(ctx context.Context, source []byte) (*types.SourceDescriptor, error)
}

// markers maps each role to the annotation names that signal it.
var markers = []struct {
	role  types.Role
	names []string
}{
	{types.RoleController, []string{"Controller", "RestController"}},
	{types.RoleService, []string{"Service"}},
	{types.RoleRepository, []string{"Repository"}},
	{types.RoleEntity, []string{"Entity", "Table"}},
}

// RoleForAnnotation returns the role signalled by an annotation name.
// Qualified names are matched on their last segment.
func RoleForAnnotation(name string) (types.Role, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for _, m := range markers {
		for _, n := range m.names {
			if n == name {
				return m.role, true
			}
		}
	}
	return 0, false
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory routes extraction requests to the extractor registered for a
// file's extension.
type Factory struct {
	mu         sync.RWMutex
	extractors map[string]Extractor // extension -> extractor
}

// NewFactory creates a factory with the named engine registered.
func NewFactory(engine string) (*Factory, error) {
	f := &Factory{extractors: make(map[string]Extractor)}

	switch strings.ToLower(engine) {
	case "", "regex":
		f.Register(NewRegexExtractor())
	case "treesitter", "tree-sitter":
		f.Register(NewTreeSitterExtractor())
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownEngine, engine)
	}

	logging.Extract("engine %s registered for %v", engine, f.SupportedExtensions())
	return f, nil
}

// Register adds an extractor for its supported extensions, replacing any
// previous registration.
func (f *Factory) Register(e Extractor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ext := range e.SupportedExtensions() {
		f.extractors[normalizeExtension(ext)] = e
	}
}

// Get returns the extractor for a path, or nil.
func (f *Factory) Get(path string) Extractor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.extractors[normalizeExtension(filepath.Ext(path))]
}

// Extract runs the extractor registered for path over source.
func (f *Factory) Extract(ctx context.Context, path string, source []byte) (*types.SourceDescriptor, error) {
	e := f.Get(path)
	if e == nil {
		return nil, fmt.Errorf("no extractor registered for extension: %s", filepath.Ext(path))
	}
	d, err := e.Extract(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return d, nil
}

// SupportedExtensions returns all registered extensions, sorted.
func (f *Factory) SupportedExtensions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	exts := make([]string, 0, len(f.extractors))
	for ext := range f.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// normalizeExtension ensures extensions are lowercase with leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
