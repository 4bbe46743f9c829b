// Package formatter renders editor output (record lists, record forms and
// validation results) as table, json or yaml.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/validation"
	"github.com/artpar/dbedit/domain/listing"
)

// Formatter converts editor data to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// FormatRows formats the projected record list.
	FormatRows(w io.Writer, p *schema.Profile, rows []listing.Row, opts FormatOptions) error

	// FormatForm formats the editable fields of one record.
	FormatForm(w io.Writer, p *schema.Profile, f *form.Form, opts FormatOptions) error

	// FormatValidation formats a document validation result.
	FormatValidation(w io.Writer, p *schema.Profile, r validation.Result, opts FormatOptions) error

	// FormatError formats an error.
	FormatError(w io.Writer, err error) error
}

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// Fields limits a form to the named fields (nil = all).
	Fields []string

	// NoHeader disables header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (for json).
	Compact bool

	// MaxWidth truncates long values (0 = no limit).
	MaxWidth int

	// Limit caps the number of rows (0 = no limit).
	Limit int
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatters[r.defaultFmt]
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Default returns the default formatter from the default registry.
func Default() Formatter {
	return DefaultRegistry.Default()
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// limitRows applies opts.Limit.
func limitRows(rows []listing.Row, opts FormatOptions) []listing.Row {
	if opts.Limit > 0 && len(rows) > opts.Limit {
		return rows[:opts.Limit]
	}
	return rows
}

// selectFields applies opts.Fields, keeping form order.
func selectFields(f *form.Form, opts FormatOptions) []form.Field {
	if len(opts.Fields) == 0 {
		return f.Fields
	}
	want := make(map[string]bool, len(opts.Fields))
	for _, name := range opts.Fields {
		want[name] = true
	}
	var out []form.Field
	for _, fd := range f.Fields {
		if want[fd.Name] {
			out = append(out, fd)
		}
	}
	return out
}
