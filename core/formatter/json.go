package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/validation"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/pkg/errors"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatRows formats the record list as JSON.
func (f *JSONFormatter) FormatRows(w io.Writer, p *schema.Profile, rows []listing.Row, opts FormatOptions) error {
	shown := limitRows(rows, opts)
	output := map[string]any{
		"profile": profileName(p),
		"count":   len(rows),
		"rows":    shown,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatForm formats a form as JSON.
func (f *JSONFormatter) FormatForm(w io.Writer, p *schema.Profile, fm *form.Form, opts FormatOptions) error {
	output := map[string]any{
		"profile": profileName(p),
		"fields":  nil,
	}
	if fm != nil {
		output["fields"] = selectFields(fm, opts)
	}
	return f.encode(w, output, opts.Compact)
}

// FormatValidation formats a validation result as JSON.
func (f *JSONFormatter) FormatValidation(w io.Writer, p *schema.Profile, r validation.Result, opts FormatOptions) error {
	output := map[string]any{
		"profile": profileName(p),
		"result":  r,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": errors.GetMessage(err),
		"code":  errors.GetCode(err),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func profileName(p *schema.Profile) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
