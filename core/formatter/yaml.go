package formatter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/validation"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

type yamlRow struct {
	Index     int    `yaml:"index"`
	ID        string `yaml:"id"`
	AegisName string `yaml:"aegis_name"`
	Name      string `yaml:"name"`
}

// FormatRows formats the record list as YAML.
func (f *YAMLFormatter) FormatRows(w io.Writer, p *schema.Profile, rows []listing.Row, opts FormatOptions) error {
	shown := limitRows(rows, opts)
	out := make([]yamlRow, len(shown))
	for i, r := range shown {
		out[i] = yamlRow(r)
	}

	output := map[string]any{
		"profile": profileName(p),
		"count":   len(rows),
		"rows":    out,
	}
	return f.encode(w, output)
}

// FormatForm formats a form as a YAML mapping in field order: block fields
// become literal blocks, drop tables become Item/Rate sequences.
func (f *YAMLFormatter) FormatForm(w io.Writer, p *schema.Profile, fm *form.Form, opts FormatOptions) error {
	if fm == nil {
		return f.encode(w, map[string]any{"profile": profileName(p), "fields": nil})
	}

	m := record.NewMap()
	for _, fd := range selectFields(fm, opts) {
		if fd.Kind == schema.KindPairList {
			m.Set(fd.Name, record.DropsValue(fd.Pairs))
			continue
		}
		m.Set(fd.Name, fd.Text)
	}

	node, err := record.ToNode(m)
	if err != nil {
		return err
	}
	return f.encode(w, node)
}

// FormatValidation formats a validation result as YAML.
func (f *YAMLFormatter) FormatValidation(w io.Writer, p *schema.Profile, r validation.Result, opts FormatOptions) error {
	output := map[string]any{
		"profile":  profileName(p),
		"valid":    r.Valid,
		"records":  r.Records,
		"errors":   problems(r.Errors),
		"warnings": problems(r.Warnings),
	}
	return f.encode(w, output)
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": errors.GetMessage(err),
		"code":  errors.GetCode(err).String(),
	}
	return f.encode(w, output)
}

// encode writes YAML to the writer.
func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func problems(ps []validation.Problem) []map[string]any {
	out := make([]map[string]any, len(ps))
	for i, p := range ps {
		out[i] = map[string]any{
			"index":   p.Index,
			"id":      p.ID,
			"field":   p.Field,
			"code":    p.Code,
			"message": p.Message,
		}
	}
	return out
}

func init() {
	if err := Register(NewYAMLFormatter()); err != nil {
		fmt.Printf("failed to register yaml formatter: %v\n", err)
	}
}
