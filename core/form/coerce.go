package form

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/flatmap"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// NullText is the text that saves as null in single-line fields.
const NullText = "None"

// Options control the save coercion.
type Options struct {
	// StrictNumbers rejects non-digit text in integer fields instead of
	// saving it as 0.
	StrictNumbers bool
}

// FromFields converts a form back into a record. The record is not
// cleaned. Any coercion error aborts the conversion; nothing is returned
// partially built.
func FromFields(f *Form, opts Options) (*record.Map, error) {
	out := record.NewMap()
	for _, fd := range f.Fields {
		v, err := coerce(fd, opts)
		if err != nil {
			return nil, err
		}
		out.Set(fd.Name, v)
	}
	return out, nil
}

// Record converts and cleans a form in one step.
func Record(f *Form, p *schema.Profile, opts Options) (*record.Map, error) {
	rec, err := FromFields(f, opts)
	if err != nil {
		return nil, err
	}
	return Clean(rec, p), nil
}

func coerce(fd Field, opts Options) (any, error) {
	switch fd.Kind {
	case schema.KindPairList:
		return record.DropsValue(fd.Pairs), nil

	case schema.KindFlatMap:
		return flatmap.Parse(strings.TrimSpace(fd.Text)), nil
	}

	if fd.source != nil {
		return structured(fd)
	}

	switch fd.Kind {
	case schema.KindMultiline:
		text := strings.TrimSpace(fd.Text)
		if text == "" {
			return nil, nil
		}
		return text, nil
	}

	text := strings.TrimSpace(fd.Text)
	if text == "" || text == NullText {
		return nil, nil
	}

	switch fd.Kind {
	case schema.KindInteger:
		return Integer(fd.Name, text, opts)
	case schema.KindBoolean:
		return strings.EqualFold(text, "true"), nil
	default:
		return text, nil
	}
}

// structured converts a text field that holds a list or a mapping. Text
// that still shows the value keeps it; edited text is read as YAML flow
// syntax.
func structured(fd Field) (any, error) {
	text := strings.TrimSpace(fd.Text)
	if text == record.Text(fd.source) {
		return record.CloneValue(fd.source), nil
	}

	var n yaml.Node
	if err := yaml.Unmarshal([]byte(text), &n); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, fd.Name+": not a valid value").
			WithMeta("field", fd.Name)
	}
	v, err := record.FromNode(&n)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, fd.Name+": not a valid value").
			WithMeta("field", fd.Name)
	}
	return v, nil
}

// Integer parses the text of an integer field. Digit-only text is parsed;
// anything else is 0, or a validation error with StrictNumbers.
func Integer(name, text string, opts Options) (int, error) {
	if !flatmap.IsDigits(text) {
		if opts.StrictNumbers {
			return 0, errors.Validationf("%s: %q is not a non-negative integer", name, text).
				WithMeta("field", name)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.CodeValidation, name+": number out of range").
			WithMeta("field", name)
	}
	return n, nil
}
