// Package form binds records to editable field forms.
//
// ToFields merges a record with its profile template and renders every
// value in the representation of its field kind. FromFields reverses the
// process and Clean reduces the result to the sparse record that is
// stored.
package form

import (
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/flatmap"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Field is one editable field.
type Field struct {
	Name  string        `json:"name"`
	Kind  schema.Kind   `json:"kind"`
	Text  string        `json:"text"`
	Pairs []record.Drop `json:"pairs,omitempty"`

	// source is the structured value behind a text field. It is saved
	// back unchanged while Text still shows it.
	source any
}

// Form is the ordered set of editable fields of one record.
type Form struct {
	Fields []Field `json:"fields"`
}

// Names returns the field names in form order.
func (f *Form) Names() []string {
	names := make([]string, len(f.Fields))
	for i, fd := range f.Fields {
		names[i] = fd.Name
	}
	return names
}

// Field returns the field called name.
func (f *Form) Field(name string) (*Field, bool) {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// Get returns the text of a field.
func (f *Form) Get(name string) (string, bool) {
	fd, ok := f.Field(name)
	if !ok {
		return "", false
	}
	return fd.Text, true
}

// Set replaces the text of a field. Pair list fields are edited through
// AddPair and RemovePair instead.
func (f *Form) Set(name, text string) error {
	fd, ok := f.Field(name)
	if !ok {
		return errors.NotFoundf("no field %q", name)
	}
	if fd.Kind == schema.KindPairList {
		return errors.InvalidArgumentf("field %q is a drop list; use AddPair or RemovePair", name)
	}
	fd.Text = text
	return nil
}

// AddPair appends a drop entry. The item must be non-empty and the rate
// within [record.MinRate, record.MaxRate].
func (f *Form) AddPair(name, item string, rate int) error {
	fd, err := f.pairField(name)
	if err != nil {
		return err
	}
	if item == "" {
		return errors.Validation("item name is required").WithMeta("field", name)
	}
	if rate < record.MinRate || rate > record.MaxRate {
		return errors.Validationf("rate %d is out of range [%d, %d]", rate, record.MinRate, record.MaxRate).
			WithMeta("field", name)
	}
	fd.Pairs = append(fd.Pairs, record.Drop{Item: item, Rate: rate})
	return nil
}

// RemovePair removes the i-th drop entry.
func (f *Form) RemovePair(name string, i int) error {
	fd, err := f.pairField(name)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(fd.Pairs) {
		return errors.NotFoundf("%s has no entry %d", name, i)
	}
	fd.Pairs = append(fd.Pairs[:i], fd.Pairs[i+1:]...)
	return nil
}

func (f *Form) pairField(name string) (*Field, error) {
	fd, ok := f.Field(name)
	if !ok {
		return nil, errors.NotFoundf("no field %q", name)
	}
	if fd.Kind != schema.KindPairList {
		return nil, errors.InvalidArgumentf("field %q is not a drop list", name)
	}
	return fd, nil
}

// ToFields builds the form for rec: template fields first in template
// order, then keys only the record has, in record order. Record values
// win over template defaults.
func ToFields(rec *record.Map, p *schema.Profile) *Form {
	merged := p.Template()
	rec.Range(func(k string, v any) bool {
		merged.Set(k, record.CloneValue(v))
		return true
	})

	form := &Form{Fields: make([]Field, 0, merged.Len())}
	merged.Range(func(k string, v any) bool {
		form.Fields = append(form.Fields, render(k, p.KindOf(k, v), v))
		return true
	})
	return form
}

func render(name string, kind schema.Kind, v any) Field {
	fd := Field{Name: name, Kind: kind}
	switch kind {
	case schema.KindPairList:
		fd.Pairs = record.DropsFrom(v)
		if fd.Pairs == nil {
			fd.Pairs = []record.Drop{}
		}
	case schema.KindFlatMap:
		if m, ok := v.(*record.Map); ok {
			fd.Text = flatmap.Render(m)
		} else {
			fd.Text = record.Text(v)
		}
	default:
		fd.Text = record.Text(v)
		switch v.(type) {
		case *record.Map, []any:
			fd.source = v
		}
	}
	return fd
}
