// Package validation checks loaded documents against their profile.
// It reports problems without changing the document, for the validate
// command and for the HTTP API.
package validation

import (
	"fmt"
	"strings"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
)

// Problem codes.
const (
	CodeRequired     = "required"
	CodeType         = "type"
	CodeRange        = "range"
	CodeDuplicate    = "duplicate"
	CodeUnknownField = "unknown_field"
	CodeConstraint   = "constraint"
)

// Problem is one finding in a record.
type Problem struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (p Problem) Error() string {
	return fmt.Sprintf("record %d (Id %s) %s: %s", p.Index, p.ID, p.Field, p.Message)
}

// Result holds the errors and warnings found in a document.
type Result struct {
	Valid    bool      `json:"valid"`
	Records  int       `json:"records"`
	Errors   []Problem `json:"errors,omitempty"`
	Warnings []Problem `json:"warnings,omitempty"`
}

// AddError adds an error and marks the result invalid.
func (r *Result) AddError(p Problem) {
	r.Valid = false
	r.Errors = append(r.Errors, p)
}

// AddWarning adds a warning.
func (r *Result) AddWarning(p Problem) {
	r.Warnings = append(r.Warnings, p)
}

func (r Result) Error() string {
	if r.Valid {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator validates documents of one profile.
type Validator struct {
	profile *schema.Profile
}

// New creates a validator for p.
func New(p *schema.Profile) *Validator {
	return &Validator{profile: p}
}

// ValidateDocument checks every record and the uniqueness of Id and
// AegisName across the document.
func (v *Validator) ValidateDocument(doc *record.Document) Result {
	result := Result{Valid: true, Records: len(doc.Records)}

	ids := make(map[int]int)
	names := make(map[string]int)

	for i, rec := range doc.Records {
		v.validateRecord(&result, i, rec)

		id := idText(rec)
		if n, ok := record.IntValue(value(rec, record.KeyID)); ok {
			if first, dup := ids[n]; dup {
				result.AddError(Problem{Index: i, ID: id, Field: record.KeyID, Code: CodeDuplicate, Value: n,
					Message: fmt.Sprintf("identifier already used by record %d", first)})
			} else {
				ids[n] = i
			}
		}

		if name := strings.ToLower(rec.String(record.KeyAegisName)); name != "" {
			if first, dup := names[name]; dup {
				result.AddError(Problem{Index: i, ID: id, Field: record.KeyAegisName, Code: CodeDuplicate, Value: name,
					Message: fmt.Sprintf("AegisName already used by record %d", first)})
			} else {
				names[name] = i
			}
		}
	}

	return result
}

// ValidateRecord checks a single record.
func (v *Validator) ValidateRecord(index int, rec *record.Map) Result {
	result := Result{Valid: true, Records: 1}
	v.validateRecord(&result, index, rec)
	return result
}

func (v *Validator) validateRecord(result *Result, index int, rec *record.Map) {
	id := idText(rec)

	for _, key := range []string{record.KeyID, record.KeyAegisName} {
		if record.Text(value(rec, key)) == "" {
			result.AddError(Problem{Index: index, ID: id, Field: key, Code: CodeRequired, Message: "field is required"})
		}
	}

	rec.Range(func(key string, val any) bool {
		field, ok := v.profile.Field(key)
		if !ok {
			result.AddWarning(Problem{Index: index, ID: id, Field: key, Code: CodeUnknownField,
				Message: fmt.Sprintf("field '%s' is not part of the %s template", key, v.profile.Name)})
			return true
		}
		if val == nil {
			return true
		}
		v.validateFieldType(result, index, id, field, val)
		// the server may define more constants than the template knows
		for _, e := range field.Check(val) {
			result.AddWarning(Problem{Index: index, ID: id, Field: key, Code: CodeConstraint, Value: e.Value, Message: e.Message})
		}
		return true
	})
}

// validateFieldType validates the value matches the field kind.
func (v *Validator) validateFieldType(result *Result, index int, id string, field schema.Field, val any) {
	problem := func(code string, message string) {
		result.AddError(Problem{Index: index, ID: id, Field: field.Name, Code: code, Value: val, Message: message})
	}

	switch field.Kind {
	case schema.KindInteger:
		n, ok := record.IntValue(val)
		if _, isString := val.(string); !ok || isString {
			problem(CodeType, "must be an integer")
		} else if n < 0 {
			problem(CodeRange, "must not be negative")
		}

	case schema.KindBoolean:
		if _, ok := val.(bool); !ok {
			problem(CodeType, "must be a boolean")
		}

	case schema.KindFlatMap:
		m, ok := val.(*record.Map)
		if !ok {
			problem(CodeType, "must be a mapping")
			return
		}
		m.Range(func(k string, e any) bool {
			if _, nested := e.(*record.Map); nested {
				problem(CodeType, fmt.Sprintf("entry %q must be a scalar", k))
			}
			return true
		})

	case schema.KindPairList:
		seq, ok := val.([]any)
		if !ok {
			problem(CodeType, "must be a list of {Item, Rate} entries")
			return
		}
		for i, e := range seq {
			m, ok := e.(*record.Map)
			if !ok {
				problem(CodeType, fmt.Sprintf("entry %d must be a mapping", i))
				continue
			}
			if record.Text(value(m, "Item")) == "" {
				problem(CodeRequired, fmt.Sprintf("entry %d has no Item", i))
			}
			rate, ok := record.IntValue(value(m, "Rate"))
			if !ok || rate < record.MinRate || rate > record.MaxRate {
				problem(CodeRange, fmt.Sprintf("entry %d rate must be between %d and %d", i, record.MinRate, record.MaxRate))
			}
		}

	case schema.KindText, schema.KindMultiline:
		switch val.(type) {
		case *record.Map, []any:
			problem(CodeType, "must be a scalar")
		}
	}
}

func idText(rec *record.Map) string {
	return record.Text(value(rec, record.KeyID))
}

func value(m *record.Map, key string) any {
	v, _ := m.Get(key)
	return v
}
