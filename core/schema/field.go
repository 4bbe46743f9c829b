package schema

import (
	"fmt"
	"strings"

	"github.com/artpar/dbedit/domain/record"
	"gopkg.in/yaml.v3"
)

// Field defines one editable field of a record template.
type Field struct {
	// Name is the record key (e.g., "Id", "Script").
	Name string `yaml:"name"`

	// Kind selects the editor representation and the save coercion.
	Kind Kind `yaml:"kind"`

	// Default is the template value shown when a record omits the field.
	Default any `yaml:"-"`

	// Retain keeps the field in cleaned records even when it is null or empty.
	Retain bool `yaml:"retain,omitempty"`

	// DropIfEmpty removes an empty value even when the profile keeps
	// default-valued fields.
	DropIfEmpty bool `yaml:"drop_if_empty,omitempty"`

	// Constraints are checked by validate.
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// Kind represents the editable kind of a template field.
type Kind string

const (
	KindInteger   Kind = "integer"   // non-negative integer
	KindBoolean   Kind = "boolean"   // true/false
	KindText      Kind = "text"      // single line text, "None" or empty is null
	KindMultiline Kind = "multiline" // script block
	KindFlatMap   Kind = "flatmap"   // one "key: value" pair per line
	KindPairList  Kind = "pairlist"  // {Item, Rate} drop entries
)

// UnmarshalYAML decodes a field definition, keeping the default value's
// mapping order.
func (f *Field) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Name        string       `yaml:"name"`
		Kind        Kind         `yaml:"kind"`
		Default     yaml.Node    `yaml:"default"`
		Retain      bool         `yaml:"retain"`
		DropIfEmpty bool         `yaml:"drop_if_empty"`
		Constraints []Constraint `yaml:"constraints"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}

	var def any
	if raw.Default.Kind != 0 {
		v, err := record.FromNode(&raw.Default)
		if err != nil {
			return fmt.Errorf("field %q default: %w", raw.Name, err)
		}
		def = v
	}

	*f = Field{
		Name:        raw.Name,
		Kind:        raw.Kind,
		Default:     def,
		Retain:      raw.Retain,
		DropIfEmpty: raw.DropIfEmpty,
		Constraints: raw.Constraints,
	}
	return nil
}

// IsBlock reports whether the field is edited as a multi-line block.
func (f Field) IsBlock() bool {
	return f.Kind == KindMultiline || f.Kind == KindFlatMap
}

// SQLType returns the SQLite column type for this field.
func (f Field) SQLType() string {
	switch f.Kind {
	case KindInteger, KindBoolean:
		return "INTEGER"
	default:
		return "TEXT" // flatmap and pairlist are stored as JSON
	}
}

// InferKind derives a kind from a value for keys that no template declares.
// Only a sequence of mappings is a pair list.
func InferKind(v any) Kind {
	switch t := v.(type) {
	case *record.Map:
		return KindFlatMap
	case []any:
		for _, e := range t {
			if _, ok := e.(*record.Map); !ok {
				return KindText
			}
		}
		return KindPairList
	case bool:
		return KindBoolean
	case int, int64, uint64:
		return KindInteger
	case string:
		if strings.Contains(t, "\n") {
			return KindMultiline
		}
	}
	return KindText
}

// isValidKind checks if a kind is valid.
func isValidKind(k Kind) bool {
	switch k {
	case KindInteger, KindBoolean, KindText, KindMultiline, KindFlatMap, KindPairList:
		return true
	default:
		return false
	}
}
