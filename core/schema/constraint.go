package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/artpar/dbedit/domain/record"
)

// Constraint is a value rule declared on a template field, checked by
// validate. A record that breaks one is still loaded and saved.
type Constraint struct {
	// Type is the rule: min, max, max_length, pattern or one_of.
	Type ConstraintType `yaml:"type" json:"type"`

	// Value is the rule parameter: a bound, a length, a regular
	// expression or a list of accepted values.
	Value any `yaml:"value" json:"value"`

	// Message replaces the generated message.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// ConstraintType identifies a constraint rule.
type ConstraintType string

const (
	ConstraintMin       ConstraintType = "min"        // integer lower bound
	ConstraintMax       ConstraintType = "max"        // integer upper bound
	ConstraintMaxLength ConstraintType = "max_length" // text length in bytes
	ConstraintPattern   ConstraintType = "pattern"    // regular expression on text
	ConstraintOneOf     ConstraintType = "one_of"     // accepted constant names
)

// ConstraintError describes a broken constraint.
type ConstraintError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Check validates value against every constraint of the field. Values
// of the wrong kind are left to the type checks and pass here.
func (f Field) Check(value any) []ConstraintError {
	var errs []ConstraintError
	for _, c := range f.Constraints {
		if e := ValidateConstraint(f.Name, value, c); e != nil {
			errs = append(errs, *e)
		}
	}
	return errs
}

// ValidateConstraint validates a value against a single constraint.
func ValidateConstraint(fieldName string, value any, c Constraint) *ConstraintError {
	var msg string
	switch c.Type {
	case ConstraintMin:
		bound, ok1 := record.IntValue(c.Value)
		n, ok2 := integer(value)
		if ok1 && ok2 && n < bound {
			msg = fmt.Sprintf("must be at least %d", bound)
		}
	case ConstraintMax:
		bound, ok1 := record.IntValue(c.Value)
		n, ok2 := integer(value)
		if ok1 && ok2 && n > bound {
			msg = fmt.Sprintf("must be at most %d", bound)
		}
	case ConstraintMaxLength:
		limit, ok1 := record.IntValue(c.Value)
		s, ok2 := value.(string)
		if ok1 && ok2 && len(s) > limit {
			msg = fmt.Sprintf("must be at most %d characters", limit)
		}
	case ConstraintPattern:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		re, err := compilePattern(c.Value)
		if err != nil {
			return &ConstraintError{Field: fieldName, Constraint: string(c.Type), Value: c.Value, Message: err.Error()}
		}
		if !re.MatchString(s) {
			msg = fmt.Sprintf("does not match %s", re)
		}
	case ConstraintOneOf:
		msg = checkOneOf(value, c.Value)
	}

	if msg == "" {
		return nil
	}
	if c.Message != "" {
		msg = c.Message
	}
	return &ConstraintError{Field: fieldName, Constraint: string(c.Type), Value: value, Message: msg}
}

// integer accepts integers only; digit strings are text in a record.
func integer(v any) (int, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return record.IntValue(v)
}

func checkOneOf(value, allowed any) string {
	list, ok := allowed.([]any)
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}

	options := make([]string, len(list))
	for i, a := range list {
		options[i] = record.Text(a)
		// rAthena matches constant names case-insensitively
		if strings.EqualFold(options[i], s) {
			return ""
		}
	}
	return "must be one of: " + strings.Join(options, ", ")
}

var patterns sync.Map // pattern string -> *regexp.Regexp

func compilePattern(v any) (*regexp.Regexp, error) {
	pattern, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("pattern must be a string, got %T", v)
	}
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patterns.Store(pattern, re)
	return re, nil
}

// validConstraint reports whether c can be checked.
func validConstraint(c Constraint) error {
	switch c.Type {
	case ConstraintMin, ConstraintMax, ConstraintMaxLength:
		if _, ok := record.IntValue(c.Value); !ok {
			return fmt.Errorf("%s needs an integer value", c.Type)
		}
	case ConstraintPattern:
		if _, err := compilePattern(c.Value); err != nil {
			return err
		}
	case ConstraintOneOf:
		if _, ok := c.Value.([]any); !ok {
			return fmt.Errorf("one_of needs a list value")
		}
	default:
		return fmt.Errorf("unknown constraint type %q", c.Type)
	}
	return nil
}
