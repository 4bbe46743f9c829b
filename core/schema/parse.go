package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a profile definition from a YAML file.
func ParseFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a profile definition from YAML bytes.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("validate profile %q: %w", p.Name, err)
	}

	p.buildIndex()
	return &p, nil
}

// ParseDir parses all profile definitions in a directory.
func ParseDir(dir string) ([]*Profile, error) {
	var profiles []*Profile

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		p, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		profiles = append(profiles, p)
	}

	return profiles, nil
}

// Validate validates a profile definition.
func Validate(p *Profile) error {
	var errs []string

	if p.Name == "" {
		errs = append(errs, "profile name is required")
	} else if !isValidIdentifier(p.Name) {
		errs = append(errs, fmt.Sprintf("profile name %q is not a valid identifier", p.Name))
	}

	if p.Type == "" {
		errs = append(errs, "type is required")
	}

	if !strings.Contains(p.NewAegisName, "%d") {
		errs = append(errs, "new_aegis_name must contain %d")
	}

	if len(p.Fields) == 0 {
		errs = append(errs, "fields must have at least one entry")
	}

	seen := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if !isValidIdentifier(f.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("field %q is defined twice", f.Name))
		}
		seen[f.Name] = true

		if err := validateField(f); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateField validates a single field definition.
func validateField(f Field) error {
	if !isValidKind(f.Kind) {
		return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}

	for _, c := range f.Constraints {
		if err := validConstraint(c); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	if f.Default == nil {
		return nil
	}

	// Default must match kind
	switch f.Kind {
	case KindInteger:
		if InferKind(f.Default) != KindInteger {
			return fmt.Errorf("field %q: default must be an integer", f.Name)
		}
	case KindBoolean:
		if _, ok := f.Default.(bool); !ok {
			return fmt.Errorf("field %q: default must be a boolean", f.Name)
		}
	case KindText, KindMultiline:
		if _, ok := f.Default.(string); !ok {
			return fmt.Errorf("field %q: default must be a string", f.Name)
		}
	case KindFlatMap:
		if InferKind(f.Default) != KindFlatMap {
			return fmt.Errorf("field %q: default must be a mapping", f.Name)
		}
	case KindPairList:
		if InferKind(f.Default) != KindPairList {
			return fmt.Errorf("field %q: default must be a sequence", f.Name)
		}
	}
	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
