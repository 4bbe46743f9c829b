// Package flatmap parses and renders the "key: value" line blocks used to
// edit nested flag mappings such as Jobs, Classes or Modes.
//
// Grammar, one entry per line:
//
//	line  := key ':' value
//	value := bool | int | string
//
// The line is split on its first colon and both sides are trimmed. A value
// of true or false (any case) is a bool, a value made only of ASCII digits
// is an int, anything else stays a string. Blank lines, lines without a
// colon and lines with an empty key are skipped.
// This package has NO dependencies on I/O.
package flatmap

import (
	"strconv"
	"strings"

	"github.com/artpar/dbedit/domain/record"
)

// Skipped describes a line that Parse ignored.
type Skipped struct {
	Line   int // 1-based
	Text   string
	Reason string
}

// Reasons a line is skipped.
const (
	ReasonNoColon  = "no_colon"
	ReasonEmptyKey = "empty_key"
)

// Parse converts a text block into an ordered mapping. Later duplicates of
// a key overwrite the earlier value but keep its position.
func Parse(text string) *record.Map {
	m, _ := ParseVerbose(text)
	return m
}

// ParseVerbose is Parse that also reports the skipped lines.
func ParseVerbose(text string) (*record.Map, []Skipped) {
	m := record.NewMap()
	var skipped []Skipped

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			skipped = append(skipped, Skipped{Line: i + 1, Text: line, Reason: ReasonNoColon})
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			skipped = append(skipped, Skipped{Line: i + 1, Text: line, Reason: ReasonEmptyKey})
			continue
		}

		m.Set(key, ParseValue(strings.TrimSpace(value)))
	}

	return m, skipped
}

// ParseValue coerces one trimmed value.
func ParseValue(v string) any {
	switch {
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	case IsDigits(v):
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return v
}

// Render writes m as one "key: value" line per entry in mapping order.
func Render(m *record.Map) string {
	if m.Len() == 0 {
		return ""
	}
	lines := make([]string, 0, m.Len())
	m.Range(func(k string, v any) bool {
		lines = append(lines, k+": "+record.Text(v))
		return true
	})
	return strings.Join(lines, "\n")
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
