// Package record provides the value types of a database document: an
// insertion-ordered mapping used for records, headers and nested blocks,
// and the document that holds them.
// This package has NO dependencies on I/O.
package record

import (
	"strconv"
	"strings"
)

// Well-known record keys shared by every profile.
const (
	KeyID        = "Id"
	KeyAegisName = "AegisName"
	KeyName      = "Name"
)

// Map is a string-keyed mapping that remembers insertion order.
// The zero value is not usable; create maps with NewMap.
// Values are int, bool, string, float64, nil, *Map or []any.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// MapOf builds a map from alternating key, value arguments.
// It panics on an odd argument count or a non-string key.
func MapOf(kv ...any) *Map {
	if len(kv)%2 != 0 {
		panic("record.MapOf: odd argument count")
	}
	m := NewMap()
	for i := 0; i < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (m *Map) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]any, len(m.values)),
	}
	copy(out.keys, m.keys)
	for k, v := range m.values {
		out.values[k] = CloneValue(v)
	}
	return out
}

// String returns the value under key as text, or "" when absent or not a
// string.
func (m *Map) String(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// Int returns the value under key as an integer. Absent, null and
// non-numeric values yield 0.
func (m *Map) Int(key string) int {
	v, _ := m.Get(key)
	n, _ := IntValue(v)
	return n
}

// CloneValue deep-copies nested maps and sequences.
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// IntValue converts integer-like values. Digit-only strings are accepted.
func IntValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Equal compares two record values. Numbers compare by value and nested
// maps compare without regard to key order.
func Equal(a, b any) bool {
	if ai, ok := a.(*Map); ok {
		bi, ok := b.(*Map)
		if !ok || ai.Len() != bi.Len() {
			return false
		}
		for _, k := range ai.keys {
			bv, ok := bi.Get(k)
			if !ok || !Equal(ai.values[k], bv) {
				return false
			}
		}
		return true
	}
	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if isNumber(a) && isNumber(b) {
		an, aok := IntValue(a)
		bn, bok := IntValue(b)
		if aok && bok {
			return an == bn
		}
	}
	return a == b
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, uint64, float64:
		return true
	}
	return false
}

// IsEmpty reports whether v is null, an empty map or an empty sequence.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *Map:
		return t.Len() == 0
	case []any:
		return len(t) == 0
	}
	return false
}
