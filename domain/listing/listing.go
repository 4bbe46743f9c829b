// Package listing derives the sorted, filtered row view of a record list.
//
// Sorting reorders the record slice itself, so storage indices change after
// every sort. Filtering never touches storage: each Row carries the storage
// index of the record it shows, and callers address records by that index.
package listing

import (
	"sort"
	"strings"

	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Key names a sort column.
type Key string

const (
	KeyID   Key = "id"
	KeyName Key = "name"
)

// ParseKey accepts "id" or "name" (any case; "aegisname" is an alias for
// name).
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "id":
		return KeyID, nil
	case "name", "aegisname":
		return KeyName, nil
	default:
		return "", errors.InvalidArgumentf("unknown sort key %q (want id or name)", s)
	}
}

// State is the current sort column and direction.
type State struct {
	Key        Key  `json:"key"`
	Descending bool `json:"descending"`
}

// DefaultState sorts by identifier, ascending.
func DefaultState() State {
	return State{Key: KeyID}
}

// Toggle returns the state after the user picks key: the same key flips the
// direction, a new key starts ascending.
func (s State) Toggle(key Key) State {
	if s.Key == key {
		return State{Key: key, Descending: !s.Descending}
	}
	return State{Key: key}
}

// Apply sorts records in place by s.
func (s State) Apply(records []*record.Map) {
	Sort(records, s.Key, s.Descending)
}

// Indicator returns the column arrow shown next to the active key.
func (s State) Indicator(key Key) string {
	switch {
	case s.Key != key:
		return ""
	case s.Descending:
		return "▲"
	default:
		return "▼"
	}
}

// Sort reorders records in place. The sort is stable in both directions:
// records that compare equal keep their relative order.
func Sort(records []*record.Map, key Key, descending bool) {
	var less func(a, b *record.Map) bool
	switch key {
	case KeyName:
		less = func(a, b *record.Map) bool { return nameKey(a) < nameKey(b) }
	default:
		less = func(a, b *record.Map) bool { return idKey(a) < idKey(b) }
	}

	sort.SliceStable(records, func(i, j int) bool {
		if descending {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

func idKey(r *record.Map) int {
	return r.Int(record.KeyID)
}

func nameKey(r *record.Map) string {
	return strings.ToLower(r.String(record.KeyAegisName))
}

// Row is one line of the projected list.
type Row struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	AegisName string `json:"aegis_name"`
	Name      string `json:"name"`
}

// Matches reports whether r matches the search term: a case-insensitive
// substring of the identifier text or of AegisName. An empty term matches
// everything.
func Matches(r *record.Map, term string) bool {
	term = strings.ToLower(term)
	if term == "" {
		return true
	}
	id, _ := r.Get(record.KeyID)
	if strings.Contains(strings.ToLower(record.Text(id)), term) {
		return true
	}
	return strings.Contains(nameKey(r), term)
}

// Predicate is an additional row filter.
type Predicate func(r *record.Map) (bool, error)

// Project returns the rows of records matching term and every predicate,
// in storage order.
func Project(records []*record.Map, term string, preds ...Predicate) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for i, r := range records {
		if !Matches(r, term) {
			continue
		}
		ok, err := all(r, preds)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, RowOf(i, r))
	}
	return rows, nil
}

// Filter is Project without extra predicates.
func Filter(records []*record.Map, term string) []Row {
	rows, _ := Project(records, term)
	return rows
}

// RowOf builds the row for the record at storage index i.
func RowOf(i int, r *record.Map) Row {
	id, _ := r.Get(record.KeyID)
	name, _ := r.Get(record.KeyName)
	aegis, _ := r.Get(record.KeyAegisName)
	return Row{
		Index:     i,
		ID:        record.Text(id),
		AegisName: record.Text(aegis),
		Name:      record.Text(name),
	}
}

// Contains reports whether rows include storage index i.
func Contains(rows []Row, i int) bool {
	for _, row := range rows {
		if row.Index == i {
			return true
		}
	}
	return false
}

func all(r *record.Map, preds []Predicate) (bool, error) {
	for _, p := range preds {
		ok, err := p(r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
