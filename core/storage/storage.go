// Package storage exports database documents to SQLite tables.
// It derives one table per profile from the record template and writes
// every record as one row.
package storage

import (
	"fmt"
	"strings"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
)

// ColumnDef defines a database column.
type ColumnDef struct {
	Name       string
	Type       string
	Kind       schema.Kind
	PrimaryKey bool
	Default    any
	Inferred   bool // the key is not part of the template
}

// TableName returns the table a profile is exported to.
func TableName(p *schema.Profile) string {
	return p.Name
}

// Columns returns the columns for doc: the template fields in template
// order followed by keys that only records carry, in order of first
// appearance.
func Columns(doc *record.Document, p *schema.Profile) []ColumnDef {
	cols := make([]ColumnDef, 0, len(p.Fields))
	seen := make(map[string]bool, len(p.Fields))

	for _, f := range p.Fields {
		cols = append(cols, ColumnDef{
			Name:       f.Name,
			Type:       f.SQLType(),
			Kind:       f.Kind,
			PrimaryKey: f.Name == record.KeyID,
			Default:    f.Default,
		})
		seen[f.Name] = true
	}

	for _, rec := range doc.Records {
		rec.Range(func(k string, v any) bool {
			if seen[k] {
				return true
			}
			seen[k] = true
			f := schema.Field{Name: k, Kind: schema.InferKind(v)}
			cols = append(cols, ColumnDef{
				Name:     k,
				Type:     f.SQLType(),
				Kind:     f.Kind,
				Inferred: true,
			})
			return true
		})
	}

	return cols
}

// BuildCreateTableSQL generates CREATE TABLE SQL for the columns.
func BuildCreateTableSQL(table string, cols []ColumnDef) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = buildColumnDef(c)
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		quoteIdent(table),
		strings.Join(defs, ",\n  "),
	)
}

// buildColumnDef builds a column definition.
func buildColumnDef(c ColumnDef) string {
	parts := []string{quoteIdent(c.Name), c.Type}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if def := formatDefault(c.Default); def != "" {
		parts = append(parts, "DEFAULT "+def)
	}
	return strings.Join(parts, " ")
}

// formatDefault formats a scalar default value for SQL. Structured
// defaults get no column default.
func formatDefault(val any) string {
	switch v := val.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int, int64, uint64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// BuildIndexSQL generates CREATE INDEX statements for the lookup columns.
func BuildIndexSQL(table string, cols []ColumnDef) []string {
	var indexes []string
	for _, c := range cols {
		if c.Name == record.KeyAegisName || c.Name == record.KeyName {
			indexes = append(indexes, fmt.Sprintf(
				"CREATE INDEX %s ON %s(%s)",
				quoteIdent("idx_"+table+"_"+c.Name), quoteIdent(table), quoteIdent(c.Name),
			))
		}
	}
	return indexes
}

// BuildInsertSQL generates a parameterized INSERT for the columns.
func BuildInsertSQL(table string, cols []ColumnDef) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(names, ", "),
		strings.Join(marks, ", "),
	)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
