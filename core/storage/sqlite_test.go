package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

func mobDocument() *record.Document {
	poring := record.MapOf(
		"Id", 1002,
		"AegisName", "PORING",
		"Name", "Poring",
		"Level", 1,
		"Modes", record.MapOf("Detector", true),
		"Drops", []any{record.MapOf("Item", "Jellopy", "Rate", 7000)},
		"Custom", "kept",
	)
	scorpion := record.MapOf(
		"Id", 1001,
		"AegisName", "SCORPION",
		"Name", "Scorpion's Tail",
		"Level", 16,
	)
	return &record.Document{
		Header:  record.MapOf("Type", "MOB_DB", "Version", 4),
		Records: []*record.Map{poring, scorpion},
	}
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "export.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestColumns(t *testing.T) {
	p := schema.Mob()
	cols := Columns(mobDocument(), p)

	if len(cols) != len(p.Fields)+1 {
		t.Fatalf("got %d columns, want the %d template fields plus Custom", len(cols), len(p.Fields))
	}
	if cols[0].Name != "Id" || !cols[0].PrimaryKey || cols[0].Type != "INTEGER" {
		t.Errorf("first column = %+v, want Id INTEGER PRIMARY KEY", cols[0])
	}
	last := cols[len(cols)-1]
	if last.Name != "Custom" || !last.Inferred || last.Type != "TEXT" {
		t.Errorf("last column = %+v, want inferred Custom TEXT", last)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	cols := []ColumnDef{
		{Name: "Id", Type: "INTEGER", PrimaryKey: true, Default: 0},
		{Name: "AegisName", Type: "TEXT", Default: "NEW_MOB"},
		{Name: "Modes", Type: "TEXT", Default: record.NewMap()},
		{Name: "Boss", Type: "INTEGER", Default: false},
	}

	got := BuildCreateTableSQL("mob", cols)
	for _, want := range []string{
		`CREATE TABLE "mob" (`,
		`"Id" INTEGER PRIMARY KEY DEFAULT 0`,
		`"AegisName" TEXT DEFAULT 'NEW_MOB'`,
		`"Modes" TEXT,`,
		`"Boss" INTEGER DEFAULT 0`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, got)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`a"b`); got != `"a""b"` {
		t.Errorf("quoteIdent = %s", got)
	}
}

func TestExport(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	result, err := s.Export(ctx, mobDocument(), schema.Mob())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Table != "mob" || result.Rows != 2 {
		t.Errorf("result = %s/%d, want mob/2", result.Table, result.Rows)
	}

	rows, err := s.List(ctx, "mob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	scorpion, poring := rows[0], rows[1]
	if scorpion["Id"] != int64(1001) || scorpion["Name"] != "Scorpion's Tail" {
		t.Errorf("first row = %v", scorpion)
	}
	if poring["Modes"] != `{"Detector":true}` {
		t.Errorf("Modes = %v, want JSON object", poring["Modes"])
	}
	if poring["Drops"] != `[{"Item":"Jellopy","Rate":7000}]` {
		t.Errorf("Drops = %v, want JSON list", poring["Drops"])
	}
	if poring["Custom"] != "kept" {
		t.Errorf("Custom = %v, want kept", poring["Custom"])
	}
	// absent fields take the template default
	if scorpion["Modes"] != `{}` {
		t.Errorf("default Modes = %v, want {}", scorpion["Modes"])
	}
}

func TestExportReplacesTable(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Export(ctx, mobDocument(), schema.Mob()); err != nil {
		t.Fatalf("first Export failed: %v", err)
	}
	doc := mobDocument()
	doc.Records = doc.Records[:1]
	if _, err := s.Export(ctx, doc, schema.Mob()); err != nil {
		t.Fatalf("second Export failed: %v", err)
	}

	rows, err := s.List(ctx, "mob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}
}

func TestExportDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Export(ctx, mobDocument(), schema.Mob()); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	doc := mobDocument()
	doc.Records[1].Set("Id", 1002)
	_, err := s.Export(ctx, doc, schema.Mob())
	if !errors.IsValidation(err) {
		t.Fatalf("Export = %v, want a validation error", err)
	}

	// the failed export leaves the previous table in place
	rows, err := s.List(ctx, "mob")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want the 2 previously exported", len(rows))
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		val  any
		kind schema.Kind
		want any
	}{
		{"nil", nil, schema.KindText, nil},
		{"true", true, schema.KindBoolean, 1},
		{"false", false, schema.KindBoolean, 0},
		{"integer", 42, schema.KindInteger, 42},
		{"text", "Red Potion", schema.KindText, "Red Potion"},
		{"script", "bonus bStr,1;\nbonus bAgi,1;", schema.KindMultiline, "bonus bStr,1;\nbonus bAgi,1;"},
		{"flatmap", record.MapOf("All", true), schema.KindFlatMap, `{"All":true}`},
		{"mismatched integer", "abc", schema.KindInteger, "abc"},
		{"text list", []any{"A", "B"}, schema.KindText, `["A","B"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.val, tt.kind)
			if err != nil {
				t.Fatalf("convertValue error: %v", err)
			}
			if got != tt.want {
				t.Errorf("convertValue(%v) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}
