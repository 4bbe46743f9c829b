package validation

import (
	"testing"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
)

func TestValidateRecord(t *testing.T) {
	v := New(schema.Mob())

	tests := []struct {
		name     string
		rec      *record.Map
		wantCode string
		field    string
	}{
		{
			name:     "missing aegis name",
			rec:      record.MapOf("Id", 1002),
			wantCode: CodeRequired,
			field:    "AegisName",
		},
		{
			name:     "integer as text",
			rec:      record.MapOf("Id", 1002, "AegisName", "PORING", "Level", "ten"),
			wantCode: CodeType,
			field:    "Level",
		},
		{
			name:     "negative integer",
			rec:      record.MapOf("Id", 1002, "AegisName", "PORING", "Hp", -1),
			wantCode: CodeRange,
			field:    "Hp",
		},
		{
			name:     "flag map as scalar",
			rec:      record.MapOf("Id", 1002, "AegisName", "PORING", "Modes", "Aggressive"),
			wantCode: CodeType,
			field:    "Modes",
		},
		{
			name: "drop rate out of range",
			rec: record.MapOf("Id", 1002, "AegisName", "PORING",
				"Drops", []any{record.MapOf("Item", "Jellopy", "Rate", 0)}),
			wantCode: CodeRange,
			field:    "Drops",
		},
		{
			name: "drop without item",
			rec: record.MapOf("Id", 1002, "AegisName", "PORING",
				"Drops", []any{record.MapOf("Rate", 50)}),
			wantCode: CodeRequired,
			field:    "Drops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateRecord(0, tt.rec)
			if result.Valid {
				t.Fatal("expected invalid result")
			}
			found := false
			for _, e := range result.Errors {
				if e.Code == tt.wantCode && e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want %s on %s", result.Errors, tt.wantCode, tt.field)
			}
		})
	}
}

func TestValidRecord(t *testing.T) {
	rec := record.MapOf(
		"Id", 1002, "AegisName", "PORING", "Name", "Poring",
		"Level", 1, "Modes", record.MapOf("Looter", true),
		"Drops", []any{record.MapOf("Item", "Jellopy", "Rate", 7000)},
		"Extra", "x",
	)

	result := New(schema.Mob()).ValidateRecord(0, rec)
	if !result.Valid {
		t.Fatalf("unexpected errors: %s", result.Error())
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != CodeUnknownField {
		t.Errorf("warnings = %v, want one unknown_field", result.Warnings)
	}
}

func TestValidateDocumentDuplicates(t *testing.T) {
	doc := &record.Document{
		Header: record.MapOf("Type", "ITEM_DB"),
		Records: []*record.Map{
			record.MapOf("Id", 501, "AegisName", "Red_Potion"),
			record.MapOf("Id", 502, "AegisName", "red_potion"),
			record.MapOf("Id", 501, "AegisName", "Orange_Potion"),
		},
	}

	result := New(schema.Item()).ValidateDocument(doc)
	if result.Valid {
		t.Fatal("duplicates should be invalid")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", result.Errors)
	}
	if result.Errors[0].Field != "AegisName" || result.Errors[0].Index != 1 {
		t.Errorf("first error = %+v", result.Errors[0])
	}
	if result.Errors[1].Field != "Id" || result.Errors[1].Index != 2 {
		t.Errorf("second error = %+v", result.Errors[1])
	}
	if result.Records != 3 {
		t.Errorf("Records = %d", result.Records)
	}
}

func TestConstraintWarnings(t *testing.T) {
	rec := record.MapOf(
		"Id", 1002, "AegisName", "PORING", "Name", "Poring",
		"Size", "Huge", "ElementLevel", 7,
	)

	result := New(schema.Mob()).ValidateRecord(0, rec)
	if !result.Valid {
		t.Fatalf("constraint findings should not be errors: %s", result.Error())
	}
	fields := map[string]bool{}
	for _, w := range result.Warnings {
		if w.Code == CodeConstraint {
			fields[w.Field] = true
		}
	}
	if !fields["Size"] || !fields["ElementLevel"] || len(fields) != 2 {
		t.Errorf("warnings = %v, want constraint warnings on Size and ElementLevel", result.Warnings)
	}
}
