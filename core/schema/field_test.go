package schema

import (
	"testing"

	"github.com/artpar/dbedit/domain/record"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Kind
	}{
		{"mapping", record.NewMap(), KindFlatMap},
		{"sequence", []any{}, KindPairList},
		{"sequence of mappings", []any{record.MapOf("Item", "Apple", "Rate", 100)}, KindPairList},
		{"sequence of scalars", []any{"A", "B"}, KindText},
		{"mixed sequence", []any{record.NewMap(), "B"}, KindText},
		{"bool", true, KindBoolean},
		{"int", 7, KindInteger},
		{"single line", "Both", KindText},
		{"multi line", "a;\nb;", KindMultiline},
		{"null", nil, KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferKind(tt.value); got != tt.want {
				t.Errorf("InferKind(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFieldSQLType(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInteger, "INTEGER"},
		{KindBoolean, "INTEGER"},
		{KindText, "TEXT"},
		{KindFlatMap, "TEXT"},
		{KindPairList, "TEXT"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := (Field{Kind: tt.kind}).SQLType(); got != tt.want {
				t.Errorf("SQLType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuiltinProfiles(t *testing.T) {
	item := Item()
	if item == nil || item.Type != "ITEM_DB" {
		t.Fatalf("Item() = %+v", item)
	}
	mob := Mob()
	if mob == nil || mob.Type != "MOB_DB" {
		t.Fatalf("Mob() = %+v", mob)
	}

	if p, ok := Default().Lookup("MOB_DB"); !ok || p != mob {
		t.Error("Lookup(MOB_DB) should return the mob profile")
	}

	if item.DefaultID != 501 || mob.DefaultID != 1001 {
		t.Errorf("default ids = %d, %d", item.DefaultID, mob.DefaultID)
	}
	if item.DropDefaults || !mob.DropDefaults {
		t.Error("only the mob profile drops default values")
	}

	jobs, _ := item.Default("Jobs")
	if all, _ := jobs.(*record.Map).Get("All"); all != true {
		t.Errorf("Jobs default = %v", jobs)
	}

	ai, _ := mob.Default("Ai")
	if ai != "06" {
		t.Errorf("Ai default = %#v, want \"06\"", ai)
	}

	if f, _ := mob.Field("Drops"); f.Kind != KindPairList || !f.DropIfEmpty {
		t.Errorf("Drops field = %+v", f)
	}
	if f, _ := item.Field("Script"); f.Kind != KindMultiline {
		t.Errorf("Script kind = %q", f.Kind)
	}
}

func TestTemplateIsACopy(t *testing.T) {
	tpl := Item().Template()
	jobs, _ := tpl.Get("Jobs")
	jobs.(*record.Map).Set("Novice", true)

	again, _ := Item().Default("Jobs")
	if again.(*record.Map).Len() != 1 {
		t.Error("template defaults must not be shared")
	}

	if tpl.Keys()[0] != "Id" || tpl.Keys()[len(tpl.Keys())-1] != "UnEquipScript" {
		t.Errorf("template order = %v", tpl.Keys())
	}
}

func TestNewRecord(t *testing.T) {
	rec := Mob().NewRecord(1002)
	if rec.String("AegisName") != "MOB_1002" || rec.String("Name") != "New Mob" || rec.Int("Id") != 1002 {
		t.Errorf("NewRecord = %v", rec.Keys())
	}
	if got := Item().NewRecord(510).String("AegisName"); got != "NEW_ITEM_510" {
		t.Errorf("item AegisName = %q", got)
	}
}
