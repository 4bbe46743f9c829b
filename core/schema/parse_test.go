package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/dbedit/domain/record"
)

func TestParse(t *testing.T) {
	yaml := `
profile: quest
type: QUEST_DB
default_id: 1000
new_aegis_name: QUEST_%d
new_name: New Quest

fields:
  - { name: Id,      kind: integer, default: 0, retain: true }
  - { name: Title,   kind: text,    default: New Quest }
  - { name: Targets, kind: flatmap, default: { Poring: 5, Lunatic: 3 } }
  - { name: Drops,   kind: pairlist, default: [] }
`

	p, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.Name != "quest" {
		t.Errorf("Name = %q, want %q", p.Name, "quest")
	}

	if len(p.Fields) != 4 {
		t.Fatalf("Fields has %d entries, want 4", len(p.Fields))
	}

	f, ok := p.Field("Targets")
	if !ok {
		t.Fatal("Field(Targets) not found")
	}
	targets, ok := f.Default.(*record.Map)
	if !ok {
		t.Fatalf("Targets default = %T, want *record.Map", f.Default)
	}
	if got := strings.Join(targets.Keys(), ","); got != "Poring,Lunatic" {
		t.Errorf("Targets keys = %q, want default order kept", got)
	}

	if !p.Fields[0].Retain {
		t.Error("Id should be retained")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing type",
			yaml: `
profile: x
new_aegis_name: X_%d
fields:
  - { name: Id, kind: integer }
`,
			wantErr: "type is required",
		},
		{
			name: "unknown kind",
			yaml: `
profile: x
type: X_DB
new_aegis_name: X_%d
fields:
  - { name: Id, kind: float }
`,
			wantErr: `unknown kind "float"`,
		},
		{
			name: "default does not match kind",
			yaml: `
profile: x
type: X_DB
new_aegis_name: X_%d
fields:
  - { name: Id, kind: integer, default: abc }
`,
			wantErr: "default must be an integer",
		},
		{
			name: "duplicate field",
			yaml: `
profile: x
type: X_DB
new_aegis_name: X_%d
fields:
  - { name: Id, kind: integer }
  - { name: Id, kind: integer }
`,
			wantErr: "defined twice",
		},
		{
			name: "name format without id verb",
			yaml: `
profile: x
type: X_DB
new_aegis_name: FIXED
fields:
  - { name: Id, kind: integer }
`,
			wantErr: "must contain %d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	def := `
profile: pet
type: PET_DB
new_aegis_name: PET_%d
fields:
  - { name: Id, kind: integer, default: 0 }
`
	if err := os.WriteFile(filepath.Join(dir, "pet_db.yaml"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := Builtin()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	if _, ok := r.Lookup("PET_DB"); !ok {
		t.Error("PET_DB should be registered")
	}
	if got := strings.Join(r.Names(), ","); got != "item,mob,pet" {
		t.Errorf("Names() = %q", got)
	}
}
