package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/core/store"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

const testMobDB = `Header:
  Type: MOB_DB
  Version: 4
Body:
  - Id: 1002
    AegisName: PORING
    Name: Poring
    Level: 1
    Drops:
      - Item: Jellopy
        Rate: 7000
  - Id: 1001
    AegisName: SCORPION
    Name: Scorpion
    Level: 16
  - Id: 1004
    AegisName: HORNET
    Name: Hornet
    Level: 11
`

func writeDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mob_db.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}
	return path
}

func openEditor(cmd *cobra.Command, path string) (*app.Editor, error) {
	e := app.NewEditor(app.EditorOptions{Logger: zerolog.Nop()})
	if err := e.Open(path); err != nil {
		return nil, err
	}
	return e, nil
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := &cobra.Command{Use: "dbedit", SilenceErrors: true, SilenceUsage: true}
	New(root, openEditor).Register()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func loadRecord(t *testing.T, path string, id int) *record.Map {
	t.Helper()
	doc, _, err := store.New(store.Options{Logger: zerolog.Nop()}).Load(path, nil)
	if err != nil {
		t.Fatalf("reload %s: %v", path, err)
	}
	i := doc.IndexOf(id)
	if i < 0 {
		return nil
	}
	return doc.Records[i]
}

func TestListCommand(t *testing.T) {
	path := writeDB(t, testMobDB)

	tests := []struct {
		name  string
		args  []string
		order []string
	}{
		{"default id order", nil, []string{"SCORPION", "PORING", "HORNET"}},
		{"name ascending", []string{"--sort", "name"}, []string{"HORNET", "PORING", "SCORPION"}},
		{"id descending", []string{"--desc"}, []string{"HORNET", "PORING", "SCORPION"}},
		{"name descending", []string{"--sort", "name", "--desc"}, []string{"SCORPION", "PORING", "HORNET"}},
		{"search", []string{"--search", "por"}, []string{"PORING"}},
		{"where", []string{"--where", "Level > 10"}, []string{"SCORPION", "HORNET"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, "", append([]string{"list", path}, tt.args...)...)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")[1:]
			if len(lines) != len(tt.order) {
				t.Fatalf("got %d rows, want %d:\n%s", len(lines), len(tt.order), out)
			}
			for i, name := range tt.order {
				if !strings.Contains(lines[i], name) {
					t.Errorf("row %d = %q, want %s", i, lines[i], name)
				}
			}
		})
	}
}

func TestListCommand_Options(t *testing.T) {
	path := writeDB(t, testMobDB)

	out, _, err := run(t, "", "list", path, "--limit", "1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "1 of 3 records shown") {
		t.Errorf("limit ignored:\n%s", out)
	}

	out, _, err = run(t, "", "list", path, "-o", "json", "--compact")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("json output = %s", out)
	}

	_, errOut, err := run(t, "", "list", path, "--where", "Level >")
	if err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if !strings.HasPrefix(errOut, "Error:") {
		t.Errorf("error output = %q", errOut)
	}

	_, _, err = run(t, "", "list", path, "--sort", "level")
	if errors.GetCode(err) != errors.CodeInvalidArgument {
		t.Errorf("bad sort key error = %v", err)
	}
}

func TestListCommand_RejectsWrongFile(t *testing.T) {
	path := writeDB(t, "Header:\n  Type: QUEST_DB\n")

	_, errOut, err := run(t, "", "list", path)
	if !errors.IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
	if !strings.Contains(errOut, "QUEST_DB") {
		t.Errorf("error output = %q", errOut)
	}
}

func TestShowCommand(t *testing.T) {
	path := writeDB(t, testMobDB)

	out, _, err := run(t, "", "show", path, "1002")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"PORING", "Jellopy", "7000", "Level:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}

	out, _, err = run(t, "", "show", path, "1002", "--fields", "Id,Name")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if strings.Contains(out, "Level") {
		t.Errorf("field selection ignored:\n%s", out)
	}

	_, _, err = run(t, "", "show", path, "42")
	if !errors.IsNotFound(err) {
		t.Errorf("missing id error = %v", err)
	}

	_, _, err = run(t, "", "show", path, "poring")
	if errors.GetCode(err) != errors.CodeInvalidArgument {
		t.Errorf("non-numeric id error = %v", err)
	}
}

func TestSetCommand(t *testing.T) {
	path := writeDB(t, testMobDB)

	out, _, err := run(t, "", "set", path, "1002", "Hp=abc", "Level=7", `Modes=Looter: true\nAggressive: false`)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "Updated mob 1002") {
		t.Errorf("output = %q", out)
	}

	rec := loadRecord(t, path, 1002)
	if rec.Int("Hp") != 0 || !rec.Has("Hp") {
		t.Errorf("Hp = %v, want 0", rec.Int("Hp"))
	}
	if rec.Int("Level") != 7 {
		t.Errorf("Level = %d, want 7", rec.Int("Level"))
	}
	modes, _ := rec.Get("Modes")
	m, ok := modes.(*record.Map)
	if !ok || m.Len() != 2 {
		t.Fatalf("Modes = %#v", modes)
	}
	if v, _ := m.Get("Looter"); v != true {
		t.Errorf("Modes.Looter = %v", v)
	}
}

func TestSetCommand_ErrorsLeaveFileUnchanged(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"unknown field", []string{"Bogus=1"}, errors.CodeNotFound},
		{"not an assignment", []string{"Level"}, errors.CodeInvalidArgument},
		{"drop table", []string{"Drops=Apple"}, errors.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDB(t, testMobDB)

			_, _, err := run(t, "", append([]string{"set", path, "1002"}, tt.args...)...)
			if errors.GetCode(err) != tt.code {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}

			data, _ := os.ReadFile(path)
			if string(data) != testMobDB {
				t.Error("file should be unchanged")
			}
		})
	}
}

func TestAddCommand(t *testing.T) {
	path := writeDB(t, testMobDB)

	out, _, err := run(t, "", "add", path, "Level=5")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "Added mob 1005 (MOB_1005)") {
		t.Errorf("output = %q", out)
	}

	rec := loadRecord(t, path, 1005)
	if rec == nil {
		t.Fatal("new record not saved")
	}
	if rec.Int("Level") != 5 {
		t.Errorf("Level = %d, want 5", rec.Int("Level"))
	}
	if rec.String("Name") != "New Mob" {
		t.Errorf("Name = %q", rec.String("Name"))
	}
}

func TestDeleteCommand(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		path := writeDB(t, testMobDB)
		out, _, err := run(t, "n\n", "delete", path, "1002")
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if !strings.Contains(out, "Delete 1002 (PORING)? [y/N]") || !strings.Contains(out, "Cancelled.") {
			t.Errorf("output = %q", out)
		}
		if loadRecord(t, path, 1002) == nil {
			t.Error("record should remain")
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		path := writeDB(t, testMobDB)
		if _, _, err := run(t, "y\n", "delete", path, "1002"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if loadRecord(t, path, 1002) != nil {
			t.Error("record should be deleted")
		}
	})

	t.Run("force", func(t *testing.T) {
		path := writeDB(t, testMobDB)
		out, _, err := run(t, "", "delete", path, "1001", "--force")
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if strings.Contains(out, "[y/N]") {
			t.Error("--force should not prompt")
		}
		if loadRecord(t, path, 1001) != nil {
			t.Error("record should be deleted")
		}
	})
}

func TestDropsCommands(t *testing.T) {
	path := writeDB(t, testMobDB)

	if _, _, err := run(t, "", "drops", "add", path, "1002", "Apple", "100"); err != nil {
		t.Fatalf("drops add failed: %v", err)
	}
	drops := record.DropsFrom(mustGet(loadRecord(t, path, 1002), "Drops"))
	if len(drops) != 2 || drops[1] != (record.Drop{Item: "Apple", Rate: 100}) {
		t.Fatalf("drops = %+v", drops)
	}

	_, _, err := run(t, "", "drops", "add", path, "1002", "Apple", "0")
	if !errors.IsValidation(err) {
		t.Errorf("rate 0 error = %v", err)
	}
	_, _, err = run(t, "", "drops", "add", path, "1002", "Apple", "lots")
	if !errors.IsValidation(err) {
		t.Errorf("non-numeric rate error = %v", err)
	}

	if _, _, err := run(t, "", "drops", "remove", path, "1002", "0"); err != nil {
		t.Fatalf("drops remove failed: %v", err)
	}
	drops = record.DropsFrom(mustGet(loadRecord(t, path, 1002), "Drops"))
	if len(drops) != 1 || drops[0].Item != "Apple" {
		t.Errorf("drops = %+v", drops)
	}

	_, _, err = run(t, "", "drops", "remove", path, "1002", "5")
	if !errors.IsNotFound(err) {
		t.Errorf("bad index error = %v", err)
	}

	if _, _, err := run(t, "", "drops", "add", path, "1002", "Elunium", "50", "--field", "MvpDrops"); err != nil {
		t.Fatalf("drops add MvpDrops failed: %v", err)
	}
	mvp := record.DropsFrom(mustGet(loadRecord(t, path, 1002), "MvpDrops"))
	if len(mvp) != 1 {
		t.Errorf("MvpDrops = %+v", mvp)
	}
}

func TestValidateCommand(t *testing.T) {
	out, _, err := run(t, "", "validate", writeDB(t, testMobDB))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "3 records, 0 errors") {
		t.Errorf("output = %q", out)
	}

	dup := testMobDB + "  - Id: 1004\n    AegisName: HORNET2\n"
	out, _, err = run(t, "", "validate", writeDB(t, dup))
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(out, "invalid") {
		t.Errorf("output = %q", out)
	}
}

func TestSortTo(t *testing.T) {
	e, err := openEditor(nil, writeDB(t, testMobDB))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  listing.Key
		desc bool
	}{
		{listing.KeyName, true},
		{listing.KeyName, false},
		{listing.KeyID, true},
		{listing.KeyID, false},
	}
	for _, tt := range tests {
		if err := SortTo(e, tt.key, tt.desc); err != nil {
			t.Fatal(err)
		}
		if st := e.SortState(); st.Key != tt.key || st.Descending != tt.desc {
			t.Errorf("SortTo(%s, %v) -> %+v", tt.key, tt.desc, st)
		}
	}
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompterWith(strings.NewReader("  hello  \nline one\n  indented\n.\nx\n99\n7\nYES\n"), &out)

	if p.Interactive() {
		t.Error("string reader is not a terminal")
	}

	line, err := p.Prompt("> ")
	if err != nil || line != "hello" {
		t.Errorf("Prompt = %q, %v", line, err)
	}

	text, err := p.PromptMultiline("Script")
	if err != nil || text != "line one\n  indented" {
		t.Errorf("PromptMultiline = %q, %v", text, err)
	}

	n, err := p.PromptInt("Rate", 1, 10)
	if err != nil || n != 7 {
		t.Errorf("PromptInt = %d, %v", n, err)
	}
	if strings.Count(out.String(), "Enter a number between 1 and 10.") != 2 {
		t.Errorf("PromptInt should re-ask twice:\n%s", out.String())
	}

	ok, err := p.Confirm("Delete?")
	if err != nil || !ok {
		t.Errorf("Confirm = %v, %v", ok, err)
	}

	if _, err := p.Prompt("> "); err != io.EOF {
		t.Errorf("Prompt at end of input = %v, want EOF", err)
	}
}

func TestPrompter_LastLineWithoutNewline(t *testing.T) {
	p := NewPrompterWith(strings.NewReader("y"), io.Discard)
	ok, err := p.Confirm("Sure?")
	if err != nil || !ok {
		t.Errorf("Confirm = %v, %v", ok, err)
	}

	p = NewPrompterWith(strings.NewReader("a: 1\nb: 2"), io.Discard)
	text, err := p.PromptMultiline("Flags")
	if err != nil || text != "a: 1\nb: 2" {
		t.Errorf("PromptMultiline = %q, %v", text, err)
	}
}

func TestFormatLabel(t *testing.T) {
	tests := map[string]string{
		"EquipScript":   "Equip Script",
		"Id":            "Id",
		"AegisName":     "Aegis Name",
		"MvpExp":        "Mvp Exp",
		"EquipLevelMin": "Equip Level Min",
	}
	for in, want := range tests {
		if got := FormatLabel(in); got != want {
			t.Errorf("FormatLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func mustGet(m *record.Map, key string) any {
	if m == nil {
		return nil
	}
	v, _ := m.Get(key)
	return v
}
