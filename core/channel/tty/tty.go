// Package tty provides the interactive shell: a REPL over one editor
// session with a list, a selection and a pending field form.
package tty

import (
	"context"
	"fmt"
	"io"
	goruntime "runtime"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/core/channel/cli"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/formatter"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Channel implements the interactive shell.
type Channel struct {
	editor    *app.Editor
	registry  *schema.Registry
	prompter  *cli.Prompter
	out       io.Writer
	formatter formatter.Formatter
	prompt    string
	running   bool
	showStats bool // Show execution stats after each command
	pageSize  int

	form       *form.Form // pending edits of the selected record
	formDirty  bool
	quitArmed  bool
	diskWarned bool
}

// New creates a shell over e reading commands from in.
func New(e *app.Editor, registry *schema.Registry, in io.Reader, out io.Writer) *Channel {
	if registry == nil {
		registry = schema.Default()
	}
	return &Channel{
		editor:    e,
		registry:  registry,
		prompter:  cli.NewPrompterWith(in, out),
		out:       out,
		formatter: formatter.NewTableFormatter(),
		prompt:    "dbedit> ",
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "tty"
}

// SetPageSize limits list output (0 = all rows).
func (c *Channel) SetPageSize(n int) {
	c.pageSize = n
}

// SetShowStats enables timing and memory stats after each command.
func (c *Channel) SetShowStats(on bool) {
	c.showStats = on
}

// captureStats captures current memory stats.
func captureStats() goruntime.MemStats {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	return m
}

// formatBytes formats bytes as human readable.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// printStats prints execution statistics.
func (c *Channel) printStats(duration time.Duration, before, after goruntime.MemStats) {
	memUsed := int64(after.Alloc) - int64(before.Alloc)
	if memUsed < 0 {
		memUsed = 0 // GC happened
	}
	fmt.Fprintf(c.out, "  %v  %s  (heap %s)\n",
		duration.Round(time.Microsecond), formatBytes(uint64(memUsed)), formatBytes(after.HeapAlloc))
}

// Run reads and executes commands until quit, end of input or ctx is done.
func (c *Channel) Run(ctx context.Context) error {
	c.running = true

	fmt.Fprintln(c.out, "dbedit interactive shell")
	fmt.Fprintln(c.out, "Type 'help' for available commands, 'quit' to exit")
	if c.editor.Loaded() {
		c.printSummary()
	}
	fmt.Fprintln(c.out)

	for c.running {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := c.prompter.Prompt(c.promptText())
		if err == io.EOF {
			fmt.Fprintln(c.out)
			if c.editor.Dirty() {
				fmt.Fprintln(c.out, "Unsaved changes discarded.")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		before := captureStats()
		start := time.Now()

		if err := c.execute(line); err != nil {
			fmt.Fprintf(c.out, "Error: %s\n", errors.GetMessage(err))
		}

		if c.showStats && c.running {
			c.printStats(time.Since(start), before, captureStats())
		}
		c.checkDisk()
	}
	return nil
}

func (c *Channel) promptText() string {
	if c.editor.Dirty() || c.formDirty {
		return "dbedit*> "
	}
	return c.prompt
}

// execute parses and executes a command line.
func (c *Channel) execute(line string) error {
	parts := parseArgs(line)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	if cmd != "quit" && cmd != "exit" && cmd != "q" {
		c.quitArmed = false
	}

	switch cmd {
	case "quit", "exit", "q":
		return c.quit()

	case "help", "h", "?":
		c.showHelp()
		return nil

	case "open":
		return c.open(args)

	case "new":
		return c.newDocument(args)

	case "list", "ls":
		return c.list(args)

	case "search", "find":
		return c.search(args)

	case "where":
		return c.where(args)

	case "sort":
		return c.sort(args)

	case "select", "sel":
		return c.selectIndex(args)

	case "goto":
		return c.gotoID(args)

	case "show":
		return c.show(args)

	case "set":
		return c.set(args)

	case "edit":
		return c.edit(args)

	case "drops":
		return c.drops(args)

	case "commit":
		return c.commit()

	case "revert":
		c.form, c.formDirty = nil, false
		fmt.Fprintln(c.out, "Pending edits discarded.")
		return nil

	case "add", "new-record":
		return c.add()

	case "delete", "rm":
		return c.delete(args)

	case "save":
		return c.save()

	case "saveas":
		return c.saveAs(args)

	case "reload":
		return c.reload()

	case "validate":
		return c.validate()

	case "stats":
		c.showStats = !c.showStats
		if c.showStats {
			fmt.Fprintln(c.out, "Stats display enabled")
		} else {
			fmt.Fprintln(c.out, "Stats display disabled")
		}
		return nil

	default:
		return errors.InvalidArgumentf("unknown command: %s (try 'help')", cmd)
	}
}

// showHelp displays help information.
func (c *Channel) showHelp() {
	fmt.Fprintln(c.out, "\nFiles:")
	fmt.Fprintln(c.out, "  open <file>                  Open a database file")
	fmt.Fprintln(c.out, "  new <profile>                Start an empty document ("+strings.Join(c.registry.Names(), ", ")+")")
	fmt.Fprintln(c.out, "  save                         Save to the current file")
	fmt.Fprintln(c.out, "  saveas <file>                Save to another file")
	fmt.Fprintln(c.out, "  reload                       Load the file again, dropping changes")
	fmt.Fprintln(c.out, "  validate                     Check the document")
	fmt.Fprintln(c.out, "\nList:")
	fmt.Fprintln(c.out, "  list                         Show the listed records")
	fmt.Fprintln(c.out, "  search <text>                Filter by Id or AegisName (empty clears)")
	fmt.Fprintln(c.out, "  where <expr>                 Filter by expression (empty clears)")
	fmt.Fprintln(c.out, "  sort <id|name>               Sort; repeat to reverse")
	fmt.Fprintln(c.out, "  select <#>                   Select the record at list position #")
	fmt.Fprintln(c.out, "  goto <id>                    Select the record with Id")
	fmt.Fprintln(c.out, "\nRecord:")
	fmt.Fprintln(c.out, "  show [field...]              Show the selected record's fields")
	fmt.Fprintln(c.out, "  set <field> <value>          Change a field (None clears)")
	fmt.Fprintln(c.out, "  edit <field>                 Enter a script or flag field line by line")
	fmt.Fprintln(c.out, "  drops add <item> <rate> [field]")
	fmt.Fprintln(c.out, "  drops remove <n> [field]     Edit a drop table (default Drops)")
	fmt.Fprintln(c.out, "  commit                       Store the edited fields in the document")
	fmt.Fprintln(c.out, "  revert                       Discard edited fields")
	fmt.Fprintln(c.out, "  add                          Add a record with the next free Id")
	fmt.Fprintln(c.out, "  delete [#]                   Delete the selected record")
	fmt.Fprintln(c.out, "\n  stats                        Toggle timing output")
	fmt.Fprintln(c.out, "  quit                         Exit shell")
	fmt.Fprintln(c.out)
}

func (c *Channel) quit() error {
	if (c.editor.Dirty() || c.formDirty) && !c.quitArmed {
		c.quitArmed = true
		fmt.Fprintln(c.out, "There are unsaved changes. Type 'quit' again to discard them, or 'save'.")
		return nil
	}
	c.running = false
	fmt.Fprintln(c.out, "Goodbye!")
	return nil
}

// discardOK asks before an operation would drop unsaved changes.
func (c *Channel) discardOK() (bool, error) {
	if !c.editor.Dirty() && !c.formDirty {
		return true, nil
	}
	return c.prompter.Confirm("Discard unsaved changes?")
}

func (c *Channel) open(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: open <file>")
	}
	if ok, err := c.discardOK(); err != nil || !ok {
		return err
	}
	if err := c.editor.Open(args[0]); err != nil {
		return err
	}
	c.resetForm()
	c.printSummary()
	return nil
}

func (c *Channel) newDocument(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: new <%s>", strings.Join(c.registry.Names(), "|"))
	}
	p, ok := c.registry.Get(args[0])
	if !ok {
		return errors.NotFoundf("unknown profile %q", args[0])
	}
	if ok, err := c.discardOK(); err != nil || !ok {
		return err
	}
	c.editor.NewDocument(p)
	c.resetForm()
	fmt.Fprintf(c.out, "New %s document.\n", p.Title)
	return nil
}

func (c *Channel) reload() error {
	if ok, err := c.discardOK(); err != nil || !ok {
		return err
	}
	if err := c.editor.Reload(); err != nil {
		return err
	}
	c.resetForm()
	c.printSummary()
	return nil
}

func (c *Channel) printSummary() {
	p := c.editor.Profile()
	fmt.Fprintf(c.out, "%s: %s, %d records\n", c.editor.Path(), p.Title, len(c.editor.Document().Records))
}

func (c *Channel) list(args []string) error {
	if !c.editor.Loaded() {
		return errors.FailedPrecondition("no document open")
	}
	opts := formatter.FormatOptions{MaxWidth: 40, Limit: c.pageSize}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.InvalidArgumentf("usage: list [count]")
		}
		opts.Limit = n
	}
	return c.formatter.FormatRows(c.out, c.editor.Profile(), c.editor.Rows(), opts)
}

func (c *Channel) search(args []string) error {
	if err := c.editor.Search(strings.Join(args, " ")); err != nil {
		return err
	}
	c.syncForm()
	fmt.Fprintf(c.out, "%d records listed.\n", len(c.editor.Rows()))
	return nil
}

func (c *Channel) where(args []string) error {
	if err := c.editor.Where(strings.Join(args, " ")); err != nil {
		return err
	}
	c.syncForm()
	fmt.Fprintf(c.out, "%d records listed.\n", len(c.editor.Rows()))
	return nil
}

func (c *Channel) sort(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: sort <id|name>")
	}
	key, err := listing.ParseKey(args[0])
	if err != nil {
		return err
	}
	if err := c.editor.Sort(key); err != nil {
		return err
	}
	st := c.editor.SortState()
	fmt.Fprintf(c.out, "Sorted by %s %s\n", st.Key, st.Indicator(st.Key))
	return nil
}

func (c *Channel) selectIndex(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: select <#>")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.InvalidArgumentf("%q is not a list position", args[0])
	}
	return c.selectRecord(i)
}

func (c *Channel) gotoID(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: goto <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.InvalidArgumentf("Id %q is not a number", args[0])
	}
	i, err := c.editor.Find(id)
	if err != nil {
		return err
	}
	return c.selectRecord(i)
}

func (c *Channel) selectRecord(i int) error {
	if cur, ok := c.editor.Selected(); ok && cur != i && c.formDirty {
		fmt.Fprintln(c.out, "Uncommitted edits discarded.")
	}
	if err := c.editor.Select(i); err != nil {
		return err
	}
	c.resetForm()
	rec, _ := c.editor.Record(i)
	fmt.Fprintf(c.out, "Selected %d %s\n", rec.Int(record.KeyID), rec.String(record.KeyAegisName))
	return nil
}

// pending returns the form being edited, loading it from the selected
// record when there is none.
func (c *Channel) pending() (*form.Form, error) {
	if c.form != nil {
		return c.form, nil
	}
	f, err := c.editor.Form()
	if err != nil {
		return nil, err
	}
	c.form = f
	return f, nil
}

func (c *Channel) show(args []string) error {
	f, err := c.pending()
	if err != nil {
		return err
	}
	return c.formatter.FormatForm(c.out, c.editor.Profile(), f, formatter.FormatOptions{Fields: args})
}

func (c *Channel) set(args []string) error {
	if len(args) < 1 {
		return errors.InvalidArgumentf("usage: set <field> <value>")
	}
	f, err := c.pending()
	if err != nil {
		return err
	}
	value := strings.Join(args[1:], " ")
	if fd, ok := f.Field(args[0]); ok && (fd.Kind == schema.KindMultiline || fd.Kind == schema.KindFlatMap) {
		value = strings.ReplaceAll(value, `\n`, "\n")
	}
	if err := f.Set(args[0], value); err != nil {
		return err
	}
	c.formDirty = true
	return nil
}

func (c *Channel) edit(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: edit <field>")
	}
	f, err := c.pending()
	if err != nil {
		return err
	}
	fd, ok := f.Field(args[0])
	if !ok {
		return errors.NotFoundf("unknown field %q", args[0])
	}
	if fd.Kind == schema.KindPairList {
		return errors.InvalidArgumentf("%s is a drop table; use drops add/remove", fd.Name)
	}

	if fd.Text != "" {
		fmt.Fprintf(c.out, "Current %s:\n%s\n", cli.FormatLabel(fd.Name), fd.Text)
	}
	text, err := c.prompter.PromptMultiline("Enter " + cli.FormatLabel(fd.Name))
	if err != nil {
		return err
	}
	if err := f.Set(fd.Name, text); err != nil {
		return err
	}
	c.formDirty = true
	return nil
}

func (c *Channel) drops(args []string) error {
	if len(args) < 1 {
		return errors.InvalidArgumentf("usage: drops add <item> <rate> [field] | drops remove <n> [field]")
	}
	f, err := c.pending()
	if err != nil {
		return err
	}

	switch args[0] {
	case "add":
		if len(args) < 3 || len(args) > 4 {
			return errors.InvalidArgumentf("usage: drops add <item> <rate> [field]")
		}
		rate, err := strconv.Atoi(args[2])
		if err != nil {
			return errors.Validationf("rate %q is not a number", args[2])
		}
		if err := f.AddPair(fieldArg(args, 3), args[1], rate); err != nil {
			return err
		}
	case "remove", "rm":
		if len(args) < 2 || len(args) > 3 {
			return errors.InvalidArgumentf("usage: drops remove <n> [field]")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.InvalidArgumentf("%q is not an entry number", args[1])
		}
		if err := f.RemovePair(fieldArg(args, 2), i); err != nil {
			return err
		}
	default:
		return errors.InvalidArgumentf("unknown drops command %q", args[0])
	}
	c.formDirty = true
	return nil
}

func fieldArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "Drops"
}

func (c *Channel) commit() error {
	f, err := c.pending()
	if err != nil {
		return err
	}
	rec, err := c.editor.SaveRecord(f)
	if err != nil {
		return err
	}
	c.resetForm()
	fmt.Fprintf(c.out, "Record %d stored.", rec.Int(record.KeyID))
	if _, ok := c.editor.Selected(); !ok {
		fmt.Fprint(c.out, " (hidden by the current filter)")
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Channel) add() error {
	index, err := c.editor.AddNew()
	if err != nil {
		return err
	}
	c.resetForm()
	rec, _ := c.editor.Record(index)
	fmt.Fprintf(c.out, "Added %d %s", rec.Int(record.KeyID), rec.String(record.KeyAegisName))
	if _, ok := c.editor.Selected(); !ok {
		fmt.Fprint(c.out, " (hidden by the current filter)")
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Channel) delete(args []string) error {
	index, ok := c.editor.Selected()
	if len(args) > 0 {
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.InvalidArgumentf("%q is not a list position", args[0])
		}
		if !listing.Contains(c.editor.Rows(), i) {
			return errors.NotFoundf("no listed record at index %d", i)
		}
		index, ok = i, true
	}
	if !ok {
		return errors.FailedPrecondition("no record selected")
	}

	deleted, err := c.editor.Delete(index, c.prompter)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(c.out, "Cancelled.")
		return nil
	}
	c.resetForm()
	fmt.Fprintln(c.out, "Deleted.")
	return nil
}

func (c *Channel) save() error {
	c.warnPending()
	err := c.editor.Save()
	if errors.IsFailedPrecondition(err) && c.editor.Loaded() {
		path, perr := c.prompter.Prompt("Save as: ")
		if perr != nil {
			return perr
		}
		if path == "" {
			fmt.Fprintln(c.out, "Cancelled.")
			return nil
		}
		return c.saveAs([]string{path})
	}
	if err != nil {
		return err
	}
	c.diskWarned = false
	fmt.Fprintf(c.out, "Saved %s\n", c.editor.Path())
	return nil
}

func (c *Channel) saveAs(args []string) error {
	if len(args) != 1 {
		return errors.InvalidArgumentf("usage: saveas <file>")
	}
	c.warnPending()
	if err := c.editor.SaveAs(args[0]); err != nil {
		return err
	}
	c.diskWarned = false
	fmt.Fprintf(c.out, "Saved %s\n", c.editor.Path())
	return nil
}

func (c *Channel) warnPending() {
	if c.formDirty {
		fmt.Fprintln(c.out, "Note: edited fields are not committed; 'commit' stores them.")
	}
}

func (c *Channel) validate() error {
	result, err := c.editor.Validate()
	if err != nil {
		return err
	}
	return c.formatter.FormatValidation(c.out, c.editor.Profile(), result, formatter.FormatOptions{})
}

// checkDisk warns once when another program changed the open file.
func (c *Channel) checkDisk() {
	if !c.editor.ChangedOnDisk() {
		c.diskWarned = false
		return
	}
	if !c.diskWarned {
		c.diskWarned = true
		fmt.Fprintf(c.out, "Warning: %s was changed by another program; 'reload' loads it.\n", c.editor.Path())
	}
}

// syncForm drops the pending form when its record is no longer selected.
func (c *Channel) syncForm() {
	if _, ok := c.editor.Selected(); !ok {
		if c.formDirty {
			fmt.Fprintln(c.out, "Selection cleared; uncommitted edits discarded.")
		}
		c.resetForm()
	}
}

func (c *Channel) resetForm() {
	c.form = nil
	c.formDirty = false
}

func parseArgs(line string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	quoted := false

	for _, r := range line {
		switch {
		case r == '"' || r == '\'':
			if inQuote && r == quoteChar {
				inQuote = false
				quoteChar = 0
			} else if !inQuote {
				inQuote = true
				quoted = true
				quoteChar = r
			} else {
				current.WriteRune(r)
			}
		case r == ' ' || r == '\t':
			if inQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	return args
}
