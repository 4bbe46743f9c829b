// Package cli provides the one-shot record commands: each invocation opens
// a database file, applies one operation and saves when it changed
// something.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/core/formatter"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/pkg/errors"
)

// Opener opens the database file at path in a new editor.
type Opener func(cmd *cobra.Command, path string) (*app.Editor, error)

// Channel registers the record commands on a root command.
type Channel struct {
	rootCmd    *cobra.Command
	open       Opener
	formatters *formatter.Registry
	prompter   *Prompter
	pageSize   int
}

// New creates a new CLI channel.
func New(rootCmd *cobra.Command, open Opener) *Channel {
	return &Channel{
		rootCmd:    rootCmd,
		open:       open,
		formatters: formatter.DefaultRegistry,
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "cli"
}

// SetPrompter replaces the prompter used for confirmations.
func (c *Channel) SetPrompter(p *Prompter) {
	c.prompter = p
}

// SetPageSize sets the default list limit (0 = all rows).
func (c *Channel) SetPageSize(n int) {
	c.pageSize = n
}

// Register adds the record commands to the root command.
func (c *Channel) Register() {
	drops := &cobra.Command{
		Use:   "drops",
		Short: "Edit drop tables",
	}
	drops.AddCommand(c.buildDropsAddCommand(), c.buildDropsRemoveCommand())

	c.rootCmd.AddCommand(
		c.buildListCommand(),
		c.buildShowCommand(),
		c.buildSetCommand(),
		c.buildAddCommand(),
		c.buildDeleteCommand(),
		drops,
		c.buildValidateCommand(),
	)
}

func (c *Channel) buildListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List records",
		Long: `List the records of a database file.

--search matches a substring of the Id or AegisName, ignoring case.
--where filters with an expression over the record fields, e.g.
  dbedit list mob_db.yml --where 'Level > 90 && Race == "Demon"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.open(cmd, args[0])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			if err := c.applyListFlags(cmd, e); err != nil {
				return c.formatError(cmd, err)
			}

			opts := c.getFormatOptions(cmd)
			if limit, _ := cmd.Flags().GetInt("limit"); cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}
			return c.getFormatter(cmd).FormatRows(cmd.OutOrStdout(), e.Profile(), e.Rows(), opts)
		},
	}

	cmd.Flags().StringP("search", "s", "", "Filter by Id or AegisName substring")
	cmd.Flags().StringP("where", "w", "", "Filter by expression")
	cmd.Flags().String("sort", "id", "Sort key: id or name")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().IntP("limit", "l", 0, "Maximum number of rows (0 = page size from config)")
	c.addOutputFlags(cmd)

	return cmd
}

func (c *Channel) buildShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <file> <id>",
		Short: "Show the fields of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.openRecord(cmd, args[0], args[1])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			f, err := e.Form()
			if err != nil {
				return c.formatError(cmd, err)
			}

			opts := c.getFormatOptions(cmd)
			opts.MaxWidth = 0
			opts.Fields, _ = cmd.Flags().GetStringSlice("fields")
			return c.getFormatter(cmd).FormatForm(cmd.OutOrStdout(), e.Profile(), f, opts)
		},
	}

	cmd.Flags().StringSlice("fields", nil, "Only show these fields")
	c.addOutputFlags(cmd)

	return cmd
}

func (c *Channel) buildSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <file> <id> <field=value>...",
		Short: "Change fields of a record",
		Long: `Change fields of a record and save the file.

Values are entered as in the editor form: "None" or an empty value clears
a field, integer fields take digits, boolean fields take true/false.
In script and flag fields "\n" starts a new line, e.g.
  dbedit set mob_db.yml 1002 'Modes=Looter: true\nAggressive: true'`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.openRecord(cmd, args[0], args[1])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			if err := c.applyAssignments(e, args[2:]); err != nil {
				return c.formatError(cmd, err)
			}
			if err := e.Save(); err != nil {
				return c.formatError(cmd, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", e.Profile().Name, args[1])
			return nil
		},
	}

	return cmd
}

func (c *Channel) buildAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file> [field=value]...",
		Short: "Add a record with the next free Id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.open(cmd, args[0])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			index, err := e.AddNew()
			if err != nil {
				return c.formatError(cmd, err)
			}
			if err := e.Select(index); err != nil {
				return c.formatError(cmd, err)
			}
			if len(args) > 1 {
				if err := c.applyAssignments(e, args[1:]); err != nil {
					return c.formatError(cmd, err)
				}
			}
			if err := e.Save(); err != nil {
				return c.formatError(cmd, err)
			}

			rec, _ := e.Record(index)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %d (%s)\n", e.Profile().Name, rec.Int("Id"), rec.String("AegisName"))
			return nil
		},
	}

	return cmd
}

func (c *Channel) buildDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <file> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.openRecord(cmd, args[0], args[1])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			index, _ := e.Selected()
			deleted, err := e.Delete(index, c.confirmer(cmd))
			if err != nil {
				return c.formatError(cmd, err)
			}
			if !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			if err := e.Save(); err != nil {
				return c.formatError(cmd, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", e.Profile().Name, args[1])
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Delete without confirmation")

	return cmd
}

func (c *Channel) buildDropsAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file> <id> <item> <rate>",
		Short: "Append an entry to a drop table",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.Atoi(args[3])
			if err != nil {
				return c.formatError(cmd, errors.Validationf("rate %q is not a number", args[3]))
			}

			field, _ := cmd.Flags().GetString("field")
			return c.editDrops(cmd, args[0], args[1], func(e *app.Editor) error {
				f, err := e.Form()
				if err != nil {
					return err
				}
				if err := f.AddPair(field, args[2], rate); err != nil {
					return err
				}
				_, err = e.SaveRecord(f)
				return err
			})
		},
	}

	cmd.Flags().String("field", "Drops", "Drop table field (Drops or MvpDrops)")
	return cmd
}

func (c *Channel) buildDropsRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <file> <id> <index>",
		Short: "Remove an entry from a drop table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[2])
			if err != nil {
				return c.formatError(cmd, errors.InvalidArgumentf("index %q is not a number", args[2]))
			}

			field, _ := cmd.Flags().GetString("field")
			return c.editDrops(cmd, args[0], args[1], func(e *app.Editor) error {
				f, err := e.Form()
				if err != nil {
					return err
				}
				if err := f.RemovePair(field, i); err != nil {
					return err
				}
				_, err = e.SaveRecord(f)
				return err
			})
		},
	}

	cmd.Flags().String("field", "Drops", "Drop table field (Drops or MvpDrops)")
	return cmd
}

func (c *Channel) editDrops(cmd *cobra.Command, path, id string, edit func(*app.Editor) error) error {
	e, err := c.openRecord(cmd, path, id)
	if err != nil {
		return c.formatError(cmd, err)
	}
	defer e.Close()

	if err := edit(e); err != nil {
		return c.formatError(cmd, err)
	}
	if err := e.Save(); err != nil {
		return c.formatError(cmd, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", e.Profile().Name, id)
	return nil
}

func (c *Channel) buildValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a database file",
		Long: `Check a database file for duplicate Ids and AegisNames, values that do
not match their field type, and fields the profile does not know.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.open(cmd, args[0])
			if err != nil {
				return c.formatError(cmd, err)
			}
			defer e.Close()

			result, err := e.Validate()
			if err != nil {
				return c.formatError(cmd, err)
			}
			if err := c.getFormatter(cmd).FormatValidation(cmd.OutOrStdout(), e.Profile(), result, c.getFormatOptions(cmd)); err != nil {
				return err
			}
			if !result.Valid {
				return errors.Validationf("%d problems found", len(result.Errors))
			}
			return nil
		},
	}

	c.addOutputFlags(cmd)
	return cmd
}

// openRecord opens path and selects the record with identifier id.
func (c *Channel) openRecord(cmd *cobra.Command, path, id string) (*app.Editor, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, errors.InvalidArgumentf("Id %q is not a number", id)
	}

	e, err := c.open(cmd, path)
	if err != nil {
		return nil, err
	}

	index, err := e.Find(n)
	if err == nil {
		err = e.Select(index)
	}
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// applyAssignments sets field=value pairs on the selected record's form and
// saves it into the document.
func (c *Channel) applyAssignments(e *app.Editor, assignments []string) error {
	f, err := e.Form()
	if err != nil {
		return err
	}

	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return errors.InvalidArgumentf("expected field=value, got %q", a)
		}
		if fd, found := f.Field(name); found && (fd.Kind == schema.KindMultiline || fd.Kind == schema.KindFlatMap) {
			value = strings.ReplaceAll(value, `\n`, "\n")
		}
		if err := f.Set(name, value); err != nil {
			return err
		}
	}

	_, err = e.SaveRecord(f)
	return err
}

func (c *Channel) applyListFlags(cmd *cobra.Command, e *app.Editor) error {
	sortKey, _ := cmd.Flags().GetString("sort")
	key, err := listing.ParseKey(sortKey)
	if err != nil {
		return err
	}
	desc, _ := cmd.Flags().GetBool("desc")
	if err := SortTo(e, key, desc); err != nil {
		return err
	}

	if search, _ := cmd.Flags().GetString("search"); search != "" {
		if err := e.Search(search); err != nil {
			return err
		}
	}
	if where, _ := cmd.Flags().GetString("where"); where != "" {
		if err := e.Where(where); err != nil {
			return err
		}
	}
	return nil
}

// SortTo toggles the editor's sort until it is on key in the requested
// direction.
func SortTo(e *app.Editor, key listing.Key, descending bool) error {
	for i := 0; i < 2; i++ {
		st := e.SortState()
		if st.Key == key && st.Descending == descending {
			return nil
		}
		if err := e.Sort(key); err != nil {
			return err
		}
	}
	return nil
}

// confirmer returns the delete confirmation for cmd: --force answers yes,
// otherwise the prompter asks.
func (c *Channel) confirmer(cmd *cobra.Command) app.Confirmer {
	if force, _ := cmd.Flags().GetBool("force"); force {
		return app.ConfirmFunc(func(string) (bool, error) { return true, nil })
	}
	p := c.prompter
	if p == nil {
		p = NewPrompterWith(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return p
}

// addOutputFlags adds common output format flags to a command.
func (c *Channel) addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format: "+strings.Join(c.formatters.List(), ", "))
	cmd.Flags().Bool("no-header", false, "Disable header row (table format)")
	cmd.Flags().Bool("compact", false, "Compact output (json)")
}

// getFormatter returns the formatter for the current command.
func (c *Channel) getFormatter(cmd *cobra.Command) formatter.Formatter {
	outputFmt, _ := cmd.Flags().GetString("output")
	if outputFmt == "" {
		outputFmt = "table"
	}

	f, ok := c.formatters.Get(outputFmt)
	if !ok {
		return c.formatters.Default()
	}
	return f
}

// getFormatOptions builds format options from command flags.
func (c *Channel) getFormatOptions(cmd *cobra.Command) formatter.FormatOptions {
	noHeader, _ := cmd.Flags().GetBool("no-header")
	compact, _ := cmd.Flags().GetBool("compact")

	return formatter.FormatOptions{
		NoHeader: noHeader,
		Compact:  compact,
		MaxWidth: 40,
		Limit:    c.pageSize,
	}
}

// formatError formats and outputs an error.
func (c *Channel) formatError(cmd *cobra.Command, err error) error {
	f := c.getFormatter(cmd)
	f.FormatError(cmd.ErrOrStderr(), err)
	return err
}
