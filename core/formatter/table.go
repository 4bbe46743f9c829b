package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/validation"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/pkg/errors"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Aligned text table output"
}

// FormatRows formats the record list as a table.
func (f *TableFormatter) FormatRows(w io.Writer, p *schema.Profile, rows []listing.Row, opts FormatOptions) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !opts.NoHeader {
		fmt.Fprintln(tw, "#\tID\tAEGISNAME\tNAME")
	}

	shown := limitRows(rows, opts)
	for _, row := range shown {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			row.Index,
			row.ID,
			truncate(row.AegisName, opts.MaxWidth),
			truncate(row.Name, opts.MaxWidth))
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	if len(shown) < len(rows) {
		fmt.Fprintf(w, "... %d of %d records shown\n", len(shown), len(rows))
	}
	return nil
}

// FormatForm formats a form as label/value pairs. Block fields are printed
// below their label, indented.
func (f *TableFormatter) FormatForm(w io.Writer, p *schema.Profile, fm *form.Form, opts FormatOptions) error {
	if fm == nil {
		fmt.Fprintln(w, "Record not found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, fd := range selectFields(fm, opts) {
		switch fd.Kind {
		case schema.KindPairList:
			fmt.Fprintf(tw, "%s:\t%d entries\n", fd.Name, len(fd.Pairs))
			for i, pair := range fd.Pairs {
				fmt.Fprintf(tw, "  [%d]\t%s\t%d\n", i, pair.Item, pair.Rate)
			}
		case schema.KindMultiline, schema.KindFlatMap:
			if fd.Text == "" {
				fmt.Fprintf(tw, "%s:\t-\n", fd.Name)
				continue
			}
			fmt.Fprintf(tw, "%s:\t\n", fd.Name)
			for _, line := range strings.Split(fd.Text, "\n") {
				fmt.Fprintf(tw, "  %s\t\n", line)
			}
		default:
			fmt.Fprintf(tw, "%s:\t%s\n", fd.Name, formatValue(fd.Text, opts.MaxWidth))
		}
	}
	return tw.Flush()
}

// FormatValidation formats a validation result, one problem per line.
func (f *TableFormatter) FormatValidation(w io.Writer, p *schema.Profile, r validation.Result, opts FormatOptions) error {
	if len(r.Errors) > 0 || len(r.Warnings) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if !opts.NoHeader {
			fmt.Fprintln(tw, "LEVEL\t#\tID\tFIELD\tMESSAGE")
		}
		for _, e := range r.Errors {
			fmt.Fprintf(tw, "error\t%d\t%s\t%s\t%s\n", e.Index, e.ID, formatValue(e.Field, 0), e.Message)
		}
		for _, e := range r.Warnings {
			fmt.Fprintf(tw, "warning\t%d\t%s\t%s\t%s\n", e.Index, e.ID, formatValue(e.Field, 0), e.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	status := "valid"
	if !r.Valid {
		status = "invalid"
	}
	fmt.Fprintf(w, "%d records, %d errors, %d warnings: %s\n", r.Records, len(r.Errors), len(r.Warnings), status)
	return nil
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", errors.GetMessage(err))
	return nil
}

// formatValue formats a single line value for display.
func formatValue(s string, maxWidth int) string {
	if s == "" {
		return "-"
	}
	return truncate(s, maxWidth)
}

func truncate(s string, maxWidth int) string {
	if maxWidth > 3 && len(s) > maxWidth {
		return s[:maxWidth-3] + "..."
	}
	return s
}

func init() {
	Register(NewTableFormatter())
}
