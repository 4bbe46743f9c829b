package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/core/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <file> <database>",
	Short: "Export a document to a SQLite table",
	Long: `Export every record of a document to a SQLite database.

The table is named after the profile (item or mob) and is replaced on
every export. Columns follow the record template; absent fields are
written as their template default. Flag maps and drop tables are stored
as JSON text.

Examples:
  dbedit export db/re/mob_db.yml mobs.sqlite
  sqlite3 mobs.sqlite 'SELECT Id, Name FROM mob WHERE Level > 90'`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := newEditor(args[0], nil)
	if err != nil {
		return reportError(cmd, err)
	}
	defer e.Close()

	db, err := storage.NewSQLiteStore(args[1], logger)
	if err != nil {
		return reportError(cmd, err)
	}
	defer db.Close()

	result, err := db.Export(cmd.Context(), e.Document(), e.Profile())
	if err != nil {
		return reportError(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to table %s\n", result.Rows, result.Table)
	return nil
}
