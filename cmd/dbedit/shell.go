package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/core/channel/tty"
)

var shellStats bool

var shellCmd = &cobra.Command{
	Use:   "shell [file]",
	Short: "Start the interactive editor",
	Long: `Start an interactive editor session.

Without a file the session starts empty; use 'open <file>' or
'new <profile>' to begin.

Examples:
  dbedit shell db/re/mob_db.yml
  dbedit shell

Interactive commands:
  list [n]               List records
  search <term>          Filter by Id or AegisName
  sort <key>             Sort by id or name (AegisName)
  select <#>             Load a record into the form
  set <field> <value>    Change a form field
  commit                 Store the form in the document
  add / delete           Add or delete a record
  save / saveas <file>   Write the document
  help                   Show every command
  quit                   Exit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().BoolVar(&shellStats, "stats", false, "print timing and memory after each command")
}

func runShell(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	e, err := newEditor(path, nil)
	if err != nil {
		return reportError(cmd, err)
	}
	defer e.Close()

	if path != "" {
		if err := e.Watch(); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("not watching file")
		}
	}

	ch := tty.New(e, registry, os.Stdin, cmd.OutOrStdout())
	ch.SetPageSize(cfg.Editor.PageSize)
	ch.SetShowStats(shellStats)
	return reportError(cmd, ch.Run(cmd.Context()))
}
