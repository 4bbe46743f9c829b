package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/adapters/metrics"
	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/config"
	"github.com/artpar/dbedit/core/channel/cli"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/store"
	"github.com/artpar/dbedit/pkg/errors"
)

var (
	// Global flags
	cfgFile     string
	profileName string
	logLevel    string

	// Set up by loadConfig before any command runs
	cfg      *config.Config
	logger   zerolog.Logger
	registry *schema.Registry

	cliChannel *cli.Channel

	collectorOnce sync.Once
	collector     *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbedit",
	Short: "Editor for rAthena item and mob YAML databases",
	Long: `dbedit edits rAthena item_db and mob_db YAML files.

It keeps the file's key order, fills absent fields from the database
template while editing and writes back only the fields that differ.

Quick start:
  dbedit list db/re/mob_db.yml            # List records
  dbedit show db/re/mob_db.yml 1002       # Show one record
  dbedit set db/re/mob_db.yml 1002 Level=5
  dbedit shell db/re/item_db.yml          # Interactive editor

Serving:
  dbedit serve db/re/mob_db.yml           # Local JSON API`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "database profile (item, mob); detected from Header.Type by default")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	cliChannel = cli.New(rootCmd, openEditor)
	cliChannel.Register()
}

// loadConfig reads the configuration file (or DBEDIT_* variables) and
// applies the command line overrides.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return reportError(cmd, errors.InvalidArgumentf("configuration: %v", err))
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("profile") {
		c.Editor.Profile = profileName
	}

	reg := schema.Default()
	if c.Editor.ProfileDir != "" {
		reg = schema.Builtin()
		if err := reg.LoadDir(c.Editor.ProfileDir); err != nil {
			return reportError(cmd, errors.InvalidArgumentf("profiles in %s: %v", c.Editor.ProfileDir, err))
		}
	}

	cfg = c
	registry = reg
	logger = config.NewLogger(c.Logging, os.Stderr)
	cliChannel.SetPageSize(c.Editor.PageSize)
	return nil
}

// metricsCollector returns the process-wide collector.
func metricsCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		collector = metrics.New()
	})
	return collector
}

// forcedProfile returns the profile named in the configuration, or nil
// when it is detected from the file.
func forcedProfile() (*schema.Profile, error) {
	name := cfg.Editor.Profile
	if name == "" || name == "auto" {
		return nil, nil
	}
	p, ok := registry.Get(name)
	if !ok {
		return nil, errors.NotFoundf("unknown profile %q (known: %v)", name, registry.Names())
	}
	return p, nil
}

// newEditor builds an editor from the configuration. path is opened when
// it is not empty.
func newEditor(path string, st *store.Store) (*app.Editor, error) {
	p, err := forcedProfile()
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = newStore()
	}

	e := app.NewEditor(app.EditorOptions{
		Store:   st,
		Metrics: metricsCollector(),
		Logger:  logger,
		Profile: p,
		Form:    form.Options{StrictNumbers: cfg.Editor.StrictNumbers},
	})
	if path != "" {
		if err := e.Open(path); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func newStore() *store.Store {
	return store.New(store.Options{
		Registry: registry,
		Backup:   cfg.Editor.Backup,
		Logger:   logger,
	})
}

// openEditor is the cli.Opener for the one-shot commands.
func openEditor(cmd *cobra.Command, path string) (*app.Editor, error) {
	return newEditor(path, nil)
}

// reportError prints err for commands that do not print their own errors.
func reportError(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", errors.GetMessage(err))
	}
	return err
}
