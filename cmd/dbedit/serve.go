package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/config"
	"github.com/artpar/dbedit/core/channel/http"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/store"
)

var (
	serveAddr string
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a document over a local JSON API",
	Long: `Serve one editor session over HTTP.

The API lists, edits, adds, deletes and saves records of the file. It
listens on 127.0.0.1:8765 unless server.addr or --addr says otherwise.

Routes:
  GET    /document            File, profile and dirty state
  GET    /records?q=&where=&offset=&limit=
                              List projection
  POST   /records             Add a record
  GET    /records/{#}         Record form
  PUT    /records/{#}         Store fields into the record
  DELETE /records/{#}         Delete (requires ?confirm=true)
  POST   /sort/{key}          Sort by id or name (AegisName)
  POST   /save                Save, or save as {"path": ...}
  POST   /reload              Re-read the file
  GET    /validate            Validate the document
  GET    /_schema             Profile introspection
  GET    /metrics             Prometheus metrics (metrics.enabled)

Examples:
  dbedit serve db/re/mob_db.yml
  dbedit serve db/re/item_db.yml --addr :9000`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "apply configuration file changes while serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Levels change at runtime, so the serve logger follows the global level.
	logger = config.NewDynamicLogger(cfg.Logging, os.Stderr)

	st := newStore()
	e, err := newEditor(args[0], st)
	if err != nil {
		return reportError(cmd, err)
	}
	defer e.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	opts := http.Options{
		Addr:         addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Registry:     registry,
		Metrics:      metricsCollector(),
		MetricsPath:  cfg.Metrics.Path,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	ch := http.New(e, opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if hotReload {
		if _, err := os.Stat(cfgFile); err == nil {
			if err := watchConfig(ctx, ch, st); err != nil {
				logger.Warn().Err(err).Str("path", cfgFile).Msg("configuration hot reload disabled")
			}
		}
	}

	if err := ch.Start(ctx); err != nil {
		return reportError(cmd, err)
	}
	logger.Info().
		Str("path", e.Path()).
		Str("profile", e.Profile().Name).
		Int("records", len(e.Document().Records)).
		Msg("serving document")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.Stop(shutdownCtx); err != nil {
		return reportError(cmd, err)
	}
	if e.Dirty() {
		logger.Warn().Str("path", e.Path()).Msg("unsaved changes discarded")
	}
	return nil
}

// watchConfig applies the reloadable settings of the configuration file
// while the server runs.
func watchConfig(ctx context.Context, ch *http.Channel, st *store.Store) error {
	holder, err := config.NewHolder(cfg, cfgFile, logger)
	if err != nil {
		return err
	}
	holder.OnChange(func(c *config.Config) {
		config.ApplyLevel(c.Logging)
		st.SetBackup(c.Editor.Backup)
		ch.Do(func(e *app.Editor) {
			e.SetFormOptions(form.Options{StrictNumbers: c.Editor.StrictNumbers})
		})
	})
	return holder.Watch(ctx)
}
