package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the logger described by cfg. Logs go to w (stderr in
// the command line tool) so command output stays clean.
func NewLogger(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	return newWriterLogger(cfg, w).Level(ParseLevel(cfg.Level))
}

// NewDynamicLogger builds a logger without a level of its own. It follows
// the process-wide level, which ApplyLevel changes at runtime.
func NewDynamicLogger(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	ApplyLevel(cfg)
	return newWriterLogger(cfg, w)
}

// ApplyLevel sets the process-wide minimum log level.
func ApplyLevel(cfg LoggingConfig) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
}

// ParseLevel parses a level name; unknown names mean warn.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.WarnLevel
	}
	return level
}

func newWriterLogger(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
