package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to configuration that can be reloaded
// while the HTTP API is running.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	onChange []func(*Config)
}

// NewHolder wraps an already loaded configuration. path is the file that
// Reload and Watch read; it may not exist yet.
func NewHolder(cfg *Config, path string, logger zerolog.Logger) (*Holder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Holder{config: cfg, path: absPath, logger: logger}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// OnChange registers a callback run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Reload re-reads the file. On failure the old configuration stays.
func (h *Holder) Reload() error {
	newCfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	callbacks := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)
	for _, fn := range callbacks {
		fn(newCfg)
	}

	h.logger.Info().Str("path", h.path).Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration whenever the file is written, until ctx
// is done. The directory is watched so that atomic saves are seen.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(h.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				_ = h.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Error().Err(err).Msg("config watcher error")
			}
		}
	}()

	h.logger.Debug().Str("path", h.path).Msg("watching configuration file")
	return nil
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Editor.StrictNumbers != new.Editor.StrictNumbers {
		h.logger.Info().
			Bool("old", old.Editor.StrictNumbers).
			Bool("new", new.Editor.StrictNumbers).
			Msg("strict numbers changed")
	}

	if old.Editor.Backup != new.Editor.Backup {
		h.logger.Info().
			Bool("old", old.Editor.Backup).
			Bool("new", new.Editor.Backup).
			Msg("backup changed")
	}

	for _, field := range changedFields(old, new) {
		h.logger.Warn().Str("field", field).Msg("setting changed; restart to apply")
	}
}

// changedFields lists the non-reloadable settings that differ.
func changedFields(old, new *Config) []string {
	var out []string
	if old.Editor.Profile != new.Editor.Profile {
		out = append(out, "editor.profile")
	}
	if old.Editor.ProfileDir != new.Editor.ProfileDir {
		out = append(out, "editor.profile_dir")
	}
	if old.Server.Addr != new.Server.Addr {
		out = append(out, "server.addr")
	}
	if old.Logging.Format != new.Logging.Format {
		out = append(out, "logging.format")
	}
	if old.Metrics != new.Metrics {
		out = append(out, "metrics")
	}
	return out
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"editor.strict_numbers",
		"editor.backup",
		"editor.page_size",
		"logging.level",
	}
}
