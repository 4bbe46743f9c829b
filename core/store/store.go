package store

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// BackupSuffix is appended to the previous file when backups are enabled.
const BackupSuffix = ".bak"

// Options configures a Store.
type Options struct {
	// Registry resolves profiles when none is given. Defaults to the
	// built-in profiles.
	Registry *schema.Registry

	// Backup keeps a copy of the previous file next to it on save.
	Backup bool

	Logger zerolog.Logger
}

// Store loads and saves documents on the filesystem.
type Store struct {
	registry *schema.Registry
	backup   atomic.Bool
	logger   zerolog.Logger
}

// New creates a store.
func New(opts Options) *Store {
	reg := opts.Registry
	if reg == nil {
		reg = schema.Default()
	}
	s := &Store{
		registry: reg,
		logger:   opts.Logger,
	}
	s.backup.Store(opts.Backup)
	return s
}

// SetBackup changes whether later saves keep a backup copy.
func (s *Store) SetBackup(on bool) {
	s.backup.Store(on)
}

// Registry returns the profile registry used for detection.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// Load reads the document at path. A nil profile is detected from
// Header.Type.
func (s *Store) Load(path string, p *schema.Profile) (*record.Document, *schema.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.IOf(err, "read %s", path).WithMeta("path", path)
	}

	doc, p, err := Decode(data, p, s.registry)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("document rejected")
		return nil, nil, err
	}

	s.logger.Info().
		Str("path", path).
		Str("profile", p.Name).
		Int("records", len(doc.Records)).
		Msg("document loaded")
	return doc, p, nil
}

// Save writes doc to path. The file is replaced atomically: the content is
// written to a temporary file in the same directory and renamed over the
// target. The document itself is never modified.
func (s *Store) Save(doc *record.Document, path string) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	if err := writeAtomic(path, data, s.backup.Load()); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("save failed")
		return err
	}

	s.logger.Info().
		Str("path", path).
		Int("records", len(doc.Records)).
		Int("bytes", len(data)).
		Msg("document saved")
	return nil
}

func writeAtomic(path string, data []byte, backup bool) error {
	dir := filepath.Dir(path)
	mode := os.FileMode(0o644)

	prev, statErr := os.Stat(path)
	if statErr == nil {
		if prev.IsDir() {
			return errors.IOf(os.ErrExist, "%s is a directory", path).WithMeta("path", path)
		}
		mode = prev.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.IOf(err, "create temporary file in %s", dir).WithMeta("path", path)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.IOf(err, "write %s", path).WithMeta("path", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.IOf(err, "sync %s", path).WithMeta("path", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.IOf(err, "close %s", path).WithMeta("path", path)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return errors.IOf(err, "chmod %s", path).WithMeta("path", path)
	}

	if backup && statErr == nil {
		if err := copyFile(path, path+BackupSuffix, mode); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.IOf(err, "replace %s", path).WithMeta("path", path)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.IOf(err, "read %s for backup", src).WithMeta("path", src)
	}
	if err := os.WriteFile(dst, data, mode); err != nil {
		return errors.IOf(err, "write backup %s", dst).WithMeta("path", dst)
	}
	return nil
}
