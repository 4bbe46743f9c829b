package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/pkg/errors"
)

// Watcher reports changes made to a document file by other programs.
//
// Writes the editor performs itself are recognised through Mark: after a
// save the caller marks the file, and events whose file state matches the
// mark are ignored.
type Watcher struct {
	mu       sync.Mutex
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange func(path string)
	mark     fileStamp
	stopCh   chan struct{}
	stopOnce sync.Once
}

type fileStamp struct {
	size    int64
	modTime int64
	exists  bool
}

// NewWatcher creates a watcher for path. onChange runs on the watcher's
// goroutine.
func NewWatcher(path string, logger zerolog.Logger, onChange func(path string)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.IOf(err, "absolute path of %s", path)
	}
	w := &Watcher{
		path:     absPath,
		logger:   logger,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
	w.Mark()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The directory is watched so that atomic
// replacements are seen.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.IO(err, "create watcher")
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.IOf(err, "watch directory %s", dir)
	}
	w.watcher = watcher

	go w.watchLoop()

	w.logger.Debug().Str("path", w.path).Msg("watching document for external changes")
	return nil
}

// Mark records the current file state as known.
func (w *Watcher) Mark() {
	st := stat(w.path)
	w.mu.Lock()
	w.mark = st
	w.mu.Unlock()
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchLoop() {
	filename := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// atomic save = create or rename
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if !w.changed() {
				continue
			}

			w.logger.Info().
				Str("event", event.Op.String()).
				Str("path", w.path).
				Msg("document changed on disk")

			if w.onChange != nil {
				w.onChange(w.path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// changed compares the file with the mark and moves the mark forward so a
// burst of events for one write is reported once.
func (w *Watcher) changed() bool {
	st := stat(w.path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if st == w.mark {
		return false
	}
	w.mark = st
	return true
}

func stat(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{size: fi.Size(), modTime: fi.ModTime().UnixNano(), exists: true}
}
