package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// DefaultDebounceInterval is how long the watcher waits after the last
	// event on a file before reporting it.
	DefaultDebounceInterval = 100 * time.Millisecond
)

// FileChange describes a group file or manifest that changed on disk.
type FileChange struct {
	// GroupKey is the encoded group name, empty for manifest changes.
	GroupKey string
	// Index is true when the manifest changed.
	Index bool
	// Removed is true when the file no longer exists.
	Removed bool
}

// ChangeFunc is called once per debounced change.
type ChangeFunc func(change FileChange)

// FileWatcher reports changes to the files of a FileStorage, including
// writes made by other processes sharing the data directory.
type FileWatcher struct {
	notesDir         string
	indexPath        string
	onChange         ChangeFunc
	logger           *zap.Logger
	debounceInterval time.Duration

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
	started   bool
	closeOnce sync.Once

	// debounce state per file
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewFileWatcher creates a watcher for the notes directory and manifest.
// logger may be nil.
func NewFileWatcher(notesDir, indexPath string, onChange ChangeFunc, logger *zap.Logger) (*FileWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileWatcher{
		notesDir:         filepath.Clean(notesDir),
		indexPath:        filepath.Clean(indexPath),
		onChange:         onChange,
		logger:           logger.With(zap.String("component", "watcher")),
		debounceInterval: DefaultDebounceInterval,
		watcher:          fsWatcher,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
		pending:          make(map[string]*time.Timer),
	}, nil
}

// WatchStorage creates a watcher over the directories of s.
func WatchStorage(s *FileStorage, onChange ChangeFunc, logger *zap.Logger) (*FileWatcher, error) {
	return NewFileWatcher(s.NotesDir(), s.IndexPath(), onChange, logger)
}

// SetDebounceInterval changes the debounce interval. Call before Start.
func (w *FileWatcher) SetDebounceInterval(d time.Duration) {
	w.debounceInterval = d
}

// Start begins watching. Both directories must exist, which Init on the
// storage guarantees.
func (w *FileWatcher) Start() error {
	if err := w.watcher.Add(w.notesDir); err != nil {
		return err
	}
	indexDir := filepath.Dir(w.indexPath)
	if indexDir != w.notesDir {
		if err := w.watcher.Add(indexDir); err != nil {
			return err
		}
	}
	w.logger.Info("watching notes directory", zap.String("dir", w.notesDir))

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.processEvents()
	return nil
}

// Close stops the watcher and cancels pending notifications.
func (w *FileWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()

		w.mu.Lock()
		for _, timer := range w.pending {
			timer.Stop()
		}
		w.pending = nil
		started := w.started
		w.mu.Unlock()

		if started {
			<-w.doneChan
		}
	})
}

func (w *FileWatcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)
	if strings.HasSuffix(path, tmpFileSuffix) {
		return
	}

	var change FileChange
	switch {
	case path == w.indexPath:
		change.Index = true
	case filepath.Dir(path) == w.notesDir:
		change.GroupKey = groupKeyFromFile(filepath.Base(path))
		if change.GroupKey == "" {
			return
		}
	default:
		return
	}

	w.logger.Debug("file change detected", zap.String("file", filepath.Base(path)), zap.String("op", event.Op.String()))
	w.schedule(path, change)
}

// schedule reports change after the debounce interval, restarting the
// timer if the same file changes again.
func (w *FileWatcher) schedule(path string, change FileChange) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		return
	}
	if timer, exists := w.pending[path]; exists {
		timer.Stop()
	}

	w.pending[path] = time.AfterFunc(w.debounceInterval, func() {
		w.fire(path, change)
	})
}

func (w *FileWatcher) fire(path string, change FileChange) {
	w.mu.Lock()
	if w.pending == nil {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		change.Removed = true
	}
	if w.onChange != nil {
		w.onChange(change)
	}
}
