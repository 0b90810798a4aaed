package watcher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileWatcher reports changes to a single file. The parent directory is
// watched so editors that replace the file by rename are still seen.
type FileWatcher struct {
	path      string
	debouncer *Debouncer
	onChange  func(path string)
	log       logrus.FieldLogger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopped bool
	done    chan struct{}
}

// Option configures a FileWatcher
type Option func(*FileWatcher)

// WithDebounce sets the quiet period
func WithDebounce(wait time.Duration) Option {
	return func(w *FileWatcher) {
		w.debouncer = NewDebouncer(wait)
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *FileWatcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewFileWatcher creates a watcher calling onChange after path changes
func NewFileWatcher(path string, onChange func(path string), opts ...Option) *FileWatcher {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	w := &FileWatcher{
		path:      filepath.Clean(path),
		debouncer: NewDebouncer(0),
		onChange:  onChange,
		log:       discard,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching until ctx is done or Stop is called
func (w *FileWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.loop(ctx, fsw)
	return nil
}

func (w *FileWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.WithFields(logrus.Fields{"path": ev.Name, "op": ev.Op.String()}).Debug("file changed")
			w.debouncer.Trigger(func() { w.onChange(w.path) })
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

// Stop releases the watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.debouncer.Cancel()
	if w.fsw != nil {
		w.fsw.Close()
	}
}

// Done is closed when the watch loop exits
func (w *FileWatcher) Done() <-chan struct{} {
	return w.done
}

// Path returns the watched file
func (w *FileWatcher) Path() string {
	return w.path
}
