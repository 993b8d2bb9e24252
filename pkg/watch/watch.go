// Package watch re-ingests documents when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes to one file into a single
// change notification.
const DefaultDebounce = 400 * time.Millisecond

// Handler reacts to document changes. Errors are logged; they never stop the
// watcher.
type Handler interface {
	// Changed is called after a document was created or written and has been
	// quiet for the debounce interval.
	Changed(ctx context.Context, path string) error

	// Removed is called after a document was removed or renamed away.
	Removed(ctx context.Context, path string) error
}

// Config is the configuration for a Watcher.
type Config struct {
	// Dir is the directory to watch. It is not watched recursively.
	Dir string

	// Extensions filters which files are reported, e.g. ".pdf". Empty
	// reports every file.
	Extensions []string

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	Handler Handler
	Logger  *slog.Logger
}

// Watcher watches a directory of documents.
type Watcher struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Watcher.
func New(c Config) (*Watcher, error) {
	if c.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if c.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}

	info, err := os.Stat(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", c.Dir)
	}

	return &Watcher{
		config:  c,
		logger:  c.Logger,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled. Pending debounced changes are dropped
// on return; handlers already running are waited for.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.config.Dir, err)
	}

	w.logger.Info("watching directory",
		"dir", w.config.Dir,
		"extensions", w.config.Extensions,
	)

	defer w.wg.Wait()
	defer w.cancelAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if !w.matches(path) {
		return
	}

	w.logger.Debug("watcher event", "op", event.Op.String(), "path", path)

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.debounce(ctx, path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(path)
		w.dispatch(func() error {
			return w.config.Handler.Removed(ctx, path)
		}, "removed", path)
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.config.Extensions) == 0 {
		return true
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.config.Extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) debounce(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}

	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.dispatch(func() error {
			return w.config.Handler.Changed(ctx, path)
		}, "changed", path)
	})
}

func (w *Watcher) dispatch(fn func() error, kind, path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	if err := fn(); err != nil {
		w.logger.Error("watch handler failed",
			"event", kind,
			"path", path,
			"error", err,
		)
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true

	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
