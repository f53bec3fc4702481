package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// DefaultDebounce is the quiet period after the last event before a batch
// of changes is delivered
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the slash separated relative paths changed since the
// previous call
type ChangeFunc func(ctx context.Context, paths []string)

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher watches every non-excluded directory under a root
type Watcher struct {
	root     string
	filters  config.IndexConfig
	onChange ChangeFunc
	logger   *zap.Logger
	debounce time.Duration

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New registers watches under root. Events are not delivered until Start.
func New(root string, filters config.IndexConfig, onChange ChangeFunc, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		filters:  filters,
		onChange: onChange,
		logger:   logger,
		debounce: DefaultDebounce,
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins delivering changes in a background goroutine
func (w *Watcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

// Close stops the watcher and waits for a running callback to return.
// Pending changes are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

// addTree watches dir and every directory below it that is not excluded
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, ok := w.rel(path); !ok || w.filters.Excluded(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	var fire <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, relevant := w.handle(event)
			if !relevant {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			w.onChange(ctx, paths)
		}
	}
}

// handle filters an event and starts watching new directories. It reports
// whether the event can change the index.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	rel, ok := w.rel(event.Name)
	if !ok || w.filters.Excluded(rel) {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", rel), zap.Error(err))
			}
			return rel, true
		}
	}

	// A removed or renamed directory has no extension and still matters
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if filepath.Ext(rel) == "" {
			return rel, true
		}
	}

	if !w.filters.Included(rel) || !w.filters.AllowsLanguage(types.DetectLanguage(rel)) {
		return "", false
	}
	return rel, true
}
