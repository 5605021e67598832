package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Change describes a module file that appeared or was rewritten.
type Change struct {
	Name    string
	Path    string
	Created bool
}

// ChangeFunc receives changes from a Watcher. It runs on the watcher goroutine.
type ChangeFunc func(Change)

// Watcher watches directory sources for module files and reports them by
// module name. Subdirectories created after Add are picked up as well.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange ChangeFunc
	roots    map[string]string // watched dir -> root it belongs to
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a watcher that reports to fn.
func NewWatcher(fn ChangeFunc) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		onChange: fn,
		roots:    make(map[string]string),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	root = filepath.Clean(root)
	return w.addTree(root, root)
}

func (w *Watcher) addTree(root, start string) error {
	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watchDir(root, p)
	})
}

func (w *Watcher) watchDir(root, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.roots[dir] = root
	w.mu.Unlock()
	Logger().Debug("watching module directory", zap.String("dir", dir))
	return nil
}

// Start begins delivering changes. It returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends delivery and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			Logger().Warn("module watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	created := event.Op&fsnotify.Create != 0
	if !created && event.Op&fsnotify.Write == 0 {
		return
	}

	dir := filepath.Dir(event.Name)
	w.mu.Lock()
	root, ok := w.roots[dir]
	w.mu.Unlock()
	if !ok {
		return
	}

	if created {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(root, event.Name); err != nil {
				Logger().Warn("watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return
	}
	name, ok := Name(filepath.ToSlash(rel))
	if !ok {
		return
	}

	Logger().Debug("module file changed",
		zap.String("module", name),
		zap.String("path", event.Name),
		zap.Bool("created", created))
	w.onChange(Change{Name: name, Path: event.Name, Created: created})
}
