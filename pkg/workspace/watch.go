package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hed-standard/hed-lsp/internal/manager"
)

// Watcher reloads detected schema versions when a dataset descriptor next to
// an open document is created, edited or removed.
type Watcher struct {
	session *Session
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	dirs    map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
}

// Watch starts a descriptor watcher for the session. Directories of
// documents opened from now on, and their ancestors up to the descriptor
// search depth, are watched. Shutdown stops it.
func (s *Session) Watch(ctx context.Context) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create descriptor watcher: %w", err)
	}
	w := &Watcher{
		session: s,
		watcher: fw,
		dirs:    make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.watcher
	s.watcher = w
	var paths []string
	for _, snap := range s.docs {
		paths = append(paths, snap.path)
	}
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	go w.run(ctx)
	for _, p := range paths {
		w.watchDocument(p)
	}
	return w, nil
}

// watchDocument adds the document's directory and its ancestors.
func (w *Watcher) watchDocument(path string) {
	dir := filepath.Dir(path)
	for depth := 0; depth < manager.MaxDescriptorDepth; depth++ {
		w.add(dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.dirs[dir] {
		return
	}
	w.dirs[dir] = true
	if err := w.watcher.Add(dir); err != nil {
		w.session.log.Debug("cannot watch directory", "dir", dir, "error", err)
	}
}

// Stop ends the event loop and releases the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.session.log.Warn("closing descriptor watcher", "error", err)
	}
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
			w.session.log.Warn("descriptor watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !strings.EqualFold(filepath.Base(event.Name), manager.DescriptorFile) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	dir := filepath.Dir(event.Name)
	w.session.log.Info("dataset descriptor changed", "path", event.Name, "op", event.Op.String())
	w.session.InvalidateUnder(dir)
}

func isUnder(path, dir string) bool {
	dir = filepath.Clean(dir)
	return strings.HasPrefix(filepath.Clean(path), dir+string(filepath.Separator))
}
