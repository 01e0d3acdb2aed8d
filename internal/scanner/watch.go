package scanner

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/models"
)

// Watcher re-triggers an incremental ScanFolder shortly after local
// filesystem activity settles, grounded on the teacher's
// Debouncer/addWatchRecursive idiom. Only local backends can be
// watched; object-store folders rely on periodic or manual scans.
type Watcher struct {
	svc      *Service
	folder   models.MusicFolder
	backend  nfs.Backend
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]*time.Timer
}

func NewWatcher(svc *Service, folder models.MusicFolder, backend nfs.Backend, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		svc:      svc,
		folder:   folder,
		backend:  backend,
		fsw:      fsw,
		debounce: debounce,
		watched:  make(map[string]bool),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run watches folder.Path until ctx is cancelled, triggering a fresh
// incremental scan a debounce period after activity quiets down.
func (w *Watcher) Run(ctx context.Context) error {
	resolved, err := filepath.EvalSymlinks(w.folder.Path)
	if err != nil {
		return err
	}
	if err := w.addWatchRecursive(resolved); err != nil {
		return err
	}
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch %q: %v", w.folder.Name, err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatchRecursive(event.Name)
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.scheduleRescan(ctx)
}

// scheduleRescan coalesces a burst of events into a single incremental
// scan, firing debounce after the last observed event.
func (w *Watcher) scheduleRescan(ctx context.Context) {
	const key = "rescan"
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[key]; ok {
		t.Stop()
	}
	w.pending[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()
		if _, err := w.svc.ScanFolder(ctx, w.folder, w.backend, false); err != nil {
			log.Printf("watch rescan %q: %v", w.folder.Name, err)
		}
	})
}

func (w *Watcher) addWatchRecursive(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		if w.watched[path] {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("watch: add %q: %v", path, err)
			return nil
		}
		w.watched[path] = true
		return nil
	})
}
