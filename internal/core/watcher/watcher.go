package watcher

import (
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"dagestimator/internal/shared/observability"
)

// Watcher reports batches of changed input files. Directories are watched
// recursively; a watched file path only reports that file. Writes that leave
// a file's content unchanged are dropped.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	debounce    time.Duration
	excludeDirs []glob.Glob
	extFilters  map[string]bool
	nameFilters map[string]bool
	skipTests   bool
	onChange    func([]string)
	callbackMu  sync.Mutex

	// files holds explicitly watched file paths; when non-empty, events for
	// other files in their directories are ignored.
	files map[string]bool

	pending   map[string]bool
	hashes    map[string][sha256.Size]byte
	pendingMu sync.Mutex
	timer     *time.Timer
	closeOnce sync.Once
}

func NewWatcher(debounce time.Duration, excludeDirs []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:   fsw,
		debounce:    debounce,
		excludeDirs: compiledDirs,
		onChange:    onChange,
		files:       make(map[string]bool),
		pending:     make(map[string]bool),
		hashes:      make(map[string][sha256.Size]byte),
	}, nil
}

// SetFilters limits directory events to the given extensions and file names.
// With skipTests set, Go test files are ignored.
func (w *Watcher) SetFilters(extensions, filenames []string, skipTests bool) {
	w.extFilters = lowerSet(extensions)
	w.nameFilters = lowerSet(filenames)
	w.skipTests = skipTests
}

func lowerSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if normalized := strings.ToLower(strings.TrimSpace(v)); normalized != "" {
			out[normalized] = true
		}
	}
	return out
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := w.watchRecursive(path, true); err != nil {
				return err
			}
			continue
		}
		clean := filepath.Clean(path)
		w.files[clean] = true
		w.remember(clean)
		if err := w.fsWatcher.Add(filepath.Dir(clean)); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

// watchRecursive adds root and its subdirectories. With baseline set, the
// files found are hashed so that later no-op writes are recognized.
func (w *Watcher) watchRecursive(root string, baseline bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		if baseline && !w.shouldExcludeFile(path) {
			w.remember(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create && len(w.files) == 0 {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, false); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	// Content is compared once the burst has settled, not per event.
	kept := paths[:0]
	for _, path := range paths {
		if w.changed(path) {
			kept = append(kept, path)
		}
	}
	paths = kept

	if len(paths) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

func hashFile(path string) ([sha256.Size]byte, bool) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, false
	}
	copy(sum[:], h.Sum(nil))
	return sum, true
}

func (w *Watcher) remember(path string) {
	if sum, ok := hashFile(path); ok {
		w.pendingMu.Lock()
		w.hashes[path] = sum
		w.pendingMu.Unlock()
	}
}

func (w *Watcher) forget(path string) {
	w.pendingMu.Lock()
	delete(w.hashes, path)
	w.pendingMu.Unlock()
}

// changed records the current content hash of path and reports whether it
// differs from the last one seen. Unreadable files count as changed.
func (w *Watcher) changed(path string) bool {
	sum, ok := hashFile(path)
	if !ok {
		return true
	}
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	prev, seen := w.hashes[path]
	w.hashes[path] = sum
	return !seen || prev != sum
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	if len(w.files) > 0 {
		return !w.files[filepath.Clean(path)]
	}

	base := strings.ToLower(filepath.Base(path))
	if w.skipTests && strings.HasSuffix(base, "_test.go") {
		return true
	}
	if len(w.extFilters) > 0 || len(w.nameFilters) > 0 {
		if !w.nameFilters[base] && !w.extFilters[strings.ToLower(filepath.Ext(base))] {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
