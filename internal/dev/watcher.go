package dev

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Op is the kind of file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	default:
		return "remove"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Op   Op
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the files and directories to watch.
	Paths []string

	// Ignore contains doublestar globs matched against the path relative to
	// its watch root and against the base name.
	Ignore []string

	// SkipDirs are absolute directories never scanned, such as the output
	// directory.
	SkipDirs []string

	// Interval is the scan period.
	Interval time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".vpack-*",
	"*.tmp",
	"*.swp",
	"*~",
	".DS_Store",
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls the watched paths and reports changes in batches.
type Watcher struct {
	config   WatcherConfig
	onChange func([]Change)
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	files    map[string]fileState
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}
	config.Ignore = append(append([]string{}, DefaultIgnore...), config.Ignore...)
	for i, dir := range config.SkipDirs {
		config.SkipDirs[i] = filepath.Clean(dir)
	}

	return &Watcher{
		config: config,
		files:  make(map[string]fileState),
	}
}

// OnChange sets the callback for change batches. It is called from the
// watcher goroutine.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start scans the watched paths once and then polls until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.files = w.scan()
	w.mu.Unlock()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// poll rescans and reports the difference to the previous scan.
func (w *Watcher) poll() {
	current := w.scan()

	w.mu.Lock()
	changes := diff(w.files, current)
	w.files = current
	callback := w.onChange
	w.mu.Unlock()

	if len(changes) > 0 && callback != nil {
		callback(changes)
	}
}

// diff returns the changes from prev to next, sorted by path.
func diff(prev, next map[string]fileState) []Change {
	var changes []Change
	for p, st := range next {
		old, ok := prev[p]
		switch {
		case !ok:
			changes = append(changes, Change{Path: p, Op: OpCreate})
		case !st.modTime.Equal(old.modTime) || st.size != old.size:
			changes = append(changes, Change{Path: p, Op: OpWrite})
		}
	}
	for p := range prev {
		if _, ok := next[p]; !ok {
			changes = append(changes, Change{Path: p, Op: OpRemove})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// scan records every watched file.
func (w *Watcher) scan() map[string]fileState {
	files := make(map[string]fileState)
	for _, root := range w.config.Paths {
		root = filepath.Clean(root)
		filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != root && (w.skipDir(p) || w.shouldIgnore(root, p)) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.shouldIgnore(root, p) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files[p] = fileState{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
	}
	return files
}

func (w *Watcher) skipDir(p string) bool {
	for _, dir := range w.config.SkipDirs {
		if p == dir {
			return true
		}
	}
	return false
}

// shouldIgnore checks p against the ignore globs, using its path relative
// to root and its base name.
func (w *Watcher) shouldIgnore(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = p
	}
	rel = filepath.ToSlash(rel)
	name := filepath.Base(p)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, name); ok {
				return true
			}
			continue
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
