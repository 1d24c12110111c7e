// Package watch reports debounced file changes under a directory tree.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen for a path.
type Op int

const (
	Create Op = iota
	Write
	Remove
	Rename
)

func (op Op) String() string {
	switch op {
	case Create:
		return "create"
	case Write:
		return "write"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one path that changed within a debounce window.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a batch with at most one Change per path, the latest.
type Handler func(changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must be quiet before a batch is sent.
	Debounce time.Duration
	// Ignore holds base names or filepath.Match patterns. A path is ignored
	// when any of its components matches.
	Ignore []string
	// BufferSize bounds pending events; extra events are dropped.
	BufferSize int
	Logger     *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Debounce:   300 * time.Millisecond,
		Ignore:     []string{".git", "node_modules", ".idea", "*.swp", "*.tmp", "*~", "__pycache__"},
		BufferSize: 1000,
	}
}

// Watcher watches a directory tree and any extra files added with AddFile.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	files    map[string]struct{}
	watching bool
}

// New creates a Watcher for root. Call Start to begin delivering changes.
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	if opts == nil {
		d := DefaultOptions()
		opts = &d
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		watcher:  fw,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		logger:   logger,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
		files:    map[string]struct{}{},
	}, nil
}

// Start adds the tree and begins delivering batches until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// AddFile watches a single file, which may live outside the root. Its
// parent directory is watched so that editors that replace the file on
// save are still seen.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.files[abs] = struct{}{}
	w.mu.Unlock()
	return w.watcher.Add(filepath.Dir(abs))
}

// Stop ends the watch. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("watch: skipping directory", "file", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, pattern := range w.ignore {
			if part == pattern {
				return true
			}
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}

// inScope reports whether path is in the tree or was added with AddFile.
// Watching a file's parent also reports its siblings, which are dropped.
func (w *Watcher) inScope(path string) bool {
	w.mu.Lock()
	_, explicit := w.files[path]
	w.mu.Unlock()
	if explicit {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	return err == nil && !strings.HasPrefix(rel, "..") && !w.shouldIgnore(path)
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := event.Name
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if !w.inScope(path) {
				continue
			}

			change := Change{Path: path, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("watch: event buffer full, dropping change", "file", path)
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if err := w.addRecursive(path); err != nil {
						w.logger.Warn("watch: add directory", "file", path, "error", err)
					}
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch: event queue overflowed, changes may be missed")
				continue
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return Create
	case op.Has(fsnotify.Write):
		return Write
	case op.Has(fsnotify.Remove):
		return Remove
	case op.Has(fsnotify.Rename):
		return Rename
	default:
		return Write
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			if deduped := dedupe(batch); len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, ok := seen[c.Path]; ok {
			result[idx] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}
