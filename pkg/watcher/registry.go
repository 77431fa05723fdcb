package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultBufferSize = 256

// Options configures one watched root.
type Options struct {
	// Recursive watches every directory below the root, including ones
	// created later.
	Recursive bool
	// IgnorePaths suppresses events at or below these paths. Relative paths
	// are resolved against the root.
	IgnorePaths []string
	// Patterns are gitignore-style patterns matched relative to the root.
	Patterns []string
	// Gitignore also applies the root's .gitignore file.
	Gitignore bool
}

// DefaultOptions watches recursively and skips the repository metadata
// directory.
func DefaultOptions() Options {
	return Options{Recursive: true, IgnorePaths: []string{".git"}}
}

// Registry owns a set of watched roots backed by one fsnotify watcher.
type Registry struct {
	mu     sync.RWMutex
	fsw    *fsnotify.Watcher
	roots  map[string]*root
	dirRef map[string]int
	logger *slog.Logger

	events  chan Event
	errors  chan error
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry starts an empty registry. A nil logger discards diagnostics.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	r := &Registry{
		fsw:     fsw,
		roots:   make(map[string]*root),
		dirRef:  make(map[string]int),
		logger:  logger,
		events:  make(chan Event, defaultBufferSize),
		errors:  make(chan error, defaultBufferSize),
		closeCh: make(chan struct{}),
	}

	r.wg.Add(1)

	go r.loop()

	return r, nil
}

// Events returns the channel of change events. It is closed by Close.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Errors returns the channel of watch errors. It is closed by Close.
func (r *Registry) Errors() <-chan error {
	return r.errors
}

// Watch starts watching path. The path must exist.
func (r *Registry) Watch(path string, opts Options) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathNotExist, abs)
		}

		return fmt.Errorf("watch %s: %w", abs, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}

	if _, ok := r.roots[abs]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyWatching, abs)
	}

	rt := newRoot(abs, opts)

	if !info.IsDir() || !rt.recursive {
		err = r.addDir(rt, abs)
	} else {
		err = r.addTree(rt, abs)
	}

	if err != nil {
		r.release(rt)

		return fmt.Errorf("watch %s: %w", abs, err)
	}

	r.roots[abs] = rt

	r.logger.Debug("watching", "path", abs, "recursive", rt.recursive, "dirs", len(rt.dirs))

	return nil
}

// addTree watches dir and every non-ignored directory below it. Caller holds mu.
func (r *Registry) addTree(rt *root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish during the walk.
			return nil //nolint:nilerr // skip unreadable entries
		}

		if !d.IsDir() {
			return nil
		}

		if p != dir && rt.ignored(p, true) {
			return filepath.SkipDir
		}

		return r.addDir(rt, p)
	})
}

// addDir adds one fsnotify watch on behalf of rt. Caller holds mu.
func (r *Registry) addDir(rt *root, dir string) error {
	if _, ok := rt.dirs[dir]; ok {
		return nil
	}

	if r.dirRef[dir] == 0 {
		err := r.fsw.Add(dir)
		if err != nil {
			return err
		}
	}

	r.dirRef[dir]++
	rt.dirs[dir] = struct{}{}

	return nil
}

// forget drops dir and every tracked directory below it from rt after the
// directory was removed or renamed away. Caller holds mu.
func (r *Registry) forget(rt *root, dir string) {
	for tracked := range rt.dirs {
		if tracked != dir && !within(tracked, dir) {
			continue
		}

		delete(rt.dirs, tracked)
		r.unref(tracked)
	}
}

// unref drops one reference to an fsnotify watch, removing it at zero.
// Caller holds mu.
func (r *Registry) unref(dir string) {
	r.dirRef[dir]--

	if r.dirRef[dir] > 0 {
		return
	}

	delete(r.dirRef, dir)

	// The directory may already be gone, which removes the watch.
	_ = r.fsw.Remove(dir)
}

// release drops every fsnotify watch held by rt. Caller holds mu.
func (r *Registry) release(rt *root) {
	for dir := range rt.dirs {
		r.unref(dir)
	}

	rt.dirs = make(map[string]struct{})
}

// Unwatch stops watching path and reports whether it was watched.
func (r *Registry) Unwatch(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.roots[abs]
	if !ok {
		return false
	}

	r.release(rt)
	delete(r.roots, abs)

	return true
}

// UnwatchAll stops every watch and reports whether any existed.
func (r *Registry) UnwatchAll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	had := len(r.roots) > 0

	for key, rt := range r.roots {
		r.release(rt)
		delete(r.roots, key)
	}

	return had
}

// IsWatching reports whether path is a watched root.
func (r *Registry) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.roots[abs]

	return ok
}

// WatchedPaths returns the watched roots, sorted.
func (r *Registry) WatchedPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.roots))
	for p := range r.roots {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Close stops all watches and closes the event and error channels.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return nil
	}

	r.closed = true
	close(r.closeCh)
	r.mu.Unlock()

	r.wg.Wait()

	close(r.events)
	close(r.errors)

	err := r.fsw.Close()
	if err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}

	return nil
}

func (r *Registry) loop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.closeCh:
			return
		case ev, ok := <-r.fsw.Events:
			if !ok {
				return
			}

			r.handle(ev)
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}

			r.logger.Warn("watch error", "error", err)
			r.sendError(err)
		}
	}
}

func (r *Registry) handle(ev fsnotify.Event) {
	kind, ok := kindOf(ev.Op)
	if !ok {
		return
	}

	path := filepath.Clean(ev.Name)

	isDir := false
	if kind == KindCreate {
		if info, err := os.Stat(path); err == nil {
			isDir = info.IsDir()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rt := range r.sortedRoots() {
		if !rt.covers(path) {
			continue
		}

		if kind == KindRemove {
			r.forget(rt, path)
		}

		if rt.ignored(path, isDir) {
			continue
		}

		if isDir && rt.recursive {
			err := r.addTree(rt, path)
			if err != nil {
				r.logger.Warn("watch new directory", "path", path, "error", err)
			}
		}

		r.send(Event{Path: path, Kind: kind, Root: rt.path, Time: time.Now()})
	}
}

// sortedRoots returns roots in path order so overlapping roots deliver
// events deterministically. Caller holds mu.
func (r *Registry) sortedRoots() []*root {
	roots := make([]*root, 0, len(r.roots))
	for _, rt := range r.roots {
		roots = append(roots, rt)
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].path < roots[j].path })

	return roots
}

func (r *Registry) send(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("event buffer full, dropping event", "path", ev.Path, "kind", ev.Kind)
	}
}

func (r *Registry) sendError(err error) {
	select {
	case r.errors <- err:
	default:
	}
}
