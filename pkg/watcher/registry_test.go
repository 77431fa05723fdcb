package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/watcher"
)

const eventTimeout = 5 * time.Second

func newRegistry(t *testing.T) *watcher.Registry {
	t.Helper()

	reg, err := watcher.NewRegistry(nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reg.Close() })

	return reg
}

// tempDir resolves symlinks so event paths compare equal to the watched root.
func tempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return dir
}

// waitFor collects events until one matches path and kind.
func waitFor(t *testing.T, reg *watcher.Registry, path string, kind watcher.Kind) []watcher.Event {
	t.Helper()

	var seen []watcher.Event

	deadline := time.After(eventTimeout)

	for {
		select {
		case ev, ok := <-reg.Events():
			require.True(t, ok, "events channel closed")

			seen = append(seen, ev)

			if ev.Path == path && ev.Kind == kind {
				return seen
			}
		case <-deadline:
			require.FailNow(t, "timed out waiting for event", "%s %s; seen %v", kind, path, seen)
		}
	}
}

func eventPaths(events []watcher.Event) []string {
	paths := make([]string, 0, len(events))
	for _, ev := range events {
		paths = append(paths, ev.Path)
	}

	return paths
}

func TestRegistryDeliversCreateModifyRemove(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)

	require.NoError(t, reg.Watch(dir, watcher.Options{Recursive: true}))

	file := filepath.Join(dir, "a.txt")

	require.NoError(t, os.WriteFile(file, []byte("one\n"), 0o644))

	events := waitFor(t, reg, file, watcher.KindCreate)
	assert.Equal(t, dir, events[len(events)-1].Root)

	require.NoError(t, os.WriteFile(file, []byte("two\n"), 0o644))
	waitFor(t, reg, file, watcher.KindModify)

	require.NoError(t, os.Remove(file))
	waitFor(t, reg, file, watcher.KindRemove)
}

func TestRegistryRecursiveFollowsNewDirectories(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "existing"), 0o755))
	require.NoError(t, reg.Watch(dir, watcher.Options{Recursive: true}))

	nested := filepath.Join(dir, "existing", "n.txt")
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))
	waitFor(t, reg, nested, watcher.KindCreate)

	fresh := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(fresh, 0o755))
	waitFor(t, reg, fresh, watcher.KindCreate)

	inner := filepath.Join(fresh, "inner.txt")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	waitFor(t, reg, inner, watcher.KindCreate)
}

func TestRegistryRecursiveFollowsRecreatedDirectories(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "deeper"), 0o755))
	require.NoError(t, reg.Watch(dir, watcher.Options{Recursive: true}))

	require.NoError(t, os.RemoveAll(sub))
	waitFor(t, reg, sub, watcher.KindRemove)

	require.NoError(t, os.Mkdir(sub, 0o755))
	waitFor(t, reg, sub, watcher.KindCreate)

	inner := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	waitFor(t, reg, inner, watcher.KindCreate)

	require.NoError(t, os.Mkdir(filepath.Join(sub, "deeper"), 0o755))
	waitFor(t, reg, filepath.Join(sub, "deeper"), watcher.KindCreate)

	nested := filepath.Join(sub, "deeper", "n.txt")
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))
	waitFor(t, reg, nested, watcher.KindCreate)
}

func TestRegistryNonRecursiveSkipsSubdirectories(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, reg.Watch(dir, watcher.Options{}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "hidden.txt"), []byte("x"), 0o644))

	marker := filepath.Join(dir, "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

	events := waitFor(t, reg, marker, watcher.KindCreate)
	assert.NotContains(t, eventPaths(events), filepath.Join(dir, "sub", "hidden.txt"))
}

func TestRegistryIgnorePathsAndPatterns(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("build/\n"), 0o644))

	opts := watcher.DefaultOptions()
	opts.Gitignore = true
	opts.Patterns = []string{"*.log"}

	require.NoError(t, reg.Watch(dir, opts))

	ignored := []string{
		filepath.Join(dir, ".git", "index.lock"),
		filepath.Join(dir, "build", "out.bin"),
		filepath.Join(dir, "debug.log"),
	}

	for _, p := range ignored {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	marker := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(marker, []byte("package main\n"), 0o644))

	events := waitFor(t, reg, marker, watcher.KindCreate)

	for _, p := range ignored {
		assert.NotContains(t, eventPaths(events), p)
	}
}

func TestRegistryBookkeeping(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	first := tempDir(t)
	second := tempDir(t)

	require.NoError(t, reg.Watch(first, watcher.DefaultOptions()))
	require.NoError(t, reg.Watch(second, watcher.Options{}))

	err := reg.Watch(first, watcher.Options{})
	require.ErrorIs(t, err, watcher.ErrAlreadyWatching)

	err = reg.Watch(filepath.Join(first, "missing"), watcher.Options{})
	require.ErrorIs(t, err, watcher.ErrPathNotExist)

	assert.True(t, reg.IsWatching(first))
	assert.ElementsMatch(t, []string{first, second}, reg.WatchedPaths())

	assert.True(t, reg.Unwatch(first))
	assert.False(t, reg.Unwatch(first))
	assert.False(t, reg.IsWatching(first))
	assert.Equal(t, []string{second}, reg.WatchedPaths())

	assert.True(t, reg.UnwatchAll())
	assert.False(t, reg.UnwatchAll())
	assert.Empty(t, reg.WatchedPaths())
}

func TestRegistryOverlappingRootsShareWatches(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	dir := tempDir(t)
	sub := filepath.Join(dir, "sub")

	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, reg.Watch(dir, watcher.Options{Recursive: true}))
	require.NoError(t, reg.Watch(sub, watcher.Options{Recursive: true}))

	require.True(t, reg.Unwatch(sub))

	file := filepath.Join(sub, "still.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	events := waitFor(t, reg, file, watcher.KindCreate)
	assert.Equal(t, dir, events[len(events)-1].Root)
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()

	reg, err := watcher.NewRegistry(nil)
	require.NoError(t, err)

	dir := tempDir(t)
	require.NoError(t, reg.Watch(dir, watcher.Options{}))

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	_, ok := <-reg.Events()
	assert.False(t, ok)

	require.ErrorIs(t, reg.Watch(dir, watcher.Options{}), watcher.ErrRegistryClosed)
}
