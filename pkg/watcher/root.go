package watcher

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// gitignoreFile is read from a root when Options.Gitignore is set.
const gitignoreFile = ".gitignore"

// root is one watched tree.
type root struct {
	path      string
	recursive bool
	ignores   []string
	matchers  []*ignore.GitIgnore
	dirs      map[string]struct{}
}

func newRoot(path string, opts Options) *root {
	r := &root{
		path:      path,
		recursive: opts.Recursive,
		dirs:      make(map[string]struct{}),
	}

	for _, p := range opts.IgnorePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(path, p)
		}

		r.ignores = append(r.ignores, filepath.Clean(p))
	}

	if opts.Gitignore {
		// A root without a .gitignore simply has no file patterns.
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(path, gitignoreFile)); err == nil {
			r.matchers = append(r.matchers, gi)
		}
	}

	if len(opts.Patterns) > 0 {
		r.matchers = append(r.matchers, ignore.CompileIgnoreLines(opts.Patterns...))
	}

	return r
}

// covers reports whether an event on path belongs to this root.
func (r *root) covers(path string) bool {
	if path == r.path {
		return true
	}

	if r.recursive {
		return within(path, r.path)
	}

	return filepath.Dir(path) == r.path
}

// ignored reports whether path is excluded by the ignore paths or patterns.
func (r *root) ignored(path string, isDir bool) bool {
	for _, prefix := range r.ignores {
		if path == prefix || within(path, prefix) {
			return true
		}
	}

	if len(r.matchers) == 0 {
		return false
	}

	rel, err := filepath.Rel(r.path, path)
	if err != nil || rel == "." {
		return false
	}

	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}

	for _, m := range r.matchers {
		if m.MatchesPath(rel) {
			return true
		}
	}

	return false
}

func within(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
