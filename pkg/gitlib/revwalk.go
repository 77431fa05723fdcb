package gitlib

import (
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// RevWalk wraps a libgit2 revision walker.
type RevWalk struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Walk creates a revision walker ordered most recent first: commit time with
// topological ordering so no parent is emitted before its children.
func (r *Repository) Walk() (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	return &RevWalk{walk: walk, repo: r}, nil
}

// Push adds a commit to start walking from.
func (w *RevWalk) Push(hash Hash) error {
	err := w.walk.Push(hash.ToOid())
	if err != nil {
		return fmt.Errorf("%w: push %s to revwalk: %w", ErrReferenceResolution, hash, err)
	}

	return nil
}

// Next returns the next commit hash in the walk, or io.EOF when exhausted.
func (w *RevWalk) Next() (Hash, error) {
	oid := new(git2go.Oid)

	err := w.walk.Next(oid)
	if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		return Hash{}, io.EOF
	}

	if err != nil {
		return Hash{}, fmt.Errorf("revwalk next: %w", err)
	}

	return HashFromOid(oid), nil
}

// Free releases the walker resources.
func (w *RevWalk) Free() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}
