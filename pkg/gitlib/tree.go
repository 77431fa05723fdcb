package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// Hash returns the tree hash.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// WalkBlobs visits every blob in the tree in pre-order, passing its full
// slash-separated path. Returning an error from fn stops the walk.
func (t *Tree) WalkBlobs(ctx context.Context, fn func(path string, hash Hash) error) error {
	var cbErr error

	err := t.tree.Walk(func(root string, entry *git2go.TreeEntry) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			cbErr = ctxErr

			return ctxErr
		}

		if entry.Type != git2go.ObjectBlob {
			return nil
		}

		if err := fn(root+entry.Name, HashFromOid(entry.Id)); err != nil {
			cbErr = err

			return err
		}

		return nil
	})

	if cbErr != nil {
		return cbErr
	}

	if err != nil {
		return fmt.Errorf("walk tree %s: %w", t.Hash(), err)
	}

	return nil
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// Native returns the underlying libgit2 tree.
func (t *Tree) Native() *git2go.Tree {
	if t == nil {
		return nil
	}

	return t.tree
}
