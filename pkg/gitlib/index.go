package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// AddAll stages every change in the working tree, like `git add -A`.
func (r *Repository) AddAll() error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	idx, err := r.repo.Index()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Free()

	err = idx.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	if err != nil {
		return fmt.Errorf("add all: %w", err)
	}

	// Drop entries whose files were deleted from the working tree.
	err = idx.UpdateAll([]string{"*"}, nil)
	if err != nil {
		return fmt.Errorf("update all: %w", err)
	}

	err = idx.Write()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// Commit writes the current index as a commit on HEAD. On an unborn branch the
// commit is created without parents.
func (r *Repository) Commit(message string, author Signature) (Hash, error) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	idx, err := r.repo.Index()
	if err != nil {
		return Hash{}, fmt.Errorf("open index: %w", err)
	}
	defer idx.Free()

	treeID, err := idx.WriteTree()
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	tree, err := r.repo.LookupTree(treeID)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: lookup tree %s: %w", ErrObjectNotFound, HashFromOid(treeID), err)
	}
	defer tree.Free()

	parents := make([]*git2go.Commit, 0, 1)

	if !r.IsHeadUnborn() {
		head, headErr := r.Head()
		if headErr != nil {
			return Hash{}, headErr
		}

		parent, lookupErr := r.repo.LookupCommit(head.ToOid())
		if lookupErr != nil {
			return Hash{}, fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, head, lookupErr)
		}
		defer parent.Free()

		parents = append(parents, parent)
	}

	sig := author.native()

	oid, err := r.repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}
