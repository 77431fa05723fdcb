package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// CheckoutCommitTree updates the index and working tree to match the tree of the
// given commit using libgit2's safe strategy: files with local modifications are
// never overwritten. HEAD is left untouched.
func (r *Repository) CheckoutCommitTree(target Hash) error {
	commit, err := r.repo.LookupCommit(target.ToOid())
	if err != nil {
		return fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, target, err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("%w: tree of commit %s: %w", ErrObjectNotFound, target, err)
	}
	defer tree.Free()

	err = r.repo.CheckoutTree(tree, &git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe})
	if isConflict(err) {
		return fmt.Errorf("%w: checkout %s: %w", ErrCheckoutConflict, target, err)
	}

	if err != nil {
		return fmt.Errorf("checkout %s: %w", target, err)
	}

	return nil
}
