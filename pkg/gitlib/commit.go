package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrParentNotFound is returned when the requested parent commit does not exist.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	return signatureFrom(c.commit.Author())
}

// Committer returns the commit committer.
func (c *Commit) Committer() Signature {
	return signatureFrom(c.commit.Committer())
}

// Message returns the full commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount())
}

// Parent returns the nth parent commit.
func (c *Commit) Parent(n int) (*Commit, error) {
	if n < 0 || n >= c.NumParents() {
		return nil, fmt.Errorf("%w: parent %d of %s", ErrParentNotFound, n, c.Hash())
	}

	parent := c.commit.Parent(uint(n))
	if parent == nil {
		return nil, fmt.Errorf("%w: parent %d of %s", ErrParentNotFound, n, c.Hash())
	}

	return &Commit{commit: parent, repo: c.repo}, nil
}

// ParentHashes returns the parent hashes in order.
func (c *Commit) ParentHashes() []Hash {
	count := c.commit.ParentCount()
	hashes := make([]Hash, 0, count)

	for i := range count {
		hashes = append(hashes, HashFromOid(c.commit.ParentId(i)))
	}

	return hashes
}

// Tree returns the tree associated with this commit.
func (c *Commit) Tree() (*Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: tree of commit %s: %w", ErrObjectNotFound, c.Hash(), err)
	}

	return &Tree{tree: tree, repo: c.repo}, nil
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// Native returns the underlying libgit2 commit.
func (c *Commit) Native() *git2go.Commit {
	return c.commit
}
