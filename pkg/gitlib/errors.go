package gitlib

import (
	"errors"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors. Every engine failure surfaced by this package wraps exactly one
// of them together with the failing operation and its target.
var (
	// ErrRepositoryNotFound is returned when no repository can be opened or discovered.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrReferenceResolution is returned when HEAD, a branch or a tag cannot be resolved.
	ErrReferenceResolution = errors.New("reference resolution failed")
	// ErrObjectNotFound is returned when a commit, tree, blob or tag lookup fails.
	ErrObjectNotFound = errors.New("object not found")
	// ErrDiffComputation is returned when libgit2 fails to compute a diff.
	ErrDiffComputation = errors.New("diff computation failed")
	// ErrCheckoutConflict is returned when a checkout collides with local modifications.
	ErrCheckoutConflict = errors.New("checkout conflict")
	// ErrDetachedHead is returned by branch queries while HEAD points at a commit.
	ErrDetachedHead = errors.New("HEAD is not a branch")
	// ErrInvalidHash is returned when a string is not a full hex object id.
	ErrInvalidHash = errors.New("invalid object id")
)

// isNotFound reports whether err is a libgit2 "not found" failure.
func isNotFound(err error) bool {
	return git2go.IsErrorCode(err, git2go.ErrorCodeNotFound)
}

// isUnborn reports whether err means HEAD points at a branch with no commits yet.
func isUnborn(err error) bool {
	return git2go.IsErrorCode(err, git2go.ErrorCodeUnbornBranch) || isNotFound(err)
}

// isConflict reports whether err is a libgit2 checkout conflict.
func isConflict(err error) bool {
	return git2go.IsErrorCode(err, git2go.ErrorCodeConflict) ||
		git2go.IsErrorCode(err, git2go.ErrorCodeUncommitted)
}
