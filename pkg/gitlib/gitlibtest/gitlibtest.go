// Package gitlibtest builds throwaway repositories for tests.
package gitlibtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

const (
	// AuthorName is the author recorded on every commit made by a Repo.
	AuthorName = "Test User"
	// AuthorEmail is the author email recorded on every commit made by a Repo.
	AuthorEmail = "test@example.com"
)

// epoch is the time of the first commit; each further commit is one minute later.
var epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// Repo is a temporary repository with helpers for building history.
type Repo struct {
	t     testing.TB
	Dir   string
	Repo  *gitlib.Repository
	clock time.Time
}

// New initializes an empty repository in a temporary directory. The handle is
// freed when the test finishes.
func New(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := gitlib.InitRepository(dir)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{t: t, Dir: dir, Repo: repo, clock: epoch}
}

// WriteFile creates or overwrites a file relative to the working directory.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()

	path := filepath.Join(r.Dir, filepath.FromSlash(name))

	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
}

// RemoveFile deletes a file from the working directory.
func (r *Repo) RemoveFile(name string) {
	r.t.Helper()

	require.NoError(r.t, os.Remove(filepath.Join(r.Dir, filepath.FromSlash(name))))
}

// Commit stages everything and commits it one minute after the previous commit.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	r.clock = r.clock.Add(time.Minute)

	return r.CommitAt(message, r.clock)
}

// CommitAt stages everything and commits it with the given author time.
func (r *Repo) CommitAt(message string, when time.Time) gitlib.Hash {
	r.t.Helper()

	require.NoError(r.t, r.Repo.AddAll())

	hash, err := r.Repo.Commit(message, r.signature(when))
	require.NoError(r.t, err)

	return hash
}

// Merge stages everything and commits it with HEAD as first parent and other as
// second parent.
func (r *Repo) Merge(message string, other gitlib.Hash) gitlib.Hash {
	r.t.Helper()

	require.NoError(r.t, r.Repo.AddAll())

	native := r.Repo.Native()

	idx, err := native.Index()
	require.NoError(r.t, err)
	defer idx.Free()

	treeID, err := idx.WriteTree()
	require.NoError(r.t, err)

	tree, err := native.LookupTree(treeID)
	require.NoError(r.t, err)
	defer tree.Free()

	head, err := r.Repo.Head()
	require.NoError(r.t, err)

	first, err := native.LookupCommit(head.ToOid())
	require.NoError(r.t, err)
	defer first.Free()

	second, err := native.LookupCommit(other.ToOid())
	require.NoError(r.t, err)
	defer second.Free()

	r.clock = r.clock.Add(time.Minute)
	sig := &git2go.Signature{Name: AuthorName, Email: AuthorEmail, When: r.clock}

	oid, err := native.CreateCommit("HEAD", sig, sig, message, tree, first, second)
	require.NoError(r.t, err)

	return gitlib.HashFromOid(oid)
}

// Branch creates a local branch at HEAD.
func (r *Repo) Branch(name string) {
	r.t.Helper()

	head, err := r.Repo.Head()
	require.NoError(r.t, err)
	require.NoError(r.t, r.Repo.CreateBranch(name, head))
}

// Switch checks out a local branch and attaches HEAD to it.
func (r *Repo) Switch(name string) {
	r.t.Helper()

	tip, err := r.Repo.BranchTip(name)
	require.NoError(r.t, err)
	require.NoError(r.t, r.Repo.CheckoutCommitTree(tip))
	require.NoError(r.t, r.Repo.SetHead(name))
}

// CurrentBranch returns the branch HEAD is attached to.
func (r *Repo) CurrentBranch() string {
	r.t.Helper()

	state, err := r.Repo.HeadState()
	require.NoError(r.t, err)

	return state.Branch
}

// CommitTime returns the author time of a commit.
func (r *Repo) CommitTime(hash gitlib.Hash) time.Time {
	r.t.Helper()

	commit, err := r.Repo.LookupCommit(context.Background(), hash)
	require.NoError(r.t, err)
	defer commit.Free()

	return commit.Author().When
}

func (r *Repo) signature(when time.Time) gitlib.Signature {
	return gitlib.Signature{Name: AuthorName, Email: AuthorEmail, When: when}
}
