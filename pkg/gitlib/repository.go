package gitlib

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	git2go "github.com/libgit2/git2go/v34"
)

// MetadataDir is the name of the version-control metadata directory.
const MetadataDir = ".git"

// Repository wraps an open libgit2 repository session.
type Repository struct {
	repo *git2go.Repository
	path string

	// indexMu serializes use of the cached index, which libgit2 does not
	// guard against concurrent readers.
	indexMu sync.Mutex
}

// OpenRepository opens the git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open repository %s: %w", ErrRepositoryNotFound, path, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// DiscoverRepository searches start and its parents for a metadata directory and
// opens the first repository found.
func DiscoverRepository(start string) (*Repository, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("%w: discover repository %s: %w", ErrRepositoryNotFound, start, err)
	}

	gitDir, err := git2go.Discover(abs, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: discover repository %s: %w", ErrRepositoryNotFound, start, err)
	}

	repo, err := git2go.OpenRepository(gitDir)
	if err != nil {
		return nil, fmt.Errorf("%w: open repository %s: %w", ErrRepositoryNotFound, gitDir, err)
	}

	root := repo.Workdir()
	if root == "" {
		root = gitDir
	}

	return &Repository{repo: repo, path: filepath.Clean(root)}, nil
}

// InitRepository creates a non-bare repository at path and opens it.
func InitRepository(path string) (*Repository, error) {
	repo, err := git2go.InitRepository(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// IsRepository reports whether path can be opened as a repository.
func IsRepository(path string) bool {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return false
	}

	repo.Free()

	return true
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the working directory, or "" for bare repositories.
func (r *Repository) Workdir() string {
	return r.repo.Workdir()
}

// Free releases the repository resources. Safe to call more than once.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Native returns the underlying libgit2 repository.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

// Head returns the commit HEAD points at.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("%w: resolve HEAD: %w", ErrReferenceResolution, err)
	}
	defer ref.Free()

	obj, err := ref.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: peel HEAD to commit: %w", ErrReferenceResolution, err)
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), nil
}

// HeadState describes where HEAD currently points.
type HeadState struct {
	// Branch is the short branch name when HEAD is attached.
	Branch string
	// Hash is the commit HEAD resolves to; zero when Unborn.
	Hash Hash
	// Detached is true when HEAD points directly at a commit.
	Detached bool
	// Unborn is true when HEAD names a branch without commits.
	Unborn bool
}

// HeadState reads HEAD without failing on an unborn branch.
func (r *Repository) HeadState() (HeadState, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return HeadState{}, fmt.Errorf("%w: inspect HEAD: %w", ErrReferenceResolution, err)
	}

	if unborn {
		return HeadState{Branch: r.unbornBranchName(), Unborn: true}, nil
	}

	ref, err := r.repo.Head()
	if err != nil {
		return HeadState{}, fmt.Errorf("%w: resolve HEAD: %w", ErrReferenceResolution, err)
	}
	defer ref.Free()

	hash, err := r.Head()
	if err != nil {
		return HeadState{}, err
	}

	if !ref.IsBranch() {
		return HeadState{Hash: hash, Detached: true}, nil
	}

	return HeadState{Branch: ref.Shorthand(), Hash: hash}, nil
}

// unbornBranchName reads the branch HEAD symbolically names before any commit exists.
func (r *Repository) unbornBranchName() string {
	ref, err := r.repo.References.Lookup("HEAD")
	if err != nil {
		return ""
	}
	defer ref.Free()

	const headsPrefix = "refs/heads/"

	target := ref.SymbolicTarget()
	if len(target) > len(headsPrefix) && target[:len(headsPrefix)] == headsPrefix {
		return target[len(headsPrefix):]
	}

	return target
}

// IsHeadUnborn reports whether the repository has no commit on HEAD yet.
func (r *Repository) IsHeadUnborn() bool {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return true
	}

	return unborn
}

// ResolveRevision resolves any revision expression to the commit it names.
func (r *Repository) ResolveRevision(spec string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: resolve %s: %w", ErrReferenceResolution, spec, err)
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: peel %s to commit: %w", ErrReferenceResolution, spec, err)
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// BranchTip resolves the tip commit of a local branch.
func (r *Repository) BranchTip(name string) (Hash, error) {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: lookup branch %s: %w", ErrReferenceResolution, name, err)
	}
	defer branch.Free()

	obj, err := branch.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: peel branch %s: %w", ErrReferenceResolution, name, err)
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), nil
}

// CreateBranch creates a local branch pointing at target.
func (r *Repository) CreateBranch(name string, target Hash) error {
	commit, err := r.repo.LookupCommit(target.ToOid())
	if err != nil {
		return fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, target, err)
	}
	defer commit.Free()

	branch, err := r.repo.CreateBranch(name, commit, false)
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}

	branch.Free()

	return nil
}

// SetHead attaches HEAD to the given local branch.
func (r *Repository) SetHead(branch string) error {
	err := r.repo.SetHead("refs/heads/" + branch)
	if err != nil {
		return fmt.Errorf("%w: set HEAD to %s: %w", ErrReferenceResolution, branch, err)
	}

	return nil
}

// SetHeadDetached points HEAD directly at a commit.
func (r *Repository) SetHeadDetached(hash Hash) error {
	err := r.repo.SetHeadDetached(hash.ToOid())
	if err != nil {
		return fmt.Errorf("%w: detach HEAD at %s: %w", ErrReferenceResolution, hash, err)
	}

	return nil
}

// RemoteURL returns the fetch URL of the named remote.
func (r *Repository) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return "", fmt.Errorf("%w: lookup remote %s: %w", ErrReferenceResolution, name, err)
	}
	defer remote.Free()

	return remote.Url(), nil
}

// ConfigString reads a string value from the repository configuration.
func (r *Repository) ConfigString(key string) (string, bool) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", false
	}
	defer cfg.Free()

	value, err := cfg.LookupString(key)
	if err != nil {
		return "", false
	}

	return value, true
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, hash, err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// HeadTree returns the tree of the HEAD commit.
func (r *Repository) HeadTree(ctx context.Context) (*Tree, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	commit, err := r.LookupCommit(ctx, head)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	return commit.Tree()
}
