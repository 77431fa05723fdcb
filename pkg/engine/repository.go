package engine

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// HeadHash returns the full id of the commit HEAD resolves to.
func (e *Engine) HeadHash(ctx context.Context) (string, error) {
	var hash gitlib.Hash

	err := e.read(ctx, "head_hash", func(context.Context) error {
		var err error

		hash, err = e.repo.Head()

		return err
	})
	if err != nil {
		return "", err
	}

	return hash.String(), nil
}

// CurrentBranch returns the branch HEAD is attached to. It fails with
// gitlib.ErrDetachedHead when HEAD points directly at a commit.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	var branch string

	err := e.read(ctx, "current_branch", func(context.Context) error {
		head, err := e.repo.HeadState()
		if err != nil {
			return err
		}

		if head.Detached {
			return fmt.Errorf("%w: at %s", gitlib.ErrDetachedHead, head.Hash.Short())
		}

		branch = head.Branch

		return nil
	})

	return branch, err
}

// RemoteURL returns the URL of a configured remote.
func (e *Engine) RemoteURL(ctx context.Context, name string) (string, error) {
	var url string

	err := e.read(ctx, "remote_url", func(context.Context) error {
		var err error

		url, err = e.repo.RemoteURL(name)

		return err
	})

	return url, err
}

// CreateBranch creates a local branch at target, a revision expression or
// full commit id. An empty target means HEAD. It returns the branch tip.
func (e *Engine) CreateBranch(ctx context.Context, name, target string) (string, error) {
	var tip gitlib.Hash

	err := e.write(ctx, "create_branch", func(ctx context.Context) error {
		var err error

		tip, err = e.resolveTarget(target)
		if err != nil {
			return err
		}

		err = e.repo.CreateBranch(name, tip)
		if err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "created branch", "branch", name, "commit", tip.String())

		return nil
	})
	if err != nil {
		return "", err
	}

	return tip.String(), nil
}

// AddAll stages every change in the working tree, deletions included.
func (e *Engine) AddAll(ctx context.Context) error {
	return e.write(ctx, "add_all", func(context.Context) error {
		return e.repo.AddAll()
	})
}

// Commit records the staged tree on HEAD with the given author, who is also
// the committer, and returns the new commit id. It works on an empty
// repository, creating the root commit.
func (e *Engine) Commit(ctx context.Context, message, authorName, authorEmail string) (string, error) {
	var hash gitlib.Hash

	err := e.write(ctx, "commit", func(ctx context.Context) error {
		var err error

		hash, err = e.repo.Commit(message, gitlib.Signature{Name: authorName, Email: authorEmail})
		if err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "created commit", "commit", hash.String())

		// The commit is durable at this point; a stale head state must not
		// hide its hash from the caller.
		if refreshErr := e.refreshHead(ctx); refreshErr != nil {
			e.logger.WarnContext(ctx, "refresh head state after commit",
				"commit", hash.String(), "error", refreshErr)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return hash.String(), nil
}

func (e *Engine) resolveTarget(target string) (gitlib.Hash, error) {
	if target == "" {
		return e.repo.Head()
	}

	if hash, err := gitlib.ParseHash(target); err == nil {
		return hash, nil
	}

	return e.repo.ResolveRevision(target)
}
