package history

import (
	"context"
	"errors"
	"io"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// WalkOptions selects where a walk starts.
type WalkOptions struct {
	// Start is any revision expression; empty means HEAD.
	Start string
}

// Walker enumerates commits reachable from a start commit, most recent first.
// Each commit is yielded at most once. A Walker is single-use.
type Walker struct {
	walk    *gitlib.RevWalk
	visited map[gitlib.Hash]struct{}
}

// openRevWalk allocates the underlying revision walker. Tests swap it to
// exercise allocation failures.
var openRevWalk = (*gitlib.Repository).Walk

// NewWalker resolves the start revision and prepares a walk. It fails with
// gitlib.ErrReferenceResolution when the start cannot be resolved, which
// includes a repository without commits.
func NewWalker(repo *gitlib.Repository, opts WalkOptions) (*Walker, error) {
	start, err := resolveStart(repo, opts.Start)
	if err != nil {
		return nil, err
	}

	walk, err := openRevWalk(repo)
	if err != nil {
		return nil, err
	}

	err = walk.Push(start)
	if err != nil {
		walk.Free()

		return nil, err
	}

	return &Walker{walk: walk, visited: make(map[gitlib.Hash]struct{})}, nil
}

func resolveStart(repo *gitlib.Repository, rev string) (gitlib.Hash, error) {
	if rev == "" {
		return repo.Head()
	}

	return repo.ResolveRevision(rev)
}

// Next returns the next commit hash, or io.EOF when the walk is exhausted.
func (w *Walker) Next(ctx context.Context) (gitlib.Hash, error) {
	if w.walk == nil {
		return gitlib.Hash{}, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return gitlib.Hash{}, err
		}

		hash, err := w.walk.Next()
		if errors.Is(err, io.EOF) {
			w.Close()

			return gitlib.Hash{}, io.EOF
		}

		if err != nil {
			return gitlib.Hash{}, err
		}

		if _, seen := w.visited[hash]; seen {
			continue
		}

		w.visited[hash] = struct{}{}

		return hash, nil
	}
}

// Close releases the underlying walker. Safe to call more than once.
func (w *Walker) Close() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}
