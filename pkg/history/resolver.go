package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// Options configures a Resolver.
type Options struct {
	// Start is the revision history is resolved from; empty means HEAD.
	Start string
	// DetectRenames enables rename detection in the Attributor.
	DetectRenames bool
}

// Resolver answers per-file history queries.
type Resolver struct {
	repo       *gitlib.Repository
	attributor *Attributor
	start      string
}

// NewResolver creates a Resolver bound to repo.
func NewResolver(repo *gitlib.Repository, opts Options) *Resolver {
	return &Resolver{
		repo:       repo,
		attributor: NewAttributor(repo, AttributionOptions{DetectRenames: opts.DetectRenames}),
		start:      opts.Start,
	}
}

// ResolveLast returns the metadata of the most recent commit that changed at
// least one line of path. It stops at the first match and returns
// ErrHistoryNotFound when the walk is exhausted without one.
func (r *Resolver) ResolveLast(ctx context.Context, filePath string) (FileMetadata, error) {
	filePath = NormalizePath(filePath)

	var found FileMetadata

	err := r.scan(ctx, filePath, func(commit *gitlib.Commit, change FileChange) bool {
		found = newFileMetadata(filePath, commit, change)

		return false
	})
	if err != nil {
		return FileMetadata{}, err
	}

	if found.LastCommit == "" {
		return FileMetadata{}, fmt.Errorf("%w: %s", ErrHistoryNotFound, filePath)
	}

	return found, nil
}

// ResolveHistory returns every commit that changed at least one line of path,
// most recent first. An empty slice means no reachable commit touched it.
func (r *Resolver) ResolveHistory(ctx context.Context, filePath string) ([]CommitInfo, error) {
	filePath = NormalizePath(filePath)
	entries := make([]CommitInfo, 0)

	err := r.scan(ctx, filePath, func(commit *gitlib.Commit, change FileChange) bool {
		entries = append(entries, newCommitInfo(commit, change))

		return true
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// scan walks the graph and calls visit for each commit touching filePath until
// visit returns false.
func (r *Resolver) scan(
	ctx context.Context, filePath string, visit func(*gitlib.Commit, FileChange) bool,
) error {
	walker, err := NewWalker(r.repo, WalkOptions{Start: r.start})
	if err != nil {
		return err
	}
	defer walker.Close()

	for {
		hash, nextErr := walker.Next(ctx)
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if nextErr != nil {
			return nextErr
		}

		more, matchErr := r.visitCommit(ctx, hash, filePath, visit)
		if matchErr != nil {
			return matchErr
		}

		if !more {
			return nil
		}
	}
}

func (r *Resolver) visitCommit(
	ctx context.Context, hash gitlib.Hash, filePath string, visit func(*gitlib.Commit, FileChange) bool,
) (bool, error) {
	commit, err := r.repo.LookupCommit(ctx, hash)
	if err != nil {
		return false, err
	}
	defer commit.Free()

	changes, err := r.attributor.Changes(ctx, commit)
	if err != nil {
		return false, err
	}

	change, ok := effectOn(changes, filePath)
	if !ok {
		return true, nil
	}

	return visit(commit, change), nil
}

// NormalizePath converts a user-supplied path to the slash-separated,
// repository-relative form used in trees and diffs.
func NormalizePath(p string) string {
	p = path.Clean(filepath.ToSlash(p))

	return strings.TrimPrefix(p, "/")
}

// ResolveLastAll resolves the last-modifying commit of several paths with a
// single walk. Paths with no matching commit are absent from the result.
func (r *Resolver) ResolveLastAll(ctx context.Context, paths []string) (map[string]FileMetadata, error) {
	pending := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		pending[NormalizePath(p)] = struct{}{}
	}

	found := make(map[string]FileMetadata, len(pending))
	if len(pending) == 0 {
		return found, nil
	}

	walker, err := NewWalker(r.repo, WalkOptions{Start: r.start})
	if err != nil {
		return nil, err
	}
	defer walker.Close()

	for len(pending) > 0 {
		hash, nextErr := walker.Next(ctx)
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nil, nextErr
		}

		err = r.claimPaths(ctx, hash, pending, found)
		if err != nil {
			return nil, err
		}
	}

	return found, nil
}

// claimPaths records hash as the last commit of every pending path it touches.
func (r *Resolver) claimPaths(
	ctx context.Context, hash gitlib.Hash, pending map[string]struct{}, found map[string]FileMetadata,
) error {
	commit, err := r.repo.LookupCommit(ctx, hash)
	if err != nil {
		return err
	}
	defer commit.Free()

	changes, err := r.attributor.Changes(ctx, commit)
	if err != nil {
		return err
	}

	for _, c := range changes {
		for _, p := range [...]string{c.OldPath, c.NewPath} {
			if _, ok := pending[p]; !ok {
				continue
			}

			if change, matched := effectOn(changes, p); matched {
				found[p] = newFileMetadata(p, commit, change)
				delete(pending, p)
			}
		}
	}

	return nil
}
