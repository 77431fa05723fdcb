package engine

import (
	"context"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

// FileStatus scans the working tree against the index and HEAD.
func (e *Engine) FileStatus(ctx context.Context, opts worktree.ScanOptions) ([]worktree.StatusEntry, error) {
	var entries []worktree.StatusEntry

	err := e.read(ctx, "file_status", func(ctx context.Context) error {
		var err error

		entries, err = e.scanner.Scan(ctx, opts)

		return err
	})

	return entries, err
}

// FileMetadata returns the metadata of the last commit that changed path.
// It fails with history.ErrHistoryNotFound when no commit did.
func (e *Engine) FileMetadata(ctx context.Context, path string) (history.FileMetadata, error) {
	var meta history.FileMetadata

	err := e.read(ctx, "file_metadata", func(ctx context.Context) error {
		var err error

		meta, err = e.resolver.ResolveLast(ctx, path)

		return err
	})

	return meta, err
}

// FileHistory returns every commit that changed path, most recent first.
func (e *Engine) FileHistory(ctx context.Context, path string) ([]history.CommitInfo, error) {
	var entries []history.CommitInfo

	err := e.read(ctx, "file_history", func(ctx context.Context) error {
		var err error

		entries, err = e.resolver.ResolveHistory(ctx, path)

		return err
	})

	return entries, err
}

// ListFiles returns metadata for every tracked or untracked file under dir.
// An empty dir or "." lists the whole working tree.
func (e *Engine) ListFiles(ctx context.Context, dir string) (worktree.ListResult, error) {
	var result worktree.ListResult

	err := e.read(ctx, "list_files", func(ctx context.Context) error {
		var err error

		result, err = e.universe.List(ctx, worktree.ListOptions{Dir: dir})
		if err != nil {
			return err
		}

		untracked := 0

		for _, file := range result.Files {
			if file.Untracked() {
				untracked++
			}
		}

		e.listing.RecordListing(ctx, observability.ListingStats{
			Files:     len(result.Files),
			Skipped:   len(result.Skipped),
			Untracked: untracked,
		})

		return nil
	})

	return result, err
}
