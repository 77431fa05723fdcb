package worktree

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
)

// ListOptions restricts a listing.
type ListOptions struct {
	// Dir limits the listing to paths under a directory. Empty or "." lists all.
	Dir string
}

// ListResult is the merged file listing.
type ListResult struct {
	// Files holds one record per path, sorted by path.
	Files []history.FileMetadata `json:"files"             yaml:"files"`
	// Skipped holds tracked paths no commit attributes lines to, such as
	// binary files. They are omitted from Files.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Universe merges HEAD-tracked paths with working-tree status paths.
type Universe struct {
	repo     *gitlib.Repository
	scanner  *Scanner
	resolver *history.Resolver
	logger   *slog.Logger
}

// NewUniverse creates a Universe. A nil logger discards warnings.
func NewUniverse(repo *gitlib.Repository, resolver *history.Resolver, logger *slog.Logger) *Universe {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Universe{
		repo:     repo,
		scanner:  NewScanner(repo),
		resolver: resolver,
		logger:   logger,
	}
}

// List returns metadata for every path tracked at HEAD or reported by status,
// excluding ignored paths and the metadata directory. Untracked files get
// synthesized metadata.
func (u *Universe) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	dir := normalizeDir(opts.Dir)

	status, err := u.scanner.Scan(ctx, ScanOptions{})
	if err != nil {
		return ListResult{}, err
	}

	isNew := make(map[string]bool, len(status))
	paths := make(map[string]struct{}, len(status))

	for _, entry := range status {
		if entry.Ignored || !inScope(entry.Path, dir) {
			continue
		}

		paths[entry.Path] = struct{}{}
		isNew[entry.Path] = entry.New
	}

	unborn := u.repo.IsHeadUnborn()

	if !unborn {
		err = u.collectTracked(ctx, dir, paths)
		if err != nil {
			return ListResult{}, err
		}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}

	sort.Strings(sorted)

	resolved := map[string]history.FileMetadata{}

	if !unborn {
		resolved, err = u.resolver.ResolveLastAll(ctx, sorted)
		if err != nil {
			return ListResult{}, err
		}
	}

	result := ListResult{Files: make([]history.FileMetadata, 0, len(sorted))}

	for _, p := range sorted {
		if meta, ok := resolved[p]; ok {
			result.Files = append(result.Files, meta)

			continue
		}

		if isNew[p] {
			result.Files = append(result.Files, history.UntrackedMetadata(p))

			continue
		}

		result.Skipped = append(result.Skipped, p)
		u.logger.WarnContext(ctx, "file has no line-level history, omitted from listing", "path", p)
	}

	return result, nil
}

func (u *Universe) collectTracked(ctx context.Context, dir string, paths map[string]struct{}) error {
	tree, err := u.repo.HeadTree(ctx)
	if err != nil {
		return err
	}
	defer tree.Free()

	return tree.WalkBlobs(ctx, func(p string, _ gitlib.Hash) error {
		if inScope(p, dir) {
			paths[p] = struct{}{}
		}

		return nil
	})
}

func normalizeDir(dir string) string {
	if dir == "" {
		return ""
	}

	dir = history.NormalizePath(dir)
	if dir == "." {
		return ""
	}

	return dir
}

// inScope reports whether p lies under dir and outside the metadata directory.
func inScope(p, dir string) bool {
	if p == gitlib.MetadataDir || strings.HasPrefix(p, gitlib.MetadataDir+"/") {
		return false
	}

	if dir == "" {
		return true
	}

	return p == dir || strings.HasPrefix(p, dir+"/")
}
