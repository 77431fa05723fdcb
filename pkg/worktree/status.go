// Package worktree reconciles the working tree with history: a Scanner reports
// per-path status flags and a Universe merges tracked and untracked paths into
// one metadata listing.
package worktree

import (
	"context"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// StatusEntry is the status of one path. Each flag is the OR of the index and
// working-directory bits of the same kind.
type StatusEntry struct {
	Path     string `json:"path"     yaml:"path"`
	New      bool   `json:"new"      yaml:"new"`
	Modified bool   `json:"modified" yaml:"modified"`
	Deleted  bool   `json:"deleted"  yaml:"deleted"`
	Renamed  bool   `json:"renamed"  yaml:"renamed"`
	Ignored  bool   `json:"ignored"  yaml:"ignored"`
}

// Clean reports whether no flag is set.
func (e StatusEntry) Clean() bool {
	return !e.New && !e.Modified && !e.Deleted && !e.Renamed && !e.Ignored
}

// ScanOptions tunes a status scan.
type ScanOptions struct {
	// IncludeIgnored adds ignored paths, flagged Ignored.
	IncludeIgnored bool
}

// Scanner reports working-tree status.
type Scanner struct {
	repo *gitlib.Repository
}

// NewScanner creates a Scanner bound to repo.
func NewScanner(repo *gitlib.Repository) *Scanner {
	return &Scanner{repo: repo}
}

// Scan lists every path whose index or working-tree state differs from HEAD.
// Untracked files are included and untracked directories are recursed into.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) ([]StatusEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.repo.Status(gitlib.StatusQuery{IncludeIgnored: opts.IncludeIgnored})
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, StatusEntry{
			Path:     r.Path,
			New:      r.Flags.New,
			Modified: r.Flags.Modified,
			Deleted:  r.Flags.Deleted,
			Renamed:  r.Flags.Renamed,
			Ignored:  r.Flags.Ignored,
		})
	}

	return entries, nil
}
