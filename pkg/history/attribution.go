package history

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// AttributionOptions tunes how commits are reduced to file changes.
type AttributionOptions struct {
	// DetectRenames reports a renamed file as one change carrying both paths.
	DetectRenames bool
}

// Attributor computes the per-file line effect of a commit relative to its
// first parent, or to the empty tree for root commits. Merge commits are
// attributed only with the changes relative to their first parent.
type Attributor struct {
	repo *gitlib.Repository
	opts AttributionOptions
}

// NewAttributor creates an Attributor bound to repo.
func NewAttributor(repo *gitlib.Repository, opts AttributionOptions) *Attributor {
	return &Attributor{repo: repo, opts: opts}
}

// Changes returns one FileChange per delta between commit and its first parent.
func (a *Attributor) Changes(ctx context.Context, commit *gitlib.Commit) ([]FileChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	newTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, fmt.Errorf("%w: first parent of %s: %w", gitlib.ErrObjectNotFound, commit.Hash(), parentErr)
		}

		oldTree, err = parent.Tree()
		parent.Free()

		if err != nil {
			return nil, err
		}
		defer oldTree.Free()
	}

	diff, err := a.repo.DiffTreeToTree(oldTree, newTree, gitlib.DiffOptions{DetectRenames: a.opts.DetectRenames})
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", commit.Hash(), err)
	}
	defer diff.Free()

	stats, err := diff.LineStats()
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", commit.Hash(), err)
	}

	changes := make([]FileChange, 0, len(stats))
	for _, s := range stats {
		changes = append(changes, FileChange{
			OldPath: s.OldPath,
			NewPath: s.NewPath,
			Added:   s.Added,
			Deleted: s.Deleted,
		})
	}

	return changes, nil
}

// effectOn sums the line effect of every change touching path.
func effectOn(changes []FileChange, path string) (FileChange, bool) {
	var (
		total   FileChange
		matched bool
	)

	for _, c := range changes {
		if !c.Touches(path) {
			continue
		}

		if !matched {
			total.OldPath, total.NewPath = c.OldPath, c.NewPath
			matched = true
		}

		total.Added += c.Added
		total.Deleted += c.Deleted
	}

	return total, matched
}
