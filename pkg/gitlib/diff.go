package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// initialDiffCapacity is the initial capacity for per-delta result slices.
const initialDiffCapacity = 16

// DiffOptions tunes tree-to-tree diffs.
type DiffOptions struct {
	// DetectRenames runs libgit2 similarity detection so a rename is reported as
	// a single delta carrying both paths.
	DetectRenames bool
}

// DeltaStat is the line-level effect of one file delta.
type DeltaStat struct {
	Status  git2go.Delta
	OldPath string
	NewPath string
	Added   int
	Deleted int
}

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// DiffTreeToTree diffs two trees. A nil oldTree stands for the empty tree.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree, opts DiffOptions) (*Diff, error) {
	nativeOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: default diff options: %w", ErrDiffComputation, err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.Native(), newTree.Native(), &nativeOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: diff %s: %w", ErrDiffComputation, describeTree(newTree), err)
	}

	if opts.DetectRenames {
		findOpts, findErr := git2go.DefaultDiffFindOptions()
		if findErr == nil {
			findOpts.Flags |= git2go.DiffFindRenames
			findErr = diff.FindSimilar(&findOpts)
		}

		if findErr != nil {
			_ = diff.Free()

			return nil, fmt.Errorf("%w: find renames %s: %w", ErrDiffComputation, describeTree(newTree), findErr)
		}
	}

	return &Diff{diff: diff}, nil
}

func describeTree(t *Tree) string {
	if t == nil || t.tree == nil {
		return "empty tree"
	}

	return "tree " + t.Hash().String()
}

// LineStats drains the diff's line callbacks into one record per delta, in
// delta order. Binary deltas carry zero counts.
func (d *Diff) LineStats() ([]DeltaStat, error) {
	stats := make([]DeltaStat, 0, initialDiffCapacity)

	fileCallback := func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		stats = append(stats, DeltaStat{
			Status:  delta.Status,
			OldPath: delta.OldFile.Path,
			NewPath: delta.NewFile.Path,
		})
		idx := len(stats) - 1

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				switch line.Origin {
				case git2go.DiffLineAddition:
					stats[idx].Added++
				case git2go.DiffLineDeletion:
					stats[idx].Deleted++
				default:
				}

				return nil
			}, nil
		}, nil
	}

	err := d.diff.ForEach(fileCallback, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("%w: iterate diff: %w", ErrDiffComputation, err)
	}

	return stats, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	// Free errors are non-actionable in cleanup.
	_ = d.diff.Free()
	d.diff = nil
}
