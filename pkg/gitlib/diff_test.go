package gitlib_test

import (
	"context"
	"io"
	"testing"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib/gitlibtest"
)

func commitTree(t *testing.T, repo *gitlib.Repository, hash gitlib.Hash) *gitlib.Tree {
	t.Helper()

	commit, err := repo.LookupCommit(context.Background(), hash)
	require.NoError(t, err)

	defer commit.Free()

	tree, err := commit.Tree()
	require.NoError(t, err)

	t.Cleanup(tree.Free)

	return tree
}

func TestDiffAgainstEmptyTree(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("a.txt", "one\ntwo\nthree\n")
	first := tr.Commit("first")

	diff, err := tr.Repo.DiffTreeToTree(nil, commitTree(t, tr.Repo, first), gitlib.DiffOptions{})
	require.NoError(t, err)

	defer diff.Free()

	stats, err := diff.LineStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, git2go.DeltaAdded, stats[0].Status)
	assert.Equal(t, "a.txt", stats[0].NewPath)
	assert.Equal(t, 3, stats[0].Added)
	assert.Equal(t, 0, stats[0].Deleted)
}

func TestDiffLineCounts(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("a.txt", "one\ntwo\nthree\n")
	tr.WriteFile("b.txt", "keep\n")
	first := tr.Commit("first")
	tr.WriteFile("a.txt", "one\n2\nthree\nfour\n")
	tr.RemoveFile("b.txt")
	second := tr.Commit("second")

	diff, err := tr.Repo.DiffTreeToTree(commitTree(t, tr.Repo, first), commitTree(t, tr.Repo, second), gitlib.DiffOptions{})
	require.NoError(t, err)

	defer diff.Free()

	stats, err := diff.LineStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "a.txt", stats[0].NewPath)
	assert.Equal(t, 2, stats[0].Added)
	assert.Equal(t, 1, stats[0].Deleted)

	assert.Equal(t, git2go.DeltaDeleted, stats[1].Status)
	assert.Equal(t, "b.txt", stats[1].OldPath)
	assert.Equal(t, 0, stats[1].Added)
	assert.Equal(t, 1, stats[1].Deleted)
}

func TestDiffDetectRenames(t *testing.T) {
	t.Parallel()

	const body = "line 1\nline 2\nline 3\nline 4\nline 5\nline 6\nline 7\nline 8\n"

	tr := gitlibtest.New(t)
	tr.WriteFile("old.txt", body)
	first := tr.Commit("first")
	tr.RemoveFile("old.txt")
	tr.WriteFile("new.txt", body+"line 9\n")
	second := tr.Commit("rename")

	oldTree := commitTree(t, tr.Repo, first)
	newTree := commitTree(t, tr.Repo, second)

	plain, err := tr.Repo.DiffTreeToTree(oldTree, newTree, gitlib.DiffOptions{})
	require.NoError(t, err)

	defer plain.Free()

	plainStats, err := plain.LineStats()
	require.NoError(t, err)
	assert.Len(t, plainStats, 2)

	renamed, err := tr.Repo.DiffTreeToTree(oldTree, newTree, gitlib.DiffOptions{DetectRenames: true})
	require.NoError(t, err)

	defer renamed.Free()

	stats, err := renamed.LineStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, git2go.DeltaRenamed, stats[0].Status)
	assert.Equal(t, "old.txt", stats[0].OldPath)
	assert.Equal(t, "new.txt", stats[0].NewPath)
	assert.Equal(t, 1, stats[0].Added)
	assert.Equal(t, 0, stats[0].Deleted)
}

func TestRevWalkOrder(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("a.txt", "1")
	c1 := tr.Commit("c1")
	tr.WriteFile("a.txt", "2")
	c2 := tr.Commit("c2")
	tr.WriteFile("a.txt", "3")
	c3 := tr.Commit("c3")

	walk, err := tr.Repo.Walk()
	require.NoError(t, err)

	defer walk.Free()

	require.NoError(t, walk.Push(c3))

	var got []gitlib.Hash

	for {
		hash, nextErr := walk.Next()
		if nextErr != nil {
			require.ErrorIs(t, nextErr, io.EOF)

			break
		}

		got = append(got, hash)
	}

	assert.Equal(t, []gitlib.Hash{c3, c2, c1}, got)
}
