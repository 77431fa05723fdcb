package engine_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/engine"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

const (
	concurrentReaders = 4
	readerRounds      = 10
	writerRounds      = 5
)

func TestEngineConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "one\n")
	writeFile(t, dir, "b.txt", "stable\n")
	first := commitAll(t, eng, "add a and b")

	writeFile(t, dir, "a.txt", "one\ntwo\n")
	second := commitAll(t, eng, "extend a")

	writeFile(t, dir, "draft.txt", "wip\n")

	trunk, err := eng.CurrentBranch(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for range concurrentReaders {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range readerRounds {
				meta, metaErr := eng.FileMetadata(ctx, "b.txt")
				if assert.NoError(t, metaErr) {
					assert.Equal(t, first, meta.LastCommit)
				}

				meta, metaErr = eng.FileMetadata(ctx, "a.txt")
				if assert.NoError(t, metaErr) {
					assert.Contains(t, []string{first, second}, meta.LastCommit)
				}

				result, listErr := eng.ListFiles(ctx, "")
				if assert.NoError(t, listErr) {
					assert.Len(t, result.Files, 3)
					assert.Empty(t, result.Skipped)
				}

				status, statusErr := eng.FileStatus(ctx, worktree.ScanOptions{})
				if assert.NoError(t, statusErr) && assert.Len(t, status, 1) {
					assert.Equal(t, "draft.txt", status[0].Path)
					assert.True(t, status[0].New)
				}

				list, tagErr := eng.ListTags(ctx)
				if assert.NoError(t, tagErr) {
					for _, tag := range list {
						assert.Equal(t, second, tag.Target)
					}
				}
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := range writerRounds {
			assert.NoError(t, eng.CheckoutCommit(ctx, first))
			assert.NoError(t, eng.CheckoutBranch(ctx, trunk))

			_, tagErr := eng.CreateTag(ctx, fmt.Sprintf("t%d", i), nil, "")
			assert.NoError(t, tagErr)
		}
	}()

	wg.Wait()

	state, err := eng.HeadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, trunk, state.Branch)
	assert.Equal(t, second, state.Commit)

	list, err := eng.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, list, writerRounds)
}

func TestEngineCloseWhileReading(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "one\n")
	hash := commitAll(t, eng, "add a")

	started := make(chan struct{}, concurrentReaders)
	closedSeen := make(chan struct{}, concurrentReaders)

	var wg sync.WaitGroup

	for range concurrentReaders {
		wg.Add(1)

		go func() {
			defer wg.Done()

			started <- struct{}{}

			for {
				meta, metaErr := eng.FileMetadata(ctx, "a.txt")
				if errors.Is(metaErr, engine.ErrClosed) {
					closedSeen <- struct{}{}

					return
				}

				if !assert.NoError(t, metaErr) {
					return
				}

				assert.Equal(t, hash, meta.LastCommit)
			}
		}()
	}

	for range concurrentReaders {
		<-started
	}

	require.NoError(t, eng.Close())

	wg.Wait()
	close(closedSeen)

	seen := 0
	for range closedSeen {
		seen++
	}

	assert.Equal(t, concurrentReaders, seen)

	_, err := eng.ListFiles(ctx, "")
	require.ErrorIs(t, err, engine.ErrClosed)
}
