package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/checkout"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/engine"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/tags"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

const (
	authorName  = "Engine Tester"
	authorEmail = "engine@example.com"
)

func newEngine(t *testing.T, opts engine.Options) (*engine.Engine, string) {
	t.Helper()

	dir := t.TempDir()

	eng, err := engine.Init(dir, opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = eng.Close() })

	return eng, dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func commitAll(t *testing.T, eng *engine.Engine, message string) string {
	t.Helper()

	ctx := t.Context()

	require.NoError(t, eng.AddAll(ctx))

	hash, err := eng.Commit(ctx, message, authorName, authorEmail)
	require.NoError(t, err)

	return hash
}

func TestEngineEmptyRepository(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	assert.True(t, engine.IsRepository(dir))

	_, err := eng.HeadHash(ctx)
	require.ErrorIs(t, err, gitlib.ErrReferenceResolution)

	branch, err := eng.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, branch)

	writeFile(t, dir, "draft.txt", "draft\n")

	result, err := eng.ListFiles(ctx, "")
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "draft.txt", result.Files[0].Path)
	assert.True(t, result.Files[0].Untracked())
}

func TestEngineCommitAndQueries(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "one\n")
	first := commitAll(t, eng, "add a")

	head, err := eng.HeadHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	writeFile(t, dir, "a.txt", "one\ntwo\n")
	second := commitAll(t, eng, "extend a")

	meta, err := eng.FileMetadata(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, second, meta.LastCommit)
	assert.Equal(t, "extend a", meta.Message)
	assert.Equal(t, authorName, meta.AuthorName)
	assert.Equal(t, authorEmail, meta.AuthorEmail)
	assert.Equal(t, 1, meta.Added)

	entries, err := eng.FileHistory(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].Hash)
	assert.Equal(t, first, entries[1].Hash)

	_, err = eng.FileMetadata(ctx, "missing.txt")
	require.ErrorIs(t, err, history.ErrHistoryNotFound)

	writeFile(t, dir, "b.txt", "new\n")

	status, err := eng.FileStatus(ctx, worktree.ScanOptions{})
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "b.txt", status[0].Path)
	assert.True(t, status[0].New)

	result, err := eng.ListFiles(ctx, ".")
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "a.txt", result.Files[0].Path)
	assert.Equal(t, second, result.Files[0].LastCommit)
	assert.Equal(t, "b.txt", result.Files[1].Path)
	assert.Equal(t, history.UntrackedMessage, result.Files[1].Message)
	assert.Empty(t, result.Skipped)
}

func TestEngineDiscover(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})

	writeFile(t, dir, "pkg/deep/file.go", "package deep\n")
	hash := commitAll(t, eng, "initial")

	found, err := engine.Discover(filepath.Join(dir, "pkg", "deep"), engine.Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = found.Close() })

	head, err := found.HeadHash(t.Context())
	require.NoError(t, err)
	assert.Equal(t, hash, head)

	meta, err := found.FileMetadata(t.Context(), "pkg/deep/file.go")
	require.NoError(t, err)
	assert.Equal(t, hash, meta.LastCommit)
}

func TestEngineOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	assert.False(t, engine.IsRepository(dir))

	_, err := engine.Open(dir, engine.Options{})
	require.ErrorIs(t, err, gitlib.ErrRepositoryNotFound)
}

func TestEngineClose(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(t, engine.Options{})
	ctx := t.Context()

	require.NoError(t, eng.Ready(ctx))
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	require.ErrorIs(t, eng.Ready(ctx), engine.ErrClosed)

	_, err := eng.HeadHash(ctx)
	require.ErrorIs(t, err, engine.ErrClosed)

	require.ErrorIs(t, eng.AddAll(ctx), engine.ErrClosed)
}

func TestEngineBranchesAndCheckout(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "v1\n")
	first := commitAll(t, eng, "v1")

	trunk, err := eng.CurrentBranch(ctx)
	require.NoError(t, err)

	tip, err := eng.CreateBranch(ctx, "release", "")
	require.NoError(t, err)
	assert.Equal(t, first, tip)

	writeFile(t, dir, "a.txt", "v2\n")
	second := commitAll(t, eng, "v2")

	older, err := eng.CreateBranch(ctx, "previous", "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, older)

	require.NoError(t, eng.CheckoutCommit(ctx, first))

	state, err := eng.HeadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.State{Mode: checkout.Detached, Commit: first}, state)

	_, err = eng.CurrentBranch(ctx)
	require.ErrorIs(t, err, gitlib.ErrDetachedHead)

	status, err := eng.FileStatus(ctx, worktree.ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, status)

	require.NoError(t, eng.CheckoutBranch(ctx, trunk))

	state, err = eng.HeadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.State{Mode: checkout.OnBranch, Branch: trunk, Commit: second}, state)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(data))
}

func TestEngineCommitRefreshesHeadState(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "v1\n")
	hash := commitAll(t, eng, "v1")

	state, err := eng.HeadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.OnBranch, state.Mode)
	assert.Equal(t, hash, state.Commit)
}

func TestEngineTags(t *testing.T) {
	t.Parallel()

	eng, dir := newEngine(t, engine.Options{})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "v1\n")
	hash := commitAll(t, eng, "v1")

	message := "release 1.0"

	_, err := eng.CreateTag(ctx, "v1.0", &message, "")
	require.NoError(t, err)

	id, err := eng.CreateTag(ctx, "light", nil, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, id)

	list, err := eng.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "light", list[0].Name)
	assert.Equal(t, tags.Lightweight, list[0].Kind)
	assert.Empty(t, list[0].Message)
	assert.Equal(t, authorName, list[0].TaggerName)

	assert.Equal(t, "v1.0", list[1].Name)
	assert.Equal(t, tags.Annotated, list[1].Kind)
	assert.Equal(t, message, list[1].Message)
	assert.Equal(t, hash, list[1].Target)

	tag, err := eng.GetTag(ctx, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, list[1], tag)

	require.NoError(t, eng.CheckoutTag(ctx, "v1.0"))

	state, err := eng.HeadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.Detached, state.Mode)
	assert.Equal(t, hash, state.Commit)

	require.NoError(t, eng.DeleteTag(ctx, "light"))

	list, err = eng.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.ErrorIs(t, eng.DeleteTag(ctx, "light"), gitlib.ErrReferenceResolution)
}

func TestEngineRemoteURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	repo, err := gitlib.InitRepository(dir)
	require.NoError(t, err)

	remote, err := repo.Native().Remotes.Create("origin", "https://example.com/project.git")
	require.NoError(t, err)
	remote.Free()
	repo.Free()

	eng, err := engine.Open(dir, engine.Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = eng.Close() })

	url, err := eng.RemoteURL(t.Context(), "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/project.git", url)

	_, err = eng.RemoteURL(t.Context(), "upstream")
	require.ErrorIs(t, err, gitlib.ErrReferenceResolution)
}

func TestEngineTelemetry(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	eng, dir := newEngine(t, engine.Options{Tracer: tp.Tracer("test"), Meter: mp.Meter("test")})
	ctx := t.Context()

	writeFile(t, dir, "a.txt", "v1\n")
	commitAll(t, eng, "v1")
	writeFile(t, dir, "b.txt", "untracked\n")

	_, err := eng.ListFiles(ctx, "")
	require.NoError(t, err)

	_, err = eng.FileMetadata(ctx, "missing.txt")
	require.Error(t, err)

	names := make([]string, 0)
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Equal(t, []string{"vcsmeta.add_all", "vcsmeta.commit", "vcsmeta.list_files", "vcsmeta.file_metadata"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(4), totals["vcsmeta.requests.total"])
	assert.Equal(t, int64(1), totals["vcsmeta.errors.total"])
	assert.Equal(t, int64(2), totals["vcsmeta.listing.files.total"])
	assert.Equal(t, int64(1), totals["vcsmeta.listing.untracked.total"])
	assert.Equal(t, int64(0), totals["vcsmeta.inflight.requests"])
}
