package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", "test", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "test message")

	record := decodeRecord(t, &buf)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "vcsmeta", "", observability.ModeMCP))

	logger.InfoContext(context.Background(), "no span")

	record := decodeRecord(t, &buf)

	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "env")
	assert.NotContains(t, record, "repo")
	assert.Equal(t, "vcsmeta", record["service"])
	assert.Equal(t, "mcp", record["mode"])
}

func TestTracingHandler_Repository(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "vcsmeta", "", observability.ModeWatch))

	ctx := observability.WithRepository(context.Background(), "/src/project")
	logger.WarnContext(ctx, "file skipped", slog.String("path", "a.bin"))

	record := decodeRecord(t, &buf)

	assert.Equal(t, "/src/project", record["repo"])
	assert.Equal(t, "a.bin", record["path"])
	assert.Equal(t, "watch", record["mode"])

	path, ok := observability.RepositoryFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "/src/project", path)

	_, ok = observability.RepositoryFrom(context.Background())
	assert.False(t, ok)
}

func TestTracingHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "vcsmeta", "", observability.ModeCLI))

	logger.WithGroup("history").InfoContext(context.Background(), "resolved", slog.String("path", "a.txt"))

	record := decodeRecord(t, &buf)

	assert.Equal(t, "vcsmeta", record["service"])

	group, ok := record["history"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.txt", group["path"])
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true

	var jsonBuf bytes.Buffer

	observability.NewLogger(&jsonBuf, cfg).Info("hello", "k", "v")

	record := decodeRecord(t, &jsonBuf)
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "v", record["k"])

	cfg.LogJSON = false
	cfg.LogLevel = slog.LevelWarn

	var textBuf bytes.Buffer

	logger := observability.NewLogger(&textBuf, cfg)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, textBuf.String(), "hidden")
	assert.Contains(t, textBuf.String(), "msg=shown")
	assert.Contains(t, textBuf.String(), "service=vcsmeta")
}
