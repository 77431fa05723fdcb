// Package engine is the entry point of vcsmeta. An Engine owns one open
// repository and exposes every metadata, status, tag and checkout operation
// on it. Read-only queries may run concurrently; mutations are exclusive.
//
// Each operation opens a span named "vcsmeta.<op>", records RED metrics and
// logs with the repository path attached to the context.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/checkout"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/tags"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

const spanPrefix = "vcsmeta."

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("engine closed")

// Options configures an Engine. Zero values select no-op telemetry and a
// discarding logger.
type Options struct {
	// DetectRenames enables rename detection in history queries.
	DetectRenames bool

	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Engine is a repository session with coordinated access.
type Engine struct {
	mu     sync.RWMutex
	closed bool

	repo     *gitlib.Repository
	path     string
	resolver *history.Resolver
	scanner  *worktree.Scanner
	universe *worktree.Universe
	catalog  *tags.Catalog
	checkout *checkout.Controller

	// refreshHead resyncs the checkout state after a commit moved HEAD.
	refreshHead func(context.Context) error

	logger  *slog.Logger
	tracer  trace.Tracer
	red     *observability.REDMetrics
	listing *observability.ListingMetrics
}

// Open opens the repository at path.
func Open(path string, opts Options) (*Engine, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	return newEngine(repo, opts)
}

// Discover opens the repository containing start, searching parent
// directories for the metadata directory.
func Discover(start string, opts Options) (*Engine, error) {
	repo, err := gitlib.DiscoverRepository(start)
	if err != nil {
		return nil, err
	}

	return newEngine(repo, opts)
}

// Init creates an empty repository at path and opens it.
func Init(path string, opts Options) (*Engine, error) {
	repo, err := gitlib.InitRepository(path)
	if err != nil {
		return nil, err
	}

	return newEngine(repo, opts)
}

// IsRepository reports whether path can be opened as a repository.
func IsRepository(path string) bool {
	return gitlib.IsRepository(path)
}

func newEngine(repo *gitlib.Repository, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	meter := opts.Meter
	if meter == nil {
		meter = noopmetric.NewMeterProvider().Meter("")
	}

	red, err := observability.NewREDMetrics(meter)
	if err != nil {
		repo.Free()

		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	listing, err := observability.NewListingMetrics(meter)
	if err != nil {
		repo.Free()

		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	controller, err := checkout.NewController(repo, logger)
	if err != nil {
		repo.Free()

		return nil, err
	}

	resolver := history.NewResolver(repo, history.Options{DetectRenames: opts.DetectRenames})

	return &Engine{
		repo:     repo,
		path:     repo.Path(),
		resolver: resolver,
		scanner:  worktree.NewScanner(repo),
		universe: worktree.NewUniverse(repo, resolver, logger),
		catalog:  tags.NewCatalog(repo, logger),
		checkout: controller,
		logger:   logger,
		tracer:   tracer,
		red:      red,
		listing:  listing,

		refreshHead: controller.Refresh,
	}, nil
}

// Path returns the repository root.
func (e *Engine) Path() string {
	return e.path
}

// Close frees the repository. Further operations fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true
	e.repo.Free()

	return nil
}

// Ready reports whether the engine still holds an open repository. It is
// shaped as an observability.ReadyCheck.
func (e *Engine) Ready(_ context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrClosed
	}

	return nil
}

// read runs fn under the shared lock.
func (e *Engine) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.run(ctx, op, fn)
}

// write runs fn under the exclusive lock.
func (e *Engine) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.run(ctx, op, fn)
}

func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx = observability.WithRepository(ctx, e.path)

	ctx, span := e.tracer.Start(ctx, spanPrefix+op,
		trace.WithAttributes(attribute.String("vcsmeta.repository", e.path)),
	)
	defer span.End()

	done := e.red.TrackInflight(ctx, op)
	defer done()

	start := time.Now()

	err := ErrClosed
	if !e.closed {
		err = fn(ctx)
	}

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.DebugContext(ctx, "operation failed", "op", op, "error", err)
	}

	e.red.RecordRequest(ctx, op, status, time.Since(start))

	return err
}
