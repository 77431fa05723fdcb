package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/engine"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/watcher"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

// Update is one watch notification: the change and, unless the path was
// removed, the file's current metadata.
type Update struct {
	Event    watcher.Event         `json:"event"              yaml:"event"`
	Path     string                `json:"path"               yaml:"path"`
	Metadata *history.FileMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// Skipped marks a tracked file no commit attributes lines to.
	Skipped  bool                  `json:"skipped,omitempty"  yaml:"skipped,omitempty"`
	Error    string                `json:"error,omitempty"    yaml:"error,omitempty"`
}

func newWatchCommand(globals *Globals) *cobra.Command {
	var patterns []string

	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Stream metadata updates for changed files",
		Long: `Watch directories of the working tree (default: the repository root) and
print the current last-commit metadata of every file that is created or
modified. Removals are reported without metadata. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := globals.open(cmd, observability.ModeWatch)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry, err := watcher.NewRegistry(s.providers.Logger)
			if err != nil {
				return err
			}
			defer registry.Close()

			opts := watcher.Options{
				Recursive:   s.cfg.Watch.Recursive,
				IgnorePaths: s.cfg.Watch.Ignore,
				Patterns:    patterns,
				Gitignore:   s.cfg.Watch.Gitignore,
			}

			roots := args
			if len(roots) == 0 {
				roots = []string{s.engine.Path()}
			}

			for _, dir := range roots {
				err = registry.Watch(dir, opts)
				if err != nil {
					return err
				}
			}

			s.providers.Logger.InfoContext(ctx, "watching", "paths", registry.WatchedPaths())

			return runWithMetrics(ctx, s, func(ctx context.Context) error {
				return watchLoop(ctx, s.engine, registry, s.renderer, s.providers.Logger)
			})
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "ignore", nil, "gitignore-style patterns to skip")

	return cmd
}

// runWithMetrics runs fn and, when telemetry.metrics_addr is set, a metrics
// server that stops once fn returns.
func runWithMetrics(ctx context.Context, s *session, fn func(ctx context.Context) error) error {
	addr := s.cfg.Telemetry.MetricsAddr
	if addr == "" {
		return fn(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		defer cancel()

		return fn(groupCtx)
	})

	group.Go(func() error {
		mux := observability.NewMux(s.providers, s.engine.Ready)

		return serveMetrics(groupCtx, addr, mux, s.providers.Logger)
	})

	return group.Wait()
}

// watchLoop renders an Update per event until ctx is done or the registry closes.
func watchLoop(
	ctx context.Context, eng *engine.Engine, registry *watcher.Registry, renderer *Renderer, logger *slog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-registry.Errors():
			if !ok {
				return nil
			}

			logger.WarnContext(ctx, "watch error", "error", err)
		case ev, ok := <-registry.Events():
			if !ok {
				return nil
			}

			update, relevant := describeEvent(ctx, eng, ev)
			if !relevant {
				continue
			}

			if update.Error != "" {
				logger.WarnContext(ctx, "metadata lookup failed", "path", update.Path, "error", update.Error)
			}

			err := renderer.Update(update)
			if err != nil {
				return fmt.Errorf("render update: %w", err)
			}
		}
	}
}

// describeEvent resolves the metadata of the file an event names. Events
// outside the working tree and directory creations are not relevant.
func describeEvent(ctx context.Context, eng *engine.Engine, ev watcher.Event) (Update, bool) {
	rel, err := filepath.Rel(eng.Path(), ev.Path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Update{}, false
	}

	update := Update{Event: ev, Path: filepath.ToSlash(rel)}

	if ev.Kind == watcher.KindRemove {
		return update, true
	}

	if isDir(ev.Path) {
		return Update{}, false
	}

	meta, err := eng.FileMetadata(ctx, update.Path)

	switch {
	case errors.Is(err, history.ErrHistoryNotFound):
		isNew, statusErr := isUntracked(ctx, eng, update.Path)

		switch {
		case statusErr != nil:
			update.Error = statusErr.Error()
		case isNew:
			untracked := history.UntrackedMetadata(update.Path)
			update.Metadata = &untracked
		default:
			update.Skipped = true
		}
	case err != nil:
		update.Error = err.Error()
	default:
		update.Metadata = &meta
	}

	return update, true
}

// isUntracked reports whether the working-tree status flags rel as new.
func isUntracked(ctx context.Context, eng *engine.Engine, rel string) (bool, error) {
	entries, err := eng.FileStatus(ctx, worktree.ScanOptions{})
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.Path == rel {
			return entry.New, nil
		}
	}

	return false, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)

	return err == nil && info.IsDir()
}
