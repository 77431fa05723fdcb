package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

// ErrOutsideRepository is returned for a path argument that leaves the
// repository working tree.
var ErrOutsideRepository = errors.New("path is outside the repository")

// repoPath maps a path argument to the repository-relative form the engine
// expects, resolving it against the process working directory.
func (s *session) repoPath(arg string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}

	return repoRelative(s.engine.Path(), cwd, arg)
}

// repoRelative resolves arg to a slash-separated path relative to root.
// Absolute arguments and arguments given from inside the working tree are
// taken relative to cwd. From outside the tree a relative argument is already
// repository-relative.
func repoRelative(root, cwd, arg string) (string, error) {
	target := arg

	switch {
	case filepath.IsAbs(arg):
	case inside(root, cwd):
		target = filepath.Join(cwd, arg)
	default:
		target = filepath.Join(root, arg)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || !inside(root, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepository, arg)
	}

	if rel == "." {
		return "", nil
	}

	return filepath.ToSlash(rel), nil
}

func inside(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func newFilesCommand(globals *Globals) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "files [dir]",
		Short: "List files with their last-commit metadata",
		Long: `List every tracked and untracked file under dir (default: the repository
root) with the commit that last changed it. Untracked files carry no commit.
Files whose history cannot be resolved are reported as skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if match != "" && !doublestar.ValidatePattern(match) {
				return fmt.Errorf("%w: %q", doublestar.ErrBadPattern, match)
			}

			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				dir := ""
				if len(args) == 1 {
					var err error

					dir, err = s.repoPath(args[0])
					if err != nil {
						return err
					}
				}

				result, err := s.engine.ListFiles(ctx, dir)
				if err != nil {
					return err
				}

				if match != "" {
					result = filterFiles(result, match)
				}

				return s.renderer.Files(result)
			})
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "only list paths matching a glob, e.g. 'src/**/*.go'")

	return cmd
}

// filterFiles keeps the entries whose path matches a validated glob.
func filterFiles(result worktree.ListResult, pattern string) worktree.ListResult {
	filtered := worktree.ListResult{Skipped: result.Skipped}

	for _, file := range result.Files {
		if doublestar.MatchUnvalidated(pattern, file.Path) {
			filtered.Files = append(filtered.Files, file)
		}
	}

	return filtered
}

func newLastCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "last <path>",
		Short: "Show the last commit that changed a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				rel, err := s.repoPath(args[0])
				if err != nil {
					return err
				}

				meta, err := s.engine.FileMetadata(ctx, rel)
				if err != nil {
					return err
				}

				return s.renderer.Metadata(meta)
			})
		},
	}
}

func newHistoryCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "history <path>",
		Short: "Show every commit that changed a file, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				rel, err := s.repoPath(args[0])
				if err != nil {
					return err
				}

				entries, err := s.engine.FileHistory(ctx, rel)
				if err != nil {
					return err
				}

				return s.renderer.History(entries)
			})
		},
	}
}

func newStatusCommand(globals *Globals) *cobra.Command {
	var ignored bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show working-tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				opts := worktree.ScanOptions{IncludeIgnored: s.cfg.Status.IncludeIgnored}
				if cmd.Flags().Changed("ignored") {
					opts.IncludeIgnored = ignored
				}

				entries, err := s.engine.FileStatus(ctx, opts)
				if err != nil {
					return err
				}

				return s.renderer.Status(entries)
			})
		},
	}

	cmd.Flags().BoolVar(&ignored, "ignored", false, "include ignored files")

	return cmd
}
