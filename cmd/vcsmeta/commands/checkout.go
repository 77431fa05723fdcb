package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/engine"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/version"
)

const defaultRemote = "origin"

func newCheckoutCommand(globals *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Switch branches or detach HEAD at a commit or tag",
	}

	move := func(use, short string, fn func(*engine.Engine, context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return globals.withSession(cmd, func(ctx context.Context, s *session) error {
					err := fn(s.engine, ctx, args[0])
					if err != nil {
						return err
					}

					state, err := s.engine.HeadState(ctx)
					if err != nil {
						return err
					}

					return s.renderer.State(state)
				})
			},
		}
	}

	cmd.AddCommand(
		move("branch <name>", "Check out a local branch", (*engine.Engine).CheckoutBranch),
		move("commit <rev>", "Detach HEAD at a commit", (*engine.Engine).CheckoutCommit),
		move("tag <name>", "Detach HEAD at the commit a tag points to", (*engine.Engine).CheckoutTag),
	)

	return cmd
}

func newHeadCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Show where HEAD points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				state, err := s.engine.HeadState(ctx)
				if err != nil {
					return err
				}

				return s.renderer.State(state)
			})
		},
	}
}

func newBranchCommand(globals *Globals) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "Print the current branch, or create a branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				if len(args) == 0 {
					name, err := s.engine.CurrentBranch(ctx)
					if err != nil {
						return err
					}

					return s.renderer.Value("branch", name)
				}

				id, err := s.engine.CreateBranch(ctx, args[0], target)
				if err != nil {
					return err
				}

				return s.renderer.Value("commit", id)
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "commit the branch starts at (default: HEAD)")

	return cmd
}

func newCommitCommand(globals *Globals) *cobra.Command {
	var (
		message     string
		authorName  string
		authorEmail string
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged tree as a new commit on HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				if all {
					err := s.engine.AddAll(ctx)
					if err != nil {
						return err
					}
				}

				id, err := s.engine.Commit(ctx, message, authorName, authorEmail)
				if err != nil {
					return err
				}

				return s.renderer.Value("commit", id)
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&authorName, "author-name", "", "author and committer name")
	cmd.Flags().StringVar(&authorEmail, "author-email", "", "author and committer email")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "stage every change before committing")

	for _, name := range []string{"message", "author-name", "author-email"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newRemoteCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remote [name]",
		Short: "Print the URL of a remote (default: origin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := defaultRemote
			if len(args) == 1 {
				name = args[0]
			}

			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				url, err := s.engine.RemoteURL(ctx, name)
				if err != nil {
					return err
				}

				return s.renderer.Value("url", url)
			})
		},
	}
}

func newInitCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := globals.load(cmd)
			if err != nil {
				return err
			}

			path := cfg.Repository.Path
			if len(args) == 1 {
				path = args[0]
			}

			renderer, err := NewRenderer(cmd.OutOrStdout(), cfg.Output.Format)
			if err != nil {
				return err
			}

			providers, err := observability.Init(cfg.Observability(observability.ModeCLI, version.Version))
			if err != nil {
				return err
			}

			defer func() {
				_ = providers.Shutdown(context.Background())
			}()

			eng, err := engine.Init(path, engine.Options{Logger: providers.Logger})
			if err != nil {
				return err
			}
			defer eng.Close()

			return renderer.Value("path", eng.Path())
		},
	}
}
