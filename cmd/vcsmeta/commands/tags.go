package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/tags"
)

func newTagsCommand(globals *Globals) *cobra.Command {
	list := func(cmd *cobra.Command, _ []string) error {
		return globals.withSession(cmd, func(ctx context.Context, s *session) error {
			all, err := s.engine.ListTags(ctx)
			if err != nil {
				return err
			}

			return s.renderer.Tags(all)
		})
	}

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List, create and delete tags",
		Args:  cobra.NoArgs,
		RunE:  list,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all tags",
			Args:  cobra.NoArgs,
			RunE:  list,
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Show one tag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return globals.withSession(cmd, func(ctx context.Context, s *session) error {
					tag, err := s.engine.GetTag(ctx, args[0])
					if err != nil {
						return err
					}

					return s.renderer.Tags([]tags.Tag{tag})
				})
			},
		},
		newTagCreateCommand(globals),
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a tag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return globals.withSession(cmd, func(ctx context.Context, s *session) error {
					err := s.engine.DeleteTag(ctx, args[0])
					if err != nil {
						return err
					}

					return s.renderer.Value("deleted", args[0])
				})
			},
		},
	)

	return cmd
}

func newTagCreateCommand(globals *Globals) *cobra.Command {
	var (
		message string
		target  string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag; annotated when a message is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var msg *string
			if cmd.Flags().Changed("message") {
				msg = &message
			}

			return globals.withSession(cmd, func(ctx context.Context, s *session) error {
				id, err := s.engine.CreateTag(ctx, args[0], msg, target)
				if err != nil {
					return err
				}

				return s.renderer.Value("id", id)
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "annotation message")
	cmd.Flags().StringVar(&target, "target", "", "commit to tag (default: HEAD)")

	return cmd
}
