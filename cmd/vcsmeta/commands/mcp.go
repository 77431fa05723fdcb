package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/mcp"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(globals *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport for the
repository selected by --repo or repository.path.

The server exposes the metadata queries as tools that AI agents can discover
and invoke:
  - vcsmeta_file_metadata: last commit that changed a file
  - vcsmeta_file_history: every commit that changed a file
  - vcsmeta_list_files: every file of a directory with its metadata
  - vcsmeta_list_tags: the tag catalog
  - vcsmeta_status: working-tree status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := globals.open(cmd, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer s.close()

			red, err := observability.NewREDMetrics(s.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Engine:  s.engine,
				Logger:  s.providers.Logger,
				Metrics: red,
				Tracer:  s.providers.Tracer,
			})

			return runWithMetrics(cmd.Context(), s, func(ctx context.Context) error {
				return srv.Run(ctx)
			})
		},
	}

	return cmd
}
