// Package commands implements the vcsmeta CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/config"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/engine"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/observability"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/version"
)

const (
	flagDetectRenames = "detect-renames"

	metricsReadHeaderTimeout = 5 * time.Second
)

// Globals holds the persistent flags shared by every command.
type Globals struct {
	ConfigPath    string
	RepoPath      string
	Format        string
	LogLevel      string
	NoColor       bool
	DetectRenames bool
}

// NewRootCommand builds the vcsmeta command tree.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "vcsmeta",
		Short: "Version-control metadata for files and directories",
		Long: `vcsmeta answers "who last changed this file, when and how much" for every
file of a git working tree, tracked or not, and manages tags, branches and
checkouts of the repository.

Commands:
  files     List every file with its last-commit metadata
  last      Show the last commit touching a file
  history   Show every commit touching a file
  status    Show working-tree status
  tags      List, create and delete tags
  checkout  Switch branches or detach HEAD
  watch     Stream metadata updates for changed files
  mcp       Serve the queries to AI agents over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if globals.NoColor {
				color.NoColor = true //nolint:reassign // fatih/color exposes this switch as a package variable.
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "config file (default: ./vcsmeta.yaml)")
	flags.StringVarP(&globals.RepoPath, "repo", "C", "", "path inside the repository (default: repository.path)")
	flags.StringVarP(&globals.Format, "format", "o", "", "output format: table, json or yaml")
	flags.StringVar(&globals.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&globals.NoColor, "no-color", false, "disable colored output")
	flags.BoolVar(&globals.DetectRenames, flagDetectRenames, false, "follow renames in history queries")

	rootCmd.AddCommand(
		newFilesCommand(globals),
		newLastCommand(globals),
		newHistoryCommand(globals),
		newStatusCommand(globals),
		newTagsCommand(globals),
		newCheckoutCommand(globals),
		newHeadCommand(globals),
		newBranchCommand(globals),
		newCommitCommand(globals),
		newRemoteCommand(globals),
		newInitCommand(globals),
		newWatchCommand(globals),
		NewMCPCommand(globals),
		newVersionCommand(),
	)

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// load reads the configuration and applies flag overrides.
func (g *Globals) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	if g.RepoPath != "" {
		cfg.Repository.Path = g.RepoPath
	}

	if g.Format != "" {
		cfg.Output.Format = g.Format
	}

	if g.LogLevel != "" {
		if _, err = config.ParseLogLevel(g.LogLevel); err != nil {
			return nil, err
		}

		cfg.Logging.Level = g.LogLevel
	}

	if cmd.Flags().Changed(flagDetectRenames) {
		cfg.Repository.DetectRenames = g.DetectRenames
	}

	return cfg, nil
}

// session is an open repository plus the telemetry and renderer of one command.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	engine    *engine.Engine
	renderer  *Renderer
}

func (g *Globals) open(cmd *cobra.Command, mode observability.AppMode) (*session, error) {
	cfg, err := g.load(cmd)
	if err != nil {
		return nil, err
	}

	renderer, err := NewRenderer(cmd.OutOrStdout(), cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	providers, err := observability.Init(cfg.Observability(mode, version.Version))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	eng, err := engine.Discover(cfg.Repository.Path, engine.Options{
		DetectRenames: cfg.Repository.DetectRenames,
		Logger:        providers.Logger,
		Tracer:        providers.Tracer,
		Meter:         providers.Meter,
	})
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	providers.Logger.Debug("repository opened", "path", eng.Path(), "mode", string(mode))

	return &session{cfg: cfg, providers: providers, engine: eng, renderer: renderer}, nil
}

func (s *session) close() {
	closeErr := s.engine.Close()
	if closeErr != nil {
		s.providers.Logger.Warn("engine close failed", "error", closeErr)
	}

	shutdownErr := s.providers.Shutdown(context.Background())
	if shutdownErr != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// withSession opens a CLI session, runs fn and releases the session.
func (g *Globals) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := g.open(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer s.close()

	return fn(cmd.Context(), s)
}

// serveMetrics exposes health, readiness and Prometheus endpoints on addr
// until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsReadHeaderTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}()

	logger.Info("serving metrics", "addr", addr)

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}
