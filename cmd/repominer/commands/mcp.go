package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/mcp"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the mining pipeline as tools that AI agents can
discover and invoke:
  - repominer_fixing_commits: defect-fixing commits of a branch with their labels
  - repominer_label: fixed files and failure-prone files of a branch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := startSession(cmd, observability.ModeMCP, func(cfg *config.Config) {
				// stdout carries the protocol.
				cfg.Logging.Format = "json"

				if debug {
					cfg.Logging.Level = "debug"
					cfg.Telemetry.Debug = true
				}
			})
			if err != nil {
				return err
			}
			defer sess.close()

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:  sess.logger(),
				Metrics: red,
				Mining:  sess.metrics,
				Tracer:  sess.providers.Tracer,
				Config:  sess.cfg,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and sample every span")

	return cmd
}
