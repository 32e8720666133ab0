package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run egress as an MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools exposed:
  egress_run      Run a simulation and record it
  egress_history  List recorded runs
  egress_get_run  Show one recorded run

Logs go to stderr so they never mix with protocol traffic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			timeout, _ := cmd.Flags().GetDuration("run-timeout")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "egress",
				Version:    version,
				Root:       root,
				Settings:   cfg,
				RunTimeout: timeout,
				Logger:     logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Duration("run-timeout", 0, "Maximum duration of one egress_run call (default 1m)")

	return cmd
}
