package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage egress configuration",
		Long: `View and create egress configuration.

Configuration is stored in ~/.egress/config.yaml. EGRESS_* environment
variables override the file, and 'egress run' flags override both.

Examples:
  egress config list              # Show effective settings
  egress config init              # Write the defaults to ~/.egress/config.yaml`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprintln(out, "# Effective configuration (~/.egress/config.yaml + EGRESS_* overrides)")
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write default settings to ~/.egress/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")

			dir, err := store.GlobalEgressPath()
			if err != nil {
				return fmt.Errorf("failed to get global path: %w", err)
			}
			path := filepath.Join(dir, "config.yaml")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "written",
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing config file")

	return cmd
}
