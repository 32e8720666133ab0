package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/egress/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in .egress/egress.db, newest first.

Examples:
  egress history                       # Last 20 runs
  egress history --strategy concurrent # Only concurrent runs
  egress history delete <id>           # Remove a run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			strategy, _ := cmd.Flags().GetString("strategy")
			limit, _ := cmd.Flags().GetInt("limit")

			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative, got %d", limit)
			}

			runStore, err := store.NewSQLiteRunStore(root)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer runStore.Close()

			runs, err := runStore.ListRuns(cmd.Context(), store.RunFilter{Strategy: strategy, Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet. Try 'egress run'.")
				return nil
			}
			writeRunTable(out, runs)
			return nil
		},
	}

	cmd.Flags().String("strategy", "", "Only list runs of this strategy")
	cmd.Flags().IntP("limit", "n", 20, "Maximum runs to list (0 for all)")

	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func writeRunTable(w io.Writer, runs []store.Run) {
	fmt.Fprintf(w, "%-8s  %-19s  %-10s  %-9s  %-9s  %7s  %7s  %6s  %s\n",
		"ID", "CREATED", "STRATEGY", "STATUS", "GRID", "AGENTS", "EXITED", "TICKS", "ELAPSED")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-19s  %-10s  %-9s  %-9s  %7d  %7d  %6d  %v\n",
			shortID(r.ID),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Strategy,
			r.Status,
			fmt.Sprintf("%dx%d", r.XSize, r.YSize),
			r.Agents,
			r.Exited,
			r.Ticks,
			r.Elapsed.Round(time.Microsecond),
		)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			runStore, err := store.NewSQLiteRunStore(root)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer runStore.Close()

			if err := runStore.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			runStore, err := store.NewSQLiteRunStore(root)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer runStore.Close()

			run, err := runStore.GetRun(cmd.Context(), args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("no run with id %s (see 'egress history')", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(run)
			}

			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  created:   %s\n", run.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "  strategy:  %s\n", run.Strategy)
			fmt.Fprintf(out, "  status:    %s\n", run.Status)
			fmt.Fprintf(out, "  grid:      %dx%d (%s layout)\n", run.XSize, run.YSize, run.Layout)
			fmt.Fprintf(out, "  agents:    %d (seed %d)\n", run.Agents, run.Seed)
			fmt.Fprintf(out, "  target:    (%d,%d)\n", run.TargetX, run.TargetY)
			fmt.Fprintf(out, "  exited:    %d\n", run.Exited)
			fmt.Fprintf(out, "  ticks:     %d  moves: %d  stays: %d  blocked: %d\n", run.Ticks, run.Moves, run.Stays, run.Blocked)
			fmt.Fprintf(out, "  elapsed:   %v\n", run.Elapsed)
			if run.MaxRSSKB > 0 {
				fmt.Fprintf(out, "  cpu:       user %v, sys %v, maxrss %d KB\n", run.UserTime, run.SystemTime, run.MaxRSSKB)
			}
			fmt.Fprintf(out, "  exit order: %v\n", run.ExitOrder)
			return nil
		},
	}
}
