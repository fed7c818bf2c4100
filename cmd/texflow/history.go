// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texflow/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history [target.tex]",
	Short: "List recorded compile runs",
	Long: `History prints recent compile runs from the state database, newest first.
With a target argument, only runs for that document are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := projectConfig()
	store, err := state.NewStore(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.History(context.Background(), target, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-8s  %-6s  %-40s\n", "Finished", "Status", "Diags", "Target")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, r := range runs {
		name := r.Target
		if len(name) > 40 {
			name = "..." + name[len(name)-37:]
		}
		fmt.Fprintf(os.Stdout, "%-20s  %-8s  %-6d  %-40s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.DiagnosticCount, name)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum runs to list")

	rootCmd.AddCommand(historyCmd)
}
