package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fip/internal/config"
	"fip/internal/storage"
)

var (
	historyLimit int
	historyPrune string
	historyFixes bool
)

type historyResponse struct {
	Runs   []storage.Run        `json:"runs,omitempty"`
	Fixes  []storage.AppliedFix `json:"fixes,omitempty"`
	Pruned int                  `json:"pruned,omitempty"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs and applied fixes",
	Long: `Show the most recent pipeline runs recorded in .fip/history.db, or the
applied fix attempts with --fixes. --prune deletes runs older than the given
age first.

Examples:
  fip history --limit=5
  fip history --fixes
  fip history --prune=30d`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum entries to show")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "Delete runs older than this age (e.g. 72h, 30d)")
	historyCmd.Flags().BoolVar(&historyFixes, "fixes", false, "Show applied fixes instead of runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	db := s.pipeline.History()
	if db == nil {
		return fmt.Errorf("run history is disabled")
	}

	var resp historyResponse
	if historyPrune != "" {
		age, err := config.ParseDuration(historyPrune)
		if err != nil {
			return fmt.Errorf("invalid --prune: %w", err)
		}
		resp.Pruned, err = db.PruneRuns(time.Now().Add(-age))
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
	}

	if historyFixes {
		resp.Fixes, err = db.AppliedFixes(historyLimit)
	} else {
		resp.Runs, err = db.RecentRuns(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printHistoryHuman(w, resp) })
}

func printHistoryHuman(w io.Writer, resp historyResponse) {
	if resp.Pruned > 0 {
		fmt.Fprintf(w, "Pruned %s.\n\n", pluralize(resp.Pruned, "run", "runs"))
	}
	for _, r := range resp.Runs {
		fmt.Fprintf(w, "%s  %s  %-11s %s  %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			faint(r.ID),
			r.Strategy,
			pluralize(r.TotalFindings, "finding", "findings"),
			healthLabel(r.HealthScore),
			runErrors(r.ProducerErrors),
		)
	}
	for _, f := range resp.Fixes {
		mark := green("✓")
		if !f.Success {
			mark = red("✗")
		}
		fmt.Fprintf(w, "%s %s  %s  %s %s\n",
			mark,
			f.AppliedAt.Local().Format("2006-01-02 15:04"),
			f.File,
			f.Kind,
			faint(f.FindingID),
		)
		if !f.Success && f.Reason != "" {
			fmt.Fprintf(w, "    %s\n", f.Reason)
		}
	}
	if len(resp.Runs) == 0 && len(resp.Fixes) == 0 {
		fmt.Fprintln(w, "No history.")
	}
}

func runErrors(n int) string {
	if n == 0 {
		return ""
	}
	return red(pluralize(n, "producer error", "producer errors"))
}
