package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fip/internal/incremental"
	"fip/internal/pipeline"
)

type changesResponse struct {
	Changes *incremental.ChangeSet   `json:"changes"`
	Plan    incremental.AnalysisPlan `json:"plan"`
	Stats   incremental.Stats        `json:"stats"`
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show what changed since the last run",
	Long: `Detect added, modified and deleted files since the last saved snapshot,
the unchanged files impacted through imports, and the resulting analysis
strategy. Nothing is analysed and no state is saved.`,
	Args: cobra.NoArgs,
	RunE: runChanges,
}

func init() {
	rootCmd.AddCommand(changesCmd)
}

func runChanges(cmd *cobra.Command, args []string) error {
	s, err := openSession(pipeline.WithoutHistory())
	if err != nil {
		return err
	}
	defer s.Close()

	tracker := s.pipeline.Tracker()
	cs, err := tracker.DetectChanges(cmd.Context())
	if err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}
	resp := changesResponse{Changes: cs, Plan: tracker.Plan(cs), Stats: tracker.Stats()}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printChangesHuman(w, resp) })
}

func printChangesHuman(w io.Writer, resp changesResponse) {
	cs := resp.Changes
	groups := []struct {
		label string
		mark  string
		files []string
	}{
		{"Added", green("+"), cs.Added},
		{"Modified", yellow("~"), cs.Modified},
		{"Deleted", red("-"), cs.Deleted},
		{"Impacted", cyan("*"), cs.Impacted},
		{"Stale", faint("?"), cs.Stale},
	}
	for _, g := range groups {
		if len(g.files) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d)\n", bold(g.label), len(g.files))
		for _, f := range g.files {
			fmt.Fprintf(w, "  %s %s\n", g.mark, f)
		}
	}
	if !cs.HasChanges() {
		fmt.Fprintln(w, "No changes.")
	}
	fmt.Fprintf(w, "\nStrategy: %s (%d of %d files)\n", resp.Plan.Strategy, len(resp.Plan.Files), resp.Plan.Total)
}
