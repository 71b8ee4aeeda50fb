package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fip/internal/pipeline"
	"fip/internal/priority"
)

type planResponse struct {
	Plan      priority.Plan     `json:"actionPlan"`
	QuickWins []priority.Record `json:"quickWins"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the prioritised action plan",
	Long: `Run the pipeline and bucket the ranked findings by cumulative effort into
work for right now (10 minutes), today (2 hours) and this week, plus the chain
of findings that block others and the quick wins.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := openSession(pipeline.WithoutHistory())
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.pipeline.Run(context.Background())
	if err != nil {
		return err
	}
	resp := planResponse{Plan: report.ActionPlan, QuickWins: report.QuickWins}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printPlanHuman(w, resp) })
}

func printPlanHuman(w io.Writer, resp planResponse) {
	sections := []struct {
		title   string
		records []priority.Record
	}{
		{"Immediate", resp.Plan.Immediate},
		{"Today", resp.Plan.Today},
		{"This week", resp.Plan.ThisWeek},
		{"Critical path", resp.Plan.CriticalPath},
		{"Quick wins", resp.QuickWins},
	}
	for _, sec := range sections {
		if len(sec.records) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", bold(sec.title), faint(fmt.Sprintf("(%s)", formatMinutes(totalMinutes(sec.records)))))
		printRecords(w, sec.records, 0)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total effort: %s\n", formatMinutes(resp.Plan.TotalMinutes))
}

// printRecords lists ranked records; limit 0 lists all.
func printRecords(w io.Writer, records []priority.Record, limit int) {
	for i, r := range records {
		if limit > 0 && i >= limit {
			fmt.Fprintf(w, "  %s\n", faint(fmt.Sprintf("... %d more", len(records)-limit)))
			return
		}
		f := r.Finding
		fix := ""
		if r.AutoFixable {
			fix = green(" [fixable]")
		}
		fmt.Fprintf(w, "  %3d %s %-28s %s%s\n", r.Score, severityLabel(f.Severity), f.EffectiveType(), location(f.Location), fix)
		fmt.Fprintf(w, "      %s  %s  effort %s\n", faint(f.ID), f.Producer, formatMinutes(r.EffortMinutes))
		if blocked := r.BlockedBy(); len(blocked) > 0 {
			fmt.Fprintf(w, "      %s %s\n", yellow("blocked by"), blocked[0])
		}
	}
}

func totalMinutes(records []priority.Record) int {
	total := 0
	for _, r := range records {
		total += r.EffortMinutes
	}
	return total
}
