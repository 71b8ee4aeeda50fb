package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fip/internal/pipeline"
)

var (
	scanFailUnder int
	scanNoHistory bool
	scanLimit     int
)

// healthGateError is returned when a run's health score is below the gate.
type healthGateError struct {
	score     int
	failUnder int
}

func (e *healthGateError) Error() string {
	return fmt.Sprintf("health score %d is below the required %d", e.score, e.failUnder)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the analysis pipeline",
	Long: `Run one pass of the pipeline: detect changed files, run the producers on
the files that need analysis, correlate and prioritise the findings and generate
fixes. Unchanged files reuse cached results.

The command exits with status 2 when the health score is below --fail-under
(or health.failUnder in .fip/config.json).

Examples:
  fip scan
  fip scan --fail-under=80
  fip scan -o json > report.json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanFailUnder, "fail-under", -1, "Minimum health score (default: health.failUnder)")
	scanCmd.Flags().BoolVar(&scanNoHistory, "no-history", false, "Do not record the run in the history database")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 20, "Maximum findings listed in human output (0 = all)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	var opts []pipeline.Option
	if scanNoHistory {
		opts = append(opts, pipeline.WithoutHistory())
	}
	s, err := openSession(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := s.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	failUnder := s.cfg.Health.FailUnder
	if scanFailUnder >= 0 {
		failUnder = scanFailUnder
	}

	out := cmd.OutOrStdout()
	if err := render(out, report, func(w io.Writer) { printScanHuman(w, report, scanLimit) }); err != nil {
		return err
	}
	if !report.Passed(failUnder) {
		return &healthGateError{score: report.HealthScore, failUnder: failUnder}
	}
	return nil
}

func printScanHuman(w io.Writer, r *pipeline.Report, limit int) {
	fmt.Fprintf(w, "%s %s\n", bold("Run"), r.RunID)
	fmt.Fprintf(w, "Strategy: %s (%d of %d files, %.0f%%)\n",
		r.Plan.Strategy, len(r.Plan.Files), r.Plan.Total, r.Plan.Ratio*100)
	for _, pr := range r.Producers {
		status := green("ok")
		if pr.Err != nil {
			status = red("failed")
		}
		fmt.Fprintf(w, "  %-20s %-7s %3d findings  %dms\n", pr.Producer, status, pr.Count, pr.DurationMs)
	}
	for _, pe := range r.ProducerErrors {
		fmt.Fprintf(w, "  %s %s: %s\n", red("!"), pe.Producer, pe.Error)
	}
	fmt.Fprintln(w)

	if len(r.Records) == 0 {
		fmt.Fprintln(w, green("No findings."))
	} else {
		fmt.Fprintf(w, "%s\n", bold(pluralize(len(r.Records), "finding", "findings")))
		printRecords(w, r.Records, limit)
	}

	if len(r.Insights) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold(pluralize(len(r.Insights), "insight", "insights")))
		printInsights(w, r.Insights)
	}

	available := r.AvailableFixes()
	if len(available) > 0 {
		fmt.Fprintf(w, "\n%s available; run %s to review them.\n",
			pluralize(len(available), "fix", "fixes"), cyan("fip fix"))
	}
	fmt.Fprintf(w, "\nHealth: %s  (%s)\n", healthLabel(r.HealthScore), r.Duration().Round(time.Millisecond))
}
