package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fip/internal/feedback"
	"fip/internal/incremental"
	"fip/internal/pipeline"
	"fip/internal/storage"
)

var statsTopTypes int

type statsResponse struct {
	Learning feedback.Statistics `json:"learning"`
	Tracker  incremental.Stats   `json:"tracker"`
	TopTypes []storage.TypeCount `json:"topTypes,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning and cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsTopTypes, "top", 10, "Number of most frequent finding types to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := collectStats(s.pipeline, statsTopTypes)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printStatsHuman(w, resp) })
}

func collectStats(p *pipeline.Pipeline, top int) (statsResponse, error) {
	resp := statsResponse{
		Learning: p.Feedback().Statistics(),
		Tracker:  p.Tracker().Stats(),
	}
	if db := p.History(); db != nil && top > 0 {
		types, err := db.TopTypes(top)
		if err != nil {
			return resp, fmt.Errorf("read finding types: %w", err)
		}
		resp.TopTypes = types
	}
	return resp, nil
}

func printStatsHuman(w io.Writer, resp statsResponse) {
	l := resp.Learning
	fmt.Fprintln(w, bold("Learning"))
	fmt.Fprintf(w, "  Analysis runs:          %d\n", l.AnalysisRuns)
	fmt.Fprintf(w, "  Findings seen:          %d\n", l.TotalFindings)
	fmt.Fprintf(w, "  Confirmed issues:       %d\n", l.ConfirmedIssues)
	fmt.Fprintf(w, "  False positive rate:    %.1f%%\n", l.FalsePositiveRate*100)
	fmt.Fprintf(w, "  Average confidence:     %.2f\n", l.AverageConfidence)
	fmt.Fprintf(w, "  Learned patterns:       %d\n", l.LearnedPatterns)
	fmt.Fprintf(w, "  Known false positives:  %d\n", l.KnownFalsePositives)
	fmt.Fprintf(w, "  Successful auto-fixes:  %d\n", l.SuccessfulAutoFixes)

	fmt.Fprintln(w, bold("\nCache"))
	fmt.Fprintf(w, "  Tracked files:          %d\n", resp.Tracker.TrackedFiles)
	fmt.Fprintf(w, "  Import edges:           %d\n", resp.Tracker.Edges)
	fmt.Fprintf(w, "  Cached results:         %d\n", resp.Tracker.CachedResults)

	if len(l.CommonIssues) > 0 {
		fmt.Fprintln(w, bold("\nCommon issues"))
		for _, ic := range l.CommonIssues {
			fmt.Fprintf(w, "  %5d  %s\n", ic.Count, ic.Issue)
		}
	}
	if len(resp.TopTypes) > 0 {
		fmt.Fprintln(w, bold("\nRecorded finding types"))
		for _, tc := range resp.TopTypes {
			fmt.Fprintf(w, "  %5d  %s\n", tc.Count, tc.CanonicalType)
		}
	}
}
