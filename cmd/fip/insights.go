package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fip/internal/correlation"
	"fip/internal/pipeline"
)

type insightsResponse struct {
	Insights      []correlation.Insight     `json:"insights"`
	Opportunities []correlation.Opportunity `json:"opportunities"`
	Stats         correlation.Stats         `json:"stats"`
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show cross-producer insights",
	Long: `Run the pipeline and show the compound insights the correlation hub
derived from findings of different producers, plus the files several producers
reported findings for.`,
	Args: cobra.NoArgs,
	RunE: runInsights,
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, args []string) error {
	s, err := openSession(pipeline.WithoutHistory())
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.pipeline.Run(context.Background())
	if err != nil {
		return err
	}
	resp := insightsResponse{
		Insights:      report.Insights,
		Opportunities: report.Opportunities,
		Stats:         s.pipeline.Hub().Stats(),
	}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
		if len(resp.Insights) == 0 {
			fmt.Fprintln(w, "No insights.")
		} else {
			printInsights(w, resp.Insights)
		}
		if len(resp.Opportunities) > 0 {
			fmt.Fprintf(w, "\n%s\n", bold("Files reported by several producers"))
			for _, o := range resp.Opportunities {
				fmt.Fprintf(w, "  %s  %s\n", o.File, faint(joinProducers(o)))
			}
		}
	})
}

func printInsights(w io.Writer, insights []correlation.Insight) {
	for _, in := range insights {
		fmt.Fprintf(w, "  %s %s", priorityLabel(in.Priority), bold(in.Type))
		if in.File != "" {
			fmt.Fprintf(w, "  %s", in.File)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "      %s\n", in.Description)
		if in.Recommendation != "" {
			fmt.Fprintf(w, "      %s %s\n", cyan("→"), in.Recommendation)
		}
	}
}

func priorityLabel(p correlation.Priority) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(string(p)))
	switch p {
	case correlation.PriorityCritical:
		return redB(label)
	case correlation.PriorityHigh:
		return red(label)
	case correlation.PriorityMedium:
		return yellow(label)
	default:
		return faint(label)
	}
}

func joinProducers(o correlation.Opportunity) string {
	names := make([]string, len(o.Producers))
	for i, p := range o.Producers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
