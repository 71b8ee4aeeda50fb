package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fip/internal/feedback"
	"fip/internal/finding"
)

type feedbackResponse struct {
	Finding    finding.Finding `json:"finding"`
	Kind       feedback.Kind   `json:"kind"`
	Confidence float64         `json:"adjustedConfidence"`
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <finding-id> <kind>",
	Short: "Record feedback on a finding",
	Long: `Record feedback on a finding from the latest run. The learned history
adjusts the confidence of similar findings in later runs.

Kinds: ` + strings.ToLower(kindList()) + `

Examples:
  fip feedback f_3a1c... false_positive
  fip feedback f_3a1c... confirmed`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	kind, err := feedback.ParseKind(args[1])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := s.pipeline.RecordFeedback(args[0], kind)
	if err != nil {
		return err
	}
	resp := feedbackResponse{
		Finding:    f,
		Kind:       kind,
		Confidence: s.pipeline.Feedback().AdjustedConfidence(f),
	}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
		fmt.Fprintf(w, "Recorded %s for %s (%s at %s)\n", bold(string(kind)), f.ID, f.EffectiveType(), location(f.Location))
		fmt.Fprintf(w, "Confidence of similar findings: %.2f -> %.2f\n", f.Confidence, resp.Confidence)
	})
}

func kindList() string {
	names := make([]string, len(feedback.Kinds))
	for i, k := range feedback.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
