package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fip/internal/autofix"
	"fip/internal/pipeline"
)

var (
	fixApply       bool
	fixAutoOnly    bool
	fixFindings    []string
	fixRemediation bool
)

type fixResponse struct {
	RunID       string           `json:"runId"`
	Fixes       []autofix.Fix    `json:"fixes"`
	Results     []autofix.Result `json:"results,omitempty"`
	Remediation []string         `json:"remediation,omitempty"`
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Generate and apply fixes",
	Long: `Run the pipeline and list the generated fixes. With --apply the fixes are
written to the working tree grouped per file, bottom-up, after a backup copy of
each file is taken. Fixes below the suggestion threshold are refused.

SQL fixes are never applied to source files; --remediation writes them to
.fip/remediation and the migrations directory instead.

Examples:
  fip fix
  fip fix --apply --auto-only
  fip fix --apply --finding=f_3a1c...
  fip fix --remediation`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func init() {
	fixCmd.Flags().BoolVar(&fixApply, "apply", false, "Apply the fixes to the working tree")
	fixCmd.Flags().BoolVar(&fixAutoOnly, "auto-only", false, "Only apply fixes at or above the auto-apply threshold")
	fixCmd.Flags().StringArrayVar(&fixFindings, "finding", nil, "Limit to these finding IDs")
	fixCmd.Flags().BoolVar(&fixRemediation, "remediation", false, "Write SQL remediation scripts and migrations")
	rootCmd.AddCommand(fixCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.pipeline.Run(context.Background())
	if err != nil {
		return err
	}

	resp := fixResponse{RunID: report.RunID, Fixes: selectFixes(report.AvailableFixes(), fixFindings)}
	if fixApply {
		resp.Results = s.pipeline.ApplyFixes(report, pipeline.ApplyOptions{
			AutoOnly:   fixAutoOnly,
			FindingIDs: fixFindings,
		})
	}
	if fixRemediation {
		written, err := s.pipeline.WriteRemediation(report)
		if err != nil {
			return fmt.Errorf("write remediation: %w", err)
		}
		resp.Remediation = written
	}

	autoThreshold := s.cfg.Autofix.AutoApplyThreshold
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printFixHuman(w, resp, fixApply, autoThreshold) })
}

// selectFixes keeps the fixes of ids; no ids keeps all.
func selectFixes(fixes []autofix.Fix, ids []string) []autofix.Fix {
	if len(ids) == 0 {
		return fixes
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []autofix.Fix
	for _, f := range fixes {
		if wanted[f.FindingID] {
			out = append(out, f)
		}
	}
	return out
}

func printFixHuman(w io.Writer, resp fixResponse, applied bool, autoThreshold float64) {
	if len(resp.Fixes) == 0 {
		fmt.Fprintln(w, "No fixes available.")
	}
	for _, f := range resp.Fixes {
		auto := ""
		if f.Confidence >= autoThreshold {
			auto = green(" auto")
		}
		fmt.Fprintf(w, "%s %s %s%s\n", bold(f.CanonicalType), f.Kind, faint(fmt.Sprintf("%.0f%%", f.Confidence*100)), auto)
		fmt.Fprintf(w, "  %s  %s\n", f.FindingID, fixTarget(f))
		if f.Description != "" {
			fmt.Fprintf(w, "  %s\n", f.Description)
		}
	}

	if applied {
		fmt.Fprintln(w)
		if len(resp.Results) == 0 {
			fmt.Fprintln(w, "Nothing applied.")
		}
		for _, r := range resp.Results {
			if r.Success {
				fmt.Fprintf(w, "%s %s %s\n", green("✓"), r.File, faint(r.FindingID))
				continue
			}
			fmt.Fprintf(w, "%s %s %s: %s\n", red("✗"), r.File, faint(r.FindingID), r.Reason)
		}
	}

	for _, path := range resp.Remediation {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
}

func fixTarget(f autofix.Fix) string {
	switch {
	case f.File == "":
		return faint("(sql)")
	case f.Line > 0:
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	case f.StartLine > 0:
		return fmt.Sprintf("%s:%d-%d", f.File, f.StartLine, f.EndLine)
	default:
		return f.File
	}
}
