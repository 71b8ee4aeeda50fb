package pipeline

import (
	"time"

	"fip/internal/autofix"
	"fip/internal/correlation"
	"fip/internal/feedback"
	"fip/internal/finding"
	"fip/internal/incremental"
	"fip/internal/priority"
)

// Severity penalties subtracted from a perfect health score.
var severityPenalty = map[finding.Severity]int{
	finding.SeverityCritical: 15,
	finding.SeverityHigh:     8,
	finding.SeverityMedium:   3,
	finding.SeverityLow:      1,
	finding.SeverityInfo:     0,
}

// QuickWinLimit is the number of quick wins reported per run.
const QuickWinLimit = 5

// ProducerError records a producer that failed during a run. Its findings
// for the run are empty.
type ProducerError struct {
	Producer finding.Producer `json:"producer"`
	Error    string           `json:"error"`
}

// ProducerResult is the outcome of one producer invocation.
type ProducerResult struct {
	Producer   finding.Producer  `json:"producer"`
	Findings   []finding.Finding `json:"-"`
	Count      int               `json:"count"`
	DurationMs int64             `json:"durationMs"`
	Err        error             `json:"-"`
}

// Report is the result of one pipeline run.
type Report struct {
	RunID           string                    `json:"runId"`
	Root            string                    `json:"root"`
	StartedAt       time.Time                 `json:"startedAt"`
	FinishedAt      time.Time                 `json:"finishedAt"`
	Changes         *incremental.ChangeSet    `json:"changes"`
	Plan            incremental.AnalysisPlan  `json:"plan"`
	Producers       []ProducerResult          `json:"producers"`
	ProducerErrors  []ProducerError           `json:"producerErrors,omitempty"`
	Findings        []finding.Finding         `json:"findings"`
	Records         []priority.Record         `json:"records"`
	ActionPlan      priority.Plan             `json:"actionPlan"`
	QuickWins       []priority.Record         `json:"quickWins"`
	Insights        []correlation.Insight     `json:"insights"`
	Opportunities   []correlation.Opportunity `json:"opportunities"`
	Recommendations []feedback.Recommendation `json:"recommendations,omitempty"`
	Fixes           []autofix.Fix             `json:"fixes"`
	HealthScore     int                       `json:"healthScore"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Passed reports whether the health score reaches failUnder.
func (r *Report) Passed(failUnder int) bool {
	return r.HealthScore >= failUnder
}

// AvailableFixes returns the fixes that have a template.
func (r *Report) AvailableFixes() []autofix.Fix {
	var out []autofix.Fix
	for _, fix := range r.Fixes {
		if fix.Available {
			out = append(out, fix)
		}
	}
	return out
}

// Finding returns the run's finding with id.
func (r *Report) Finding(id string) (finding.Finding, bool) {
	for _, f := range r.Findings {
		if f.ID == id {
			return f, true
		}
	}
	return finding.Finding{}, false
}

// HealthScore is 100 minus the severity penalties of findings, floored at 0.
func HealthScore(findings []finding.Finding) int {
	score := 100
	for _, f := range findings {
		score -= severityPenalty[f.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}
