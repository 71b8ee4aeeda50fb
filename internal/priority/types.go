// Package priority scores findings, infers ordering constraints between
// them and buckets them into an effort-bounded action plan.
package priority

import (
	"fmt"
	"math"

	"fip/internal/finding"
)

// DependencyType is the kind of ordering constraint between two findings.
type DependencyType string

const (
	// Blocks means From must be fixed before To.
	Blocks DependencyType = "BLOCKS"
	// DependsOn means From should be fixed after To.
	DependsOn DependencyType = "DEPENDS_ON"
)

// Dependency is a directed constraint between two findings. Both records
// involved carry the same Dependency.
type Dependency struct {
	Type   DependencyType `json:"type"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Reason string         `json:"reason"`
}

// Record is a finding with its derived priority attributes.
type Record struct {
	Finding       finding.Finding `json:"finding"`
	Score         int             `json:"priorityScore"`
	EffortMinutes int             `json:"estimatedEffortMinutes"`
	Impact        int             `json:"impactScore"`
	AutoFixable   bool            `json:"autoFixable"`
	Dependencies  []Dependency    `json:"dependencies,omitempty"`
}

// ID returns the finding ID.
func (r Record) ID() string { return r.Finding.ID }

// BlockedIDs returns the IDs of findings this record blocks.
func (r Record) BlockedIDs() []string {
	var out []string
	for _, d := range r.Dependencies {
		if d.Type == Blocks && d.From == r.Finding.ID {
			out = append(out, d.To)
		}
	}
	return out
}

// BlocksOthers reports whether the record blocks at least one finding.
func (r Record) BlocksOthers() bool {
	return len(r.BlockedIDs()) > 0
}

// BlockedBy returns the IDs of findings that block this record.
func (r Record) BlockedBy() []string {
	var out []string
	for _, d := range r.Dependencies {
		if d.Type == Blocks && d.To == r.Finding.ID {
			out = append(out, d.From)
		}
	}
	return out
}

// Plan is an effort-bucketed action plan.
type Plan struct {
	Immediate    []Record `json:"immediate"`
	Today        []Record `json:"today"`
	ThisWeek     []Record `json:"thisWeek"`
	CriticalPath []Record `json:"criticalPath"`
	TotalMinutes int      `json:"totalMinutes"`
}

// Bucket limits on cumulative effort, in minutes.
const (
	ImmediateMinutes = 10
	TodayMinutes     = 120
	QuickWinMinutes  = 10
)

// Weights are the factor weights of the priority score.
type Weights struct {
	Severity     float64 `json:"severity" mapstructure:"severity"`
	Impact       float64 `json:"impact" mapstructure:"impact"`
	Effort       float64 `json:"effort" mapstructure:"effort"`
	Confidence   float64 `json:"confidence" mapstructure:"confidence"`
	Dependencies float64 `json:"dependencies" mapstructure:"dependencies"`
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{
		Severity:     0.35,
		Impact:       0.25,
		Effort:       0.20,
		Confidence:   0.10,
		Dependencies: 0.10,
	}
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"severity": w.Severity, "impact": w.Impact, "effort": w.Effort,
		"confidence": w.Confidence, "dependencies": w.Dependencies,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative", name)
		}
	}
	sum := w.Severity + w.Impact + w.Effort + w.Confidence + w.Dependencies
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights sum to %.3f, want 1", sum)
	}
	return nil
}
